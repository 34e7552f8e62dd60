// Package tasks runs background cache maintenance jobs with real-time
// progress reporting.
//
// # Core Operation
//
// [CacheWarmer.Run] builds and caches song pools for several sources in one
// pass, so game nights start from a warm cache:
//   - Dedupes the requested sources, first occurrence wins
//   - Builds each pool on a bounded worker pool, behind the catalog's
//     request rate limit
//   - Writes surviving tracks through to the local track cache
//   - Reports per-source results, including partial failures
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values over a caller-supplied channel.
// Sends never block; when nothing reads the channel the update is dropped
// rather than stalling the job.
//
// # Implementation
//
// [CacheWarmer] depends on:
//   - [services.Catalog] : the streaming catalog the pools are built from
//   - [game.TrackCacher] : the persistence layer (repositories.CacheAdapter)
package tasks
