// Package repositories implements SQLite persistence for the track cache.
//
// The cache keeps every track fetched while building song pools so repeat
// games against the same source can skip the catalog round trips. All rows
// support soft deletes via deleted_at timestamps and are excluded from
// queries once deleted.
//
// Key Implementations:
//   - [TrackRepository] : Cached track persistence with service and source lookups
//   - [CacheAdapter] : Write-through layer between the pool builder and the repository
//
// Sequence numbers provide stable, human-readable ordering (e.g., track #42)
// independent of UUIDs and creation timestamps. The [NextSequence] function
// atomically increments per-table sequence counters in dedicated sequence
// tables.
package repositories
