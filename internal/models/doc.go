// Package models defines domain entities and persistence interfaces for the blindspot track cache.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing catalog data
//   - [Track] : Song metadata as fetched from the catalog
//   - [Artist] : Catalog artist with genre tags
//   - [Playlist] : Playlist metadata for pool sources
//   - [Device] : Playback target registered with the catalog
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [CachedTrack] : Catalog tracks written through when a song pool is built
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
