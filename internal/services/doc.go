// Package services defines the [Catalog] interface for music catalog providers and implements it for Spotify.
//
// # Catalog Interface
//
// The game core talks to one abstraction covering search (artists, genres,
// playlists), device listing and snippet playback, so tests can substitute a
// fake catalog without touching the network.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2] transport refreshes expired access tokens using the stored
// refresh token; [SpotifyService.SetTokenRefreshCallback] lets callers persist
// refreshed tokens. Every request passes through a [rate.Limiter] so pool
// building cannot exceed the configured requests per second.
//
// # Playback
//
// Snippet playback drives the Spotify Connect player: a play command at
// position 0 on the active device, a blocking wait for the snippet length,
// then a pause command. Playback requires a Premium account and an active
// device; [shared.ErrNoActiveDevice] is returned when no playback target is
// selected.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrCatalogUnavailable] : transport failure, 5xx or repeated 429
//   - [shared.ErrNoActiveDevice] : player commands without an active device
//   - [shared.ErrEmptyResult] : a search or fetch returned nothing usable
//
// The distinction matters to callers: the pool builder retries
// [shared.ErrCatalogUnavailable] with backoff but surfaces
// [shared.ErrEmptyResult] immediately as "pick a different source".
package services
