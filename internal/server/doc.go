// Package server provides the temporary loopback HTTP server used during
// Spotify authorization.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the
// authorization code for tokens, and sends the result through a channel. It
// only processes one callback to prevent replay attacks, and serves the
// callback path taken from the configured redirect URI.
//
// # Usage
//
// When the user runs `blindspot auth login`, a temporary HTTP server starts
// on the host and port from the [server] config section, handles the
// callback, and shuts down after receiving the OAuth token. The received
// token is persisted back into the config file.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. [BasicRouter] uses [http.ServeMux]
// internally with method filtering; [RequestLogger] logs each request at
// debug level.
package server
