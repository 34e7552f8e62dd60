package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/blindspot/internal/server"
	"github.com/desertthunder/blindspot/internal/services"
	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/desertthunder/blindspot/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin runs the OAuth2 authorization code flow for Spotify: a loopback
// HTTP server receives the callback, the browser opens for consent, and the
// exchanged tokens are persisted into the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	config := r.ensureConfig(cmd)

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	token, err := r.doOAuth(config, spotify, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := spotify.Authenticate(ctx, config.Credentials.Spotify.Map()); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("%s", ui.Ok("✓ Authorization successful"))
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)

	if profile, err := spotify.UserProfile(ctx); err == nil && profile.DisplayName != "" {
		r.writePlain("✓ Logged in as %s\n", profile.DisplayName)
	}

	r.catalog = spotify
	return r.writePlain("\nYou can now start a game: blindspot play\n")
}

// AuthStatus reports the stored token state without touching the network,
// unless --check asks for a live verification against the Spotify API.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.ensureConfig(cmd)
	status := authStatus(config.Credentials.Spotify)

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if !status.Configured {
		r.writePlainln("%s", ui.Warn("⚠ No client credentials configured."))
		return r.writePlain("Set client_id and client_secret in %s, then run: blindspot auth login\n", r.configPath)
	}
	if !status.TokenStored {
		return r.writePlain("No tokens stored. Run: blindspot auth login\n")
	}

	r.writePlain("Tokens stored for client %s\n", config.Credentials.Spotify.ClientID)
	switch {
	case status.Expiry == "":
		r.writePlain("Token expiry unknown; it refreshes on first use.\n")
	case status.Expired:
		r.writePlain("%s\n", ui.Warn(fmt.Sprintf("Access token expired at %s; it refreshes on first use.", status.Expiry)))
	default:
		r.writePlain("%s\n", ui.Ok(fmt.Sprintf("Access token valid until %s.", status.Expiry)))
	}
	if !status.Refreshable {
		r.writePlain("%s\n", ui.Warn("No refresh token stored; rerun auth login when the token expires."))
	}

	if !cmd.Bool("check") {
		return nil
	}

	if err := r.ensureCatalog(ctx, cmd); err != nil {
		return err
	}
	spotify, ok := r.catalog.(*services.SpotifyService)
	if !ok {
		return fmt.Errorf("%w: catalog does not expose profile lookups", shared.ErrCatalogUnavailable)
	}
	profile, err := spotify.UserProfile(ctx)
	if err != nil {
		return fmt.Errorf("token check failed: %w", err)
	}
	return r.writePlain("%s\n", ui.Ok(fmt.Sprintf("✓ Token works. Logged in as %s.", profile.DisplayName)))
}

// TokenStatus summarizes the stored Spotify credential state.
type TokenStatus struct {
	Configured  bool   `json:"configured"`
	TokenStored bool   `json:"token_stored"`
	Refreshable bool   `json:"refreshable"`
	Expiry      string `json:"expiry,omitempty"`
	Expired     bool   `json:"expired"`
}

func authStatus(creds shared.SpotifyConfig) TokenStatus {
	status := TokenStatus{
		Configured:  creds.ClientID != "" && creds.ClientSecret != "",
		TokenStored: creds.AccessToken != "" || creds.RefreshToken != "",
		Refreshable: creds.RefreshToken != "",
	}
	if token := creds.Token(); token != nil && !token.Expiry.IsZero() {
		status.Expiry = token.Expiry.Format(time.RFC3339)
		status.Expired = token.Expiry.Before(time.Now())
	}
	return status
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
// prefix names the flow in log lines and prompts ("authorization" or
// "reauthorization").
func (r *Runner) doOAuth(config *shared.Config, catalog services.OAuthCatalog, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := catalog.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(catalog.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("%s", ui.Warn("⚠ Could not open browser automatically."))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warnf("error shutting down server %v", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// withReauth runs op, retrying once after a fresh browser authorization when
// the stored token has expired and could not be refreshed.
func (r *Runner) withReauth(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	r.writePlainln("%s", ui.Warn("⚠ Access token expired. Starting reauthorization..."))

	catalog, ok := r.catalog.(services.OAuthCatalog)
	if !ok {
		return fmt.Errorf("catalog does not support reauthorization: %w", err)
	}

	token, authErr := r.doOAuth(r.config, catalog, "reauthorization")
	if authErr != nil {
		return fmt.Errorf("reauthorization failed: %w", authErr)
	}
	if authErr := r.saveTokens(token); authErr != nil {
		return authErr
	}
	if authErr := catalog.Authenticate(ctx, r.config.Credentials.Spotify.Map()); authErr != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", authErr)
	}

	r.writePlainln("%s", ui.Ok("✓ Reauthenticated. Retrying..."))
	return op()
}
