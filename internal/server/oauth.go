package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
)

// successPage is served to the browser once the code exchange succeeds. The
// user is mid-setup in a terminal, so the page just tells them to go back.
const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
               background: #121212; color: #eee; display: flex;
               align-items: center; justify-content: center; height: 100vh; margin: 0; }
        main { text-align: center; }
        h1 { color: #1DB954; margin-bottom: 0.5rem; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <main>
        <h1>✓ Authorization Successful</h1>
        <p>Spotify is linked. Head back to the terminal to play.</p>
    </main>
</body>
</html>
`

// OAuthResult is the outcome of one authorization attempt: a token on
// success, an error otherwise. Exactly one is delivered per handler.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the authorization-code callback on the loopback
// server. It validates the state parameter, exchanges the code for a token,
// and hands the outcome to whoever is blocked on [OAuthHandler.Result].
// A handler is single-use: the first callback claims it, later requests
// are rejected.
type OAuthHandler struct {
	cfg     *oauth2.Config
	state   string
	results chan OAuthResult

	mu      sync.Mutex
	claimed bool
}

// NewOAuthHandler builds a handler bound to cfg's redirect URI. state must be
// random per flow; the callback is rejected when it doesn't echo back.
func NewOAuthHandler(cfg *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		cfg:     cfg,
		state:   state,
		results: make(chan OAuthResult, 1),
	}
}

// Routes derives the callback path from the redirect URI, so the router and
// the registered Spotify app can't drift apart.
func (h *OAuthHandler) Routes() []string {
	if h.cfg != nil && h.cfg.RedirectURL != "" {
		if u, err := url.Parse(h.cfg.RedirectURL); err == nil && u.Path != "" {
			return []string{u.Path}
		}
	}
	return []string{"/callback"}
}

// claim marks the handler used. Only the first caller gets true.
func (h *OAuthHandler) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claimed {
		return false
	}
	h.claimed = true
	return true
}

// deliver publishes the outcome and closes the channel. claim guarantees a
// single caller, so no further guard is needed here.
func (h *OAuthHandler) deliver(result OAuthResult) {
	h.results <- result
	close(h.results)
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claim() {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.deliver(OAuthResult{err: fmt.Errorf("state parameter mismatch")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.deliver(OAuthResult{err: fmt.Errorf("authorization failed: %s - %s",
			query.Get("error"), query.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.cfg.Exchange(r.Context(), code)
	if err != nil {
		h.deliver(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.deliver(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Result returns the channel carrying the flow's single outcome. It is
// closed after delivery, so a receive never blocks twice.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
