package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tu "github.com/desertthunder/blindspot/internal/testing"
)

// newAPIFixture starts a test server running handler and points a service at
// it. The server shuts down with the test.
func newAPIFixture(t *testing.T, handler http.HandlerFunc) *APIService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAPIService(server.URL, nil)
}

// failingAPI returns a service whose transport responds as scripted.
func failingAPI(resp *http.Response, err error) *APIService {
	client := &http.Client{Transport: tu.NewMockRoundTripper(resp, err)}
	return NewAPIService("http://example.com", client)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			client := &http.Client{}
			srv := NewAPIService("http://example.com", client)

			if srv.baseURL != "http://example.com" {
				t.Errorf("baseURL = %q, want http://example.com", srv.baseURL)
			}
			if srv.httpClient != client {
				t.Error("custom client was not kept")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			if srv := NewAPIService("", nil); srv.baseURL != spotifyBaseURL {
				t.Errorf("baseURL = %q, want %q", srv.baseURL, spotifyBaseURL)
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			if srv := NewAPIService("http://example.com", nil); srv.httpClient != http.DefaultClient {
				t.Error("nil client should fall back to http.DefaultClient")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/test" {
					t.Errorf("request = %s %s, want GET /test", r.Method, r.URL.Path)
				}
				jsonHandler(http.StatusOK, `{"status":"success"}`)(w, r)
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Errorf("IsJSON = %v, JSONData = %v, want parsed JSON", resp.IsJSON, resp.JSONData)
			}
		})

		t.Run("Successful Request With Non-JSON Response", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				io.WriteString(w, "plain text response")
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil {
				t.Error("plain text should not be flagged as JSON")
			}
			if got := string(resp.Body); got != "plain text response" {
				t.Errorf("body = %q, want plain text response", got)
			}
		})

		t.Run("Attaches Bearer Token", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
					t.Errorf("Authorization = %q, want Bearer test_token", got)
				}
			})
			srv.SetToken("test_token")

			if _, err := srv.Get(context.Background(), "/me"); err != nil {
				t.Fatalf("Get: %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			_, err := srv.Get(context.Background(), "/test\x00invalid")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("err = %v, want request creation failure", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			srv := failingAPI(nil, errors.New("connection failed"))

			_, err := srv.Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("err = %v, want transport failure", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			srv := failingAPI(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     http.Header{},
			}, nil)

			_, err := srv.Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("err = %v, want body read failure", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := srv.Get(ctx, "/test"); err == nil {
				t.Error("expected error from canceled context")
			}
		})

		t.Run("Response Headers Are Preserved", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Custom-Header", "test-value")
				io.WriteString(w, "test")
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got := resp.Headers.Get("X-Custom-Header"); got != "test-value" {
				t.Errorf("X-Custom-Header = %q, want test-value", got)
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				var data map[string]string
				if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data["test"] != "data" {
					t.Errorf("request body = %v (err %v), want test:data", data, err)
				}
				jsonHandler(http.StatusCreated, `{"id":"123"}`)(w, r)
			})

			resp, err := srv.Post(context.Background(), "/test", []byte(`{"test":"data"}`))
			if err != nil {
				t.Fatalf("Post: %v", err)
			}
			if resp.StatusCode != http.StatusCreated {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
			}
			if !resp.IsJSON {
				t.Error("response should be flagged as JSON")
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			srv := failingAPI(nil, errors.New("connection failed"))

			_, err := srv.Post(context.Background(), "/test", []byte("data"))
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("err = %v, want transport failure", err)
			}
		})

		t.Run("Empty Request Body", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				if body, _ := io.ReadAll(r.Body); len(body) != 0 {
					t.Errorf("body = %d bytes, want empty", len(body))
				}
			})

			if _, err := srv.Post(context.Background(), "/test", []byte{}); err != nil {
				t.Fatalf("Post: %v", err)
			}
		})
	})

	t.Run("Put", func(t *testing.T) {
		t.Run("Issues PUT With JSON Body", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				if body, _ := io.ReadAll(r.Body); !strings.Contains(string(body), "spotify:track:abc") {
					t.Errorf("body = %s, want track URI", body)
				}
				w.WriteHeader(http.StatusNoContent)
			})

			resp, err := srv.Put(context.Background(), "/me/player/play", []byte(`{"uris":["spotify:track:abc"],"position_ms":0}`))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
			}
		})
	})

	t.Run("APIResponse", func(t *testing.T) {
		t.Run("JSON Detection", func(t *testing.T) {
			srv := newAPIFixture(t, jsonHandler(http.StatusOK, `{"valid": "json"}`))

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !resp.IsJSON {
				t.Fatal("valid JSON not detected")
			}
			jsonMap, ok := resp.JSONData.(map[string]any)
			if !ok || jsonMap["valid"] != "json" {
				t.Errorf("JSONData = %v, want map with valid:json", resp.JSONData)
			}
		})

		t.Run("Invalid JSON Detection", func(t *testing.T) {
			srv := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "not json")
			})

			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil {
				t.Error("invalid JSON should leave IsJSON false and JSONData nil")
			}
		})
	})
}

func TestParseSourceSpec(t *testing.T) {
	tc := []struct {
		name      string
		raw       string
		wantKind  SourceKind
		wantQuery string
		wantErr   bool
	}{
		{name: "Artist Source", raw: "artist:Daft Punk", wantKind: SourceArtist, wantQuery: "Daft Punk"},
		{name: "Genre Source", raw: "genre:synthpop", wantKind: SourceGenre, wantQuery: "synthpop"},
		{name: "Playlist Source", raw: "playlist:Road Trip", wantKind: SourcePlaylist, wantQuery: "Road Trip"},
		{name: "Uppercase Kind", raw: "ARTIST:Queen", wantKind: SourceArtist, wantQuery: "Queen"},
		{name: "Query With Colon", raw: "playlist:mix: summer 2019", wantKind: SourcePlaylist, wantQuery: "mix: summer 2019"},
		{name: "Padded Query", raw: "genre:  city pop  ", wantKind: SourceGenre, wantQuery: "city pop"},
		{name: "Missing Separator", raw: "artist", wantErr: true},
		{name: "Empty Query", raw: "artist:", wantErr: true},
		{name: "Unknown Kind", raw: "album:Discovery", wantErr: true},
		{name: "Empty String", raw: "", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSourceSpec(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.raw, spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if spec.Kind != tt.wantKind || spec.Query != tt.wantQuery {
				t.Errorf("ParseSourceSpec(%q) = %+v, want %s:%s", tt.raw, spec, tt.wantKind, tt.wantQuery)
			}
		})
	}

	t.Run("String Round Trip", func(t *testing.T) {
		spec := SourceSpec{Kind: SourceGenre, Query: "shoegaze"}
		if spec.String() != "genre:shoegaze" {
			t.Errorf("expected 'genre:shoegaze', got %q", spec.String())
		}
	})
}
