package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akopylov/crosstune/internal/shared"
	"golang.org/x/oauth2"
)

func newTestSpotify(t *testing.T, handler http.Handler) (*SpotifyService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}, nil)
	if err != nil {
		t.Fatalf("NewSpotifyService: %v", err)
	}
	srv.baseURL = server.URL
	srv.token = &oauth2.Token{AccessToken: "test_access_token"}
	return srv, server
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "x"}, nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "x"}, nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}, nil)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		}, nil)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = srv.Search(context.Background(), "track:x artist:y")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, _ := newTestSpotify(t, http.NotFoundHandler())
		var _ TargetService = srv
	})
}

func TestSpotifySearch(t *testing.T) {
	srv, _ := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "track:Yesterday artist:The Beatles" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{
					{
						"id":      "sp1",
						"uri":     "spotify:track:sp1",
						"name":    "Yesterday - Remastered 2009",
						"artists": []map[string]any{{"name": "The Beatles"}},
					},
				},
			},
		})
	}))

	songs, err := srv.Search(context.Background(), "track:Yesterday artist:The Beatles")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(songs) != 1 {
		t.Fatalf("got %d songs, want 1", len(songs))
	}
	if songs[0].ID != "sp1" || songs[0].Artists[0] != "The Beatles" {
		t.Errorf("song = %+v", songs[0])
	}
}

func TestSpotifyFetchLibraryEarlyStop(t *testing.T) {
	// Two pages of 50. The first page holds 45 already-known ids (90%),
	// so the second page must never be requested.
	var pagesServed int
	srv, _ := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		offset := r.URL.Query().Get("offset")
		items := make([]map[string]any, 50)
		for i := range items {
			items[i] = map[string]any{
				"added_at": "2024-01-01T00:00:00Z",
				"track": map[string]any{
					"id":      fmt.Sprintf("sp-%s-%d", offset, i),
					"uri":     fmt.Sprintf("spotify:track:sp-%s-%d", offset, i),
					"name":    "Song",
					"artists": []map[string]any{{"name": "Artist"}},
				},
			}
		}
		next := "next-page"
		json.NewEncoder(w).Encode(map[string]any{"items": items, "next": &next, "total": 100})
	}))

	known := make(map[string]bool)
	for i := 0; i < 45; i++ {
		known[fmt.Sprintf("sp-0-%d", i)] = true
	}

	songs, err := srv.FetchLibrary(context.Background(), known)
	if err != nil {
		t.Fatalf("FetchLibrary: %v", err)
	}
	if pagesServed != 1 {
		t.Errorf("served %d pages, want 1 (early stop)", pagesServed)
	}
	if len(songs) != 50 {
		t.Errorf("got %d songs, want 50", len(songs))
	}

	// nil known ids disables the early stop.
	pagesServed = 0
	srv2, _ := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		if pagesServed == 2 {
			json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}, "next": nil})
			return
		}
		items := []map[string]any{{
			"added_at": "2024-01-01T00:00:00Z",
			"track":    map[string]any{"id": "sp1", "uri": "u", "name": "Song", "artists": []map[string]any{}},
		}}
		next := "next-page"
		json.NewEncoder(w).Encode(map[string]any{"items": items, "next": &next})
	}))
	if _, err := srv2.FetchLibrary(context.Background(), nil); err != nil {
		t.Fatalf("FetchLibrary full: %v", err)
	}
	if pagesServed != 2 {
		t.Errorf("served %d pages, want 2 for full fetch", pagesServed)
	}
}

func TestSpotifyRateLimitRetry(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// No Retry-After hint: the policy falls back to its default.
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"tracks": map[string]any{"items": []map[string]any{}}})
	})

	srv, _ := newTestSpotify(t, handler)
	policy := shared.NewRetryPolicy(1000, 2, time.Millisecond)
	policy.Grace = 0
	srv.retry = policy

	if _, err := srv.Search(context.Background(), "track:x artist:y"); err != nil {
		t.Fatalf("Search after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestSpotifyRateLimitLongWait(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	srv, _ := newTestSpotify(t, handler)
	policy := shared.NewRetryPolicy(1000, 2, time.Second)
	srv.retry = policy

	_, err := srv.Search(context.Background(), "track:x artist:y")
	if !errors.Is(err, shared.ErrRateLimited) {
		t.Fatalf("expected rate-limit error, got %v", err)
	}
	if !policy.TooLong(err) {
		t.Error("a 300s hint must be classified as too long to wait out")
	}
}

func TestSpotifyLike(t *testing.T) {
	var gotIDs string
	srv, _ := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/me/tracks" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotIDs = r.URL.Query().Get("ids")
		w.WriteHeader(http.StatusOK)
	}))

	if err := srv.Like(context.Background(), []string{"sp1", "sp2"}); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if gotIDs != "sp1,sp2" {
		t.Errorf("ids = %q", gotIDs)
	}

	tooMany := make([]string, LikeBatchSize+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("sp%d", i)
	}
	if err := srv.Like(context.Background(), tooMany); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for oversized batch, got %v", err)
	}

	if err := srv.Like(context.Background(), nil); err != nil {
		t.Errorf("empty batch must be a no-op, got %v", err)
	}
}

func TestSpotifyPlaylistOps(t *testing.T) {
	var addedURIs []string
	srv, _ := newTestSpotify(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/me":
			json.NewEncoder(w).Encode(map[string]any{"id": "user1", "display_name": "Test"})
		case r.URL.Path == "/users/user1/playlists" && r.Method == "POST":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["name"] != "Rock" || body["public"] != false {
				t.Errorf("create body = %v", body)
			}
			json.NewEncoder(w).Encode(map[string]any{"id": "tp1", "name": "Rock"})
		case r.URL.Path == "/playlists/tp1/tracks" && r.Method == "POST":
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			addedURIs = body.URIs
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	id, err := srv.CreatePlaylist(context.Background(), "Rock")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if id != "tp1" {
		t.Errorf("playlist id = %s", id)
	}

	uris := []string{"spotify:track:sp1", "spotify:track:sp2"}
	if err := srv.AddToPlaylist(context.Background(), "tp1", uris); err != nil {
		t.Fatalf("AddToPlaylist: %v", err)
	}
	if len(addedURIs) != 2 || addedURIs[0] != "spotify:track:sp1" {
		t.Errorf("added uris = %v", addedURIs)
	}
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback when token changes", func(t *testing.T) {
		var captured []*oauth2.Token
		mock := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{
			source:   mock,
			callback: func(token *oauth2.Token) { captured = append(captured, token) },
		}

		source.Token()
		mock.token = &oauth2.Token{AccessToken: "token2"}
		source.Token()
		source.Token()

		if len(captured) != 2 {
			t.Errorf("callback called %d times, want 2", len(captured))
		}
	})

	t.Run("handles nil callback", func(t *testing.T) {
		mock := &mockTokenSource{token: &oauth2.Token{AccessToken: "t"}}
		source := &refreshableTokenSource{source: mock}
		if _, err := source.Token(); err != nil {
			t.Fatalf("expected no error with nil callback, got %v", err)
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		mock := &mockTokenSource{err: errors.New("token source error")}
		source := &refreshableTokenSource{
			source:   mock,
			callback: func(*oauth2.Token) { t.Error("callback should not run on error") },
		}
		if _, err := source.Token(); err == nil {
			t.Fatal("expected error from source")
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}
