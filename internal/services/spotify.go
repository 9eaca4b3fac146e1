// Spotify API implementation of [TargetService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	libraryPageSize = 50
	// earlyStopShare is the fraction of already-known ids on a library page
	// above which older pages are assumed unchanged.
	earlyStopShare = 0.9
	searchLimit    = 10
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	URI    string `json:"uri"`
}

// SpotifyService implements [TargetService] against the Spotify Web API.
// Uses [oauth2] for authentication; every call is paced and retried through
// the injected [shared.RetryPolicy].
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	retry      *shared.RetryPolicy
	baseURL    string

	userID         string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, retry *shared.RetryPolicy) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials: %w", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials: %w", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"user-library-modify",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		retry:      retry,
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate installs a token. Expects "access_token" (optionally with
// "refresh_token") or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		}
		s.installClient(ctx)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		s.token = token
		s.installClient(ctx)
		return nil
	}

	return fmt.Errorf("missing access_token or auth_code in credentials: %w", shared.ErrMissingCredentials)
}

func (s *SpotifyService) installClient(ctx context.Context) {
	source := s.config.TokenSource(ctx, s.token)
	s.httpClient = oauth2.NewClient(ctx, &refreshableTokenSource{
		source:   source,
		last:     s.token,
		callback: s.onTokenRefresh,
	})
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the OAuth2 configuration, used by the callback server
// during the authorization flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a function invoked whenever the OAuth2
// token is refreshed, so new tokens can be written back to the config file.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.onTokenRefresh = callback
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and notifies a
// callback whenever the access token changes.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	last     *oauth2.Token
	callback func(*oauth2.Token)
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	if r.callback != nil && (r.last == nil || r.last.AccessToken != token.AccessToken) {
		func() {
			defer func() { _ = recover() }()
			r.callback(token)
		}()
	}
	r.last = token
	return token, nil
}

// doRequest performs one authenticated HTTP request to the Spotify API.
// A 429 response is surfaced as [shared.RateLimitError] carrying the
// Retry-After hint.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("call Authenticate first: %w", shared.ErrNotAuthenticated)
	}

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &shared.RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("spotify auth error: status %d: %w", resp.StatusCode, shared.ErrAuthFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("spotify API error: status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// call routes a request through the retry policy when one is configured.
func (s *SpotifyService) call(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.retry == nil {
		return s.doRequest(ctx, method, endpoint, body, result)
	}
	return s.retry.Do(ctx, func() error {
		return s.doRequest(ctx, method, endpoint, body, result)
	})
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.call(ctx, "GET", "/me", nil, &user); err != nil {
		return nil, err
	}
	s.userID = user.ID
	return &user, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 || limit > libraryPageSize {
		limit = libraryPageSize
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.call(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchLibrary retrieves the user's saved songs newest first. When knownIDs
// is non-nil and at least 90% of a page's ids are already known, older pages
// are assumed unchanged and the fetch stops.
func (s *SpotifyService) FetchLibrary(ctx context.Context, knownIDs map[string]bool) ([]models.TargetSong, error) {
	var songs []models.TargetSong
	offset := 0

	for {
		page, err := s.SavedTracks(ctx, libraryPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}

		known := 0
		for _, item := range page.Items {
			if knownIDs != nil && knownIDs[item.Track.ID] {
				known++
			}
			songs = append(songs, toTargetSong(item))
		}

		if knownIDs != nil && float64(known) >= earlyStopShare*float64(len(page.Items)) {
			break
		}
		if page.Next == nil {
			break
		}
		offset += libraryPageSize
	}

	return songs, nil
}

func toTargetSong(item SpotifySavedTrack) models.TargetSong {
	song := models.TargetSong{
		ID:    item.Track.ID,
		URI:   item.Track.URI,
		Title: item.Track.Name,
	}
	for _, a := range item.Track.Artists {
		song.Artists = append(song.Artists, a.Name)
	}
	if added, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
		song.AddedAt = added
	}
	return song
}

// Search runs a track search and returns the results as candidate input.
func (s *SpotifyService) Search(ctx context.Context, query string) ([]models.TargetSong, error) {
	endpoint := fmt.Sprintf("/search?type=track&limit=%d&q=%s", searchLimit, url.QueryEscape(query))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.call(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}

	var songs []models.TargetSong
	for _, track := range response.Tracks.Items {
		song := models.TargetSong{ID: track.ID, URI: track.URI, Title: track.Name}
		for _, a := range track.Artists {
			song.Artists = append(song.Artists, a.Name)
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// Like saves tracks to the user's library.
func (s *SpotifyService) Like(ctx context.Context, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > LikeBatchSize {
		return fmt.Errorf("at most %d tracks per call, got %d: %w", LikeBatchSize, len(trackIDs), shared.ErrInvalidInput)
	}

	endpoint := "/me/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))
	return s.call(ctx, "PUT", endpoint, nil, nil)
}

// CreatePlaylist creates an empty private playlist and returns its id.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	if s.userID == "" {
		if _, err := s.CurrentUser(ctx); err != nil {
			return "", err
		}
	}

	body := map[string]any{"name": name, "public": false}
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(s.userID))
	if err := s.call(ctx, "POST", endpoint, body, &playlist); err != nil {
		return "", err
	}
	return playlist.ID, nil
}

// AddToPlaylist appends track uris to a playlist.
func (s *SpotifyService) AddToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > PlaylistAddBatchSize {
		return fmt.Errorf("at most %d uris per call, got %d: %w", PlaylistAddBatchSize, len(uris), shared.ErrInvalidInput)
	}

	body := map[string]any{"uris": uris}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.call(ctx, "POST", endpoint, body, nil)
}
