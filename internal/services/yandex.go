// Yandex Music implementation of [SourceService]
//
// Uses the same JSON endpoints as the official mobile clients; auth is a
// static OAuth token sent as "Authorization: OAuth <token>".
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/shared"
)

const (
	yandexBaseURL = "https://api.music.yandex.net"

	// trackDetailsBatchSize is the maximum ids per bulk track-details call.
	trackDetailsBatchSize = 100
)

// flexID decodes an id field that the API returns as either a JSON number
// or a string, depending on the endpoint.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

// String returns the bare track id, stripping any ":albumId" suffix.
func (f flexID) String() string {
	id := string(f)
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}

type yandexArtist struct {
	Name string `json:"name"`
}

type yandexTrack struct {
	ID      flexID         `json:"id"`
	Title   string         `json:"title"`
	Artists []yandexArtist `json:"artists"`
}

type yandexLikeEntry struct {
	ID flexID `json:"id"`
}

type yandexPlaylistHead struct {
	Kind  flexID `json:"kind"`
	Title string `json:"title"`
}

type yandexPlaylistTrackEntry struct {
	ID flexID `json:"id"`
}

type yandexPlaylist struct {
	Kind   flexID                     `json:"kind"`
	Title  string                     `json:"title"`
	Tracks []yandexPlaylistTrackEntry `json:"tracks"`
}

// YandexService implements [SourceService] against the Yandex Music API.
type YandexService struct {
	token      string
	userID     string
	httpClient *http.Client
	retry      *shared.RetryPolicy
	baseURL    string
}

// NewYandexService creates a Yandex Music client for the given user.
func NewYandexService(token, userID string, retry *shared.RetryPolicy) (*YandexService, error) {
	if token == "" {
		return nil, fmt.Errorf("missing yandex token: %w", shared.ErrMissingCredentials)
	}
	if userID == "" {
		return nil, fmt.Errorf("missing yandex user id: %w", shared.ErrMissingCredentials)
	}

	return &YandexService{
		token:      token,
		userID:     userID,
		httpClient: http.DefaultClient,
		retry:      retry,
		baseURL:    yandexBaseURL,
	}, nil
}

func (s *YandexService) Name() string {
	return "Yandex Music"
}

// doRequest performs one authenticated request. Every response carries a
// top-level "result" wrapper which is decoded into result.
func (s *YandexService) doRequest(ctx context.Context, method, endpoint string, form url.Values, result any) error {
	var body *bytes.Buffer
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+s.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("yandex auth error: status %d: %w", resp.StatusCode, shared.ErrAuthFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("yandex API error: status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}

	if result != nil {
		wrapper := struct {
			Result json.RawMessage `json:"result"`
		}{}
		if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if err := json.Unmarshal(wrapper.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

func (s *YandexService) call(ctx context.Context, method, endpoint string, form url.Values, result any) error {
	if s.retry == nil {
		return s.doRequest(ctx, method, endpoint, form, result)
	}
	return s.retry.Do(ctx, func() error {
		return s.doRequest(ctx, method, endpoint, form, result)
	})
}

// LikedTrackIDs returns the user's liked track ids, newest first.
func (s *YandexService) LikedTrackIDs(ctx context.Context) ([]string, error) {
	var result struct {
		Library struct {
			Tracks []yandexLikeEntry `json:"tracks"`
		} `json:"library"`
	}
	endpoint := fmt.Sprintf("/users/%s/likes/tracks", url.PathEscape(s.userID))
	if err := s.call(ctx, "GET", endpoint, nil, &result); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Library.Tracks))
	for _, entry := range result.Library.Tracks {
		ids = append(ids, entry.ID.String())
	}
	return ids, nil
}

// TrackDetails bulk-fetches title and artists for the given track ids,
// batching calls at the API's ceiling.
func (s *YandexService) TrackDetails(ctx context.Context, trackIDs []string) ([]models.SourceTrack, error) {
	var tracks []models.SourceTrack

	for start := 0; start < len(trackIDs); start += trackDetailsBatchSize {
		end := start + trackDetailsBatchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		form := url.Values{"track-ids": {strings.Join(trackIDs[start:end], ",")}}
		var result []yandexTrack
		if err := s.call(ctx, "POST", "/tracks", form, &result); err != nil {
			return nil, err
		}

		for _, t := range result {
			track := models.SourceTrack{ID: t.ID.String(), Title: t.Title}
			for _, a := range t.Artists {
				if a.Name != "" {
					track.Artists = append(track.Artists, a.Name)
				}
			}
			tracks = append(tracks, track)
		}
	}

	return tracks, nil
}

// SyncLikes merges the remote liked-tracks list with a previous snapshot.
// Details are fetched only for unknown ids; new tracks are prepended so the
// snapshot stays newest first.
func (s *YandexService) SyncLikes(ctx context.Context, existing []models.SourceTrack) ([]models.SourceTrack, error) {
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.ID] = true
	}

	ids, err := s.LikedTrackIDs(ctx)
	if err != nil {
		return nil, err
	}

	var newIDs []string
	for _, id := range ids {
		if !known[id] {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) == 0 {
		return existing, nil
	}

	fetched, err := s.TrackDetails(ctx, newIDs)
	if err != nil {
		return nil, err
	}

	return append(fetched, existing...), nil
}

// SyncPlaylists fetches all playlists, reusing the previous snapshot for any
// playlist whose track-id set is unchanged.
func (s *YandexService) SyncPlaylists(ctx context.Context, existing []models.SourcePlaylist) ([]models.SourcePlaylist, error) {
	existingByID := make(map[string]models.SourcePlaylist, len(existing))
	for _, pl := range existing {
		existingByID[pl.ID] = pl
	}

	var heads []yandexPlaylistHead
	endpoint := fmt.Sprintf("/users/%s/playlists/list", url.PathEscape(s.userID))
	if err := s.call(ctx, "GET", endpoint, nil, &heads); err != nil {
		return nil, err
	}

	var playlists []models.SourcePlaylist
	for _, head := range heads {
		id := head.Kind.String()
		name := head.Title
		if name == "" {
			name = "Playlist " + id
		}

		full, err := s.playlist(ctx, id)
		if err != nil {
			return nil, err
		}

		currentIDs := make(map[string]bool, len(full.Tracks))
		rawIDs := make([]string, 0, len(full.Tracks))
		for _, entry := range full.Tracks {
			currentIDs[entry.ID.String()] = true
			rawIDs = append(rawIDs, entry.ID.String())
		}

		if prev, ok := existingByID[id]; ok && sameTrackSet(prev.Tracks, currentIDs) {
			playlists = append(playlists, prev)
			continue
		}

		tracks, err := s.TrackDetails(ctx, rawIDs)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, models.SourcePlaylist{ID: id, Name: name, Tracks: tracks})
	}

	return playlists, nil
}

func (s *YandexService) playlist(ctx context.Context, kind string) (*yandexPlaylist, error) {
	var result yandexPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists/%s", url.PathEscape(s.userID), url.PathEscape(kind))
	if err := s.call(ctx, "GET", endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func sameTrackSet(tracks []models.SourceTrack, currentIDs map[string]bool) bool {
	if len(tracks) != len(currentIDs) {
		return false
	}
	for _, t := range tracks {
		if !currentIDs[t.ID] {
			return false
		}
	}
	return true
}
