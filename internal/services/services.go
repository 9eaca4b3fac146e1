// package services defines the source and target catalog clients
//
// Yandex Music (source, token auth), Spotify (target, OAuth2)
package services

import (
	"context"

	"github.com/akopylov/crosstune/internal/models"
)

// Batch ceilings imposed by the target API. Engines never submit more ids
// per call.
const (
	// LikeBatchSize is the maximum track ids per library-save call.
	LikeBatchSize = 40
	// PlaylistAddBatchSize is the maximum uris per playlist-add call.
	PlaylistAddBatchSize = 100
)

// SourceService reads the catalog being migrated away from.
type SourceService interface {
	// SyncLikes fetches the liked-tracks list and merges it with a previous
	// snapshot: new tracks are fetched in detail and prepended (newest
	// first), known tracks are reused without refetching.
	SyncLikes(ctx context.Context, existing []models.SourceTrack) ([]models.SourceTrack, error)

	// SyncPlaylists fetches all playlists, refetching track details only for
	// playlists whose track-id set changed since the previous snapshot.
	SyncPlaylists(ctx context.Context, existing []models.SourcePlaylist) ([]models.SourcePlaylist, error)

	// Name returns the service name for logging.
	Name() string
}

// TargetService writes to the catalog being migrated into.
type TargetService interface {
	// FetchLibrary retrieves the user's saved songs, newest first. When
	// knownIDs is non-nil, fetching stops early once a page is almost
	// entirely known; pass nil to force a full fetch.
	FetchLibrary(ctx context.Context, knownIDs map[string]bool) ([]models.TargetSong, error)

	// Search runs a track search query and returns scored-candidate input.
	Search(ctx context.Context, query string) ([]models.TargetSong, error)

	// Like saves up to [LikeBatchSize] tracks to the user's library.
	Like(ctx context.Context, trackIDs []string) error

	// CreatePlaylist creates an empty private playlist and returns its id.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// AddToPlaylist appends up to [PlaylistAddBatchSize] track uris.
	AddToPlaylist(ctx context.Context, playlistID string, uris []string) error

	// Name returns the service name for logging.
	Name() string
}
