package tasks

import (
	"fmt"

	"github.com/akopylov/crosstune/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FlushPending Phase = iota
	FetchLibrary
	Prematch
	SearchTracks
	LikeTracks
	CrossLike
	CreatePlaylist
	SyncPlaylist
)

func (p Phase) String() string {
	switch p {
	case FlushPending:
		return "flush_pending"
	case FetchLibrary:
		return "fetch_library"
	case Prematch:
		return "prematch"
	case SearchTracks:
		return "search_tracks"
	case LikeTracks:
		return "like_tracks"
	case CrossLike:
		return "cross_like"
	case CreatePlaylist:
		return "create_playlist"
	case SyncPlaylist:
		return "sync_playlist"
	default:
		return ""
	}
}

func flushPendingUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FlushPending,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Applying %d pending likes from a previous run...", total),
	}
}

func fetchLibraryUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d library songs for pre-matching", count),
		Data:    count,
	}
}

func prematchUpdate(matched, remaining int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prematch,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Pre-matched %d tracks from the library, %d left to search", matched, remaining),
	}
}

func searchTrackUpdate(step, total int, track models.SourceTrack, status string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s | %s — %s", step, total, status, track.FirstArtist(), track.Title),
	}
}

func likeBatchUpdate(liked, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LikeTracks,
		Step:    liked,
		Total:   total,
		Message: fmt.Sprintf("Liked %d/%d tracks", liked, total),
	}
}

func crossLikeUpdate(liked, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CrossLike,
		Step:    liked,
		Total:   total,
		Message: fmt.Sprintf("Cross-liked %d/%d playlist tracks", liked, total),
	}
}

func createPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Created playlist %q (ID: %s)", name, id),
		Data:    id,
	}
}

func syncPlaylistUpdate(step, total int, name string, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d tracks added", step, total, name, added),
	}
}
