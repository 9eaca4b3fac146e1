package tasks

import (
	"sort"

	"github.com/akopylov/crosstune/internal/match"
	"github.com/akopylov/crosstune/internal/models"
)

// ArtistCount pairs an artist with the number of their unresolved tracks.
type ArtistCount struct {
	Artist string
	Count  int
}

// LikedStats summarizes the liked-tracks migration state.
type LikedStats struct {
	TotalSource    int // tracks in the source likes snapshot
	Applied        int
	Pending        int
	Unresolved     int
	WithCandidates int // unresolved rows that have stored candidates
	NoMatch        int
	Remaining      int // source tracks never seen by any run
	AppliedPercent float64
	// ArtistsNotFound lists artists with no resolved track at all, sorted
	// by how many unresolved tracks they account for.
	ArtistsNotFound []ArtistCount
}

// CollectLikedStats reads the repositories and computes migration totals.
// The artist-met flags are recomputed on the way so the not-found artist
// list reflects the latest state.
func (e *Engine) CollectLikedStats() (*LikedStats, error) {
	if err := e.updateArtistMet(); err != nil {
		return nil, err
	}

	likes, err := e.sources.ListLikes()
	if err != nil {
		return nil, err
	}
	counts, err := e.matches.CountByState()
	if err != nil {
		return nil, err
	}
	unresolved, err := e.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return nil, err
	}

	stats := &LikedStats{
		TotalSource: len(likes),
		Applied:     counts[models.StateApplied],
		Pending:     counts[models.StatePending],
		Unresolved:  counts[models.StateUnresolved],
		NoMatch:     counts[models.StateNoMatch],
	}
	seen := stats.Applied + stats.Pending + stats.Unresolved + stats.NoMatch
	stats.Remaining = stats.TotalSource - seen
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	if stats.TotalSource > 0 {
		stats.AppliedPercent = 100 * float64(stats.Applied) / float64(stats.TotalSource)
	}

	notFound := make(map[string]*ArtistCount)
	for _, m := range unresolved {
		if len(m.Candidates) > 0 {
			stats.WithCandidates++
		}
		if m.ArtistMet || len(m.SourceArtists) == 0 {
			continue
		}
		key := match.Normalize(m.SourceArtists[0])
		if entry, ok := notFound[key]; ok {
			entry.Count++
		} else {
			notFound[key] = &ArtistCount{Artist: m.SourceArtists[0], Count: 1}
		}
	}
	for _, entry := range notFound {
		stats.ArtistsNotFound = append(stats.ArtistsNotFound, *entry)
	}
	sort.Slice(stats.ArtistsNotFound, func(i, j int) bool {
		a, b := stats.ArtistsNotFound[i], stats.ArtistsNotFound[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Artist < b.Artist
	})

	return stats, nil
}

// PlaylistSummary is the per-playlist slice of [PlaylistStats].
type PlaylistSummary struct {
	Name             string
	TrackCount       int
	SyncedCount      int
	TargetPlaylistID string // empty when not yet created
}

// PlaylistStats summarizes the playlist sync state.
type PlaylistStats struct {
	Playlists      int
	UniqueTracks   int
	Matched        int
	Unmatched      int
	WithCandidates int
	Mapped         int
	Summaries      []PlaylistSummary
}

// CollectPlaylistStats reads the repositories and computes sync totals.
func (e *Engine) CollectPlaylistStats() (*PlaylistStats, error) {
	playlists, err := e.sources.ListPlaylists()
	if err != nil {
		return nil, err
	}
	pool, err := e.pool.List()
	if err != nil {
		return nil, err
	}
	mappings, err := e.mappings.List()
	if err != nil {
		return nil, err
	}
	mappingByID := make(map[string]models.PlaylistMapping, len(mappings))
	for _, m := range mappings {
		mappingByID[m.SourcePlaylistID] = m
	}

	stats := &PlaylistStats{
		Playlists:    len(playlists),
		UniqueTracks: len(uniqueTracks(playlists)),
		Mapped:       len(mappings),
	}
	for _, entry := range pool {
		if entry.Matched {
			stats.Matched++
			continue
		}
		if len(entry.Candidates) > 0 {
			stats.WithCandidates++
		}
	}
	stats.Unmatched = stats.UniqueTracks - stats.Matched
	if stats.Unmatched < 0 {
		stats.Unmatched = 0
	}

	for _, pl := range playlists {
		summary := PlaylistSummary{Name: pl.Name, TrackCount: len(pl.Tracks)}
		if m, ok := mappingByID[pl.ID]; ok {
			summary.SyncedCount = len(m.SyncedTrackIDs)
			summary.TargetPlaylistID = m.TargetPlaylistID
		}
		stats.Summaries = append(stats.Summaries, summary)
	}

	return stats, nil
}
