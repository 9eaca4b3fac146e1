package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/akopylov/crosstune/internal/match"
	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/services"
	"github.com/akopylov/crosstune/internal/shared"
)

// PlaylistOptions configures a playlist sync run.
type PlaylistOptions struct {
	// TestMode syncs the first playlist only and caps searching.
	TestMode bool
	// Filter restricts the run to playlists with these exact names.
	Filter []string
}

// PlaylistRunResult summarizes one playlist sync run.
type PlaylistRunResult struct {
	UniqueTracks int
	Seeded       int // pool entries copied from the liked-tracks migration
	Prematched   int
	Searched     int
	Matched      int
	CrossLiked   int
	Synced       int // playlists touched in the sync phase
	TracksAdded  int
}

// SyncPlaylists mirrors source playlists onto the target service.
//
// Phase 1 matches every unique track across all playlists into the shared
// pool (a track in five playlists is searched once). Phase 1b likes pool
// tracks that are also in the source likes. Phase 2 creates target playlists
// and adds new tracks; it never removes anything.
func (e *Engine) SyncPlaylists(ctx context.Context, progress chan<- ProgressUpdate, opts PlaylistOptions) (*PlaylistRunResult, error) {
	result := &PlaylistRunResult{}

	playlists, err := e.sources.ListPlaylists()
	if err != nil {
		return result, err
	}
	if len(playlists) == 0 {
		return result, fmt.Errorf("run fetch first: %w", shared.ErrNoSourceSnapshot)
	}

	if len(opts.Filter) > 0 {
		playlists = e.filterPlaylists(playlists, opts.Filter)
		if len(playlists) == 0 {
			return result, fmt.Errorf("no playlist matched the filter: %w", shared.ErrPlaylistNotFound)
		}
	}

	if err := e.matchPool(ctx, progress, playlists, opts.TestMode, result); err != nil {
		return result, err
	}

	if err := e.crossLike(ctx, progress, result); err != nil {
		return result, err
	}

	if err := e.syncMatched(ctx, progress, playlists, opts.TestMode, result); err != nil {
		return result, err
	}

	e.logger.Info("playlist sync complete",
		"unique_tracks", result.UniqueTracks,
		"matched", result.Matched,
		"cross_liked", result.CrossLiked,
		"playlists", result.Synced,
		"tracks_added", result.TracksAdded)
	return result, nil
}

// filterPlaylists keeps playlists whose name exactly matches one of names.
func (e *Engine) filterPlaylists(playlists []models.SourcePlaylist, names []string) []models.SourcePlaylist {
	byName := make(map[string]bool, len(playlists))
	for _, pl := range playlists {
		byName[pl.Name] = true
	}
	for _, name := range names {
		if !byName[name] {
			e.logger.Warn("filter matched no playlist", "name", name)
		}
	}

	var filtered []models.SourcePlaylist
	for _, pl := range playlists {
		for _, name := range names {
			if pl.Name == name {
				filtered = append(filtered, pl)
				break
			}
		}
	}
	return filtered
}

// uniqueTracks collects unique tracks across playlists in encounter order.
func uniqueTracks(playlists []models.SourcePlaylist) []models.SourceTrack {
	seen := make(map[string]bool)
	var tracks []models.SourceTrack
	for _, pl := range playlists {
		for _, t := range pl.Tracks {
			if !seen[t.ID] {
				seen[t.ID] = true
				tracks = append(tracks, t)
			}
		}
	}
	return tracks
}

// matchPool fills the shared track pool: seed from liked-migration matches,
// pre-match against the library, search the rest.
func (e *Engine) matchPool(ctx context.Context, progress chan<- ProgressUpdate, playlists []models.SourcePlaylist, testMode bool, result *PlaylistRunResult) error {
	tracks := uniqueTracks(playlists)
	result.UniqueTracks = len(tracks)

	var toMatch []models.SourceTrack
	for _, t := range tracks {
		entry, err := e.pool.Get(t.ID)
		if err != nil {
			return err
		}
		if entry != nil {
			if entry.Matched {
				result.Matched++
			}
			continue
		}

		// Reuse the verdict from the liked-tracks migration when there is one.
		m, err := e.matches.Get(t.ID)
		if err != nil {
			return err
		}
		if m != nil && m.TargetID != "" && (m.State == models.StateApplied || m.State == models.StatePending) {
			seeded := models.PoolMatch{
				SourceID:    t.ID,
				Matched:     true,
				TargetID:    m.TargetID,
				TargetURI:   m.TargetURI,
				TitleScore:  m.TitleScore,
				ArtistScore: m.ArtistScore,
				Source:      models.SourceFavsCrossref,
			}
			if err := e.pool.Upsert(&seeded); err != nil {
				return err
			}
			result.Seeded++
			result.Matched++
			continue
		}

		toMatch = append(toMatch, t)
	}
	if result.Seeded > 0 {
		e.logger.Info("seeded pool from liked-tracks matches", "count", result.Seeded)
	}
	if len(toMatch) == 0 {
		return nil
	}

	// Playlist tracks have no known-id set to stop on; fetch the whole library.
	songs, err := e.target.FetchLibrary(ctx, nil)
	if err != nil {
		return err
	}
	e.sendProgress(progress, fetchLibraryUpdate(len(songs)))

	if len(songs) > 0 {
		ix := match.BuildIndex(songs)
		matched, rest := match.Prematch(toMatch, ix)
		for _, m := range matched {
			entry := models.PoolMatch{
				SourceID:    m.SourceID,
				Matched:     true,
				TargetID:    m.TargetID,
				TargetURI:   m.TargetURI,
				TitleScore:  m.TitleScore,
				ArtistScore: m.ArtistScore,
				Source:      models.SourceLibraryPrematch,
			}
			if err := e.pool.Upsert(&entry); err != nil {
				return err
			}
		}
		result.Prematched = len(matched)
		result.Matched += len(matched)
		toMatch = rest
		e.sendProgress(progress, prematchUpdate(result.Prematched, len(toMatch)))
	}

	if testMode && len(toMatch) > testModeSearchCap {
		toMatch = toMatch[:testModeSearchCap]
		e.logger.Warn("test mode: search loop capped", "tracks", testModeSearchCap)
	}

	for i, t := range toMatch {
		if t.Incomplete() {
			e.logger.Warn("skipping track with missing metadata", "id", t.ID, "title", t.Title)
			continue
		}

		outcome, err := match.SearchMatch(ctx, e.target, t)
		result.Searched++
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
				return err
			}
			entry := models.PoolMatch{SourceID: t.ID}
			if upErr := e.pool.Upsert(&entry); upErr != nil {
				return upErr
			}
			e.logger.Error("search failed", "track", t.Title, "error", err)
			continue
		}

		var entry models.PoolMatch
		var status string
		if outcome.Accepted() {
			entry = models.PoolMatch{
				SourceID:    t.ID,
				Matched:     true,
				TargetID:    outcome.Best.TargetID,
				TargetURI:   outcome.Best.TargetURI,
				TitleScore:  outcome.Best.TitleScore,
				ArtistScore: outcome.Best.ArtistScore,
				Source:      models.SourceAPISearch,
				Candidates:  outcome.Candidates,
			}
			result.Matched++
			status = fmt.Sprintf("OK    score=%.2f → %s", outcome.Best.Confidence(), outcome.Best.Title)
		} else {
			entry = models.PoolMatch{SourceID: t.ID, Candidates: outcome.Candidates}
			status = "MISS"
		}
		if err := e.pool.Upsert(&entry); err != nil {
			return err
		}
		e.sendProgress(progress, searchTrackUpdate(i+1, len(toMatch), t, status))
	}

	return nil
}

// crossLike likes pool tracks that are also in the source likes but were
// never applied through the liked-tracks migration.
func (e *Engine) crossLike(ctx context.Context, progress chan<- ProgressUpdate, result *PlaylistRunResult) error {
	likes, err := e.sources.ListLikes()
	if err != nil {
		return err
	}
	likesByID := make(map[string]models.SourceTrack, len(likes))
	for _, t := range likes {
		likesByID[t.ID] = t
	}

	pool, err := e.pool.List()
	if err != nil {
		return err
	}

	type crossLikeEntry struct {
		track models.SourceTrack
		pool  models.PoolMatch
	}
	var toLike []crossLikeEntry
	for _, entry := range pool {
		if !entry.Matched {
			continue
		}
		track, liked := likesByID[entry.SourceID]
		if !liked {
			continue
		}
		m, err := e.matches.Get(entry.SourceID)
		if err != nil {
			return err
		}
		if m != nil && (m.State == models.StateApplied || m.State == models.StatePending) {
			continue
		}
		toLike = append(toLike, crossLikeEntry{track: track, pool: entry})
	}
	if len(toLike) == 0 {
		return nil
	}

	e.logger.Info("cross-liking playlist tracks that are also source likes", "count", len(toLike))
	for start := 0; start < len(toLike); start += services.LikeBatchSize {
		end := start + services.LikeBatchSize
		if end > len(toLike) {
			end = len(toLike)
		}
		batch := toLike[start:end]

		ids := make([]string, len(batch))
		for i, c := range batch {
			ids[i] = c.pool.TargetID
		}
		if err := e.target.Like(ctx, ids); err != nil {
			if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
				return err
			}
			e.logger.Error("cross-like batch failed, continuing", "error", err)
			continue
		}

		for _, c := range batch {
			m := models.Match{
				SourceID:      c.track.ID,
				SourceTitle:   c.track.Title,
				SourceArtists: c.track.Artists,
				Position:      c.track.Position,
				State:         models.StateApplied,
				TargetID:      c.pool.TargetID,
				TargetURI:     c.pool.TargetURI,
				TitleScore:    c.pool.TitleScore,
				ArtistScore:   c.pool.ArtistScore,
				Source:        models.SourcePlaylistCross,
			}
			if err := e.matches.Upsert(&m); err != nil {
				return err
			}
		}
		result.CrossLiked += len(batch)
		e.sendProgress(progress, crossLikeUpdate(result.CrossLiked, len(toLike)))
	}

	return nil
}

// syncMatched creates target playlists and appends newly matched tracks.
// Add-only: tracks already recorded as synced are never touched.
func (e *Engine) syncMatched(ctx context.Context, progress chan<- ProgressUpdate, playlists []models.SourcePlaylist, testMode bool, result *PlaylistRunResult) error {
	if testMode && len(playlists) > 1 {
		playlists = playlists[:1]
		e.logger.Warn("test mode: syncing first playlist only", "name", playlists[0].Name)
	}

	for idx, pl := range playlists {
		if len(pl.Tracks) == 0 {
			e.logger.Info("skipping empty playlist", "name", pl.Name)
			continue
		}

		type desiredTrack struct {
			sourceID string
			uri      string
		}
		var desired []desiredTrack
		unmatched := 0
		for _, t := range pl.Tracks {
			entry, err := e.pool.Get(t.ID)
			if err != nil {
				return err
			}
			if entry != nil && entry.Matched && entry.TargetURI != "" {
				desired = append(desired, desiredTrack{sourceID: t.ID, uri: entry.TargetURI})
			} else {
				unmatched++
			}
		}
		if len(desired) == 0 {
			e.logger.Info("no matched tracks for playlist", "name", pl.Name, "unmatched", unmatched)
			continue
		}

		mapping, err := e.mappings.Get(pl.ID)
		if err != nil {
			return err
		}
		if mapping == nil {
			targetID, err := e.target.CreatePlaylist(ctx, pl.Name)
			if err != nil {
				if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
					return err
				}
				e.logger.Error("failed to create playlist, skipping", "name", pl.Name, "error", err)
				continue
			}
			mapping = &models.PlaylistMapping{SourcePlaylistID: pl.ID, Name: pl.Name, TargetPlaylistID: targetID}
			// Persist the link immediately so a crash cannot create duplicates.
			if err := e.mappings.Upsert(mapping); err != nil {
				return err
			}
			e.sendProgress(progress, createPlaylistUpdate(pl.Name, targetID))
		} else if mapping.Name != pl.Name {
			mapping.Name = pl.Name
			if err := e.mappings.Upsert(mapping); err != nil {
				return err
			}
		}

		var newTracks []desiredTrack
		for _, d := range desired {
			if !mapping.HasSynced(d.sourceID) {
				newTracks = append(newTracks, d)
			}
		}
		if len(newTracks) == 0 {
			e.logger.Info("playlist up to date", "name", pl.Name, "matched", len(desired), "unmatched", unmatched)
			continue
		}

		added := 0
		for start := 0; start < len(newTracks); start += services.PlaylistAddBatchSize {
			end := start + services.PlaylistAddBatchSize
			if end > len(newTracks) {
				end = len(newTracks)
			}
			batch := newTracks[start:end]

			uris := make([]string, len(batch))
			sourceIDs := make([]string, len(batch))
			for i, d := range batch {
				uris[i] = d.uri
				sourceIDs[i] = d.sourceID
			}

			if err := e.target.AddToPlaylist(ctx, mapping.TargetPlaylistID, uris); err != nil {
				if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
					return err
				}
				e.logger.Error("failed to add tracks, moving to next playlist",
					"name", pl.Name, "added", added, "error", err)
				break
			}
			// Record only confirmed additions; unconfirmed ones retry next run.
			if err := e.mappings.AddSynced(pl.ID, sourceIDs); err != nil {
				return err
			}
			added += len(batch)
		}

		result.TracksAdded += added
		result.Synced++
		e.sendProgress(progress, syncPlaylistUpdate(idx+1, len(playlists), pl.Name, added))
		e.logger.Info("playlist synced", "name", pl.Name, "added", added, "matched", len(desired), "unmatched", unmatched)
	}

	return nil
}
