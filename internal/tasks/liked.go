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

// testModeSearchCap bounds the search loop in test mode.
const testModeSearchCap = 10

// LikedOptions configures a liked-tracks migration run.
type LikedOptions struct {
	// TestMode caps the search loop at ten tracks.
	TestMode bool
	// ForcePrematch refetches the entire target library instead of stopping
	// at the first mostly-known page.
	ForcePrematch bool
}

// LikedRunResult summarizes one liked-tracks migration run.
type LikedRunResult struct {
	Recovered  int // pending likes applied from a previous run
	Prematched int // resolved from the library without searching
	Promoted   int // unresolved/pending rows promoted by pre-matching
	Searched   int // search queries issued
	Accepted   int // searches that produced a like
	Unresolved int // searches that missed
	Skipped    int // tracks with unusable metadata
}

// MigrateLiked runs the liked-tracks migration: flush leftover pending likes,
// pre-match against the target library, search the remainder, and apply likes
// in batches. Every decision is persisted before the next remote call, so an
// interrupted run resumes cleanly.
func (e *Engine) MigrateLiked(ctx context.Context, progress chan<- ProgressUpdate, opts LikedOptions) (*LikedRunResult, error) {
	result := &LikedRunResult{}

	// Recover likes buffered by a previous run before anything else.
	recovered, err := e.flushPending(ctx, progress)
	result.Recovered = recovered
	if err != nil {
		if errors.Is(err, shared.ErrRateLimited) {
			return result, err
		}
		// Leave the rows pending; pre-matching may still resolve them.
		e.logger.Error("failed to apply pending likes, continuing", "error", err)
	}
	if recovered > 0 {
		e.logger.Info("recovered pending likes from previous run", "count", recovered)
	}

	likes, err := e.sources.ListLikes()
	if err != nil {
		return result, err
	}
	if len(likes) == 0 {
		return result, fmt.Errorf("run fetch first: %w", shared.ErrNoSourceSnapshot)
	}

	seen, err := e.matches.SeenIDs()
	if err != nil {
		return result, err
	}

	// Oldest source track first, so the target's "recently liked" ordering
	// mirrors the source catalog.
	var remaining []models.SourceTrack
	for i := len(likes) - 1; i >= 0; i-- {
		if !seen[likes[i].ID] {
			remaining = append(remaining, likes[i])
		}
	}

	unresolvedRows, err := e.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return result, err
	}
	pendingRows, err := e.matches.ListByState(models.StatePending)
	if err != nil {
		return result, err
	}

	if len(remaining)+len(unresolvedRows)+len(pendingRows) > 0 {
		ix, err := e.buildLibraryIndex(ctx, progress, opts.ForcePrematch)
		if err != nil {
			return result, err
		}

		if ix.Size() > 0 {
			matched, rest := match.Prematch(remaining, ix)
			for i := range matched {
				if err := e.matches.Upsert(&matched[i]); err != nil {
					return result, err
				}
			}
			result.Prematched = len(matched)
			remaining = rest

			// The user may have liked previously-missed tracks on the target
			// by hand; promote any row the library now resolves.
			promoted, err := e.promoteFromLibrary(append(unresolvedRows, pendingRows...), ix)
			if err != nil {
				return result, err
			}
			result.Promoted = promoted

			e.sendProgress(progress, prematchUpdate(result.Prematched+result.Promoted, len(remaining)))
			e.logger.Info("pre-match complete",
				"prematched", result.Prematched, "promoted", result.Promoted, "remaining", len(remaining))
		}
	}

	if opts.TestMode && len(remaining) > testModeSearchCap {
		remaining = remaining[:testModeSearchCap]
		e.logger.Warn("test mode: search loop capped", "tracks", testModeSearchCap)
	}

	buffered := 0
	flush := func() error {
		if buffered == 0 {
			return nil
		}
		buffered = 0
		_, err := e.flushPending(ctx, progress)
		return err
	}

	for i, track := range remaining {
		if track.Incomplete() {
			e.logger.Warn("skipping track with missing metadata", "id", track.ID, "title", track.Title)
			result.Skipped++
			continue
		}

		outcome, err := match.SearchMatch(ctx, e.target, track)
		result.Searched++
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
				// Buffered likes are already persisted as pending; apply what
				// we can and let the next run resume.
				if flushErr := flush(); flushErr != nil {
					e.logger.Error("flush on abort failed", "error", flushErr)
				}
				return result, err
			}
			result.Unresolved++
			m := unresolvedMatch(track, "api_error", nil)
			if upErr := e.matches.Upsert(&m); upErr != nil {
				return result, upErr
			}
			e.logger.Error("search failed", "track", track.Title, "error", err)
			continue
		}

		if outcome.Accepted() {
			m := pendingMatch(track, *outcome.Best, outcome.Candidates)
			if err := e.matches.Upsert(&m); err != nil {
				return result, err
			}
			result.Accepted++
			buffered++
			status := fmt.Sprintf("OK    score=%.2f → %s", outcome.Best.Confidence(), outcome.Best.Title)
			e.sendProgress(progress, searchTrackUpdate(i+1, len(remaining), track, status))

			if buffered >= services.LikeBatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		} else {
			reason := "title_mismatch"
			if outcome.Best == nil {
				reason = "no_results"
			}
			m := unresolvedMatch(track, reason, outcome.Candidates)
			if err := e.matches.Upsert(&m); err != nil {
				return result, err
			}
			result.Unresolved++
			e.sendProgress(progress, searchTrackUpdate(i+1, len(remaining), track, "MISS  "+reason))
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	if err := e.updateArtistMet(); err != nil {
		return result, err
	}

	e.logger.Info("liked migration complete",
		"recovered", result.Recovered,
		"prematched", result.Prematched,
		"promoted", result.Promoted,
		"searched", result.Searched,
		"accepted", result.Accepted,
		"unresolved", result.Unresolved,
		"skipped", result.Skipped)
	return result, nil
}

// RetryOptions configures a retry pass over unresolved tracks.
type RetryOptions struct {
	// ArtistFoundOnly restricts the pass to tracks whose artist already
	// appears among resolved matches, the most promising re-search targets.
	ArtistFoundOnly bool
}

// RetryUnresolved re-searches unresolved tracks. Newly accepted matches are
// liked in batches exactly like a first run; misses get their candidate
// lists refreshed.
func (e *Engine) RetryUnresolved(ctx context.Context, progress chan<- ProgressUpdate, opts RetryOptions) (*LikedRunResult, error) {
	result := &LikedRunResult{}

	rows, err := e.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return result, err
	}
	if opts.ArtistFoundOnly {
		var filtered []models.Match
		for _, m := range rows {
			if m.ArtistMet {
				filtered = append(filtered, m)
			}
		}
		rows = filtered
	}
	if len(rows) == 0 {
		e.logger.Info("nothing to retry")
		return result, nil
	}

	buffered := 0
	flush := func() error {
		if buffered == 0 {
			return nil
		}
		buffered = 0
		_, err := e.flushPending(ctx, progress)
		return err
	}

	for i, row := range rows {
		track := trackFromMatch(row)
		outcome, err := match.SearchMatch(ctx, e.target, track)
		result.Searched++
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
				if flushErr := flush(); flushErr != nil {
					e.logger.Error("flush on abort failed", "error", flushErr)
				}
				return result, err
			}
			e.logger.Error("retry search failed", "track", track.Title, "error", err)
			continue
		}

		if outcome.Accepted() {
			m := pendingMatch(track, *outcome.Best, outcome.Candidates)
			if err := e.matches.Upsert(&m); err != nil {
				return result, err
			}
			result.Accepted++
			buffered++
			e.sendProgress(progress, searchTrackUpdate(i+1, len(rows), track,
				fmt.Sprintf("OK    score=%.2f → %s", outcome.Best.Confidence(), outcome.Best.Title)))
			if buffered >= services.LikeBatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		} else {
			// Refresh the stored candidates; the reason stays as before
			// unless the result set changed shape.
			reason := row.Reason
			if outcome.Best == nil {
				reason = "no_results"
			}
			m := unresolvedMatch(track, reason, outcome.Candidates)
			m.ArtistMet = row.ArtistMet
			if err := e.matches.Upsert(&m); err != nil {
				return result, err
			}
			result.Unresolved++
		}
	}

	if err := flush(); err != nil {
		return result, err
	}
	if err := e.updateArtistMet(); err != nil {
		return result, err
	}

	e.logger.Info("retry complete", "searched", result.Searched, "accepted", result.Accepted)
	return result, nil
}

// ApplyPending likes all pending rows without any searching.
func (e *Engine) ApplyPending(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	return e.flushPending(ctx, progress)
}

// flushPending likes every pending row in batches, oldest source track
// first, marking each batch applied only after the remote call succeeds.
func (e *Engine) flushPending(ctx context.Context, progress chan<- ProgressUpdate) (int, error) {
	rows, err := e.matches.ListByState(models.StatePending)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	liked := 0
	for start := 0; start < len(rows); start += services.LikeBatchSize {
		end := start + services.LikeBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		ids := make([]string, len(batch))
		sourceIDs := make([]string, len(batch))
		for i, m := range batch {
			ids[i] = m.TargetID
			sourceIDs[i] = m.SourceID
		}

		e.sendProgress(progress, flushPendingUpdate(start, len(rows)))
		if err := e.target.Like(ctx, ids); err != nil {
			// Unconfirmed batches stay pending for the next run.
			return liked, err
		}
		if err := e.matches.MarkApplied(sourceIDs); err != nil {
			return liked, err
		}
		liked += len(batch)
		e.sendProgress(progress, likeBatchUpdate(liked, len(rows)))
	}

	return liked, nil
}

// buildLibraryIndex fetches the target library and indexes it. Known target
// ids bound the fetch unless a full refetch is forced.
func (e *Engine) buildLibraryIndex(ctx context.Context, progress chan<- ProgressUpdate, force bool) (*match.LibraryIndex, error) {
	var knownIDs map[string]bool
	if !force {
		ids, err := e.matches.ResolvedTargetIDs()
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			knownIDs = ids
		}
	}

	songs, err := e.target.FetchLibrary(ctx, knownIDs)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, fetchLibraryUpdate(len(songs)))
	return match.BuildIndex(songs), nil
}

// promoteFromLibrary re-resolves existing rows against a fresh library index
// and promotes hits straight to applied.
func (e *Engine) promoteFromLibrary(rows []models.Match, ix *match.LibraryIndex) (int, error) {
	tracks := make([]models.SourceTrack, len(rows))
	for i, m := range rows {
		tracks[i] = trackFromMatch(m)
	}

	promoted, _ := match.Prematch(tracks, ix)
	for i := range promoted {
		if err := e.matches.Upsert(&promoted[i]); err != nil {
			return 0, err
		}
	}
	return len(promoted), nil
}

// updateArtistMet recomputes the artist-met flag on unresolved rows: set
// when the track's primary artist appears among resolved matches.
func (e *Engine) updateArtistMet() error {
	met := make(map[string]bool)
	for _, state := range []models.MatchState{models.StateApplied, models.StatePending} {
		rows, err := e.matches.ListByState(state)
		if err != nil {
			return err
		}
		for _, m := range rows {
			if len(m.SourceArtists) > 0 {
				met[match.Normalize(m.SourceArtists[0])] = true
			}
		}
	}

	unresolved, err := e.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return err
	}
	for _, m := range unresolved {
		artistMet := len(m.SourceArtists) > 0 && met[match.Normalize(m.SourceArtists[0])]
		if artistMet != m.ArtistMet {
			if err := e.matches.SetArtistMet(m.SourceID, artistMet); err != nil {
				return err
			}
		}
	}
	return nil
}

func trackFromMatch(m models.Match) models.SourceTrack {
	return models.SourceTrack{
		ID:       m.SourceID,
		Title:    m.SourceTitle,
		Artists:  m.SourceArtists,
		Position: m.Position,
	}
}

func pendingMatch(track models.SourceTrack, best models.Candidate, candidates []models.Candidate) models.Match {
	return models.Match{
		SourceID:      track.ID,
		SourceTitle:   track.Title,
		SourceArtists: track.Artists,
		Position:      track.Position,
		State:         models.StatePending,
		TargetID:      best.TargetID,
		TargetURI:     best.TargetURI,
		TargetTitle:   best.Title,
		TargetArtists: models.SplitArtists(best.Artists),
		TitleScore:    best.TitleScore,
		ArtistScore:   best.ArtistScore,
		Source:        models.SourceAPISearch,
		Candidates:    candidates,
	}
}

func unresolvedMatch(track models.SourceTrack, reason string, candidates []models.Candidate) models.Match {
	return models.Match{
		SourceID:      track.ID,
		SourceTitle:   track.Title,
		SourceArtists: track.Artists,
		Position:      track.Position,
		State:         models.StateUnresolved,
		Reason:        reason,
		Candidates:    candidates,
	}
}
