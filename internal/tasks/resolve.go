package tasks

import (
	"context"
	"fmt"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/shared"
)

// Resolvable returns unresolved liked-track rows that carry stored
// candidates, the set offered for manual resolution.
func (e *Engine) Resolvable() ([]models.Match, error) {
	rows, err := e.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return nil, err
	}

	var resolvable []models.Match
	for _, m := range rows {
		if len(m.Candidates) > 0 {
			resolvable = append(resolvable, m)
		}
	}
	return resolvable, nil
}

// ResolveLiked applies a manual candidate pick for an unresolved liked
// track: the candidate is liked on the target, then the row moves to
// applied. The like is confirmed before any state changes.
func (e *Engine) ResolveLiked(ctx context.Context, sourceID string, pick models.Candidate) error {
	m, err := e.matches.Get(sourceID)
	if err != nil {
		return err
	}
	if m == nil || m.State != models.StateUnresolved {
		return fmt.Errorf("track %s is not awaiting resolution: %w", sourceID, shared.ErrStateConflict)
	}

	if err := e.target.Like(ctx, []string{pick.TargetID}); err != nil {
		return err
	}

	m.State = models.StateApplied
	m.TargetID = pick.TargetID
	m.TargetURI = pick.TargetURI
	m.TargetTitle = pick.Title
	m.TargetArtists = models.SplitArtists(pick.Artists)
	m.TitleScore = pick.TitleScore
	m.ArtistScore = pick.ArtistScore
	m.Source = models.SourceManualResolve
	m.Reason = ""
	m.Candidates = nil
	return e.matches.Upsert(m)
}

// MarkNoMatch marks an unresolved liked track as terminally unmatchable.
func (e *Engine) MarkNoMatch(sourceID string) error {
	m, err := e.matches.Get(sourceID)
	if err != nil {
		return err
	}
	if m == nil || m.State != models.StateUnresolved {
		return fmt.Errorf("track %s is not awaiting resolution: %w", sourceID, shared.ErrStateConflict)
	}

	m.State = models.StateNoMatch
	m.Candidates = nil
	return e.matches.Upsert(m)
}

// PoolResolvable returns unmatched pool entries with stored candidates,
// paired with their source track metadata when the snapshot still has it.
func (e *Engine) PoolResolvable() ([]models.PoolMatch, map[string]models.SourceTrack, error) {
	entries, err := e.pool.Resolvable()
	if err != nil {
		return nil, nil, err
	}

	playlists, err := e.sources.ListPlaylists()
	if err != nil {
		return nil, nil, err
	}
	tracks := make(map[string]models.SourceTrack)
	for _, t := range uniqueTracks(playlists) {
		tracks[t.ID] = t
	}
	return entries, tracks, nil
}

// ResolvePool applies a manual candidate pick for an unmatched pool entry.
// No remote call happens here; the next sync run adds the track to its
// playlists.
func (e *Engine) ResolvePool(sourceID string, pick models.Candidate) error {
	entry, err := e.pool.Get(sourceID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Matched {
		return fmt.Errorf("pool entry %s is not awaiting resolution: %w", sourceID, shared.ErrStateConflict)
	}

	entry.Matched = true
	entry.TargetID = pick.TargetID
	entry.TargetURI = pick.TargetURI
	entry.TitleScore = pick.TitleScore
	entry.ArtistScore = pick.ArtistScore
	entry.Source = models.SourceManualResolve
	entry.Candidates = nil
	return e.pool.Upsert(entry)
}

// MarkPoolNoMatch clears an unmatched pool entry's candidates, recording a
// confirmed no-match.
func (e *Engine) MarkPoolNoMatch(sourceID string) error {
	entry, err := e.pool.Get(sourceID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Matched {
		return fmt.Errorf("pool entry %s is not awaiting resolution: %w", sourceID, shared.ErrStateConflict)
	}

	entry.Candidates = nil
	return e.pool.Upsert(entry)
}
