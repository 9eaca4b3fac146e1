package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/akopylov/crosstune/internal/models"
)

// MatchRepository persists the liked-tracks migration state machine.
//
// One row per source track id; the primary key enforces the invariant that a
// track is in at most one state at a time. All writes are upserts, so
// interrupted runs re-enter cleanly.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

const matchColumns = `source_id, state, source_title, source_artists, position,
	target_id, target_uri, target_title, target_artists,
	title_score, artist_score, match_source, reason, candidates, artist_met,
	created_at, updated_at`

// Upsert validates and writes a match record, replacing any previous row for
// the same source track.
func (r *MatchRepository) Upsert(m *models.Match) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	candidates, err := encodeCandidates(m.Candidates)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `
		INSERT INTO liked_matches (` + matchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			state = excluded.state,
			source_title = excluded.source_title,
			source_artists = excluded.source_artists,
			position = excluded.position,
			target_id = excluded.target_id,
			target_uri = excluded.target_uri,
			target_title = excluded.target_title,
			target_artists = excluded.target_artists,
			title_score = excluded.title_score,
			artist_score = excluded.artist_score,
			match_source = excluded.match_source,
			reason = excluded.reason,
			candidates = excluded.candidates,
			artist_met = excluded.artist_met,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		m.SourceID, string(m.State), m.SourceTitle, models.JoinArtists(m.SourceArtists), m.Position,
		m.TargetID, m.TargetURI, m.TargetTitle, models.JoinArtists(m.TargetArtists),
		m.TitleScore, m.ArtistScore, string(m.Source), m.Reason, candidates, m.ArtistMet,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", m.SourceID, err)
	}

	return nil
}

// Get retrieves the match for a source track id, or nil when the track has
// not been seen.
func (r *MatchRepository) Get(sourceID string) (*models.Match, error) {
	query := "SELECT " + matchColumns + " FROM liked_matches WHERE source_id = ?"
	m, err := r.scanOne(r.db.QueryRow(query, sourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListByState returns all matches in the given state, oldest source track
// first (position descends from oldest to newest at 0).
func (r *MatchRepository) ListByState(state models.MatchState) ([]models.Match, error) {
	query := "SELECT " + matchColumns + " FROM liked_matches WHERE state = ? ORDER BY position DESC"
	rows, err := r.db.Query(query, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches by state: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// SeenIDs returns every source track id present in any state.
func (r *MatchRepository) SeenIDs() (map[string]bool, error) {
	rows, err := r.db.Query("SELECT source_id FROM liked_matches")
	if err != nil {
		return nil, fmt.Errorf("failed to query seen ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ResolvedTargetIDs returns the target ids of applied and pending matches.
// This is the "known" set that drives the incremental library fetch
// early-stop.
func (r *MatchRepository) ResolvedTargetIDs() (map[string]bool, error) {
	rows, err := r.db.Query(
		"SELECT target_id FROM liked_matches WHERE state IN (?, ?) AND target_id != ''",
		string(models.StateApplied), string(models.StatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved target ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan target id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// MarkApplied transitions the given source tracks from pending to applied.
// Called only after the remote like call is confirmed.
func (r *MatchRepository) MarkApplied(sourceIDs []string) error {
	if len(sourceIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"UPDATE liked_matches SET state = ?, updated_at = ? WHERE source_id = ? AND state = ?",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, id := range sourceIDs {
		if _, err := stmt.Exec(string(models.StateApplied), now, id, string(models.StatePending)); err != nil {
			return fmt.Errorf("failed to mark %s applied: %w", id, err)
		}
	}

	return tx.Commit()
}

// SetArtistMet updates the retry-filter flag on an unresolved match.
func (r *MatchRepository) SetArtistMet(sourceID string, met bool) error {
	_, err := r.db.Exec(
		"UPDATE liked_matches SET artist_met = ?, updated_at = ? WHERE source_id = ?",
		met, time.Now().UTC(), sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to set artist_met on %s: %w", sourceID, err)
	}
	return nil
}

// CountByState returns the row count per state.
func (r *MatchRepository) CountByState() (map[models.MatchState]int, error) {
	rows, err := r.db.Query("SELECT state, COUNT(*) FROM liked_matches GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.MatchState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.MatchState(state)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MatchRepository) scanOne(row *sql.Row) (*models.Match, error) {
	return scanMatch(row)
}

func (r *MatchRepository) scanRow(rows *sql.Rows) (*models.Match, error) {
	return scanMatch(rows)
}

func scanMatch(s rowScanner) (*models.Match, error) {
	var m models.Match
	var state, source, sourceArtists, targetArtists, candidates string
	err := s.Scan(
		&m.SourceID, &state, &m.SourceTitle, &sourceArtists, &m.Position,
		&m.TargetID, &m.TargetURI, &m.TargetTitle, &targetArtists,
		&m.TitleScore, &m.ArtistScore, &source, &m.Reason, &candidates, &m.ArtistMet,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	m.State = models.MatchState(state)
	m.Source = models.MatchSource(source)
	m.SourceArtists = models.SplitArtists(sourceArtists)
	m.TargetArtists = models.SplitArtists(targetArtists)
	if m.Candidates, err = decodeCandidates(candidates); err != nil {
		return nil, err
	}
	return &m, nil
}
