package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/akopylov/crosstune/internal/models"
)

// PoolRepository persists the playlist track pool.
//
// The pool caches one search verdict per source track id across every
// playlist, so a track appearing in five playlists is searched at most once.
type PoolRepository struct {
	db *sql.DB
}

// NewPoolRepository creates a new PoolRepository with the given database connection
func NewPoolRepository(db *sql.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

const poolColumns = `source_id, matched, target_id, target_uri,
	title_score, artist_score, match_source, candidates, created_at, updated_at`

// Upsert writes a pool entry, replacing any previous verdict for the track.
func (r *PoolRepository) Upsert(p *models.PoolMatch) error {
	if p.SourceID == "" {
		return fmt.Errorf("pool match has no source id")
	}
	if p.Matched && p.TargetID == "" {
		return fmt.Errorf("matched pool entry %s has no target id", p.SourceID)
	}

	candidates, err := encodeCandidates(p.Candidates)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO pool_matches (` + poolColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			matched = excluded.matched,
			target_id = excluded.target_id,
			target_uri = excluded.target_uri,
			title_score = excluded.title_score,
			artist_score = excluded.artist_score,
			match_source = excluded.match_source,
			candidates = excluded.candidates,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		p.SourceID, p.Matched, p.TargetID, p.TargetURI,
		p.TitleScore, p.ArtistScore, string(p.Source), candidates, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool entry %s: %w", p.SourceID, err)
	}

	return nil
}

// Get retrieves the pool entry for a source track id, or nil when the track
// has never been searched.
func (r *PoolRepository) Get(sourceID string) (*models.PoolMatch, error) {
	query := "SELECT " + poolColumns + " FROM pool_matches WHERE source_id = ?"
	p, err := scanPoolMatch(r.db.QueryRow(query, sourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// List returns the whole pool.
func (r *PoolRepository) List() ([]models.PoolMatch, error) {
	query := "SELECT " + poolColumns + " FROM pool_matches ORDER BY source_id"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool: %w", err)
	}
	defer rows.Close()

	var pool []models.PoolMatch
	for rows.Next() {
		p, err := scanPoolMatch(rows)
		if err != nil {
			return nil, err
		}
		pool = append(pool, *p)
	}
	return pool, rows.Err()
}

// Resolvable returns unmatched entries that carry stored candidates, the set
// offered for manual resolution.
func (r *PoolRepository) Resolvable() ([]models.PoolMatch, error) {
	pool, err := r.List()
	if err != nil {
		return nil, err
	}

	var resolvable []models.PoolMatch
	for i := range pool {
		if pool[i].Resolvable() {
			resolvable = append(resolvable, pool[i])
		}
	}
	return resolvable, nil
}

func scanPoolMatch(s rowScanner) (*models.PoolMatch, error) {
	var p models.PoolMatch
	var source, candidates string
	var createdAt, updatedAt time.Time
	err := s.Scan(
		&p.SourceID, &p.Matched, &p.TargetID, &p.TargetURI,
		&p.TitleScore, &p.ArtistScore, &source, &candidates, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pool entry: %w", err)
	}

	p.Source = models.MatchSource(source)
	if p.Candidates, err = decodeCandidates(candidates); err != nil {
		return nil, err
	}
	return &p, nil
}
