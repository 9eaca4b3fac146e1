package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/akopylov/crosstune/internal/models"
)

// MappingRepository persists source→target playlist links and the add-only
// set of source tracks already synced into each target playlist.
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a new MappingRepository with the given database connection
func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Upsert writes a playlist mapping. The synced-track set is managed
// separately through AddSynced and is left untouched here.
func (r *MappingRepository) Upsert(m *models.PlaylistMapping) error {
	if m.SourcePlaylistID == "" {
		return fmt.Errorf("mapping has no source playlist id")
	}
	if m.TargetPlaylistID == "" {
		return fmt.Errorf("mapping %s has no target playlist id", m.SourcePlaylistID)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO playlist_mappings (source_playlist_id, name, target_playlist_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_playlist_id) DO UPDATE SET
			name = excluded.name,
			target_playlist_id = excluded.target_playlist_id,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, m.SourcePlaylistID, m.Name, m.TargetPlaylistID, now, now); err != nil {
		return fmt.Errorf("failed to upsert mapping %s: %w", m.SourcePlaylistID, err)
	}

	return nil
}

// Get retrieves the mapping for a source playlist, including its synced
// track set, or nil when the playlist has never been synced.
func (r *MappingRepository) Get(sourcePlaylistID string) (*models.PlaylistMapping, error) {
	var m models.PlaylistMapping
	err := r.db.QueryRow(
		"SELECT source_playlist_id, name, target_playlist_id FROM playlist_mappings WHERE source_playlist_id = ?",
		sourcePlaylistID,
	).Scan(&m.SourcePlaylistID, &m.Name, &m.TargetPlaylistID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping %s: %w", sourcePlaylistID, err)
	}

	if m.SyncedTrackIDs, err = r.syncedTracks(sourcePlaylistID); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddSynced records source tracks as present in the target playlist. Entries
// are add-only and duplicate inserts are ignored, so re-syncing after an
// interrupted run is safe.
func (r *MappingRepository) AddSynced(sourcePlaylistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO playlist_synced_tracks (playlist_id, source_track_id) VALUES (?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare synced insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range trackIDs {
		if _, err := stmt.Exec(sourcePlaylistID, id); err != nil {
			return fmt.Errorf("failed to record synced track %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// List returns all playlist mappings with their synced track sets.
func (r *MappingRepository) List() ([]models.PlaylistMapping, error) {
	rows, err := r.db.Query(
		"SELECT source_playlist_id, name, target_playlist_id FROM playlist_mappings ORDER BY source_playlist_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.PlaylistMapping
	for rows.Next() {
		var m models.PlaylistMapping
		if err := rows.Scan(&m.SourcePlaylistID, &m.Name, &m.TargetPlaylistID); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}

	for i := range mappings {
		if mappings[i].SyncedTrackIDs, err = r.syncedTracks(mappings[i].SourcePlaylistID); err != nil {
			return nil, err
		}
	}
	return mappings, nil
}

func (r *MappingRepository) syncedTracks(sourcePlaylistID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT source_track_id FROM playlist_synced_tracks WHERE playlist_id = ? ORDER BY source_track_id",
		sourcePlaylistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced tracks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan synced track: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
