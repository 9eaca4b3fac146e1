package repositories

import (
	"database/sql"
	"fmt"

	"github.com/akopylov/crosstune/internal/models"
)

// SourceRepository stores read-only snapshots of the source catalog.
//
// Snapshots are replaced wholesale inside a transaction on every fetch; the
// migration state machine never mutates them.
type SourceRepository struct {
	db *sql.DB
}

// NewSourceRepository creates a new SourceRepository with the given database connection
func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ReplaceLikes replaces the liked-tracks snapshot. Position 0 is the newest
// track in the source catalog.
func (r *SourceRepository) ReplaceLikes(tracks []models.SourceTrack) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM source_tracks"); err != nil {
		return fmt.Errorf("failed to clear likes snapshot: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO source_tracks (id, title, artists, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tracks {
		if _, err := stmt.Exec(t.ID, t.Title, models.JoinArtists(t.Artists), i); err != nil {
			return fmt.Errorf("failed to insert track %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// ListLikes returns the liked-tracks snapshot in source order, newest first.
func (r *SourceRepository) ListLikes() ([]models.SourceTrack, error) {
	rows, err := r.db.Query("SELECT id, title, artists, position FROM source_tracks ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query likes snapshot: %w", err)
	}
	defer rows.Close()

	return scanSourceTracks(rows)
}

// ReplacePlaylists replaces the playlists snapshot.
func (r *SourceRepository) ReplacePlaylists(playlists []models.SourcePlaylist) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM source_playlists"); err != nil {
		return fmt.Errorf("failed to clear playlists snapshot: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM source_playlist_tracks"); err != nil {
		return fmt.Errorf("failed to clear playlist tracks snapshot: %w", err)
	}

	plStmt, err := tx.Prepare("INSERT INTO source_playlists (id, name) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare playlist insert: %w", err)
	}
	defer plStmt.Close()

	trStmt, err := tx.Prepare("INSERT INTO source_playlist_tracks (playlist_id, track_id, position, title, artists) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare playlist track insert: %w", err)
	}
	defer trStmt.Close()

	for _, pl := range playlists {
		if _, err := plStmt.Exec(pl.ID, pl.Name); err != nil {
			return fmt.Errorf("failed to insert playlist %s: %w", pl.ID, err)
		}
		for i, t := range pl.Tracks {
			if _, err := trStmt.Exec(pl.ID, t.ID, i, t.Title, models.JoinArtists(t.Artists)); err != nil {
				return fmt.Errorf("failed to insert playlist track %s/%s: %w", pl.ID, t.ID, err)
			}
		}
	}

	return tx.Commit()
}

// ListPlaylists returns the playlists snapshot with tracks in playlist order.
func (r *SourceRepository) ListPlaylists() ([]models.SourcePlaylist, error) {
	rows, err := r.db.Query("SELECT id, name FROM source_playlists ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists snapshot: %w", err)
	}
	defer rows.Close()

	var playlists []models.SourcePlaylist
	for rows.Next() {
		var pl models.SourcePlaylist
		if err := rows.Scan(&pl.ID, &pl.Name); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}

	for i := range playlists {
		tracks, err := r.playlistTracks(playlists[i].ID)
		if err != nil {
			return nil, err
		}
		playlists[i].Tracks = tracks
	}

	return playlists, nil
}

func (r *SourceRepository) playlistTracks(playlistID string) ([]models.SourceTrack, error) {
	rows, err := r.db.Query(
		"SELECT track_id, title, artists, position FROM source_playlist_tracks WHERE playlist_id = ? ORDER BY position ASC",
		playlistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	return scanSourceTracks(rows)
}

func scanSourceTracks(rows *sql.Rows) ([]models.SourceTrack, error) {
	var tracks []models.SourceTrack
	for rows.Next() {
		var t models.SourceTrack
		var artists string
		if err := rows.Scan(&t.ID, &t.Title, &artists, &t.Position); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.Artists = models.SplitArtists(artists)
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	return tracks, nil
}
