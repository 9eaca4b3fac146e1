package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/formatter"
	"github.com/akopylov/crosstune/internal/models"
)

// Stats prints liked-track and playlist migration statistics.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureDatabase(); err != nil {
		return err
	}
	// Stats are computed locally; the engine is built without a target.
	if err := r.ensureStatsEngine(); err != nil {
		return err
	}

	liked, err := r.engine.CollectLikedStats()
	if err != nil {
		return err
	}
	playlists, err := r.engine.CollectPlaylistStats()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"liked":     liked,
			"playlists": playlists,
		}, true)
	}

	r.writePlainHeader("Liked Tracks")
	r.writePlain("Source tracks: %d\n", liked.TotalSource)
	r.writePlain("Applied:       %d (%.1f%%)\n", liked.Applied, liked.AppliedPercent)
	r.writePlain("Pending:       %d\n", liked.Pending)
	r.writePlain("Unresolved:    %d (%d with candidates)\n", liked.Unresolved, liked.WithCandidates)
	r.writePlain("No match:      %d\n", liked.NoMatch)
	r.writePlain("Not migrated:  %d\n", liked.Remaining)

	if len(liked.ArtistsNotFound) > 0 {
		r.writePlain("\nArtists with no match at all:\n")
		for _, a := range liked.ArtistsNotFound {
			r.writePlain("  %3d  %s\n", a.Count, a.Artist)
		}
	}

	r.writePlainHeader("Playlists")
	r.writePlain("Playlists:     %d (%d mapped to Spotify)\n", playlists.Playlists, playlists.Mapped)
	r.writePlain("Unique tracks: %d\n", playlists.UniqueTracks)
	r.writePlain("Matched:       %d\n", playlists.Matched)
	r.writePlain("Unmatched:     %d (%d with candidates)\n", playlists.Unmatched, playlists.WithCandidates)
	for _, s := range playlists.Summaries {
		r.writePlain("  %s: %d tracks, %d synced\n", s.Name, s.TrackCount, s.SyncedCount)
	}
	return nil
}

// Report exports unresolved liked tracks to a file.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureDatabase(); err != nil {
		return err
	}

	rows, err := r.matches.ListByState(models.StateUnresolved)
	if err != nil {
		return err
	}

	path, err := formatter.WriteReport(rows, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("Wrote %d unresolved tracks to %s\n", len(rows), path)
}
