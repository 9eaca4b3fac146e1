package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/tasks"
)

// Liked migrates liked tracks to Spotify.
func (r *Runner) Liked(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return err
	}

	opts := tasks.LikedOptions{
		TestMode:      cmd.Bool("test"),
		ForcePrematch: cmd.Bool("force-prematch"),
	}

	var result *tasks.LikedRunResult
	err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = r.engine.MigrateLiked(ctx, progress, opts)
		return runErr
	})
	if result != nil {
		r.writePlainHeader("Liked Tracks")
		r.writePlain("Recovered:   %d\n", result.Recovered)
		r.writePlain("Pre-matched: %d (+%d promoted)\n", result.Prematched, result.Promoted)
		r.writePlain("Searched:    %d\n", result.Searched)
		r.writePlain("Accepted:    %d\n", result.Accepted)
		r.writePlain("Unresolved:  %d\n", result.Unresolved)
		if result.Skipped > 0 {
			r.writePlain("Skipped:     %d\n", result.Skipped)
		}
	}
	return err
}

// Playlists syncs playlists to Spotify.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return err
	}

	opts := tasks.PlaylistOptions{
		TestMode: cmd.Bool("test"),
		Filter:   cmd.StringSlice("filter"),
	}

	var result *tasks.PlaylistRunResult
	err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = r.engine.SyncPlaylists(ctx, progress, opts)
		return runErr
	})
	if result != nil {
		r.writePlainHeader("Playlists")
		r.writePlain("Unique tracks: %d\n", result.UniqueTracks)
		r.writePlain("Matched:       %d (%d seeded, %d pre-matched)\n", result.Matched, result.Seeded, result.Prematched)
		r.writePlain("Cross-liked:   %d\n", result.CrossLiked)
		r.writePlain("Synced:        %d playlists, %d tracks added\n", result.Synced, result.TracksAdded)
	}
	return err
}

// All runs the full migration in sequence: fetch, liked tracks, playlists.
func (r *Runner) All(ctx context.Context, cmd *cli.Command) error {
	if err := r.Fetch(ctx, cmd); err != nil {
		return err
	}
	if err := r.Liked(ctx, cmd); err != nil {
		return err
	}
	return r.Playlists(ctx, cmd)
}

// Retry re-searches unresolved liked tracks.
func (r *Runner) Retry(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return err
	}

	opts := tasks.RetryOptions{ArtistFoundOnly: cmd.Bool("artist-found-only")}

	var result *tasks.LikedRunResult
	err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = r.engine.RetryUnresolved(ctx, progress, opts)
		return runErr
	})
	if result != nil {
		r.writePlain("Retried %d tracks, %d newly matched\n", result.Searched, result.Accepted)
	}
	return err
}

// Pending applies likes left pending by an interrupted run.
func (r *Runner) Pending(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return err
	}

	var applied int
	err := r.runWithProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		applied, runErr = r.engine.ApplyPending(ctx, progress)
		return runErr
	})
	r.writePlain("Applied %d pending likes\n", applied)
	return err
}
