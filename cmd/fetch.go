package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/shared"
)

// Fetch snapshots the Yandex Music catalog into the local database. Already
// known tracks are reused, so only new likes and changed playlists hit the
// API.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureDatabase(); err != nil {
		return err
	}
	if err := r.ensureSource(); err != nil {
		return err
	}

	likesOnly := cmd.Bool("likes-only")
	playlistsOnly := cmd.Bool("playlists-only")
	if likesOnly && playlistsOnly {
		return fmt.Errorf("%w: --likes-only and --playlists-only are mutually exclusive", shared.ErrInvalidFlag)
	}

	if !playlistsOnly {
		existing, err := r.sources.ListLikes()
		if err != nil {
			return err
		}
		r.logger.Info("fetching liked tracks", "service", r.source.Name(), "known", len(existing))

		likes, err := r.source.SyncLikes(ctx, existing)
		if err != nil {
			return err
		}
		if err := r.sources.ReplaceLikes(likes); err != nil {
			return err
		}
		r.writePlain("Liked tracks: %d (%d new)\n", len(likes), len(likes)-len(existing))
	}

	if !likesOnly {
		existing, err := r.sources.ListPlaylists()
		if err != nil {
			return err
		}
		r.logger.Info("fetching playlists", "service", r.source.Name(), "known", len(existing))

		playlists, err := r.source.SyncPlaylists(ctx, existing)
		if err != nil {
			return err
		}
		if err := r.sources.ReplacePlaylists(playlists); err != nil {
			return err
		}

		total := 0
		for _, pl := range playlists {
			total += len(pl.Tracks)
		}
		r.writePlain("Playlists: %d (%d tracks)\n", len(playlists), total)
	}

	return nil
}
