// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the database",
		Flags: []cli.Flag{configFlag()},
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:  "yandex",
				Usage: "Import the Yandex Music token from a copied browser cURL command",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "curl-file",
						Usage:    "File containing a cURL command copied from browser DevTools",
						Required: true,
					},
				},
				Action: r.SetupYandex,
			},
		},
	}
}

// authCommand runs the Spotify OAuth2 authorization flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Seconds to wait for the browser callback",
				Value: 300,
			},
		},
		Action: r.Auth,
	}
}

// fetchCommand snapshots the Yandex Music catalog into the local database.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch liked tracks and playlists from Yandex Music",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "likes-only",
				Usage: "Fetch only liked tracks",
			},
			&cli.BoolFlag{
				Name:  "playlists-only",
				Usage: "Fetch only playlists",
			},
		},
		Action: r.Fetch,
	}
}

// likedCommand migrates liked tracks to Spotify.
func likedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "liked",
		Usage: "Migrate liked tracks to Spotify",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "test",
				Usage: "Test mode: search at most 10 tracks",
			},
			&cli.BoolFlag{
				Name:  "force-prematch",
				Usage: "Refetch the whole Spotify library before pre-matching",
			},
		},
		Action: r.Liked,
	}
}

// playlistsCommand syncs playlists to Spotify.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Sync playlists to Spotify",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "test",
				Usage: "Test mode: cap searching and sync only the first playlist",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Sync only playlists with this exact name (repeatable)",
			},
		},
		Action: r.Playlists,
	}
}

// allCommand runs fetch, liked, and playlists in sequence.
func allCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "all",
		Usage: "Run the full migration: fetch, liked tracks, playlists",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "test",
				Usage: "Test mode for every stage",
			},
		},
		Action: r.All,
	}
}

// resolveCommand opens the interactive picker for unresolved tracks.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Interactively resolve tracks the matcher could not decide",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "pool",
				Usage: "Resolve playlist pool entries instead of liked tracks",
			},
		},
		Action: r.Resolve,
	}
}

// retryCommand re-searches unresolved liked tracks.
func retryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Re-search unresolved liked tracks",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "artist-found-only",
				Usage: "Retry only tracks whose artist already has a match",
			},
		},
		Action: r.Retry,
	}
}

// pendingCommand applies buffered pending likes.
func pendingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "Apply likes left pending by an interrupted run",
		Flags: []cli.Flag{configFlag()},
		Action: r.Pending,
	}
}

// statsCommand prints migration statistics.
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show migration statistics",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Stats,
	}
}

// reportCommand exports unresolved tracks to a file.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export unresolved tracks to CSV, Markdown, or text",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: csv, markdown, or text",
				Value: "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
		},
		Action: r.Report,
	}
}
