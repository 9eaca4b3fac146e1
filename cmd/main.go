package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "crosstune",
		Usage:    "Migrate a Yandex Music library to Spotify",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrRateLimited) {
			// State is saved; the next run picks up where this one stopped.
			logger.Warn("rate limited by Spotify, try again later")
			os.Exit(2)
		}
		logger.Fatalf("application error: %v", err)
	}
}
