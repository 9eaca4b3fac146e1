package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/server"
	"github.com/akopylov/crosstune/internal/shared"
)

// Setup creates the config file and initializes the database schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("config file not created", "error", err)
	} else {
		r.writePlain("Created %s, fill in your credentials\n", path)
	}

	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureDatabase(); err != nil {
		return err
	}

	r.writePlain("Database ready at %s\n", r.config.Database.Path)
	r.writePlain("Next: edit %s, then run 'crosstune auth'\n", path)
	return nil
}

// SetupYandex extracts the Yandex Music OAuth token from a cURL command
// copied out of browser DevTools and stores it in the config file.
func (r *Runner) SetupYandex(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}

	headers, err := shared.ParseCurlFile(cmd.String("curl-file"))
	if err != nil {
		return err
	}
	token, err := headers.YandexToken()
	if err != nil {
		return err
	}

	r.config.Credentials.Yandex.Token = token
	if err := r.saveConfig(); err != nil {
		return err
	}
	return r.writePlain("✓ Yandex Music token saved to %s\n", r.configPath)
}

// Auth runs the Spotify OAuth2 authorization-code flow: start the local
// callback listener, open the browser, wait for the redirect, and store the
// token pair in the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	callback, err := server.NewCallbackServer(svc.OAuthConfig(), state, r.logger)
	if err != nil {
		return err
	}
	if err := callback.Start(); err != nil {
		return err
	}

	authURL := svc.GetAuthURL(state)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
	}
	r.writePlain("Waiting for authorization, open this URL if the browser did not launch:\n\n  %s\n\n", authURL)

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Int("timeout"))*time.Second)
	defer cancel()

	token, err := callback.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	r.config.Credentials.Spotify.AccessToken = token.AccessToken
	r.config.Credentials.Spotify.RefreshToken = token.RefreshToken
	if err := r.saveConfig(); err != nil {
		return err
	}

	r.logger.Info("authentication successful")
	return r.writePlain("✓ Spotify tokens saved to %s\n", r.configPath)
}
