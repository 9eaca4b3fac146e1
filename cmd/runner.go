package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/akopylov/crosstune/internal/repositories"
	"github.com/akopylov/crosstune/internal/services"
	"github.com/akopylov/crosstune/internal/shared"
	"github.com/akopylov/crosstune/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action. Services and the database are built lazily so commands
// like setup work before any credentials exist.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	db       *sql.DB
	source   services.SourceService
	target   services.TargetService
	sources  *repositories.SourceRepository
	matches  *repositories.MatchRepository
	pool     *repositories.PoolRepository
	mappings *repositories.MappingRepository
	engine   *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner. Any nil
// field is built on demand; tests inject mocks here.
type RunnerOpts struct {
	Config *shared.Config
	Source services.SourceService
	Target services.TargetService
	DB     *sql.DB
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		db:     opts.DB,
		source: opts.Source,
		target: opts.Target,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, fetchCommand, likedCommand, playlistsCommand,
		allCommand, resolveCommand, retryCommand, pendingCommand, statsCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// ensureConfig loads the configuration file named by the --config flag,
// unless one was injected already.
func (r *Runner) ensureConfig(cmd *cli.Command) error {
	if r.config != nil {
		return nil
	}
	path := cmd.String("config")
	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("%w: %v (run setup first)", shared.ErrMissingConfig, err)
	}
	r.config = config
	r.configPath = path
	return nil
}

// ensureDatabase opens the configured database, runs migrations, and builds
// the repositories.
func (r *Runner) ensureDatabase() error {
	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return err
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		r.db = db
	}
	if err := shared.RunMigrations(r.db); err != nil {
		return err
	}

	r.sources = repositories.NewSourceRepository(r.db)
	r.matches = repositories.NewMatchRepository(r.db)
	r.pool = repositories.NewPoolRepository(r.db)
	r.mappings = repositories.NewMappingRepository(r.db)
	return nil
}

func (r *Runner) retryPolicy() *shared.RetryPolicy {
	rl := r.config.RateLimit
	return shared.NewRetryPolicy(rl.RequestsPerSecond, rl.MaxRetries,
		time.Duration(rl.DefaultBackoffSec)*time.Second)
}

// ensureSource builds the Yandex Music client from config credentials.
func (r *Runner) ensureSource() error {
	if r.source != nil {
		return nil
	}
	y := r.config.Credentials.Yandex
	svc, err := services.NewYandexService(y.Token, y.UserID, r.retryPolicy())
	if err != nil {
		return err
	}
	r.source = svc
	return nil
}

// ensureTarget builds the Spotify client and authenticates it with the stored
// token pair. Refreshed tokens are written back to the config file.
func (r *Runner) ensureTarget(ctx context.Context) error {
	if r.target != nil {
		return nil
	}
	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	sp := r.config.Credentials.Spotify
	if sp.AccessToken == "" && sp.RefreshToken == "" {
		return fmt.Errorf("no Spotify tokens stored, run auth first: %w", shared.ErrNotAuthenticated)
	}
	if err := svc.Authenticate(ctx, map[string]string{
		"access_token":  sp.AccessToken,
		"refresh_token": sp.RefreshToken,
	}); err != nil {
		return err
	}
	svc.SetTokenRefreshCallback(r.persistToken)

	r.target = svc
	return nil
}

// spotifyService builds an unauthenticated Spotify client from config
// credentials.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	sp := r.config.Credentials.Spotify
	return services.NewSpotifyService(map[string]string{
		"client_id":     sp.ClientID,
		"client_secret": sp.ClientSecret,
		"redirect_uri":  sp.RedirectURI,
	}, r.retryPolicy())
}

// ensureEngine wires the migration engine over the database and the target
// service.
func (r *Runner) ensureEngine(ctx context.Context) error {
	if r.engine != nil {
		return nil
	}
	if err := r.ensureDatabase(); err != nil {
		return err
	}
	if err := r.ensureTarget(ctx); err != nil {
		return err
	}
	r.engine = tasks.NewEngine(r.target, r.sources, r.matches, r.pool, r.mappings, r.logger)
	return nil
}

// ensureStatsEngine wires the engine without a target service, for commands
// that only read local state.
func (r *Runner) ensureStatsEngine() error {
	if r.engine != nil {
		return nil
	}
	r.engine = tasks.NewEngine(r.target, r.sources, r.matches, r.pool, r.mappings, r.logger)
	return nil
}

// persistToken writes a refreshed Spotify token pair back to the config file.
func (r *Runner) persistToken(token *oauth2.Token) {
	r.config.Credentials.Spotify.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		r.config.Credentials.Spotify.RefreshToken = token.RefreshToken
	}
	if err := r.saveConfig(); err != nil {
		r.logger.Warn("failed to persist refreshed token", "error", err)
	}
}

// saveConfig rewrites the config file from the in-memory configuration.
func (r *Runner) saveConfig() error {
	if r.configPath == "" {
		return nil
	}
	f, err := os.Create(r.configPath)
	if err != nil {
		return fmt.Errorf("failed to open config for writing: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(r.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// runWithProgress runs fn with a progress channel and prints updates until
// the channel closes.
func (r *Runner) runWithProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan error, 1)

	go func() {
		done <- fn(progress)
		close(progress)
	}()

	for update := range progress {
		r.writePlain("%s\n", update.Message)
	}
	return <-done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
