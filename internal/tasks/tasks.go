package tasks

import (
	"github.com/akopylov/crosstune/internal/repositories"
	"github.com/akopylov/crosstune/internal/services"
	"github.com/charmbracelet/log"
)

// Engine orchestrates migration operations against the target service,
// persisting every intermediate decision through the repositories.
type Engine struct {
	target   services.TargetService
	sources  *repositories.SourceRepository
	matches  *repositories.MatchRepository
	pool     *repositories.PoolRepository
	mappings *repositories.MappingRepository
	logger   *log.Logger
}

// NewEngine creates an Engine with the provided target client and repositories.
func NewEngine(
	target services.TargetService,
	sources *repositories.SourceRepository,
	matches *repositories.MatchRepository,
	pool *repositories.PoolRepository,
	mappings *repositories.MappingRepository,
	logger *log.Logger,
) *Engine {
	return &Engine{
		target:   target,
		sources:  sources,
		matches:  matches,
		pool:     pool,
		mappings: mappings,
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
