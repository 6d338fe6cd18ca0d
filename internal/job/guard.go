// Package job runs the bot's periodic work on a cron scheduler.
package job

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyRunning is returned when a run is requested while one is in flight.
var ErrAlreadyRunning = errors.New("job is already running")

// Guarded is a non-reentrant job. A tick or manual trigger that arrives
// while a run is in flight is skipped and logged.
type Guarded struct {
	name    string
	timeout time.Duration
	fn      func(ctx context.Context) error

	running atomic.Bool
	runs    atomic.Int64
	skips   atomic.Int64
}

// NewGuarded wraps fn. A zero timeout means runs are not bounded.
func NewGuarded(name string, timeout time.Duration, fn func(ctx context.Context) error) *Guarded {
	return &Guarded{name: name, timeout: timeout, fn: fn}
}

// Name returns the job name.
func (g *Guarded) Name() string {
	return g.name
}

// Run implements cron.Job.
func (g *Guarded) Run() {
	_ = g.Trigger(context.Background())
}

// Trigger runs the job now unless a run is already in flight, in which case
// it returns ErrAlreadyRunning.
func (g *Guarded) Trigger(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		g.skips.Add(1)
		log.Warn().Str("job", g.name).Msg("Previous run still in progress, skipping")
		return ErrAlreadyRunning
	}
	defer g.running.Store(false)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	start := time.Now()
	log.Debug().Str("job", g.name).Str("run_id", runID).Msg("Job started")

	err := g.fn(ctx)
	g.runs.Add(1)

	if err != nil {
		log.Error().Err(err).Str("job", g.name).Str("run_id", runID).Dur("took", time.Since(start)).Msg("Job failed")
		return err
	}
	log.Debug().Str("job", g.name).Str("run_id", runID).Dur("took", time.Since(start)).Msg("Job finished")
	return nil
}

// Running reports whether a run is in flight.
func (g *Guarded) Running() bool {
	return g.running.Load()
}

// Runs returns the number of completed runs.
func (g *Guarded) Runs() int64 {
	return g.runs.Load()
}

// Skips returns the number of skipped triggers.
func (g *Guarded) Skips() int64 {
	return g.skips.Load()
}
