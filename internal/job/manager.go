package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cronLogger routes the scheduler's own logging through zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Manager owns the cron engine and the registered jobs.
type Manager struct {
	engine *cron.Cron

	mu    sync.Mutex
	jobs  map[string]*Guarded
	start sync.Once
}

// NewManager creates a scheduler that logs through l.
func NewManager(l zerolog.Logger) *Manager {
	logger := cronLogger{l: l.With().Str("component", "cron").Logger()}
	return &Manager{
		engine: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		jobs: make(map[string]*Guarded),
	}
}

// Every schedules job at a fixed interval.
func (m *Manager) Every(interval time.Duration, job *Guarded) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	return m.Add(fmt.Sprintf("@every %s", interval), job)
}

// Add schedules job with a cron spec.
func (m *Manager) Add(spec string, job *Guarded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.Name()]; ok {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	if _, err := m.engine.AddJob(spec, job); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	m.jobs[job.Name()] = job
	log.Info().Str("job", job.Name()).Str("schedule", spec).Msg("Job registered")
	return nil
}

// Job returns a registered job by name.
func (m *Manager) Job(name string) (*Guarded, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	return j, ok
}

// Start starts the engine. Later calls do nothing, so it is safe to call
// on every gateway ready event.
func (m *Manager) Start() {
	m.start.Do(func() {
		log.Info().Msg("Cron scheduler started")
		m.engine.Start()
	})
}

// Run blocks until ctx ends, then stops the engine and waits for running
// jobs to finish.
func (m *Manager) Run(ctx context.Context) error {
	<-ctx.Done()
	stopped := m.engine.Stop()
	<-stopped.Done()
	log.Info().Msg("Cron scheduler stopped")
	return nil
}
