package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"community-bot/internal/service"
)

// Job names.
const (
	GraduationDrain   = "graduation_drain"
	GraduationSuggest = "graduation_suggest"
	PronounEnforce    = "pronoun_enforce"
	ChannelHealth     = "channel_health"
)

// Drainer applies queued graduations.
type Drainer interface {
	DrainQueue(ctx context.Context) (*service.DrainReport, error)
}

// Suggester posts graduation suggestions.
type Suggester interface {
	PostSuggestions(ctx context.Context) (int, error)
}

// Enforcer reverts members who dropped their pronouns.
type Enforcer interface {
	Enforce(ctx context.Context) (int, error)
}

// Appraiser exports channel health.
type Appraiser interface {
	Run(ctx context.Context) (*service.HealthReport, error)
}

// NewGraduationDrainJob drains the graduation queue.
func NewGraduationDrainJob(d Drainer, timeout time.Duration) *Guarded {
	return NewGuarded(GraduationDrain, timeout, func(ctx context.Context) error {
		report, err := d.DrainQueue(ctx)
		if err != nil {
			return err
		}
		if report.Drained > 0 {
			log.Info().
				Int("drained", report.Drained).
				Int("graduated", report.Graduated).
				Int("skipped", report.Skipped).
				Int("failed", report.Failed).
				Msg("Graduation queue processed")
		}
		return nil
	})
}

// NewGraduationSuggestJob posts the daily suggestion report.
func NewGraduationSuggestJob(s Suggester, timeout time.Duration) *Guarded {
	return NewGuarded(GraduationSuggest, timeout, func(ctx context.Context) error {
		log.Info().Msg("Running daily check for graduation suggestions")
		n, err := s.PostSuggestions(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("suggested", n).Msg("Graduation suggestions posted")
		return nil
	})
}

// NewPronounEnforceJob runs the pronoun policy check.
func NewPronounEnforceJob(e Enforcer, timeout time.Duration) *Guarded {
	return NewGuarded(PronounEnforce, timeout, func(ctx context.Context) error {
		log.Info().Msg("Running pronoun enforcement check")
		n, err := e.Enforce(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("reverted", n).Msg("Pronoun enforcement finished")
		return nil
	})
}

// NewChannelHealthJob exports channel health scores.
func NewChannelHealthJob(a Appraiser, timeout time.Duration) *Guarded {
	return NewGuarded(ChannelHealth, timeout, func(ctx context.Context) error {
		_, err := a.Run(ctx)
		return err
	})
}
