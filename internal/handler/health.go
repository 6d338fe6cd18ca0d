package handler

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-bot/internal/bot"
	"community-bot/internal/config"
	"community-bot/internal/job"
)

// Trigger starts a run of a scheduled job.
type Trigger interface {
	Trigger(ctx context.Context) error
}

// HealthHandler handles the manual channel-health export.
type HealthHandler struct {
	job Trigger
	cfg *config.Config
	bg  context.Context
}

// NewHealthHandler creates a new HealthHandler. Manual runs use bg so they
// outlive the interaction.
func NewHealthHandler(bg context.Context, j Trigger, cfg *config.Config) *HealthHandler {
	return &HealthHandler{job: j, cfg: cfg, bg: bg}
}

func (h *HealthHandler) Name() string { return "sam" }

func (h *HealthHandler) Commands() []bot.Command {
	return []bot.Command{{
		Definition: &discordgo.ApplicationCommand{
			Name:        "sam_update",
			Description: "Manually trigger the channel score update.",
		},
		Handler: bot.Chain(h.HandleUpdate, bot.OwnerMiddleware(h.cfg)),
	}}
}

func (h *HealthHandler) Components() []bot.Component { return nil }

// HandleUpdate handles /sam_update. The export runs in the background
// through the same overlap guard as the daily run.
func (h *HealthHandler) HandleUpdate(c bot.Context) error {
	if err := c.ReplyEphemeral("🔄 Starting manual channel score update..."); err != nil {
		return err
	}
	go func() {
		err := h.job.Trigger(h.bg)
		switch {
		case errors.Is(err, job.ErrAlreadyRunning):
			log.Info().Msg("Channel score update already running, manual trigger skipped")
		case err != nil:
			log.Error().Err(err).Msg("Manual channel score update failed")
		}
	}()
	return nil
}
