package handler

import (
	"github.com/bwmarrin/discordgo"

	"community-bot/internal/bot"
	"community-bot/internal/config"
	"community-bot/internal/model"
	"community-bot/internal/service"
)

// FlagHandler handles the moderation flag commands.
type FlagHandler struct {
	flags *service.FlagService
	cfg   *config.Config
}

// NewFlagHandler creates a new FlagHandler.
func NewFlagHandler(flags *service.FlagService, cfg *config.Config) *FlagHandler {
	return &FlagHandler{flags: flags, cfg: cfg}
}

func (h *FlagHandler) Name() string { return "flag" }

func (h *FlagHandler) Commands() []bot.Command {
	modOnly := bot.RoleMiddleware(h.cfg.IsModerator)
	reason := []*discordgo.ApplicationCommandOption{{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why the flag is raised",
		Required:    true,
	}}
	return []bot.Command{
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "yellow",
				Description: "Issue a gentle warning to de-escalate a tense conversation.",
				Options:     reason,
			},
			Handler: bot.Chain(h.raise(model.WarningYellow, "Yellow flag has been raised."), modOnly),
		},
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "red",
				Description: "Issue an urgent warning and notify staff.",
				Options:     reason,
			},
			Handler: bot.Chain(h.raise(model.WarningRed, "Red flag has been raised and staff have been notified."), modOnly),
		},
	}
}

func (h *FlagHandler) Components() []bot.Component { return nil }

func (h *FlagHandler) raise(kind model.WarningType, done string) bot.HandlerFunc {
	return func(c bot.Context) error {
		sender := c.Sender()
		if err := c.Defer(true); err != nil {
			return err
		}
		_, err := h.flags.Raise(c.Context(), service.FlagRequest{
			Kind:          kind,
			GuildID:       c.GuildID(),
			ChannelID:     c.ChannelID(),
			ChannelName:   c.ChannelName(),
			ModeratorID:   sender.UserID,
			ModeratorName: sender.DisplayName(),
			Reason:        c.Option("reason"),
		})
		if err != nil {
			_ = c.ReplyEphemeral("❌ Could not raise the flag in this channel.")
			return err
		}
		return c.ReplyEphemeral(done)
	}
}
