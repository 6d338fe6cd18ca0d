package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"community-bot/internal/gateway"
	"community-bot/internal/model"
)

// WarningStore records moderation flags.
type WarningStore interface {
	AddChannelWarning(ctx context.Context, guildID, channelID, moderatorID int64, reason string, kind model.WarningType) (*model.Warning, error)
}

// Alerter mirrors staff alerts to another channel of communication.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// FlagRequest is a raised flag.
type FlagRequest struct {
	Kind          model.WarningType
	GuildID       int64
	ChannelID     int64
	ChannelName   string
	ModeratorID   int64
	ModeratorName string
	Reason        string
}

// FlagResult reports what raising a flag did.
type FlagResult struct {
	Warning  *model.Warning
	Notified int
}

// FlagService raises yellow and red channel flags.
type FlagService struct {
	gw       gateway.Gateway
	warnings WarningStore
	notify   []int64
	alerter  Alerter
}

// NewFlagService creates a new FlagService instance. alerter may be nil.
func NewFlagService(gw gateway.Gateway, warnings WarningStore, notifyUserIDs []int64, alerter Alerter) *FlagService {
	return &FlagService{
		gw:       gw,
		warnings: warnings,
		notify:   notifyUserIDs,
		alerter:  alerter,
	}
}

// Raise posts the flag in the channel and records it. A red flag also
// alerts staff; unreachable recipients are logged and skipped.
func (s *FlagService) Raise(ctx context.Context, req FlagRequest) (*FlagResult, error) {
	if _, err := s.gw.SendMessage(ctx, req.ChannelID, &gateway.Message{Embed: flagEmbed(req.Kind)}); err != nil {
		return nil, fmt.Errorf("failed to post flag: %w", err)
	}
	w, err := s.warnings.AddChannelWarning(ctx, req.GuildID, req.ChannelID, req.ModeratorID, req.Reason, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to record flag: %w", err)
	}

	log.Info().
		Str("type", string(req.Kind)).
		Int64("channel_id", req.ChannelID).
		Int64("moderator_id", req.ModeratorID).
		Str("reason", req.Reason).
		Msg("Flag raised")

	res := &FlagResult{Warning: w}
	if req.Kind == model.WarningRed {
		res.Notified = s.alertStaff(ctx, req)
	}
	return res, nil
}

func (s *FlagService) alertStaff(ctx context.Context, req FlagRequest) int {
	alert := &gateway.Message{Embed: &gateway.Embed{
		Title:       "🚨 Red Flag Alert 🚨",
		Description: fmt.Sprintf("A red flag was raised in `#%s` by **%s**.", req.ChannelName, req.ModeratorName),
		Color:       gateway.ColorDarkRed,
		Fields: []gateway.EmbedField{
			{Name: "Reason", Value: req.Reason},
			{Name: "Jump to Channel", Value: fmt.Sprintf("[Click Here](%s)", JumpURL(req.GuildID, req.ChannelID))},
		},
	}}

	sent := 0
	for _, id := range s.notify {
		if err := s.gw.SendDM(ctx, id, alert); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("Could not send red flag notification")
			continue
		}
		sent++
	}

	if s.alerter != nil {
		text := fmt.Sprintf("🚨 Red flag in #%s by %s\nReason: %s\n%s",
			req.ChannelName, req.ModeratorName, req.Reason, JumpURL(req.GuildID, req.ChannelID))
		if err := s.alerter.Alert(ctx, text); err != nil {
			log.Warn().Err(err).Msg("Could not mirror red flag alert")
		}
	}
	return sent
}

func flagEmbed(kind model.WarningType) *gateway.Embed {
	if kind == model.WarningRed {
		return &gateway.Embed{
			Title:       "Attention Required",
			Description: "This conversation has become inappropriate. Please cease the current discussion immediately. Moderators have been notified and will be here shortly.",
			Color:       gateway.ColorRed,
		}
	}
	return &gateway.Embed{
		Title:       "A Gentle Reminder",
		Description: "Hey everyone, just a gentle reminder to keep our conversations constructive and welcoming. Let's steer this discussion back to a more positive track. Thanks!",
		Color:       gateway.ColorYellow,
	}
}

// JumpURL links to a channel.
func JumpURL(guildID, channelID int64) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d", guildID, channelID)
}
