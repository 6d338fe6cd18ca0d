package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"community-bot/internal/bot"
	"community-bot/internal/gateway"
	"community-bot/internal/service"
)

// Custom ids of the pronoun modal. Every pronoun component shares the
// "pronoun_" prefix.
const (
	PronounPrefix  = "pronoun_"
	PronounModalID = "pronoun_modal"
	PronounInputID = "pronoun_input"
)

// ApprovalHandler runs the pronoun approval gate.
type ApprovalHandler struct {
	approval *service.ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approval *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approval: approval}
}

func (h *ApprovalHandler) Name() string { return "approval" }

func (h *ApprovalHandler) Commands() []bot.Command { return nil }

func (h *ApprovalHandler) Components() []bot.Component {
	return []bot.Component{{Prefix: PronounPrefix, Handler: h.HandlePronouns}}
}

// HandlePronouns handles the pronoun buttons and the custom pronoun modal.
func (h *ApprovalHandler) HandlePronouns(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var pronouns string
	switch id := c.CustomID(); id {
	case service.PronounCustomID:
		return c.Modal(PronounModalID, "Set Custom Pronouns", PronounInputID, "Your Pronouns", "e.g., ze/zir, fae/faer")
	case PronounModalID:
		pronouns = c.Field(PronounInputID)
	default:
		p, ok := service.PronounsFor(id)
		if !ok {
			log.Warn().Str("custom_id", id).Msg("Unknown pronoun button")
			return nil
		}
		pronouns = p
	}

	_, err := h.approval.SetPronouns(c.Context(), sender.UserID, pronouns)
	switch {
	case errors.Is(err, service.ErrPronounFormat):
		return c.ReplyEphemeral("Please use the format `pronoun/pronoun`.")
	case errors.Is(err, service.ErrNicknameTooLong):
		return c.ReplyEphemeral("Your nickname is too long to add pronouns automatically. Please shorten it and try again.")
	case err != nil:
		_ = c.ReplyEphemeral("I couldn't update your nickname. Please ask a moderator for help.")
		return err
	}
	return c.ReplyEphemeral(fmt.Sprintf("Your pronouns have been set to `%s`!", pronouns))
}

// OnMemberJoin sends a new member to the waiting room.
func (h *ApprovalHandler) OnMemberJoin(ctx context.Context, m *gateway.Member) error {
	return h.approval.OnJoin(ctx, m)
}

// OnMemberUpdate approves members whose new nickname carries pronouns.
func (h *ApprovalHandler) OnMemberUpdate(ctx context.Context, before, after *gateway.Member) error {
	_, err := h.approval.OnMemberUpdate(ctx, before, after)
	return err
}
