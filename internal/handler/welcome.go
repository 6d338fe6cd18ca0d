package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-bot/internal/bot"
	"community-bot/internal/gateway"
	"community-bot/internal/service"
)

// WelcomeHandler handles the welcome wagon commands and activity tracking.
type WelcomeHandler struct {
	welcome     *service.WelcomeService
	wagonRoleID int64
}

// NewWelcomeHandler creates a new WelcomeHandler.
func NewWelcomeHandler(welcome *service.WelcomeService, wagonRoleID int64) *WelcomeHandler {
	return &WelcomeHandler{welcome: welcome, wagonRoleID: wagonRoleID}
}

func (h *WelcomeHandler) Name() string { return "welcome_wagon" }

func (h *WelcomeHandler) Commands() []bot.Command {
	wagonOnly := bot.RoleMiddleware(bot.HasRole(h.wagonRoleID))
	return []bot.Command{
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "newmembers",
				Description: "Lists all new members and their activity.",
			},
			Handler: bot.Chain(h.HandleNewMembers, wagonOnly),
		},
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "graduate",
				Description: "Graduates a member, removing the New In Town role.",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "The member to graduate",
					Required:    true,
				}},
			},
			Handler: bot.Chain(h.HandleGraduate, wagonOnly),
		},
	}
}

func (h *WelcomeHandler) Components() []bot.Component { return nil }

// HandleNewMembers handles /newmembers
func (h *WelcomeHandler) HandleNewMembers(c bot.Context) error {
	if err := c.Defer(false); err != nil {
		return err
	}
	members, err := h.welcome.NewMembers(c.Context())
	if err != nil {
		_ = c.ReplyEphemeral(errGeneric)
		return err
	}
	if len(members) == 0 {
		return c.Reply(&gateway.Message{Content: `No members are currently "New In Town".`})
	}
	return c.Reply(&gateway.Message{Embed: service.NewMembersEmbed(members)})
}

// HandleGraduate handles /graduate <member>
func (h *WelcomeHandler) HandleGraduate(c bot.Context) error {
	target, ok := c.OptionMember("member")
	if !ok {
		return c.ReplyEphemeral("Please choose a member to graduate.")
	}
	m, err := h.welcome.Graduate(c.Context(), target.UserID, c.Sender().UserID)
	switch {
	case errors.Is(err, service.ErrNotInProgram):
		return c.Reply(&gateway.Message{Content: fmt.Sprintf(`%s is not in the "New In Town" program.`, target.DisplayName())})
	case errors.Is(err, gateway.ErrPermissionDenied):
		return c.ReplyEphemeral("I don't have permission to change that member's roles.")
	case err != nil:
		_ = c.ReplyEphemeral(errGeneric)
		return err
	}
	return c.Reply(&gateway.Message{Content: fmt.Sprintf("🎓 **%s** has been successfully graduated!", m.DisplayName())})
}

// OnMessage counts onboarding activity for every human message.
func (h *WelcomeHandler) OnMessage(ctx context.Context, m *bot.MessageEvent) error {
	if m.Author == nil || m.GuildID == 0 {
		return nil
	}
	if err := h.welcome.RecordMessage(ctx, m.Author.UserID, m.Author.Bot); err != nil {
		log.Error().Err(err).Int64("user_id", m.Author.UserID).Msg("Failed to record activity")
		return err
	}
	return nil
}
