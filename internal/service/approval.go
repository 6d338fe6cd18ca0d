package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"community-bot/internal/gateway"
)

// maxNicknameLength is Discord's nickname limit.
const maxNicknameLength = 32

// Errors
var (
	ErrPronounFormat   = errors.New("pronouns must look like pronoun/pronoun")
	ErrNicknameTooLong = errors.New("nickname too long to add pronouns")
)

// Pronoun button ids and the pronouns they set.
var PronounButtons = []gateway.Button{
	{Label: "she/her", CustomID: "pronoun_she_her", Style: gateway.ButtonSecondary},
	{Label: "he/him", CustomID: "pronoun_he_him", Style: gateway.ButtonSecondary},
	{Label: "they/them", CustomID: "pronoun_they_them", Style: gateway.ButtonSecondary},
	{Label: "Custom", CustomID: PronounCustomID, Style: gateway.ButtonPrimary},
}

// PronounCustomID opens the custom pronoun form.
const PronounCustomID = "pronoun_custom"

// PronounsFor returns the preset pronouns for a button id.
func PronounsFor(customID string) (string, bool) {
	for _, b := range PronounButtons {
		if b.CustomID == customID && customID != PronounCustomID {
			return b.Label, true
		}
	}
	return "", false
}

// ApprovalConfig holds the pronoun gate settings.
type ApprovalConfig struct {
	GuildID              int64
	WaitingRoomChannelID int64
	UnapprovedRoleID     int64
	MemberRoleID         int64
	NewInTownRoleID      int64
	PronounPattern       string
}

// ApprovalService gates new members on pronouns in their nickname.
type ApprovalService struct {
	gw      gateway.Gateway
	cfg     ApprovalConfig
	pattern *regexp.Regexp
}

// NewApprovalService creates a new ApprovalService instance.
func NewApprovalService(gw gateway.Gateway, cfg ApprovalConfig) (*ApprovalService, error) {
	re, err := regexp.Compile(cfg.PronounPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pronoun pattern: %w", err)
	}
	return &ApprovalService{gw: gw, cfg: cfg, pattern: re}, nil
}

// HasPronouns reports whether a nickname carries pronouns.
func (s *ApprovalService) HasPronouns(nick string) bool {
	return nick != "" && s.pattern.MatchString(nick)
}

// Nickname builds "base (pronouns)" for a member, dropping any pronouns the
// current nickname already carries.
func (s *ApprovalService) Nickname(m *gateway.Member, pronouns string) (string, error) {
	base := m.Username
	if m.Nick != "" {
		base = strings.TrimSpace(s.pattern.ReplaceAllString(m.Nick, ""))
	}
	nick := fmt.Sprintf("%s (%s)", base, pronouns)
	if utf8.RuneCountInString(nick) > maxNicknameLength {
		return "", ErrNicknameTooLong
	}
	return nick, nil
}

// OnJoin puts a new member in the waiting room.
func (s *ApprovalService) OnJoin(ctx context.Context, m *gateway.Member) error {
	if m.Bot {
		return nil
	}
	if err := s.gw.AddRole(ctx, s.cfg.GuildID, m.UserID, s.cfg.UnapprovedRoleID); err != nil {
		return fmt.Errorf("failed to assign unapproved role: %w", err)
	}
	log.Info().Int64("user_id", m.UserID).Str("name", m.Username).Msg("New member is in the waiting room")

	guild, err := s.gw.GuildName(ctx, s.cfg.GuildID)
	if err != nil {
		return err
	}
	msg := &gateway.Message{
		Content: fmt.Sprintf("Welcome, <@%d>!", m.UserID),
		Embed: &gateway.Embed{
			Title: fmt.Sprintf("Welcome to %s!", guild),
			Description: "To ensure an inclusive community, we ask all members to display their pronouns in their server nickname.\n\n" +
				"Please use the buttons below to set your pronouns. This will automatically update your nickname and grant you access to the server.",
			Color: gateway.ColorBlue,
		},
		Buttons: PronounButtons,
	}
	if _, err := s.gw.SendMessage(ctx, s.cfg.WaitingRoomChannelID, msg); err != nil {
		return fmt.Errorf("failed to post welcome message: %w", err)
	}
	return nil
}

// SetPronouns rewrites the member's nickname to include pronouns. Approval
// follows from the resulting member update.
func (s *ApprovalService) SetPronouns(ctx context.Context, userID int64, pronouns string) (string, error) {
	pronouns = strings.TrimSpace(pronouns)
	if !strings.Contains(pronouns, "/") {
		return "", ErrPronounFormat
	}
	m, err := s.gw.Member(ctx, s.cfg.GuildID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get member: %w", err)
	}

	nick, err := s.Nickname(m, pronouns)
	if errors.Is(err, ErrNicknameTooLong) {
		dm := &gateway.Message{Content: "Your nickname is too long to add pronouns automatically. Please shorten it and try again."}
		if dmErr := s.gw.SendDM(ctx, userID, dm); dmErr != nil {
			log.Warn().Err(dmErr).Int64("user_id", userID).Msg("Could not DM member about nickname length")
		}
		return "", err
	}
	if err := s.gw.SetNickname(ctx, s.cfg.GuildID, userID, nick); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Could not change nickname")
		return "", fmt.Errorf("failed to set nickname: %w", err)
	}
	log.Info().Int64("user_id", userID).Str("nick", nick).Msg("Pronouns set")
	return nick, nil
}

// OnMemberUpdate approves an unapproved member whose nickname changed to
// one with pronouns. before may be nil when the previous state is unknown.
func (s *ApprovalService) OnMemberUpdate(ctx context.Context, before, after *gateway.Member) (bool, error) {
	if !after.HasRole(s.cfg.UnapprovedRoleID) {
		return false, nil
	}
	if before != nil && before.Nick == after.Nick {
		return false, nil
	}
	if !s.HasPronouns(after.Nick) {
		return false, nil
	}
	log.Info().Int64("user_id", after.UserID).Msg("Member set nickname with pronouns")
	return s.Approve(ctx, after)
}

// Approve grants full access to a member still in the waiting room.
func (s *ApprovalService) Approve(ctx context.Context, m *gateway.Member) (bool, error) {
	if !m.HasRole(s.cfg.UnapprovedRoleID) {
		return false, nil
	}
	if err := s.gw.RemoveRole(ctx, s.cfg.GuildID, m.UserID, s.cfg.UnapprovedRoleID); err != nil {
		return false, fmt.Errorf("failed to remove unapproved role: %w", err)
	}
	for _, role := range []int64{s.cfg.MemberRoleID, s.cfg.NewInTownRoleID} {
		if err := s.gw.AddRole(ctx, s.cfg.GuildID, m.UserID, role); err != nil {
			return false, fmt.Errorf("failed to add role %d: %w", role, err)
		}
	}
	log.Info().Int64("user_id", m.UserID).Str("name", m.DisplayName()).Msg("Member approved")

	guild, err := s.gw.GuildName(ctx, s.cfg.GuildID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not resolve guild name")
	}
	dm := &gateway.Message{Content: fmt.Sprintf(
		"Thank you! Your nickname has been updated and you now have full access to the **%s** server.", guild)}
	if err := s.gw.SendDM(ctx, m.UserID, dm); err != nil {
		log.Debug().Err(err).Int64("user_id", m.UserID).Msg("Could not DM approved member")
	}
	return true, nil
}

// Enforce sends approved members whose nickname lost its pronouns back to
// the waiting room. It returns how many were reverted.
func (s *ApprovalService) Enforce(ctx context.Context) (int, error) {
	members, err := s.gw.Members(ctx, s.cfg.GuildID)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}
	guild, err := s.gw.GuildName(ctx, s.cfg.GuildID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not resolve guild name")
	}

	reverted := 0
	for _, m := range members {
		if ctx.Err() != nil {
			return reverted, ctx.Err()
		}
		if m.Bot || !m.HasRole(s.cfg.MemberRoleID) || m.HasRole(s.cfg.UnapprovedRoleID) {
			continue
		}
		if s.HasPronouns(m.Nick) {
			continue
		}
		if err := s.revert(ctx, m, guild); err != nil {
			log.Error().Err(err).Int64("user_id", m.UserID).Msg("Failed to enforce pronoun policy")
			continue
		}
		reverted++
	}
	return reverted, nil
}

func (s *ApprovalService) revert(ctx context.Context, m *gateway.Member, guild string) error {
	log.Info().Int64("user_id", m.UserID).Str("name", m.DisplayName()).Msg("Member found without pronouns, reverting to unapproved")
	if err := s.gw.RemoveRole(ctx, s.cfg.GuildID, m.UserID, s.cfg.MemberRoleID); err != nil {
		return err
	}
	if err := s.gw.AddRole(ctx, s.cfg.GuildID, m.UserID, s.cfg.UnapprovedRoleID); err != nil {
		return err
	}
	dm := &gateway.Message{Content: fmt.Sprintf(
		"Hi there! We noticed your nickname on the **%s** server no longer includes pronouns.\n\n"+
			"To regain access, please head to the waiting room and set them again. Thank you!", guild)}
	if err := s.gw.SendDM(ctx, m.UserID, dm); err != nil {
		log.Debug().Err(err).Int64("user_id", m.UserID).Msg("Could not DM reverted member")
	}
	return nil
}
