package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"community-bot/internal/gateway"
	"community-bot/internal/model"
)

// ErrNotInProgram is returned when graduating someone without the probationary role.
var ErrNotInProgram = errors.New("member is not in the New In Town program")

// ActivityStore counts onboarding messages.
type ActivityStore interface {
	Increment(ctx context.Context, userID int64) (int64, error)
	Counts(ctx context.Context, userIDs []int64) (map[int64]int64, error)
	AtLeast(ctx context.Context, threshold int64) ([]model.Activity, error)
}

// GraduationQueue is the durable set of pending graduations.
type GraduationQueue interface {
	Enqueue(ctx context.Context, userID int64) (bool, error)
	DrainAll(ctx context.Context) ([]int64, error)
	Len(ctx context.Context) (int, error)
}

// WelcomeConfig holds the welcome wagon settings.
type WelcomeConfig struct {
	GuildID         int64
	NewInTownRoleID int64
	ReportChannelID int64
	Threshold       int64
}

// NewMember is a probationary member with their onboarding activity.
type NewMember struct {
	ID           int64     `json:"id,string"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
	MessageCount int64     `json:"message_count"`
}

// DrainReport summarizes one pass over the graduation queue.
type DrainReport struct {
	Drained   int
	Graduated int
	Skipped   int
	Failed    int
}

// WelcomeService runs the onboarding program for new members.
type WelcomeService struct {
	gw       gateway.Gateway
	activity ActivityStore
	queue    GraduationQueue
	cfg      WelcomeConfig
}

// NewWelcomeService creates a new WelcomeService instance.
func NewWelcomeService(gw gateway.Gateway, activity ActivityStore, queue GraduationQueue, cfg WelcomeConfig) *WelcomeService {
	return &WelcomeService{
		gw:       gw,
		activity: activity,
		queue:    queue,
		cfg:      cfg,
	}
}

// RecordMessage counts a message toward the author's onboarding activity.
func (s *WelcomeService) RecordMessage(ctx context.Context, userID int64, authorIsBot bool) error {
	if authorIsBot {
		return nil
	}
	if _, err := s.activity.Increment(ctx, userID); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// NewMembers lists members holding the probationary role, oldest join first.
func (s *WelcomeService) NewMembers(ctx context.Context) ([]NewMember, error) {
	members, err := s.gw.Members(ctx, s.cfg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	var probation []*gateway.Member
	ids := make([]int64, 0)
	for _, m := range members {
		if m.HasRole(s.cfg.NewInTownRoleID) {
			probation = append(probation, m)
			ids = append(ids, m.UserID)
		}
	}
	if len(probation) == 0 {
		return nil, nil
	}

	counts, err := s.activity.Counts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	out := make([]NewMember, 0, len(probation))
	for _, m := range probation {
		out = append(out, newMember(m, counts[m.UserID]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func newMember(m *gateway.Member, count int64) NewMember {
	return NewMember{
		ID:           m.UserID,
		Name:         m.Username,
		DisplayName:  m.DisplayName(),
		AvatarURL:    m.AvatarURL,
		JoinedAt:     m.JoinedAt,
		MessageCount: count,
	}
}

// Graduate removes the probationary role right away.
func (s *WelcomeService) Graduate(ctx context.Context, userID, byUserID int64) (*gateway.Member, error) {
	m, err := s.gw.Member(ctx, s.cfg.GuildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if !m.HasRole(s.cfg.NewInTownRoleID) {
		return m, ErrNotInProgram
	}
	if err := s.gw.RemoveRole(ctx, s.cfg.GuildID, userID, s.cfg.NewInTownRoleID); err != nil {
		return m, fmt.Errorf("failed to graduate member: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Int64("by_user_id", byUserID).
		Msg("Member graduated")
	return m, nil
}

// Enqueue asks for a graduation to be applied by the next drain.
func (s *WelcomeService) Enqueue(ctx context.Context, userID int64) (bool, error) {
	added, err := s.queue.Enqueue(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to queue graduation: %w", err)
	}
	log.Info().Int64("user_id", userID).Bool("added", added).Msg("Graduation queued")
	return added, nil
}

// QueueLen returns the number of pending graduations.
func (s *WelcomeService) QueueLen(ctx context.Context) (int, error) {
	return s.queue.Len(ctx)
}

// DrainQueue applies every queued graduation. Drained entries are never
// requeued; failures are logged and the batch continues.
func (s *WelcomeService) DrainQueue(ctx context.Context) (*DrainReport, error) {
	ids, err := s.queue.DrainAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to drain graduation queue: %w", err)
	}
	report := &DrainReport{Drained: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}

	log.Info().Int("count", len(ids)).Msg("Processing queued graduations")
	for _, id := range ids {
		m, err := s.gw.Member(ctx, s.cfg.GuildID, id)
		if err != nil {
			report.Failed++
			log.Warn().Err(err).Int64("user_id", id).Msg("Could not look up queued graduate")
			continue
		}
		if !m.HasRole(s.cfg.NewInTownRoleID) {
			report.Skipped++
			log.Warn().Int64("user_id", id).Msg("Queued graduate does not have the New In Town role")
			continue
		}
		if err := s.gw.RemoveRole(ctx, s.cfg.GuildID, id, s.cfg.NewInTownRoleID); err != nil {
			report.Failed++
			log.Error().Err(err).Int64("user_id", id).Msg("Failed to graduate queued member")
			continue
		}
		report.Graduated++
		log.Info().Int64("user_id", id).Str("name", m.DisplayName()).Msg("Graduated member from queue")
	}
	return report, nil
}

// Suggestions returns probationary members whose activity reached the threshold.
func (s *WelcomeService) Suggestions(ctx context.Context) ([]NewMember, error) {
	active, err := s.activity.AtLeast(ctx, s.cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	counts := make(map[int64]int64, len(active))
	for _, a := range active {
		counts[a.UserID] = a.MessageCount
	}

	members, err := s.gw.Members(ctx, s.cfg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	var out []NewMember
	for _, m := range members {
		n, ok := counts[m.UserID]
		if ok && m.HasRole(s.cfg.NewInTownRoleID) {
			out = append(out, newMember(m, n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageCount == out[j].MessageCount {
			return out[i].ID < out[j].ID
		}
		return out[i].MessageCount > out[j].MessageCount
	})
	return out, nil
}

// PostSuggestions sends the suggestion report to the report channel. It
// posts nothing when nobody qualifies.
func (s *WelcomeService) PostSuggestions(ctx context.Context) (int, error) {
	if s.cfg.ReportChannelID == 0 {
		log.Warn().Msg("No report channel configured for graduation suggestions")
		return 0, nil
	}
	suggestions, err := s.Suggestions(ctx)
	if err != nil {
		return 0, err
	}
	if len(suggestions) == 0 {
		return 0, nil
	}
	if _, err := s.gw.SendMessage(ctx, s.cfg.ReportChannelID, &gateway.Message{Embed: SuggestionsEmbed(suggestions)}); err != nil {
		return 0, fmt.Errorf("failed to post graduation suggestions: %w", err)
	}
	return len(suggestions), nil
}

// SuggestionsEmbed renders the graduation suggestion report.
func SuggestionsEmbed(members []NewMember) *gateway.Embed {
	e := &gateway.Embed{
		Title:       "🎓 Graduation Suggestions",
		Description: "The following members have been highly active and could be ready for graduation:",
		Color:       gateway.ColorGold,
	}
	for _, m := range members {
		e.Fields = append(e.Fields, gateway.EmbedField{
			Name:  m.DisplayName,
			Value: fmt.Sprintf("%d messages", m.MessageCount),
		})
	}
	return e
}

// NewMembersEmbed renders the activity report for /newmembers.
func NewMembersEmbed(members []NewMember) *gateway.Embed {
	e := &gateway.Embed{
		Title: "New Members Activity Report",
		Color: gateway.ColorGreen,
	}
	for i, m := range members {
		if i > 0 {
			e.Description += "\n"
		}
		e.Description += fmt.Sprintf("**%s**: %d messages", m.DisplayName, m.MessageCount)
	}
	return e
}
