package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"community-bot/internal/gateway"
)

const (
	healthWindow       = 14 * 24 * time.Hour
	healthHistoryLimit = 100
	underutilizedBelow = 10
)

// HealthHeader is the exported column order.
var HealthHeader = []string{
	"Channel ID",
	"Channel Name",
	"Category",
	"Has Topic",
	"Has Pinned Messages",
	"Naming Convention OK",
	"Permissions OK",
	"Last Message Timestamp",
	"Message Count (14d)",
	"Is Under-utilized",
	"Moderation Actions",
	"Health Score",
	"Last Updated",
}

// WarningCounter counts recent moderation flags per channel.
type WarningCounter interface {
	ChannelCountsSince(ctx context.Context, since time.Time) (map[int64]int, error)
}

// Sheet stores one row per key, replacing the previous row for that key.
type Sheet interface {
	Upsert(ctx context.Context, header []string, key string, row []interface{}) error
}

// ChannelHealth is one channel's appraisal.
type ChannelHealth struct {
	ChannelID       int64
	Name            string
	Category        string
	HasTopic        bool
	HasPins         bool
	NamingOK        bool
	PermissionsOK   bool
	LastMessage     *time.Time
	MessageCount    int
	Underutilized   bool
	ModerationCount int
	Score           int
	UpdatedAt       time.Time
}

// Row renders the appraisal in HealthHeader order.
func (h *ChannelHealth) Row() []interface{} {
	category := h.Category
	if category == "" {
		category = "N/A"
	}
	last := "N/A"
	if h.LastMessage != nil {
		last = h.LastMessage.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		strconv.FormatInt(h.ChannelID, 10),
		h.Name,
		category,
		yesNo(h.HasTopic),
		yesNo(h.HasPins),
		yesNo(h.NamingOK),
		yesNo(h.PermissionsOK),
		last,
		h.MessageCount,
		yesNo(h.Underutilized),
		h.ModerationCount,
		h.Score,
		h.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// HealthReport summarizes one appraisal run.
type HealthReport struct {
	Channels int
	Exported int
	Failed   int
}

// HealthService appraises text channels and exports the results.
type HealthService struct {
	gw       gateway.Gateway
	warnings WarningCounter
	sheet    Sheet
	guildID  int64
	now      func() time.Time
}

// NewHealthService creates a new HealthService instance.
func NewHealthService(gw gateway.Gateway, warnings WarningCounter, sheet Sheet, guildID int64) *HealthService {
	return &HealthService{
		gw:       gw,
		warnings: warnings,
		sheet:    sheet,
		guildID:  guildID,
		now:      time.Now,
	}
}

// Score applies the deductions to a perfect 100, floored at 0.
func Score(h *ChannelHealth) int {
	score := 100
	if !h.HasTopic {
		score -= 10
	}
	if !h.HasPins {
		score -= 5
	}
	if !h.NamingOK {
		score -= 5
	}
	if !h.PermissionsOK {
		score -= 20
	}
	if h.Underutilized {
		score -= 15
	}
	score -= h.ModerationCount * 10
	return max(score, 0)
}

// Appraise computes one channel's metrics.
func (s *HealthService) Appraise(ctx context.Context, c *gateway.Channel, moderation int) (*ChannelHealth, error) {
	now := s.now()
	h := &ChannelHealth{
		ChannelID:       c.ID,
		Name:            c.Name,
		Category:        c.Category,
		HasTopic:        c.Topic != "",
		NamingOK:        strings.ContainsAny(c.Name, "-_"),
		PermissionsOK:   true,
		ModerationCount: moderation,
		UpdatedAt:       now,
	}
	if strings.Contains(strings.ToLower(c.Name), "announce") {
		h.PermissionsOK = !c.EveryoneCanSend
	}

	pinned, err := s.gw.HasPins(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pins: %w", err)
	}
	h.HasPins = pinned

	times, err := s.gw.RecentMessageTimes(ctx, c.ID, healthHistoryLimit)
	switch {
	case err == nil:
		cutoff := now.Add(-healthWindow)
		for _, t := range times {
			if t.After(cutoff) {
				h.MessageCount++
			}
		}
		if len(times) > 0 {
			last := times[0]
			h.LastMessage = &last
		}
	case gateway.IsSoft(err):
		log.Debug().Err(err).Int64("channel_id", c.ID).Msg("Channel history unavailable")
	default:
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	h.Underutilized = h.MessageCount < underutilizedBelow
	h.Score = Score(h)
	return h, nil
}

// Run appraises every text channel and exports each row. A failing channel
// is logged and skipped.
func (s *HealthService) Run(ctx context.Context) (*HealthReport, error) {
	log.Info().Msg("Starting channel score update")

	channels, err := s.gw.TextChannels(ctx, s.guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	counts, err := s.warnings.ChannelCountsSince(ctx, s.now().Add(-healthWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count moderation actions: %w", err)
	}

	report := &HealthReport{Channels: len(channels)}
	for _, c := range channels {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		h, err := s.Appraise(ctx, c, counts[c.ID])
		if err != nil {
			report.Failed++
			if gateway.IsSoft(err) {
				log.Warn().Err(err).Str("channel", c.Name).Msg("No permission to view channel")
			} else {
				log.Error().Err(err).Str("channel", c.Name).Msg("Error processing channel")
			}
			continue
		}
		if err := s.sheet.Upsert(ctx, HealthHeader, strconv.FormatInt(c.ID, 10), h.Row()); err != nil {
			report.Failed++
			log.Error().Err(err).Str("channel", c.Name).Msg("Failed to export channel score")
			continue
		}
		report.Exported++
	}

	log.Info().
		Int("channels", report.Channels).
		Int("exported", report.Exported).
		Int("failed", report.Failed).
		Msg("Finished channel score update")
	return report, nil
}
