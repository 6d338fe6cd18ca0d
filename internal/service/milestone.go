// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"community-bot/internal/game"
	"community-bot/internal/model"
)

// Counter is the slice of the stat store that counts things.
type Counter interface {
	Increment(ctx context.Context, userID int64, stat model.Stat, delta int64) (*model.UserStats, error)
}

// MilestoneConfig holds the reward tuning.
type MilestoneConfig struct {
	IntervalMin int64
	IntervalMax int64
	RewardMin   int64
	RewardMax   int64
	MinWords    int
}

// MilestoneReward is a coin grant earned by crossing a threshold.
type MilestoneReward struct {
	UserID        int64
	Amount        int64
	MessageCount  int64
	NextThreshold int64
}

// MilestoneTracker grants coins at random message-count milestones.
//
// Thresholds live only in memory. After a restart every user gets a fresh
// threshold counted from their current total, which can delay a reward but
// never grants one twice.
type MilestoneTracker struct {
	stats Counter
	rng   game.Rand
	cfg   MilestoneConfig

	mu         sync.Mutex
	thresholds map[int64]int64
}

// NewMilestoneTracker creates a new MilestoneTracker instance.
func NewMilestoneTracker(stats Counter, rng game.Rand, cfg MilestoneConfig) *MilestoneTracker {
	return &MilestoneTracker{
		stats:      stats,
		rng:        rng,
		cfg:        cfg,
		thresholds: make(map[int64]int64),
	}
}

// Qualifies reports whether a message counts toward milestones: a human
// author, posted in a guild, with at least the minimum number of words.
func (t *MilestoneTracker) Qualifies(content string, authorIsBot, inGuild bool) bool {
	if authorIsBot || !inGuild {
		return false
	}
	return len(strings.Fields(content)) >= t.cfg.MinWords
}

// Record counts one qualifying message and returns a reward if the user's
// threshold was reached, or nil otherwise.
func (t *MilestoneTracker) Record(ctx context.Context, userID int64) (*MilestoneReward, error) {
	stats, err := t.stats.Increment(ctx, userID, model.StatMessageCount, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to count message: %w", err)
	}
	count := stats.MessageCount

	t.mu.Lock()
	threshold, ok := t.thresholds[userID]
	if !ok {
		threshold = count + t.interval()
		t.thresholds[userID] = threshold
	}
	if count < threshold {
		t.mu.Unlock()
		return nil, nil
	}
	next := count + t.interval()
	t.thresholds[userID] = next
	t.mu.Unlock()

	amount := game.Between(t.rng, t.cfg.RewardMin, t.cfg.RewardMax)
	if _, err := t.stats.Increment(ctx, userID, model.StatCoins, amount); err != nil {
		return nil, fmt.Errorf("failed to grant milestone reward: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("message_count", count).
		Int64("next_threshold", next).
		Msg("Milestone reward granted")

	return &MilestoneReward{
		UserID:        userID,
		Amount:        amount,
		MessageCount:  count,
		NextThreshold: next,
	}, nil
}

// Threshold returns the user's current threshold, if one is set.
func (t *MilestoneTracker) Threshold(userID int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.thresholds[userID]
	return v, ok
}

func (t *MilestoneTracker) interval() int64 {
	n := game.Between(t.rng, t.cfg.IntervalMin, t.cfg.IntervalMax)
	if n < 1 {
		n = 1
	}
	return n
}
