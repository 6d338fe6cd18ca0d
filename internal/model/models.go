// Package model defines the data models for the community bot.
package model

import "time"

// UserStats holds a member's game counters.
// Records are global (not per guild), created lazily and never deleted.
type UserStats struct {
	UserID         int64      `db:"user_id"`
	Seq            int64      `db:"seq"`
	MessageCount   int64      `db:"message_count"`
	Coins          int64      `db:"coins"`
	TomatoesThrown int64      `db:"tomatoes_thrown"`
	TomatoesLanded int64      `db:"tomatoes_landed"`
	TomatoesDodged int64      `db:"tomatoes_dodged"`
	TimesHit       int64      `db:"times_hit"`
	ClaimedStarter bool       `db:"claimed_starter"`
	LastDailyClaim *time.Time `db:"last_daily_claim"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Value returns the counter selected by stat.
func (s *UserStats) Value(stat Stat) int64 {
	switch stat {
	case StatMessageCount:
		return s.MessageCount
	case StatCoins:
		return s.Coins
	case StatTomatoesThrown:
		return s.TomatoesThrown
	case StatTomatoesLanded:
		return s.TomatoesLanded
	case StatTomatoesDodged:
		return s.TomatoesDodged
	case StatTimesHit:
		return s.TimesHit
	}
	return 0
}

// InventoryEntry is a (user, item) pair with a strictly positive quantity.
type InventoryEntry struct {
	UserID    int64     `db:"user_id"`
	ItemName  string    `db:"item_name"`
	Quantity  int       `db:"quantity"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Activity is the onboarding message counter used for graduation suggestions.
// It is deliberately separate from UserStats.MessageCount.
type Activity struct {
	UserID       int64     `db:"user_id"`
	MessageCount int64     `db:"message_count"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// GraduationEntry is a queued request to remove the probationary role.
type GraduationEntry struct {
	UserID  int64     `db:"user_id"`
	AddedAt time.Time `db:"added_at"`
}

// WarningType distinguishes the two flag tiers.
type WarningType string

const (
	WarningYellow WarningType = "yellow"
	WarningRed    WarningType = "red"
)

// Warning is a moderation flag. UserID is nil for channel warnings.
type Warning struct {
	ID          int64       `db:"id"`
	UserID      *int64      `db:"user_id"`
	GuildID     int64       `db:"guild_id"`
	ModeratorID int64       `db:"moderator_id"`
	ChannelID   *int64      `db:"channel_id"`
	Reason      string      `db:"reason"`
	Type        WarningType `db:"warning_type"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
}
