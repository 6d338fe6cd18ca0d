// Package gateway is the bot's view of the chat platform. Services and jobs
// talk to Discord only through the Gateway interface.
package gateway

import (
	"context"
	"errors"
	"time"
)

// Errors reported by the chat platform.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
)

// Member is a guild member.
type Member struct {
	UserID     int64
	Username   string
	GlobalName string
	Nick       string
	AvatarURL  string
	Bot        bool
	RoleIDs    []int64
	JoinedAt   time.Time
}

// DisplayName returns the name shown in the guild.
func (m *Member) DisplayName() string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.GlobalName != "":
		return m.GlobalName
	}
	return m.Username
}

// HasRole reports whether the member holds roleID.
func (m *Member) HasRole(roleID int64) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Channel is a guild text channel.
type Channel struct {
	ID              int64
	Name            string
	Category        string
	Topic           string
	EveryoneCanSend bool
}

// ButtonStyle mirrors the platform's button colours.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable message component.
type Button struct {
	Label    string
	CustomID string
	Emoji    string
	Style    ButtonStyle
}

// EmbedField is one name/value pair in an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// Message is an outbound message.
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Embed colours.
const (
	ColorBlue    = 0x3498db
	ColorGreen   = 0x2ecc71
	ColorGold    = 0xf1c40f
	ColorYellow  = 0xfee75c
	ColorOrange  = 0xe67e22
	ColorRed     = 0xe74c3c
	ColorDarkRed = 0x992d22
)

// Gateway is the set of platform operations the bot uses.
type Gateway interface {
	GuildName(ctx context.Context, guildID int64) (string, error)
	Member(ctx context.Context, guildID, userID int64) (*Member, error)
	Members(ctx context.Context, guildID int64) ([]*Member, error)
	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
	SetNickname(ctx context.Context, guildID, userID int64, nick string) error

	SendDM(ctx context.Context, userID int64, msg *Message) error
	SendMessage(ctx context.Context, channelID int64, msg *Message) (int64, error)
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	TextChannels(ctx context.Context, guildID int64) ([]*Channel, error)
	HasPins(ctx context.Context, channelID int64) (bool, error)
	// RecentMessageTimes returns the creation times of up to limit of the
	// newest messages in the channel, newest first.
	RecentMessageTimes(ctx context.Context, channelID int64, limit int) ([]time.Time, error)
}

// IsSoft reports whether err is a platform refusal that should be logged
// and skipped rather than treated as a failure of the whole operation.
func IsSoft(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound)
}
