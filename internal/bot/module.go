package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"community-bot/internal/gateway"
)

// HandlerFunc handles one interaction.
type HandlerFunc func(c Context) error

// Middleware wraps a handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Command is a slash command and its handler.
type Command struct {
	Definition *discordgo.ApplicationCommand
	Handler    HandlerFunc
}

// Component routes buttons and modal submits whose custom id starts with Prefix.
type Component struct {
	Prefix  string
	Handler HandlerFunc
}

// Module is a feature area of the bot. Adding a feature only requires
// implementing Module and registering it.
type Module interface {
	Name() string
	Commands() []Command
	Components() []Component
}

// MessageEvent is a message posted where the bot can see it.
type MessageEvent struct {
	MessageID int64
	ChannelID int64
	GuildID   int64
	Author    *gateway.Member
	Content   string
}

// MessageListener is implemented by modules that react to messages.
type MessageListener interface {
	OnMessage(ctx context.Context, m *MessageEvent) error
}

// MemberListener is implemented by modules that react to members joining
// or changing. before is nil when the previous state was not cached.
type MemberListener interface {
	OnMemberJoin(ctx context.Context, m *gateway.Member) error
	OnMemberUpdate(ctx context.Context, before, after *gateway.Member) error
}

// ReadyListener is implemented by modules that start work once connected.
type ReadyListener interface {
	OnReady(ctx context.Context) error
}
