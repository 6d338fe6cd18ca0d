// Package bot provides the Discord session setup and event routing.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-bot/internal/config"
	"community-bot/internal/gateway"
)

// interactionTimeout bounds a single interaction handler, dodge wait included.
const interactionTimeout = time.Minute

// eventTimeout bounds message and member event handling.
const eventTimeout = 30 * time.Second

// Bot routes gateway events to the registered modules.
type Bot struct {
	session  *discordgo.Session
	cfg      *config.Config
	registry *Registry
	handle   func(HandlerFunc) HandlerFunc

	ready   atomic.Bool
	started time.Time
	ctx     context.Context
}

// NewSession creates a discordgo session with the intents the modules need.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	s.State.TrackMembers = true
	return s, nil
}

// New creates a Bot over an unopened session.
func New(s *discordgo.Session, cfg *config.Config, registry *Registry) *Bot {
	b := &Bot{
		session:  s,
		cfg:      cfg,
		registry: registry,
		started:  time.Now(),
		ctx:      context.Background(),
	}
	b.handle = func(h HandlerFunc) HandlerFunc {
		return Chain(h, RecoveryMiddleware(), LoggingMiddleware())
	}
	return b
}

// Ready reports whether the gateway connection is up.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Uptime returns how long the bot has been running.
func (b *Bot) Uptime() time.Duration {
	return time.Since(b.started)
}

// Latency returns the last heartbeat round trip.
func (b *Bot) Latency() time.Duration {
	return b.session.HeartbeatLatency()
}

// Run connects to the gateway and routes events until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onResumed)
	b.session.AddHandler(b.onDisconnect)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMessage)
	b.session.AddHandler(b.onMemberAdd)
	b.session.AddHandler(b.onMemberUpdate)

	log.Info().Strs("modules", b.registry.Names()).Msg("Starting bot...")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("Stopping bot...")
	b.ready.Store(false)
	if err := b.session.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing gateway connection")
	}
	return nil
}

func (b *Bot) inGuild(guildID string) bool {
	return gateway.ID(guildID) == b.cfg.Bot.GuildID
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Gateway ready")

	defs := b.registry.Definitions()
	guild := gateway.Snowflake(b.cfg.Bot.GuildID)
	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, guild, defs, discordgo.WithContext(b.ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to register slash commands")
	} else {
		log.Info().Int("count", len(defs)).Msg("Slash commands registered")
	}

	for _, m := range b.registry.Modules() {
		if l, ok := m.(ReadyListener); ok {
			if err := l.OnReady(b.ctx); err != nil {
				log.Error().Err(err).Str("module", m.Name()).Msg("Module failed to start")
			}
		}
	}
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	b.ready.Store(true)
	log.Info().Msg("Gateway session resumed")
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.ready.Store(false)
	log.Warn().Msg("Gateway disconnected")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()
	c := NewContext(ctx, s, i)
	_ = b.Dispatch(c, i.Type)
}

// Dispatch routes an interaction to its handler.
func (b *Bot) Dispatch(c Context, typ discordgo.InteractionType) error {
	var h HandlerFunc
	switch typ {
	case discordgo.InteractionApplicationCommand:
		cmd, ok := b.registry.Command(c.Command())
		if !ok {
			log.Warn().Str("command", c.Command()).Msg("Unknown command")
			return nil
		}
		h = cmd.Handler
	case discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
		handler, ok := b.registry.Component(c.CustomID())
		if !ok {
			log.Debug().Str("custom_id", c.CustomID()).Msg("No handler for component")
			return nil
		}
		h = handler
	default:
		return nil
	}
	return b.handle(h)(c)
}

func (b *Bot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || !b.inGuild(m.GuildID) {
		return
	}
	member := m.Member
	if member == nil {
		member = &discordgo.Member{}
	} else {
		cp := *member
		member = &cp
	}
	member.User = m.Author

	ev := &MessageEvent{
		MessageID: gateway.ID(m.ID),
		ChannelID: gateway.ID(m.ChannelID),
		GuildID:   gateway.ID(m.GuildID),
		Author:    gateway.ConvertMember(member),
		Content:   m.Content,
	}
	b.DispatchMessage(ev)
}

// DispatchMessage hands a message to every listening module.
func (b *Bot) DispatchMessage(ev *MessageEvent) {
	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	for _, mod := range b.registry.Modules() {
		l, ok := mod.(MessageListener)
		if !ok {
			continue
		}
		if err := l.OnMessage(ctx, ev); err != nil {
			log.Error().Err(err).Str("module", mod.Name()).Int64("user_id", ev.Author.UserID).Msg("Message handler failed")
		}
	}
}

func (b *Bot) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || !b.inGuild(m.GuildID) {
		return
	}
	member := gateway.ConvertMember(m.Member)
	if member == nil {
		return
	}
	b.eachMemberListener(func(ctx context.Context, l MemberListener) error {
		return l.OnMemberJoin(ctx, member)
	})
}

func (b *Bot) onMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || !b.inGuild(m.GuildID) {
		return
	}
	after := gateway.ConvertMember(m.Member)
	if after == nil {
		return
	}
	var before *gateway.Member
	if m.BeforeUpdate != nil {
		if m.BeforeUpdate.User == nil {
			m.BeforeUpdate.User = m.Member.User
		}
		before = gateway.ConvertMember(m.BeforeUpdate)
	}
	b.eachMemberListener(func(ctx context.Context, l MemberListener) error {
		return l.OnMemberUpdate(ctx, before, after)
	})
}

func (b *Bot) eachMemberListener(fn func(ctx context.Context, l MemberListener) error) {
	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	for _, mod := range b.registry.Modules() {
		l, ok := mod.(MemberListener)
		if !ok {
			continue
		}
		if err := fn(ctx, l); err != nil {
			log.Error().Err(err).Str("module", mod.Name()).Msg("Member handler failed")
		}
	}
}
