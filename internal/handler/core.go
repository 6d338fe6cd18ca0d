package handler

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-bot/internal/bot"
	"community-bot/internal/config"
	"community-bot/internal/gateway"
)

// Status is what /ping and /about report on.
type Status interface {
	Latency() time.Duration
	Uptime() time.Duration
}

// CoreHandler handles /ping, /about, /serverinfo and /shutdown.
type CoreHandler struct {
	status   Status
	gw       gateway.Gateway
	cfg      *config.Config
	modules  func() []string
	shutdown func()
}

// NewCoreHandler creates a new CoreHandler. modules lists the loaded
// modules; shutdown stops the process.
func NewCoreHandler(status Status, gw gateway.Gateway, cfg *config.Config, modules func() []string, shutdown func()) *CoreHandler {
	return &CoreHandler{status: status, gw: gw, cfg: cfg, modules: modules, shutdown: shutdown}
}

func (h *CoreHandler) Name() string { return "core" }

func (h *CoreHandler) Commands() []bot.Command {
	return []bot.Command{
		{
			Definition: &discordgo.ApplicationCommand{Name: "ping", Description: "Check the bot's latency."},
			Handler:    h.HandlePing,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "about", Description: "Show information about the bot."},
			Handler:    h.HandleAbout,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "serverinfo", Description: "Display information about the server."},
			Handler:    h.HandleServerInfo,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "shutdown", Description: "Shut down the bot (Bot owner only)."},
			Handler:    bot.Chain(h.HandleShutdown, bot.OwnerMiddleware(h.cfg)),
		},
	}
}

func (h *CoreHandler) Components() []bot.Component { return nil }

// HandlePing handles /ping
func (h *CoreHandler) HandlePing(c bot.Context) error {
	return c.Reply(&gateway.Message{
		Content: fmt.Sprintf("🏓 Pong! Latency: %dms", h.status.Latency().Milliseconds()),
	})
}

// HandleAbout handles /about
func (h *CoreHandler) HandleAbout(c bot.Context) error {
	return c.Reply(&gateway.Message{Embed: AboutEmbed(h.status.Uptime(), runtime.Version(), h.modules())})
}

// AboutEmbed renders the /about card.
func AboutEmbed(uptime time.Duration, goVersion string, modules []string) *gateway.Embed {
	e := &gateway.Embed{
		Title:       "Community Bot",
		Description: "A community management bot for onboarding, moderation and fun.",
		Color:       gateway.ColorBlue,
		Fields: []gateway.EmbedField{
			{Name: "Uptime", Value: FormatUptime(uptime), Inline: true},
			{Name: "Go Version", Value: goVersion, Inline: true},
			{Name: "discordgo Version", Value: discordgo.VERSION, Inline: true},
		},
		Footer: "Type / to see available commands",
	}
	if len(modules) > 0 {
		quoted := make([]string, len(modules))
		for i, m := range modules {
			quoted[i] = "`" + m + "`"
		}
		e.Fields = append(e.Fields, gateway.EmbedField{Name: "Loaded Modules", Value: strings.Join(quoted, ", ")})
	}
	return e
}

// FormatUptime renders a duration as days, hours and minutes.
func FormatUptime(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// HandleServerInfo handles /serverinfo
func (h *CoreHandler) HandleServerInfo(c bot.Context) error {
	ctx := c.Context()
	guildID := c.GuildID()
	if guildID == 0 {
		return c.ReplyEphemeral("This command can only be used in a server.")
	}
	if err := c.Defer(false); err != nil {
		return err
	}

	name, err := h.gw.GuildName(ctx, guildID)
	if err != nil {
		_ = c.ReplyEphemeral(errGeneric)
		return err
	}
	members, err := h.gw.Members(ctx, guildID)
	if err != nil {
		_ = c.ReplyEphemeral(errGeneric)
		return err
	}
	channels, err := h.gw.TextChannels(ctx, guildID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list channels for server info")
	}

	humans, bots := 0, 0
	for _, m := range members {
		if m.Bot {
			bots++
		} else {
			humans++
		}
	}
	created := discordCreatedAt(guildID)
	return c.Reply(&gateway.Message{Embed: &gateway.Embed{
		Title: name,
		Description: fmt.Sprintf("Created on %s (%d days ago)",
			created.Format("January 02, 2006"), int(time.Since(created).Hours()/24)),
		Color: gateway.ColorBlue,
		Fields: []gateway.EmbedField{
			{Name: "Members", Value: fmt.Sprintf("👥 %d (%d bots)", humans+bots, bots), Inline: true},
			{Name: "Channels", Value: fmt.Sprintf("📝 %d text", len(channels)), Inline: true},
		},
	}})
}

// discordEpoch is the first millisecond of 2015, the snowflake epoch.
const discordEpoch = 1420070400000

func discordCreatedAt(id int64) time.Time {
	return time.UnixMilli((id >> 22) + discordEpoch).UTC()
}

// HandleShutdown handles /shutdown
func (h *CoreHandler) HandleShutdown(c bot.Context) error {
	log.Warn().Int64("user_id", c.Sender().UserID).Msg("Shutdown requested")
	err := c.Reply(&gateway.Message{Content: "👋 Shutting down..."})
	h.shutdown()
	return err
}
