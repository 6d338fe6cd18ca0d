// Package handler provides the Discord command modules.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"community-bot/internal/bot"
	"community-bot/internal/game/tomato"
	"community-bot/internal/gateway"
	"community-bot/internal/model"
	"community-bot/internal/pkg/lock"
	"community-bot/internal/repository"
	"community-bot/internal/service"
)

// DodgePrefix starts the custom id of every dodge button.
const DodgePrefix = "dodge:"

const (
	throwLockTimeout = 5 * time.Second
	errGeneric       = "❌ Something went wrong, please try again later."
	errBusy          = "⏳ Your last action is still being processed, please try again."
)

// leaderboards maps /tomatoleaderboard subcommands to their counters.
var leaderboards = []struct {
	name        string
	description string
	title       string
	stat        model.Stat
}{
	{"thrown", "Top 10 tomato throwers.", "Most Tomatoes Thrown", model.StatTomatoesThrown},
	{"landed", "Top 10 most accurate throwers.", "Most Tomatoes Landed", model.StatTomatoesLanded},
	{"hit", "Top 10 most pelted members.", "Most Times Hit", model.StatTimesHit},
	{"dodged", "Top 10 best dodgers.", "Most Tomatoes Dodged", model.StatTomatoesDodged},
}

// TomatoConfig holds the texts and timings the tomato module needs.
type TomatoConfig struct {
	GuildID          int64
	StarterQuantity  int
	LootboxCost      int64
	RewardMessageTTL time.Duration
}

// TomatoHandler handles the tomato game commands.
type TomatoHandler struct {
	economy   *service.EconomyService
	game      *tomato.Game
	milestone *service.MilestoneTracker
	gw        gateway.Gateway
	cfg       TomatoConfig
	after     func(d time.Duration, f func())
}

// NewTomatoHandler creates a new TomatoHandler.
func NewTomatoHandler(economy *service.EconomyService, game *tomato.Game, milestone *service.MilestoneTracker, gw gateway.Gateway, cfg TomatoConfig) *TomatoHandler {
	return &TomatoHandler{
		economy:   economy,
		game:      game,
		milestone: milestone,
		gw:        gw,
		cfg:       cfg,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (h *TomatoHandler) Name() string { return "tomato" }

func (h *TomatoHandler) Commands() []bot.Command {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(tomato.Catalog))
	for _, c := range tomato.Catalog {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(c.Item), Value: string(c.Item)})
	}
	subs := make([]*discordgo.ApplicationCommandOption, 0, len(leaderboards))
	for _, lb := range leaderboards {
		subs = append(subs, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        lb.name,
			Description: lb.description,
		})
	}

	return []bot.Command{
		{
			Definition: &discordgo.ApplicationCommand{Name: "claim", Description: "Claim your starter pack of tomatoes!"},
			Handler:    h.HandleClaim,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "daily", Description: "Claim your daily Tomato Coins!"},
			Handler:    h.HandleDaily,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "balance", Description: "Check your Tomato Coin balance."},
			Handler:    h.HandleBalance,
		},
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "lootbox",
				Description: fmt.Sprintf("Buy a lootbox for %d coins!", h.cfg.LootboxCost),
			},
			Handler: h.HandleLootbox,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "inventory", Description: "Check your tomato inventory."},
			Handler:    h.HandleInventory,
		},
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "tomato",
				Description: "Pelt another member with a tomato from your inventory!",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "target",
						Description: "Who to throw at",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "item",
						Description: "Which tomato to throw? (Defaults to Regular Tomato)",
						Choices:     choices,
					},
				},
			},
			Handler: h.HandleThrow,
		},
		{
			Definition: &discordgo.ApplicationCommand{
				Name:        "tomatoleaderboard",
				Description: "View the tomato game leaderboards.",
				Options:     subs,
			},
			Handler: h.HandleLeaderboard,
		},
	}
}

func (h *TomatoHandler) Components() []bot.Component {
	return []bot.Component{{Prefix: DodgePrefix, Handler: h.HandleDodge}}
}

// HandleClaim handles /claim
func (h *TomatoHandler) HandleClaim(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ok, err := h.economy.ClaimStarter(c.Context(), sender.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	if !ok {
		return c.ReplyEphemeral("You have already claimed your starter pack.")
	}
	return c.ReplyEphemeral(fmt.Sprintf("You received %d %ses! Use `/inventory` to see them.", h.cfg.StarterQuantity, tomato.ItemRegular))
}

// HandleDaily handles /daily
func (h *TomatoHandler) HandleDaily(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	res, err := h.economy.ClaimDaily(c.Context(), sender.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	if !res.Granted {
		return c.ReplyEphemeral("⏳ " + FormatCooldown(res.Remaining))
	}
	return c.ReplyEphemeral(fmt.Sprintf("🎉 You received %d Tomato Coins! Your new balance is %d coins.", res.Amount, res.Balance))
}

// FormatCooldown renders the time left until the next daily claim.
func FormatCooldown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("You can claim again in %dh %dm.", hours, minutes)
}

// HandleBalance handles /balance
func (h *TomatoHandler) HandleBalance(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	coins, err := h.economy.Balance(c.Context(), sender.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.ReplyEphemeral(fmt.Sprintf("💰 You have %d Tomato Coins.", coins))
}

// HandleLootbox handles /lootbox
func (h *TomatoHandler) HandleLootbox(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	res, err := h.economy.OpenLootbox(c.Context(), sender.UserID)
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		return c.ReplyEphemeral(fmt.Sprintf("You don't have enough coins! A lootbox costs %d coins.", h.cfg.LootboxCost))
	case errors.Is(err, lock.ErrLockTimeout):
		return c.ReplyEphemeral(errBusy)
	case err != nil:
		return h.fail(c, err)
	}
	return c.Reply(&gateway.Message{
		Content: fmt.Sprintf("You open the lootbox and find... a **%s**! It has been added to your inventory.", res.Item),
	})
}

// HandleInventory handles /inventory
func (h *TomatoHandler) HandleInventory(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := c.Defer(true); err != nil {
		return err
	}
	items, err := h.economy.Inventory(c.Context(), sender.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Reply(&gateway.Message{Embed: InventoryEmbed(sender.DisplayName(), items)})
}

// InventoryEmbed renders a member's inventory.
func InventoryEmbed(name string, items []model.InventoryEntry) *gateway.Embed {
	e := &gateway.Embed{
		Title: fmt.Sprintf("%s's Inventory", name),
		Color: gateway.ColorGreen,
	}
	if len(items) == 0 {
		e.Description = "Your inventory is empty. Use `/claim` to get some starter tomatoes!"
		return e
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- **%s**: %d", it.ItemName, it.Quantity))
	}
	e.Description = strings.Join(lines, "\n")
	return e
}

// HandleThrow handles /tomato: it announces the throw with a dodge button,
// waits out the dodge window and edits the announcement with the result.
func (h *TomatoHandler) HandleThrow(c bot.Context) error {
	ctx := c.Context()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	target, ok := c.OptionMember("target")
	if !ok {
		return c.ReplyEphemeral("Please choose a member to throw at.")
	}
	item, err := tomato.ParseItem(c.Option("item"))
	if err != nil {
		return c.ReplyEphemeral(fmt.Sprintf("There is no such thing as a %q.", c.Option("item")))
	}

	var challenge *tomato.Challenge
	err = h.economy.Locks().WithLockContext(ctx, sender.UserID, throwLockTimeout, func() error {
		var err error
		challenge, err = h.game.Throw(ctx, tomato.ThrowRequest{
			ThrowerID:   sender.UserID,
			TargetID:    target.UserID,
			TargetIsBot: target.Bot,
			Item:        item,
		})
		return err
	})
	switch {
	case errors.Is(err, tomato.ErrSelfTarget):
		return c.ReplyEphemeral("You can't throw a tomato at yourself!")
	case errors.Is(err, tomato.ErrBotTarget):
		return c.ReplyEphemeral("You wouldn't dare throw a tomato at me!")
	case errors.Is(err, tomato.ErrNoItem):
		return c.ReplyEphemeral(fmt.Sprintf("You don't have any '%s's to throw!", item))
	case errors.Is(err, tomato.ErrBackfire):
		return c.Reply(&gateway.Message{
			Content: fmt.Sprintf("🤢 Oh no! Your %s was so rotten it fell apart in your hand! You've made a mess of yourself.", item),
		})
	case errors.Is(err, lock.ErrLockTimeout):
		return c.ReplyEphemeral(errBusy)
	case err != nil:
		return h.fail(c, err)
	}

	thrower, victim := sender.DisplayName(), target.DisplayName()
	if err := c.Reply(&gateway.Message{
		Content: fmt.Sprintf("🍅 **%s** is throwing a **%s** at **%s**! Quick, dodge it!", thrower, item, victim),
		Buttons: []gateway.Button{{
			Label:    "Dodge!",
			Emoji:    "🏃",
			CustomID: DodgePrefix + challenge.ID,
			Style:    gateway.ButtonPrimary,
		}},
	}); err != nil {
		log.Error().Err(err).Str("challenge_id", challenge.ID).Msg("Failed to announce throw")
	}

	out, err := h.game.Await(ctx, challenge)
	if err != nil {
		log.Error().Err(err).Str("challenge_id", challenge.ID).Msg("Failed to record throw outcome")
	}
	if out == nil {
		return err
	}
	return c.EditReply(&gateway.Message{Content: OutcomeText(out, thrower, victim)})
}

// OutcomeText renders a resolved throw.
func OutcomeText(out *tomato.Outcome, thrower, target string) string {
	if !out.Hit() {
		return fmt.Sprintf("💨 Whoosh! **%s** dodged the tomato from **%s**!", target, thrower)
	}
	msg := fmt.Sprintf("Splat! 🍅 **%s** wasn't fast enough and got hit by **%s**'s %s!", target, thrower, out.Challenge.Item)
	switch out.Challenge.Item {
	case tomato.ItemRotten:
		msg += "\nUgh, the smell! That's gonna leave a stain."
	case tomato.ItemGolden:
		if out.Bonus > 0 {
			msg += fmt.Sprintf("\n✨ Shiny! **%s** earned %d Tomato Coins for the successful hit!", thrower, out.Bonus)
		}
	}
	return msg
}

// HandleDodge handles the Dodge! button.
func (h *TomatoHandler) HandleDodge(c bot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	id := strings.TrimPrefix(c.CustomID(), DodgePrefix)
	err := h.game.Dodge(id, sender.UserID)
	switch {
	case errors.Is(err, tomato.ErrNotTarget):
		return c.ReplyEphemeral("This isn't for you to dodge!")
	case errors.Is(err, tomato.ErrResolved), errors.Is(err, tomato.ErrChallengeNotFound):
		return c.ReplyEphemeral("Too late, that tomato has already landed!")
	case err != nil:
		return h.fail(c, err)
	}
	log.Debug().Str("challenge_id", id).Int64("user_id", sender.UserID).Msg("Tomato dodged")
	return c.Acknowledge()
}

// HandleLeaderboard handles /tomatoleaderboard <stat>
func (h *TomatoHandler) HandleLeaderboard(c bot.Context) error {
	sub := c.Subcommand()
	for _, lb := range leaderboards {
		if lb.name != sub {
			continue
		}
		if err := c.Defer(false); err != nil {
			return err
		}
		top, err := h.economy.Leaderboard(c.Context(), lb.stat)
		if err != nil {
			return h.fail(c, err)
		}
		return c.Reply(&gateway.Message{Embed: LeaderboardEmbed(lb.title, lb.stat, top, h.nameOf(c.Context(), c.GuildID()))})
	}
	return c.ReplyEphemeral("Unknown leaderboard.")
}

func (h *TomatoHandler) nameOf(ctx context.Context, guildID int64) func(int64) string {
	return func(userID int64) string {
		m, err := h.gw.Member(ctx, guildID, userID)
		if err != nil || m == nil {
			return fmt.Sprintf("User ID: %d", userID)
		}
		return m.DisplayName()
	}
}

// LeaderboardEmbed renders a leaderboard. name resolves a user id to a
// display name.
func LeaderboardEmbed(title string, stat model.Stat, top []*model.UserStats, name func(int64) string) *gateway.Embed {
	e := &gateway.Embed{
		Title: fmt.Sprintf("🍅 %s 🍅", title),
		Color: gateway.ColorRed,
	}
	if len(top) == 0 {
		e.Description = "The leaderboard is empty! Start throwing tomatoes!"
		return e
	}
	lines := make([]string, 0, len(top))
	for i, s := range top {
		lines = append(lines, fmt.Sprintf("**%d.** %s - %d", i+1, name(s.UserID), s.Value(stat)))
	}
	e.Description = strings.Join(lines, "\n")
	return e
}

// OnMessage counts activity toward coin milestones and announces rewards.
// The announcement deletes itself after a short while.
func (h *TomatoHandler) OnMessage(ctx context.Context, m *bot.MessageEvent) error {
	if m.Author == nil || !h.milestone.Qualifies(m.Content, m.Author.Bot, m.GuildID != 0) {
		return nil
	}
	reward, err := h.milestone.Record(ctx, m.Author.UserID)
	if err != nil || reward == nil {
		return err
	}

	msgID, err := h.gw.SendMessage(ctx, m.ChannelID, &gateway.Message{
		Content: fmt.Sprintf("🎉 **%s**, your activity has earned you %d Tomato Coins!", m.Author.DisplayName(), reward.Amount),
	})
	if err != nil {
		if gateway.IsSoft(err) {
			log.Warn().Err(err).Int64("channel_id", m.ChannelID).Msg("Could not send activity reward message")
			return nil
		}
		return err
	}
	if h.cfg.RewardMessageTTL > 0 {
		channelID := m.ChannelID
		h.after(h.cfg.RewardMessageTTL, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.gw.DeleteMessage(ctx, channelID, msgID); err != nil {
				log.Debug().Err(err).Int64("message_id", msgID).Msg("Failed to delete reward message")
			}
		})
	}
	return nil
}

func (h *TomatoHandler) fail(c bot.Context, err error) error {
	_ = c.ReplyEphemeral(errGeneric)
	return err
}
