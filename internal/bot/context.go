package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"community-bot/internal/gateway"
)

// Context is one interaction as handlers see it.
type Context interface {
	Context() context.Context
	GuildID() int64
	ChannelID() int64
	ChannelName() string
	Sender() *gateway.Member
	Command() string
	Subcommand() string
	CustomID() string

	// Option returns a string option of the invoked command.
	Option(name string) string
	// OptionMember resolves a user option.
	OptionMember(name string) (*gateway.Member, bool)
	// Field returns a submitted modal text input.
	Field(customID string) string

	Reply(msg *gateway.Message) error
	ReplyEphemeral(content string) error
	Defer(ephemeral bool) error
	EditReply(msg *gateway.Message) error
	Update(msg *gateway.Message) error
	Acknowledge() error
	Modal(customID, title, inputID, label, placeholder string) error
}

// interactionContext implements Context on a discordgo interaction.
type interactionContext struct {
	ctx      context.Context
	s        *discordgo.Session
	i        *discordgo.InteractionCreate
	deferred bool
}

// NewContext wraps an interaction.
func NewContext(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) Context {
	return &interactionContext{ctx: ctx, s: s, i: i}
}

func (c *interactionContext) Context() context.Context {
	return c.ctx
}

func (c *interactionContext) GuildID() int64 {
	return gateway.ID(c.i.GuildID)
}

func (c *interactionContext) ChannelID() int64 {
	return gateway.ID(c.i.ChannelID)
}

func (c *interactionContext) ChannelName() string {
	if c.s.State != nil {
		if ch, err := c.s.State.Channel(c.i.ChannelID); err == nil {
			return ch.Name
		}
	}
	if ch, err := c.s.Channel(c.i.ChannelID, discordgo.WithContext(c.ctx)); err == nil {
		return ch.Name
	}
	return c.i.ChannelID
}

func (c *interactionContext) Sender() *gateway.Member {
	if c.i.Member != nil {
		return gateway.ConvertMember(c.i.Member)
	}
	if c.i.User != nil {
		return gateway.ConvertMember(&discordgo.Member{User: c.i.User})
	}
	return nil
}

func (c *interactionContext) Command() string {
	if c.i.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	return c.i.ApplicationCommandData().Name
}

func (c *interactionContext) Subcommand() string {
	if c.i.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	for _, o := range c.i.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name
		}
	}
	return ""
}

func (c *interactionContext) CustomID() string {
	switch c.i.Type {
	case discordgo.InteractionMessageComponent:
		return c.i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return c.i.ModalSubmitData().CustomID
	}
	return ""
}

func (c *interactionContext) options() []*discordgo.ApplicationCommandInteractionDataOption {
	if c.i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	opts := c.i.ApplicationCommandData().Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return opts[0].Options
	}
	return opts
}

func (c *interactionContext) Option(name string) string {
	for _, o := range c.options() {
		if o.Name == name {
			return fmt.Sprint(o.Value)
		}
	}
	return ""
}

func (c *interactionContext) OptionMember(name string) (*gateway.Member, bool) {
	id := c.Option(name)
	if id == "" {
		return nil, false
	}
	resolved := c.i.ApplicationCommandData().Resolved
	if resolved == nil {
		return nil, false
	}
	user, ok := resolved.Users[id]
	if !ok {
		return nil, false
	}
	m := &discordgo.Member{User: user}
	if rm, ok := resolved.Members[id]; ok && rm != nil {
		cp := *rm
		cp.User = user
		m = &cp
	}
	return gateway.ConvertMember(m), true
}

func (c *interactionContext) Field(customID string) string {
	if c.i.Type != discordgo.InteractionModalSubmit {
		return ""
	}
	for _, row := range c.i.ModalSubmitData().Components {
		var children []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			children = r.Components
		case discordgo.ActionsRow:
			children = r.Components
		}
		for _, child := range children {
			switch in := child.(type) {
			case *discordgo.TextInput:
				if in.CustomID == customID {
					return in.Value
				}
			case discordgo.TextInput:
				if in.CustomID == customID {
					return in.Value
				}
			}
		}
	}
	return ""
}

func responseData(msg *gateway.Message, flags discordgo.MessageFlags) *discordgo.InteractionResponseData {
	send := gateway.MessageSend(msg)
	return &discordgo.InteractionResponseData{
		Content:    send.Content,
		Embeds:     send.Embeds,
		Components: send.Components,
		Flags:      flags,
	}
}

func (c *interactionContext) respond(typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	return c.s.InteractionRespond(c.i.Interaction, &discordgo.InteractionResponse{Type: typ, Data: data}, discordgo.WithContext(c.ctx))
}

func (c *interactionContext) Reply(msg *gateway.Message) error {
	if c.deferred {
		return c.EditReply(msg)
	}
	return c.respond(discordgo.InteractionResponseChannelMessageWithSource, responseData(msg, 0))
}

func (c *interactionContext) ReplyEphemeral(content string) error {
	if c.deferred {
		return c.EditReply(&gateway.Message{Content: content})
	}
	return c.respond(discordgo.InteractionResponseChannelMessageWithSource,
		responseData(&gateway.Message{Content: content}, discordgo.MessageFlagsEphemeral))
}

func (c *interactionContext) Defer(ephemeral bool) error {
	var data *discordgo.InteractionResponseData
	if ephemeral {
		data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := c.respond(discordgo.InteractionResponseDeferredChannelMessageWithSource, data); err != nil {
		return err
	}
	c.deferred = true
	return nil
}

func (c *interactionContext) EditReply(msg *gateway.Message) error {
	send := gateway.MessageSend(msg)
	components := send.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	embeds := send.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	_, err := c.s.InteractionResponseEdit(c.i.Interaction, &discordgo.WebhookEdit{
		Content:    &send.Content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(c.ctx))
	return err
}

func (c *interactionContext) Update(msg *gateway.Message) error {
	data := responseData(msg, 0)
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	return c.respond(discordgo.InteractionResponseUpdateMessage, data)
}

func (c *interactionContext) Acknowledge() error {
	return c.respond(discordgo.InteractionResponseDeferredMessageUpdate, nil)
}

func (c *interactionContext) Modal(customID, title, inputID, label, placeholder string) error {
	return c.respond(discordgo.InteractionResponseModal, &discordgo.InteractionResponseData{
		CustomID: customID,
		Title:    title,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputID,
					Label:       label,
					Placeholder: placeholder,
					Style:       discordgo.TextInputShort,
					Required:    true,
				},
			}},
		},
	})
}
