package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

// membersPageSize is the most members Discord returns per request.
const membersPageSize = 1000

// Discord implements Gateway on a discordgo session.
type Discord struct {
	s *discordgo.Session
}

// NewDiscord wraps an existing session.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{s: s}
}

// ID converts a snowflake string. Malformed ids become 0.
func ID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// Snowflake converts an id back to Discord's string form.
func Snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// translate maps REST status codes onto the package errors.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ConvertMember converts a discordgo member.
func ConvertMember(m *discordgo.Member) *Member {
	if m == nil || m.User == nil {
		return nil
	}
	roles := make([]int64, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, ID(r))
	}
	var avatar string
	if m.User.Avatar != "" {
		avatar = m.User.AvatarURL("")
	}
	return &Member{
		UserID:     ID(m.User.ID),
		Username:   m.User.Username,
		GlobalName: m.User.GlobalName,
		Nick:       m.Nick,
		AvatarURL:  avatar,
		Bot:        m.User.Bot,
		RoleIDs:    roles,
		JoinedAt:   m.JoinedAt,
	}
}

func (d *Discord) GuildName(ctx context.Context, guildID int64) (string, error) {
	if d.s.State != nil {
		if g, err := d.s.State.Guild(Snowflake(guildID)); err == nil {
			return g.Name, nil
		}
	}
	g, err := d.s.Guild(Snowflake(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return "", translate("get guild", err)
	}
	return g.Name, nil
}

func (d *Discord) Member(ctx context.Context, guildID, userID int64) (*Member, error) {
	if d.s.State != nil {
		if m, err := d.s.State.Member(Snowflake(guildID), Snowflake(userID)); err == nil {
			return ConvertMember(m), nil
		}
	}
	m, err := d.s.GuildMember(Snowflake(guildID), Snowflake(userID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate("get member", err)
	}
	return ConvertMember(m), nil
}

func (d *Discord) Members(ctx context.Context, guildID int64) ([]*Member, error) {
	var (
		out   []*Member
		after string
	)
	for {
		page, err := d.s.GuildMembers(Snowflake(guildID), after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, translate("list members", err)
		}
		for _, m := range page {
			if cm := ConvertMember(m); cm != nil {
				out = append(out, cm)
			}
		}
		if len(page) < membersPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := d.s.GuildMemberRoleAdd(Snowflake(guildID), Snowflake(userID), Snowflake(roleID), discordgo.WithContext(ctx))
	return translate("add role", err)
}

func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	err := d.s.GuildMemberRoleRemove(Snowflake(guildID), Snowflake(userID), Snowflake(roleID), discordgo.WithContext(ctx))
	return translate("remove role", err)
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID int64, nick string) error {
	err := d.s.GuildMemberNickname(Snowflake(guildID), Snowflake(userID), nick, discordgo.WithContext(ctx))
	return translate("set nickname", err)
}

func (d *Discord) SendDM(ctx context.Context, userID int64, msg *Message) error {
	ch, err := d.s.UserChannelCreate(Snowflake(userID), discordgo.WithContext(ctx))
	if err != nil {
		return translate("open dm", err)
	}
	_, err = d.s.ChannelMessageSendComplex(ch.ID, MessageSend(msg), discordgo.WithContext(ctx))
	return translate("send dm", err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID int64, msg *Message) (int64, error) {
	m, err := d.s.ChannelMessageSendComplex(Snowflake(channelID), MessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return 0, translate("send message", err)
	}
	return ID(m.ID), nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	err := d.s.ChannelMessageDelete(Snowflake(channelID), Snowflake(messageID), discordgo.WithContext(ctx))
	return translate("delete message", err)
}

func (d *Discord) TextChannels(ctx context.Context, guildID int64) ([]*Channel, error) {
	gid := Snowflake(guildID)
	channels, err := d.s.GuildChannels(gid, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate("list channels", err)
	}
	roles, err := d.s.GuildRoles(gid, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate("list roles", err)
	}

	// the @everyone role shares the guild's id
	var everyone int64
	for _, r := range roles {
		if r.ID == gid {
			everyone = r.Permissions
		}
	}

	categories := make(map[string]string)
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildCategory {
			categories[c.ID] = c.Name
		}
	}

	var out []*Channel
	for _, c := range channels {
		if c.Type != discordgo.ChannelTypeGuildText && c.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		out = append(out, &Channel{
			ID:              ID(c.ID),
			Name:            c.Name,
			Category:        categories[c.ParentID],
			Topic:           c.Topic,
			EveryoneCanSend: everyoneCanSend(everyone, gid, c.PermissionOverwrites),
		})
	}
	return out, nil
}

func everyoneCanSend(base int64, guildID string, overwrites []*discordgo.PermissionOverwrite) bool {
	if base&discordgo.PermissionAdministrator != 0 {
		return true
	}
	perms := base
	for _, o := range overwrites {
		if o.Type == discordgo.PermissionOverwriteTypeRole && o.ID == guildID {
			perms &^= o.Deny
			perms |= o.Allow
		}
	}
	return perms&discordgo.PermissionSendMessages != 0
}

func (d *Discord) HasPins(ctx context.Context, channelID int64) (bool, error) {
	pins, err := d.s.ChannelMessagesPinned(Snowflake(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return false, translate("list pins", err)
	}
	return len(pins) > 0, nil
}

func (d *Discord) RecentMessageTimes(ctx context.Context, channelID int64, limit int) ([]time.Time, error) {
	msgs, err := d.s.ChannelMessages(Snowflake(channelID), limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate("read history", err)
	}
	out := make([]time.Time, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Timestamp)
	}
	return out, nil
}

// MessageSend converts an outbound message to discordgo's form.
func MessageSend(msg *Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{MessageEmbed(msg.Embed)}
	}
	if len(msg.Buttons) > 0 {
		send.Components = Components(msg.Buttons)
	}
	return send
}

// MessageEmbed converts an embed.
func MessageEmbed(e *Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return me
}

// Components lays buttons out in rows of five.
func Components(buttons []Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := min(start+5, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			btn := discordgo.Button{
				Label:    b.Label,
				CustomID: b.CustomID,
				Style:    buttonStyle(b.Style),
			}
			if b.Emoji != "" {
				btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
			}
			row.Components = append(row.Components, btn)
		}
		rows = append(rows, row)
	}
	return rows
}

func buttonStyle(s ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case ButtonSecondary:
		return discordgo.SecondaryButton
	case ButtonSuccess:
		return discordgo.SuccessButton
	case ButtonDanger:
		return discordgo.DangerButton
	}
	return discordgo.PrimaryButton
}

var _ Gateway = (*Discord)(nil)
