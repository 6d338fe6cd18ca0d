// Package bottest provides an in-memory bot.Context for handler tests.
package bottest

import (
	"context"
	"sync"

	"community-bot/internal/gateway"
)

// Modal records a modal the handler opened.
type Modal struct {
	CustomID string
	Title    string
	InputID  string
}

// Context is a scripted interaction that records every response.
type Context struct {
	Ctx      context.Context
	Guild    int64
	Channel  int64
	ChanName string
	User     *gateway.Member
	Cmd      string
	Sub      string
	Custom   string
	Options  map[string]string
	Users    map[string]*gateway.Member
	Inputs   map[string]string

	mu        sync.Mutex
	replies   []*gateway.Message
	ephemeral []string
	edits     []*gateway.Message
	updates   []*gateway.Message
	deferred  bool
	acks      int
	modals    []Modal
}

// NewCommand creates a slash command invocation.
func NewCommand(guildID int64, user *gateway.Member, name string) *Context {
	return &Context{
		Ctx:     context.Background(),
		Guild:   guildID,
		User:    user,
		Cmd:     name,
		Options: map[string]string{},
		Users:   map[string]*gateway.Member{},
		Inputs:  map[string]string{},
	}
}

// NewComponent creates a button click or modal submit.
func NewComponent(guildID int64, user *gateway.Member, customID string) *Context {
	c := NewCommand(guildID, user, "")
	c.Custom = customID
	return c
}

// WithUser sets a user option that resolves to m.
func (c *Context) WithUser(name string, m *gateway.Member) *Context {
	key := gateway.Snowflake(m.UserID)
	c.Options[name] = key
	c.Users[key] = m
	return c
}

func (c *Context) Context() context.Context { return c.Ctx }
func (c *Context) GuildID() int64           { return c.Guild }
func (c *Context) ChannelID() int64         { return c.Channel }
func (c *Context) ChannelName() string      { return c.ChanName }
func (c *Context) Sender() *gateway.Member  { return c.User }
func (c *Context) Command() string          { return c.Cmd }
func (c *Context) Subcommand() string       { return c.Sub }
func (c *Context) CustomID() string         { return c.Custom }
func (c *Context) Option(name string) string {
	return c.Options[name]
}

func (c *Context) OptionMember(name string) (*gateway.Member, bool) {
	m, ok := c.Users[c.Options[name]]
	return m, ok
}

func (c *Context) Field(customID string) string {
	return c.Inputs[customID]
}

func (c *Context) Reply(msg *gateway.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deferred {
		c.edits = append(c.edits, msg)
		return nil
	}
	c.replies = append(c.replies, msg)
	return nil
}

func (c *Context) ReplyEphemeral(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemeral = append(c.ephemeral, content)
	return nil
}

func (c *Context) Defer(bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deferred = true
	return nil
}

func (c *Context) EditReply(msg *gateway.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, msg)
	return nil
}

func (c *Context) Update(msg *gateway.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, msg)
	return nil
}

func (c *Context) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks++
	return nil
}

func (c *Context) Modal(customID, title, inputID, _, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modals = append(c.modals, Modal{CustomID: customID, Title: title, InputID: inputID})
	return nil
}

// Replies returns the public replies sent so far.
func (c *Context) Replies() []*gateway.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*gateway.Message(nil), c.replies...)
}

// Ephemeral returns the ephemeral replies sent so far.
func (c *Context) Ephemeral() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ephemeral...)
}

// Edits returns the edits of the original response.
func (c *Context) Edits() []*gateway.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*gateway.Message(nil), c.edits...)
}

// Updates returns the in-place updates of the clicked message.
func (c *Context) Updates() []*gateway.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*gateway.Message(nil), c.updates...)
}

// Deferred reports whether the handler deferred its response.
func (c *Context) Deferred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred
}

// Acks returns how many times the handler acknowledged silently.
func (c *Context) Acks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acks
}

// Modals returns the modals opened so far.
func (c *Context) Modals() []Modal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Modal(nil), c.modals...)
}

// Last returns the most recent visible response text: an edit, a reply,
// an update or an ephemeral message, in that order of preference.
func (c *Context) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	pick := func(msgs []*gateway.Message) (string, bool) {
		if len(msgs) == 0 {
			return "", false
		}
		m := msgs[len(msgs)-1]
		if m.Content != "" || m.Embed == nil {
			return m.Content, true
		}
		return m.Embed.Description, true
	}
	for _, msgs := range [][]*gateway.Message{c.edits, c.replies, c.updates} {
		if s, ok := pick(msgs); ok {
			return s
		}
	}
	if len(c.ephemeral) > 0 {
		return c.ephemeral[len(c.ephemeral)-1]
	}
	return ""
}
