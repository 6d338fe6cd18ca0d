// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"
	"time"

	"community-bot/internal/gateway"
)

// Sent records an outbound message.
type Sent struct {
	ChannelID int64
	UserID    int64 // set for DMs
	Message   *gateway.Message
}

// Fake is an in-memory gateway.Gateway. Per-user and per-channel errors can
// be injected to exercise soft-failure paths.
type Fake struct {
	mu sync.Mutex

	Guild string

	members  map[int64]*gateway.Member
	channels []*gateway.Channel
	pins     map[int64]bool
	history  map[int64][]time.Time

	DMs      []Sent
	Messages []Sent
	Deleted  []int64

	MemberErr   map[int64]error
	RoleErr     map[int64]error
	NickErr     map[int64]error
	DMErr       map[int64]error
	ChannelErr  map[int64]error
	nextMessage int64
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		Guild:      "Test Guild",
		members:    make(map[int64]*gateway.Member),
		pins:       make(map[int64]bool),
		history:    make(map[int64][]time.Time),
		MemberErr:  make(map[int64]error),
		RoleErr:    make(map[int64]error),
		NickErr:    make(map[int64]error),
		DMErr:      make(map[int64]error),
		ChannelErr: make(map[int64]error),
	}
}

// AddMember registers a member.
func (f *Fake) AddMember(m *gateway.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.UserID] = m
}

// AddChannel registers a text channel with its pins and history.
func (f *Fake) AddChannel(c *gateway.Channel, pinned bool, history ...time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, c)
	f.pins[c.ID] = pinned
	f.history[c.ID] = history
}

// Get returns a copy of the member's current state.
func (f *Fake) Get(userID int64) *gateway.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil
	}
	cp := *m
	cp.RoleIDs = append([]int64(nil), m.RoleIDs...)
	return &cp
}

// SentDMs returns the DMs sent to userID.
func (f *Fake) SentDMs(userID int64) []*gateway.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.Message
	for _, s := range f.DMs {
		if s.UserID == userID {
			out = append(out, s.Message)
		}
	}
	return out
}

// SentTo returns the messages posted in channelID.
func (f *Fake) SentTo(channelID int64) []*gateway.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.Message
	for _, s := range f.Messages {
		if s.ChannelID == channelID {
			out = append(out, s.Message)
		}
	}
	return out
}

func (f *Fake) GuildName(_ context.Context, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Guild, nil
}

func (f *Fake) Member(_ context.Context, _, userID int64) (*gateway.Member, error) {
	if err := f.MemberErr[userID]; err != nil {
		return nil, err
	}
	if m := f.Get(userID); m != nil {
		return m, nil
	}
	return nil, gateway.ErrNotFound
}

func (f *Fake) Members(_ context.Context, _ int64) ([]*gateway.Member, error) {
	f.mu.Lock()
	ids := make([]int64, 0, len(f.members))
	for id := range f.members {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	out := make([]*gateway.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.Get(id))
	}
	return out, nil
}

func (f *Fake) AddRole(_ context.Context, _, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.RoleErr[userID]; err != nil {
		return err
	}
	m, ok := f.members[userID]
	if !ok {
		return gateway.ErrNotFound
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (f *Fake) RemoveRole(_ context.Context, _, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.RoleErr[userID]; err != nil {
		return err
	}
	m, ok := f.members[userID]
	if !ok {
		return gateway.ErrNotFound
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	return nil
}

func (f *Fake) SetNickname(_ context.Context, _, userID int64, nick string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.NickErr[userID]; err != nil {
		return err
	}
	m, ok := f.members[userID]
	if !ok {
		return gateway.ErrNotFound
	}
	m.Nick = nick
	return nil
}

func (f *Fake) SendDM(_ context.Context, userID int64, msg *gateway.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DMErr[userID]; err != nil {
		return err
	}
	f.DMs = append(f.DMs, Sent{UserID: userID, Message: msg})
	return nil
}

func (f *Fake) SendMessage(_ context.Context, channelID int64, msg *gateway.Message) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ChannelErr[channelID]; err != nil {
		return 0, err
	}
	f.nextMessage++
	f.Messages = append(f.Messages, Sent{ChannelID: channelID, Message: msg})
	return f.nextMessage, nil
}

func (f *Fake) DeleteMessage(_ context.Context, _, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) TextChannels(_ context.Context, _ int64) ([]*gateway.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gateway.Channel(nil), f.channels...), nil
}

func (f *Fake) HasPins(_ context.Context, channelID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ChannelErr[channelID]; err != nil {
		return false, err
	}
	return f.pins[channelID], nil
}

func (f *Fake) RecentMessageTimes(_ context.Context, channelID int64, limit int) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ChannelErr[channelID]; err != nil {
		return nil, err
	}
	h := f.history[channelID]
	if len(h) > limit {
		h = h[:limit]
	}
	return append([]time.Time(nil), h...), nil
}

var _ gateway.Gateway = (*Fake)(nil)
