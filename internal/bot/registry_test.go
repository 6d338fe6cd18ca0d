package bot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct {
	name       string
	commands   []string
	prefixes   []string
	calls      map[string]int
	messages   []*MessageEvent
	readyCalls int
}

func newStub(name string, commands []string, prefixes ...string) *stubModule {
	return &stubModule{name: name, commands: commands, prefixes: prefixes, calls: map[string]int{}}
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) Commands() []Command {
	var cmds []Command
	for _, name := range m.commands {
		name := name
		cmds = append(cmds, Command{
			Definition: &discordgo.ApplicationCommand{Name: name, Description: name},
			Handler: func(c Context) error {
				m.calls[name]++
				return nil
			},
		})
	}
	return cmds
}

func (m *stubModule) Components() []Component {
	var comps []Component
	for _, p := range m.prefixes {
		p := p
		comps = append(comps, Component{Prefix: p, Handler: func(c Context) error {
			m.calls[p]++
			return nil
		}})
	}
	return comps
}

func (m *stubModule) OnMessage(_ context.Context, ev *MessageEvent) error {
	m.messages = append(m.messages, ev)
	return nil
}

func (m *stubModule) OnReady(context.Context) error {
	m.readyCalls++
	return nil
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStub("tomato", []string{"tomato", "daily"}, "dodge:")))
	require.NoError(t, r.Register(newStub("core", []string{"ping"})))

	assert.Equal(t, []string{"tomato", "core"}, r.Names())
	assert.Len(t, r.Modules(), 2)

	_, ok := r.Command("daily")
	assert.True(t, ok)
	_, ok = r.Command("missing")
	assert.False(t, ok)

	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"daily", "ping", "tomato"}, names)
}

func TestRegistryRejects(t *testing.T) {
	tests := []struct {
		name   string
		second Module
	}{
		{"nil module", nil},
		{"empty name", newStub("", nil)},
		{"duplicate module", newStub("tomato", nil)},
		{"duplicate command", newStub("other", []string{"tomato"})},
		{"empty prefix", newStub("other", nil, "")},
		{"overlapping prefix", newStub("other", nil, "dodge")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(newStub("tomato", []string{"tomato"}, "dodge:")))
			assert.Error(t, r.Register(tt.second))
			assert.Equal(t, []string{"tomato"}, r.Names())
		})
	}
}

func TestRegistryComponentPrefix(t *testing.T) {
	r := NewRegistry()
	m := newStub("approval", nil, "pronoun_")
	require.NoError(t, r.Register(m))

	h, ok := r.Component("pronoun_she_her")
	require.True(t, ok)
	require.NoError(t, h(nil))
	assert.Equal(t, 1, m.calls["pronoun_"])

	_, ok = r.Component("dodge:abc")
	assert.False(t, ok)
}
