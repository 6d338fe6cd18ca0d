package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-bot/internal/bot"
)

type countingStarter struct{ starts int }

func (s *countingStarter) Start() { s.starts++ }

func TestSchedulerModuleStartsOnReady(t *testing.T) {
	s := &countingStarter{}
	m := NewSchedulerModule(s)

	var l bot.ReadyListener = m
	require.NoError(t, l.OnReady(t.Context()))
	assert.Equal(t, 1, s.starts)

	r := bot.NewRegistry()
	require.NoError(t, r.Register(m))
	assert.Empty(t, r.Definitions())
}
