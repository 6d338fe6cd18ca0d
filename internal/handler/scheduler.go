package handler

import (
	"context"

	"community-bot/internal/bot"
)

// Starter is a scheduler that should only tick while the bot is connected.
type Starter interface {
	Start()
}

// SchedulerModule starts background jobs on the first gateway ready event.
type SchedulerModule struct {
	jobs Starter
}

// NewSchedulerModule creates a new SchedulerModule.
func NewSchedulerModule(jobs Starter) *SchedulerModule {
	return &SchedulerModule{jobs: jobs}
}

func (m *SchedulerModule) Name() string                { return "scheduler" }
func (m *SchedulerModule) Commands() []bot.Command     { return nil }
func (m *SchedulerModule) Components() []bot.Component { return nil }

// OnReady implements bot.ReadyListener.
func (m *SchedulerModule) OnReady(_ context.Context) error {
	m.jobs.Start()
	return nil
}
