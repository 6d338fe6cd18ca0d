// Package main is the entry point for the community Discord bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"community-bot/internal/bot"
	"community-bot/internal/config"
	"community-bot/internal/dashboard"
	"community-bot/internal/game"
	"community-bot/internal/game/tomato"
	"community-bot/internal/gateway"
	"community-bot/internal/handler"
	"community-bot/internal/job"
	"community-bot/internal/notify"
	"community-bot/internal/pkg/db"
	"community-bot/internal/pkg/lock"
	"community-bot/internal/repository"
	"community-bot/internal/service"
	"community-bot/internal/sheets"
)

const (
	drainTimeout   = 2 * time.Minute
	suggestTimeout = 5 * time.Minute
	enforceTimeout = 10 * time.Minute
	healthTimeout  = 30 * time.Minute
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if missing := cfg.Validate(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Configuration incomplete, starting dashboard only")
		if err := runDashboardOnly(ctx, cfg, missing); err != nil {
			log.Fatal().Err(err).Msg("Dashboard failed")
		}
		return
	}

	if err := run(ctx, cfg, stop); err != nil {
		log.Fatal().Err(err).Msg("Bot failed")
	}
	log.Info().Msg("Bot stopped gracefully")
}

// runDashboardOnly serves the setup view until the missing keys are filled
// in. The database is optional here.
func runDashboardOnly(ctx context.Context, cfg *config.Config, missing []string) error {
	deps := dashboard.Deps{MissingConfig: missing}
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("Database unavailable")
	} else {
		defer pool.Close()
		deps.DB = pool
	}
	return dashboard.New(cfg.Dashboard, deps).Run(ctx)
}

func run(ctx context.Context, cfg *config.Config, shutdown func()) error {
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool.Pool); err != nil {
		return err
	}

	statsRepo := repository.NewStatsRepository(pool.Pool)
	inventoryRepo := repository.NewInventoryRepository(pool.Pool)
	activityRepo := repository.NewActivityRepository(pool.Pool)
	queueRepo := repository.NewGraduationQueueRepository(pool.Pool)
	warningRepo := repository.NewWarningRepository(pool.Pool)

	session, err := bot.NewSession(cfg.Bot.Token)
	if err != nil {
		return err
	}
	gw := gateway.NewDiscord(session)
	rng := game.NewRand()
	userLock := lock.NewUserLock()

	economy := service.NewEconomyService(statsRepo, inventoryRepo, userLock, rng, service.EconomyConfig{
		StarterQuantity: cfg.Tomato.StarterQuantity,
		DailyCooldown:   cfg.Tomato.DailyCooldown,
		DailyMin:        cfg.Tomato.DailyMin,
		DailyMax:        cfg.Tomato.DailyMax,
		LootboxCost:     cfg.Tomato.LootboxCost,
		LeaderboardSize: cfg.Tomato.LeaderboardSize,
	})
	tomatoGame := tomato.New(statsRepo, rng, tomato.Config{
		DodgeWindow:    cfg.Tomato.DodgeWindow,
		BackfireChance: cfg.Tomato.BackfireChance,
		GoldenBonus:    cfg.Tomato.GoldenBonus,
	})
	milestone := service.NewMilestoneTracker(statsRepo, rng, service.MilestoneConfig{
		IntervalMin: cfg.Tomato.MilestoneMin,
		IntervalMax: cfg.Tomato.MilestoneMax,
		RewardMin:   cfg.Tomato.RewardMin,
		RewardMax:   cfg.Tomato.RewardMax,
		MinWords:    cfg.Tomato.MinWords,
	})
	welcome := service.NewWelcomeService(gw, activityRepo, queueRepo, service.WelcomeConfig{
		GuildID:         cfg.Bot.GuildID,
		NewInTownRoleID: cfg.Welcome.NewInTownRoleID,
		ReportChannelID: cfg.Welcome.ReportChannelID,
		Threshold:       cfg.Welcome.GraduationThreshold,
	})
	approval, err := service.NewApprovalService(gw, service.ApprovalConfig{
		GuildID:              cfg.Bot.GuildID,
		WaitingRoomChannelID: cfg.Approval.WaitingRoomChannelID,
		UnapprovedRoleID:     cfg.Approval.UnapprovedRoleID,
		MemberRoleID:         cfg.Approval.MemberRoleID,
		NewInTownRoleID:      cfg.Welcome.NewInTownRoleID,
		PronounPattern:       cfg.Approval.PronounPattern,
	})
	if err != nil {
		return err
	}

	var alerter service.Alerter
	if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.StaffChatID, ""); err == nil {
		alerter = tg
		log.Info().Int64("chat_id", cfg.Telegram.StaffChatID).Msg("Telegram staff alerts enabled")
	} else if !errors.Is(err, notify.ErrNotConfigured) {
		log.Warn().Err(err).Msg("Telegram staff alerts disabled")
	}
	flags := service.NewFlagService(gw, warningRepo, cfg.Flag.NotifyUserIDs, alerter)

	jobs := job.NewManager(log.Logger)
	if err := jobs.Every(cfg.Welcome.DrainInterval, job.NewGraduationDrainJob(welcome, drainTimeout)); err != nil {
		return err
	}
	if err := jobs.Every(cfg.Welcome.SuggestInterval, job.NewGraduationSuggestJob(welcome, suggestTimeout)); err != nil {
		return err
	}
	if err := jobs.Every(cfg.Approval.EnforceInterval, job.NewPronounEnforceJob(approval, enforceTimeout)); err != nil {
		return err
	}

	registry := bot.NewRegistry()
	b := bot.New(session, cfg, registry)

	modules := []bot.Module{
		handler.NewCoreHandler(b, gw, cfg, registry.Names, shutdown),
		handler.NewTomatoHandler(economy, tomatoGame, milestone, gw, handler.TomatoConfig{
			GuildID:          cfg.Bot.GuildID,
			StarterQuantity:  cfg.Tomato.StarterQuantity,
			LootboxCost:      cfg.Tomato.LootboxCost,
			RewardMessageTTL: cfg.Tomato.RewardMessageTTL,
		}),
		handler.NewWelcomeHandler(welcome, cfg.Welcome.WagonRoleID),
		handler.NewApprovalHandler(approval),
		handler.NewFlagHandler(flags, cfg),
		handler.NewSchedulerModule(jobs),
	}

	if cfg.SheetsEnabled() {
		sheet, err := sheets.New(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Worksheet)
		if err != nil {
			log.Warn().Err(err).Msg("Channel health export disabled")
		} else {
			health := job.NewChannelHealthJob(service.NewHealthService(gw, warningRepo, sheet, cfg.Bot.GuildID), healthTimeout)
			if err := jobs.Every(cfg.Sheets.ExportInterval, health); err != nil {
				return err
			}
			modules = append(modules, handler.NewHealthHandler(ctx, health, cfg))
		}
	} else {
		log.Info().Msg("Channel health export not configured")
	}

	for _, m := range modules {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	log.Info().Strs("modules", registry.Names()).Msg("Modules registered")

	web := dashboard.New(cfg.Dashboard, dashboard.Deps{
		Status:  b,
		Welcome: welcome,
		DB:      pool,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	g.Go(func() error { return web.Run(gctx) })
	g.Go(func() error { return jobs.Run(gctx) })
	return g.Wait()
}
