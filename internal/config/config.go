// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Welcome   WelcomeConfig   `mapstructure:"welcome"`
	Flag      FlagConfig      `mapstructure:"flag"`
	Tomato    TomatoConfig    `mapstructure:"tomato"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

// BotConfig holds Discord bot configuration.
type BotConfig struct {
	Token    string  `mapstructure:"token"`
	GuildID  int64   `mapstructure:"guild_id"`
	OwnerIDs []int64 `mapstructure:"owner_ids"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ApprovalConfig holds the pronoun gate configuration.
type ApprovalConfig struct {
	WaitingRoomChannelID int64         `mapstructure:"waiting_room_channel_id"`
	UnapprovedRoleID     int64         `mapstructure:"unapproved_role_id"`
	MemberRoleID         int64         `mapstructure:"member_role_id"`
	PronounPattern       string        `mapstructure:"pronoun_pattern"`
	EnforceInterval      time.Duration `mapstructure:"enforce_interval"`
}

// WelcomeConfig holds welcome wagon configuration.
type WelcomeConfig struct {
	WagonRoleID         int64         `mapstructure:"wagon_role_id"`
	NewInTownRoleID     int64         `mapstructure:"new_in_town_role_id"`
	ReportChannelID     int64         `mapstructure:"report_channel_id"`
	GraduationThreshold int64         `mapstructure:"graduation_threshold"`
	DrainInterval       time.Duration `mapstructure:"drain_interval"`
	SuggestInterval     time.Duration `mapstructure:"suggest_interval"`
}

// FlagConfig holds moderation flag configuration.
type FlagConfig struct {
	ModeratorRoleIDs []int64 `mapstructure:"moderator_role_ids"`
	NotifyUserIDs    []int64 `mapstructure:"notify_user_ids"`
}

// TomatoConfig holds tomato game configuration.
type TomatoConfig struct {
	LootboxCost      int64         `mapstructure:"lootbox_cost"`
	StarterQuantity  int           `mapstructure:"starter_quantity"`
	DailyCooldown    time.Duration `mapstructure:"daily_cooldown"`
	DailyMin         int64         `mapstructure:"daily_min"`
	DailyMax         int64         `mapstructure:"daily_max"`
	DodgeWindow      time.Duration `mapstructure:"dodge_window"`
	MilestoneMin     int64         `mapstructure:"milestone_min"`
	MilestoneMax     int64         `mapstructure:"milestone_max"`
	RewardMin        int64         `mapstructure:"reward_min"`
	RewardMax        int64         `mapstructure:"reward_max"`
	MinWords         int           `mapstructure:"min_words"`
	GoldenBonus      int64         `mapstructure:"golden_bonus"`
	BackfireChance   float64       `mapstructure:"backfire_chance"`
	RewardMessageTTL time.Duration `mapstructure:"reward_message_ttl"`
	LeaderboardSize  int           `mapstructure:"leaderboard_size"`
}

// SheetsConfig holds Google Sheets export configuration.
type SheetsConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	Worksheet       string        `mapstructure:"worksheet"`
	ExportInterval  time.Duration `mapstructure:"export_interval"`
}

// DashboardConfig holds the web dashboard configuration.
type DashboardConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TelegramConfig holds the optional staff alert mirror.
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	StaffChatID int64  `mapstructure:"staff_chat_id"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, TOMATO_DODGE_WINDOW
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// AutomaticEnv only overrides keys viper already knows about
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.guild_id", 0)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.staff_chat_id", 0)
	v.SetDefault("sheets.credentials_file", "data/gcp_service_account.json")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.worksheet", "Channel Scores")
	v.SetDefault("sheets.export_interval", "24h")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "communitybot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "communitybot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("log.level", "info")

	v.SetDefault("approval.pronoun_pattern", `\(.*/.*\)`)
	v.SetDefault("approval.enforce_interval", "1h")

	v.SetDefault("welcome.graduation_threshold", 50)
	v.SetDefault("welcome.drain_interval", "30s")
	v.SetDefault("welcome.suggest_interval", "24h")

	v.SetDefault("tomato.lootbox_cost", 100)
	v.SetDefault("tomato.starter_quantity", 5)
	v.SetDefault("tomato.daily_cooldown", "22h")
	v.SetDefault("tomato.daily_min", 50)
	v.SetDefault("tomato.daily_max", 150)
	v.SetDefault("tomato.dodge_window", "8s")
	v.SetDefault("tomato.milestone_min", 15)
	v.SetDefault("tomato.milestone_max", 30)
	v.SetDefault("tomato.reward_min", 5)
	v.SetDefault("tomato.reward_max", 25)
	v.SetDefault("tomato.min_words", 5)
	v.SetDefault("tomato.golden_bonus", 25)
	v.SetDefault("tomato.backfire_chance", 0.1)
	v.SetDefault("tomato.reward_message_ttl", "10s")
	v.SetDefault("tomato.leaderboard_size", 10)

	v.SetDefault("dashboard.addr", ":8080")
	v.SetDefault("dashboard.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
}

// Validate returns the keys that still need a value before the Discord
// modules can run. An empty result means the configuration is complete.
func (c *Config) Validate() []string {
	var missing []string
	if c.Bot.Token == "" {
		missing = append(missing, "bot.token")
	}
	if c.Bot.GuildID == 0 {
		missing = append(missing, "bot.guild_id")
	}
	if c.Approval.WaitingRoomChannelID == 0 {
		missing = append(missing, "approval.waiting_room_channel_id")
	}
	if c.Approval.UnapprovedRoleID == 0 {
		missing = append(missing, "approval.unapproved_role_id")
	}
	if c.Approval.MemberRoleID == 0 {
		missing = append(missing, "approval.member_role_id")
	}
	if c.Welcome.WagonRoleID == 0 {
		missing = append(missing, "welcome.wagon_role_id")
	}
	if c.Welcome.NewInTownRoleID == 0 {
		missing = append(missing, "welcome.new_in_town_role_id")
	}
	if len(c.Flag.ModeratorRoleIDs) == 0 {
		missing = append(missing, "flag.moderator_role_ids")
	}
	if len(c.Flag.NotifyUserIDs) == 0 {
		missing = append(missing, "flag.notify_user_ids")
	}
	return missing
}

// IsOwner checks if a user ID is in the owner list.
func (c *Config) IsOwner(userID int64) bool {
	for _, id := range c.Bot.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsModerator reports whether any of the given roles is a moderator role.
func (c *Config) IsModerator(roleIDs []int64) bool {
	for _, have := range roleIDs {
		for _, want := range c.Flag.ModeratorRoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SheetsEnabled reports whether the channel-health export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsFile != ""
}
