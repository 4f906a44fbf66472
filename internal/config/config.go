package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. AUCTION_DISCORD_TOKEN.
const EnvPrefix = "AUCTION"

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auction        AuctionConfig        `yaml:"auction"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// DatabaseConfig holds store settings. Host through SSLMode apply to the
// postgres driver, Path to the sqlite driver.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "memory", "postgres" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// AuctionConfig holds room and timing settings for auction sessions.
type AuctionConfig struct {
	CatalogPath     string  `yaml:"catalog_path"`
	DefaultBudget   float64 `yaml:"default_budget"`
	MaxParticipants int     `yaml:"max_participants"`
	MaxBots         int     `yaml:"max_bots"`
	// TrimPool limits each role's offering to what the room's team count
	// can plausibly buy.
	TrimPool bool `yaml:"trim_pool"`

	SaleWindow        time.Duration `yaml:"sale_window"`
	NextItemDelay     time.Duration `yaml:"next_item_delay"`
	FirstRoundDelay   time.Duration `yaml:"first_round_delay"`
	InterRoundDelay   time.Duration `yaml:"inter_round_delay"`
	BotReactionMin    time.Duration `yaml:"bot_reaction_min"`
	BotReactionJitter time.Duration `yaml:"bot_reaction_jitter"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ReapInterval      time.Duration `yaml:"reap_interval"`
	ArchiveSize       int           `yaml:"archive_size"`
}

// envOverrides lists the settings that may come from the environment.
// Unset variables leave the file value untouched.
type envOverrides struct {
	DiscordToken     string `envconfig:"DISCORD_TOKEN"`
	DiscordGuildID   string `envconfig:"DISCORD_GUILD_ID"`
	DatabaseDriver   string `envconfig:"DATABASE_DRIVER"`
	DatabaseHost     string `envconfig:"DATABASE_HOST"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabasePath     string `envconfig:"DATABASE_PATH"`
	OTLPEndpoint     string `envconfig:"OTLP_ENDPOINT"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	CatalogPath      string `envconfig:"CATALOG_PATH"`
	LeaderElection   *bool  `envconfig:"LEADER_ELECTION_ENABLED"`
}

// Defaults returns the configuration used when a file omits a setting.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "memory",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "auction.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			CatalogPath:       "players.json",
			DefaultBudget:     100,
			MaxParticipants:   10,
			MaxBots:           8,
			TrimPool:          true,
			SaleWindow:        10 * time.Second,
			NextItemDelay:     2 * time.Second,
			FirstRoundDelay:   150 * time.Millisecond,
			InterRoundDelay:   time.Second,
			BotReactionMin:    300 * time.Millisecond,
			BotReactionJitter: 400 * time.Millisecond,
			IdleTimeout:       60 * time.Minute,
			ReapInterval:      time.Minute,
			ArchiveSize:       64,
		},
	}
}

// Load reads a YAML configuration file from the given path, then applies
// AUCTION_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Discord.Token, o.DiscordToken)
	set(&c.Discord.GuildID, o.DiscordGuildID)
	set(&c.Database.Driver, o.DatabaseDriver)
	set(&c.Database.Host, o.DatabaseHost)
	set(&c.Database.Password, o.DatabasePassword)
	set(&c.Database.Path, o.DatabasePath)
	set(&c.Telemetry.OTLPEndpoint, o.OTLPEndpoint)
	set(&c.Telemetry.LogLevel, o.LogLevel)
	set(&c.Auction.CatalogPath, o.CatalogPath)
	if o.LeaderElection != nil {
		c.LeaderElection.Enabled = *o.LeaderElection
	}
	return nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"memory\", \"postgres\" or \"sqlite\"", c.Database.Driver)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Telemetry.LogLevel)); err != nil {
		return fmt.Errorf("telemetry log_level: %w", err)
	}

	a := c.Auction
	if a.DefaultBudget <= 0 {
		return fmt.Errorf("auction default_budget must be positive, got %v", a.DefaultBudget)
	}
	if a.MaxParticipants < 2 {
		return fmt.Errorf("auction max_participants must be at least 2, got %d", a.MaxParticipants)
	}
	if a.MaxBots < 0 || a.MaxBots >= a.MaxParticipants {
		return fmt.Errorf("auction max_bots must be in [0, %d), got %d", a.MaxParticipants, a.MaxBots)
	}
	if a.SaleWindow <= 0 {
		return fmt.Errorf("auction sale_window must be positive, got %s", a.SaleWindow)
	}
	if a.ArchiveSize <= 0 {
		return fmt.Errorf("auction archive_size must be positive, got %d", a.ArchiveSize)
	}
	return nil
}
