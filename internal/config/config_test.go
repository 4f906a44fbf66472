package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
discord:
  token: "test-token"
  guild_id: "123456"
database:
  driver: "postgres"
  host: "db.example.com"
  port: 5433
  user: "auction"
  password: "secret"
  dbname: "auction"
  sslmode: "require"
server:
  port: 9090
telemetry:
  service_name: "my-auction"
  otlp_endpoint: "localhost:4318"
auction:
  catalog_path: "/data/players.yaml"
  default_budget: 120
  sale_window: 5s
  max_bots: 4
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Discord.Token != "test-token" {
					t.Errorf("got token %q, want %q", cfg.Discord.Token, "test-token")
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "my-auction" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-auction")
				}
				if cfg.Auction.SaleWindow != 5*time.Second {
					t.Errorf("got sale window %s, want 5s", cfg.Auction.SaleWindow)
				}
				if cfg.Auction.DefaultBudget != 120 || cfg.Auction.MaxBots != 4 {
					t.Errorf("got auction %+v", cfg.Auction)
				}
				// Unset auction fields keep their defaults.
				if cfg.Auction.MaxParticipants != 10 {
					t.Errorf("got max participants %d, want 10", cfg.Auction.MaxParticipants)
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
discord:
  token: "tok"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "memory")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.Telemetry.ServiceName != "auctiond" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctiond")
				}
				a := cfg.Auction
				if a.SaleWindow != 10*time.Second || a.FirstRoundDelay != 150*time.Millisecond || a.InterRoundDelay != time.Second {
					t.Errorf("got auction timings %+v", a)
				}
				if a.IdleTimeout != time.Hour {
					t.Errorf("got idle timeout %s, want 1h", a.IdleTimeout)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "sqlite driver accepted",
			yaml: `
database:
  driver: "sqlite"
  path: "/var/lib/auction/auction.db"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Path != "/var/lib/auction/auction.db" {
					t.Errorf("got path %q", cfg.Database.Path)
				}
			},
		},
		{
			name: "sqlite without path rejected",
			yaml: `
database:
  driver: "sqlite"
  path: ""
`,
			wantErr: true,
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "too many bots rejected",
			yaml: `
auction:
  max_participants: 4
  max_bots: 4
`,
			wantErr: true,
		},
		{
			name: "non-positive budget rejected",
			yaml: `
auction:
  default_budget: 0
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_DISCORD_TOKEN", "env-token")
	t.Setenv("AUCTION_DATABASE_PASSWORD", "env-secret")
	t.Setenv("AUCTION_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("AUCTION_LEADER_ELECTION_ENABLED", "true")
	t.Setenv("AUCTION_LOG_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, `
discord:
  token: "file-token"
database:
  password: "file-secret"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("got token %q, want env-token", cfg.Discord.Token)
	}
	if cfg.Database.Password != "env-secret" {
		t.Errorf("got password %q, want env-secret", cfg.Database.Password)
	}
	if cfg.Telemetry.OTLPEndpoint != "collector:4318" {
		t.Errorf("got endpoint %q", cfg.Telemetry.OTLPEndpoint)
	}
	if !cfg.LeaderElection.Enabled {
		t.Error("leader election not enabled from env")
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("got log level %q, want debug", cfg.Telemetry.LogLevel)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
telemetry:
  log_level: "chatty"
`))
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestLoad_EnvInvalidBool(t *testing.T) {
	t.Setenv("AUCTION_LEADER_ELECTION_ENABLED", "sometimes")
	if _, err := config.Load(writeConfig(t, "discord: {}\n")); err == nil {
		t.Fatal("expected error for unparsable boolean override")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
