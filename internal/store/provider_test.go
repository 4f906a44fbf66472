package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"

	// Import drivers so their init() functions register them.
	_ "github.com/jensholdgaard/draft-auction/internal/store/memory"
	_ "github.com/jensholdgaard/draft-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/draft-auction/internal/store/sqlite"
)

// fakeDriver is a store.Driver that always succeeds without connecting to a DB.
func fakeDriver(_ context.Context, _ config.DatabaseConfig, _ clock.Clock) (*store.Repositories, error) {
	return &store.Repositories{}, nil
}

func TestOpen(t *testing.T) {
	store.Register("test-driver", fakeDriver)

	tests := []struct {
		name    string
		driver  string
		wantErr bool
	}{
		{name: "registered driver succeeds", driver: "test-driver"},
		{name: "memory driver succeeds", driver: "memory"},
		{name: "unknown driver fails", driver: "nonexistent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DatabaseConfig{Driver: tt.driver}
			_, err := store.Open(context.Background(), cfg, clock.Real{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Open(driver=%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
		})
	}
}

func TestOpen_UnknownListsRegistered(t *testing.T) {
	_, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "mongo"}, clock.Real{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"memory", "postgres", "sqlite"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not list driver %q", err, name)
		}
	}
}

func TestRegister_Postgres(t *testing.T) {
	// No database is running, so the postgres driver must fail to connect
	// rather than report an unknown driver.
	cfg := config.DatabaseConfig{Driver: "postgres", Host: "127.0.0.1", Port: 1, DBName: "x", User: "x", SSLMode: "disable"}
	_, err := store.Open(context.Background(), cfg, clock.Real{})
	if err == nil {
		t.Fatal("expected error (no DB running), got nil")
	}
	if strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("expected connection error, got unknown driver error: %v", err)
	}
}
