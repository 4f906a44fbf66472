// Package sqlite provides a store.Driver backed by an embedded SQLite file,
// accessed through database/sql with OTEL instrumentation via otelsql. It
// suits single-node deployments that want durable history without running
// Postgres.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

//go:embed schema.sql
var schema string

func init() {
	store.Register("sqlite", open)
}

func open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Sessions: NewSessionRepo(db, clk),
		Sales:    NewSaleRepo(db, clk),
		Events:   NewEventStore(db, clk),
		Closer:   db,
		Ping:     db.PingContext,
	}, nil
}

// Open opens the database file at path, enabling WAL journaling and a busy
// timeout, and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(semconv.DBSystemKey.String("sqlite")),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return db, nil
}
