package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/event"
)

// EventStore is the session audit log in Postgres. It keeps the ids and
// timestamps the session assigned so stored history matches what was
// broadcast.
type EventStore struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore. clk stamps events that arrive
// without a creation time.
func NewEventStore(db *sqlx.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

// eventRow is the insert shape; payloads travel as text so the jsonb cast
// happens server side.
type eventRow struct {
	ID          string    `db:"id"`
	AggregateID string    `db:"aggregate_id"`
	Type        string    `db:"type"`
	Data        string    `db:"data"`
	Version     int       `db:"version"`
	CreatedAt   time.Time `db:"created_at"`
}

// Append writes a session's flushed batch in one statement, so it lands
// whole or not at all.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventRow, len(events))
	for i, e := range events {
		row := eventRow{
			ID:          e.ID,
			AggregateID: e.AggregateID,
			Type:        string(e.Type),
			Data:        string(e.Data),
			Version:     e.Version,
			CreatedAt:   e.CreatedAt,
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = s.clock.Now().UTC()
		}
		rows[i] = row
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, type, data, version, created_at)
		 VALUES (:id, :aggregate_id, :type, CAST(:data AS JSONB), :version, :created_at)`, rows)
	if err != nil {
		first := events[0]
		return fmt.Errorf("appending %d events (session=%s, from version %d): %w",
			len(events), first.AggregateID, first.Version, err)
	}
	return nil
}

// Load returns a session's events in version order.
func (s *EventStore) Load(ctx context.Context, sessionID string) ([]event.Event, error) {
	var events []event.Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE aggregate_id = $1 ORDER BY version ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading events for session %s: %w", sessionID, err)
	}
	return events, nil
}

// LoadByType returns every session's events of one type, oldest first.
func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	var events []event.Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE type = $1 ORDER BY created_at ASC, aggregate_id ASC, version ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("loading %s events: %w", eventType, err)
	}
	return events, nil
}
