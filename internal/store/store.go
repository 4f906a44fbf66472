package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Session is the audit record of one auction room.
type Session struct {
	ID        string          `db:"id"`
	Code      string          `db:"code"`
	Admin     string          `db:"admin"`
	Budget    decimal.Decimal `db:"budget"`
	Bots      int             `db:"bots"`
	Status    string          `db:"status"` // "open", "closed"
	CreatedAt time.Time       `db:"created_at"`
	ClosedAt  *time.Time      `db:"closed_at"`
}

// Sale records one awarded item.
type Sale struct {
	ID        string          `db:"id"`
	SessionID string          `db:"session_id"`
	ItemID    string          `db:"item_id"`
	ItemName  string          `db:"item_name"`
	Role      string          `db:"role"`
	Buyer     string          `db:"buyer"`
	Price     decimal.Decimal `db:"price"`
	Rating    float64         `db:"rating"`
	CreatedAt time.Time       `db:"created_at"`
}

// Standing aggregates a buyer's purchases in one session.
type Standing struct {
	Buyer   string          `db:"buyer"`
	Players int             `db:"players"`
	Spent   decimal.Decimal `db:"spent"`
	Rating  float64         `db:"rating"`
}

// SessionRepository defines session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Close(ctx context.Context, id string) error
	ListOpen(ctx context.Context) ([]Session, error)
}

// SaleRepository defines sale persistence operations.
type SaleRepository interface {
	Record(ctx context.Context, s *Sale) error
	ListBySession(ctx context.Context, sessionID string) ([]Sale, error)
	Standings(ctx context.Context, sessionID string) ([]Standing, error)
}
