package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// SessionRepo implements store.SessionRepository with sqlx.
type SessionRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewSessionRepo returns a new SessionRepo.
func NewSessionRepo(db *sqlx.DB, clk clock.Clock) *SessionRepo {
	return &SessionRepo{db: db, clock: clk}
}

func (r *SessionRepo) Create(ctx context.Context, s *store.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Status = "open"
	s.CreatedAt = r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, code, admin, budget, bots, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Code, s.Admin, s.Budget, s.Bots, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*store.Session, error) {
	var s store.Session
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting session %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepo) Close(ctx context.Context, id string) error {
	now := r.clock.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'closed', closed_at = $1 WHERE id = $2 AND status = 'open'`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %s not found or already closed", id)
	}
	return nil
}

func (r *SessionRepo) ListOpen(ctx context.Context) ([]store.Session, error) {
	var sessions []store.Session
	err := r.db.SelectContext(ctx, &sessions, `SELECT * FROM sessions WHERE status = 'open' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing open sessions: %w", err)
	}
	return sessions, nil
}
