package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// SessionRepo implements store.SessionRepository using database/sql.
type SessionRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSessionRepo returns a new SessionRepo.
func NewSessionRepo(db *sql.DB, clk clock.Clock) *SessionRepo {
	return &SessionRepo{db: db, clock: clk}
}

const sessionColumns = `id, code, admin, budget, bots, status, created_at, closed_at`

func (r *SessionRepo) Create(ctx context.Context, s *store.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Status = "open"
	s.CreatedAt = r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, code, admin, budget, bots, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Code, s.Admin, s.Budget.String(), s.Bots, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*store.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting session %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) Close(ctx context.Context, id string) error {
	now := r.clock.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'closed', closed_at = ? WHERE id = ? AND status = 'open'`,
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = 'open' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing open sessions: %w", err)
	}
	defer rows.Close()

	var sessions []store.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*store.Session, error) {
	var s store.Session
	var closedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.Code, &s.Admin, &s.Budget, &s.Bots, &s.Status, &s.CreatedAt, &closedAt); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		s.ClosedAt = &t
	}
	return &s, nil
}
