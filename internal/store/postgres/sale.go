package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// SaleRepo implements store.SaleRepository with sqlx.
type SaleRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewSaleRepo returns a new SaleRepo.
func NewSaleRepo(db *sqlx.DB, clk clock.Clock) *SaleRepo {
	return &SaleRepo{db: db, clock: clk}
}

func (r *SaleRepo) Record(ctx context.Context, s *store.Sale) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = r.clock.Now().UTC()
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO sales (id, session_id, item_id, item_name, role, buyer, price, rating, created_at)
		 VALUES (:id, :session_id, :item_id, :item_name, :role, :buyer, :price, :rating, :created_at)`, s)
	if err != nil {
		return fmt.Errorf("recording sale of %s: %w", s.ItemID, err)
	}
	return nil
}

func (r *SaleRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Sale, error) {
	var sales []store.Sale
	err := r.db.SelectContext(ctx, &sales,
		`SELECT * FROM sales WHERE session_id = $1 ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return sales, nil
}

func (r *SaleRepo) Standings(ctx context.Context, sessionID string) ([]store.Standing, error) {
	var standings []store.Standing
	err := r.db.SelectContext(ctx, &standings,
		`SELECT buyer, COUNT(*) AS players, SUM(price) AS spent, SUM(rating) AS rating
		 FROM sales WHERE session_id = $1
		 GROUP BY buyer ORDER BY rating DESC, buyer ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("computing standings: %w", err)
	}
	return standings, nil
}
