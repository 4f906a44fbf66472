package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// SaleRepo implements store.SaleRepository using database/sql. Prices are
// stored as decimal text so sums stay exact.
type SaleRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSaleRepo returns a new SaleRepo.
func NewSaleRepo(db *sql.DB, clk clock.Clock) *SaleRepo {
	return &SaleRepo{db: db, clock: clk}
}

func (r *SaleRepo) Record(ctx context.Context, s *store.Sale) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = r.clock.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sales (id, session_id, item_id, item_name, role, buyer, price, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.SessionID, s.ItemID, s.ItemName, s.Role, s.Buyer, s.Price.String(), s.Rating, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording sale of %s: %w", s.ItemID, err)
	}
	return nil
}

func (r *SaleRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, item_id, item_name, role, buyer, price, rating, created_at
		 FROM sales WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []store.Sale
	for rows.Next() {
		var s store.Sale
		if err := rows.Scan(&s.ID, &s.SessionID, &s.ItemID, &s.ItemName, &s.Role, &s.Buyer, &s.Price, &s.Rating, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning sale row: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// Standings folds the session's sales per buyer in Go; SQLite has no exact
// decimal SUM.
func (r *SaleRepo) Standings(ctx context.Context, sessionID string) ([]store.Standing, error) {
	sales, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("computing standings: %w", err)
	}
	byBuyer := make(map[string]*store.Standing)
	for _, s := range sales {
		st, ok := byBuyer[s.Buyer]
		if !ok {
			st = &store.Standing{Buyer: s.Buyer, Spent: decimal.Zero}
			byBuyer[s.Buyer] = st
		}
		st.Players++
		st.Spent = st.Spent.Add(s.Price)
		st.Rating += s.Rating
	}
	standings := make([]store.Standing, 0, len(byBuyer))
	for _, st := range byBuyer {
		standings = append(standings, *st)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Rating != standings[j].Rating {
			return standings[i].Rating > standings[j].Rating
		}
		return standings[i].Buyer < standings[j].Buyer
	})
	return standings, nil
}
