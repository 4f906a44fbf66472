package postgres_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

func TestSaleRepo_RecordAndStandings(t *testing.T) {
	db := newTestDB(t)
	sessions := postgres.NewSessionRepo(db, testClk)
	sales := postgres.NewSaleRepo(db, testClk)
	ctx := context.Background()

	s := &store.Session{Code: "ABCD", Admin: "alice", Budget: decimal.NewFromInt(100)}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create session: %v", err)
	}

	records := []store.Sale{
		{SessionID: s.ID, ItemID: "p1", ItemName: "One", Role: "BAT", Buyer: "alice", Price: decimal.RequireFromString("2.50"), Rating: 8},
		{SessionID: s.ID, ItemID: "p2", ItemName: "Two", Role: "SPIN", Buyer: "alice", Price: decimal.RequireFromString("1.10"), Rating: 7},
		{SessionID: s.ID, ItemID: "p3", ItemName: "Three", Role: "ALL", Buyer: "Jarvis", Price: decimal.RequireFromString("4.00"), Rating: 9},
	}
	for i := range records {
		if err := sales.Record(ctx, &records[i]); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// The same item cannot be sold twice within a session.
	dup := store.Sale{SessionID: s.ID, ItemID: "p1", ItemName: "One", Role: "BAT", Buyer: "bob", Price: decimal.NewFromInt(1)}
	if err := sales.Record(ctx, &dup); err == nil {
		t.Error("duplicate Record: expected error")
	}

	list, err := sales.ListBySession(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListBySession returned %d, want 3", len(list))
	}

	standings, err := sales.Standings(ctx, s.ID)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("Standings returned %d rows, want 2", len(standings))
	}
	if standings[0].Buyer != "alice" || standings[0].Players != 2 {
		t.Errorf("standings[0] = %+v, want alice with 2 players", standings[0])
	}
	if !standings[0].Spent.Equal(decimal.RequireFromString("3.6")) {
		t.Errorf("standings[0].Spent = %s, want 3.6", standings[0].Spent)
	}
}
