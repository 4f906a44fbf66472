package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/store/memory"
)

var testClk = clock.NewMock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

func TestSessionRepo_Lifecycle(t *testing.T) {
	repo := memory.NewSessionRepo(testClk)
	ctx := context.Background()

	s := &store.Session{Code: "ABCD", Admin: "alice", Budget: decimal.NewFromInt(100), Bots: 3}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID == "" || s.Status != "open" {
		t.Fatalf("Create() left session %+v", s)
	}

	open, err := repo.ListOpen(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("ListOpen() = %v, %v; want one session", open, err)
	}

	if err := repo.Close(ctx, s.ID); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := repo.Close(ctx, s.ID); err == nil {
		t.Error("second Close() error = nil, want error")
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "closed" || got.ClosedAt == nil {
		t.Errorf("GetByID() = %+v, want closed", got)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSaleRepo_Standings(t *testing.T) {
	repo := memory.NewSaleRepo(testClk)
	ctx := context.Background()

	sales := []store.Sale{
		{SessionID: "s1", ItemID: "p1", Buyer: "alice", Price: decimal.RequireFromString("2.5"), Rating: 8},
		{SessionID: "s1", ItemID: "p2", Buyer: "alice", Price: decimal.RequireFromString("1.1"), Rating: 7},
		{SessionID: "s1", ItemID: "p3", Buyer: "Jarvis", Price: decimal.RequireFromString("4"), Rating: 9},
		{SessionID: "s2", ItemID: "p1", Buyer: "bob", Price: decimal.RequireFromString("1"), Rating: 8},
	}
	for i := range sales {
		if err := repo.Record(ctx, &sales[i]); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	standings, err := repo.Standings(ctx, "s1")
	if err != nil {
		t.Fatalf("Standings() error = %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("Standings() returned %d rows, want 2", len(standings))
	}
	if standings[0].Buyer != "alice" || standings[0].Players != 2 || !standings[0].Spent.Equal(decimal.RequireFromString("3.6")) {
		t.Errorf("standings[0] = %+v", standings[0])
	}
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	es := memory.NewEventStore(testClk)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "s1", Type: event.SessionCreated, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "s1", Type: event.ItemOffered, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "s2", Type: event.SessionCreated, Data: json.RawMessage(`{}`), Version: 1},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	loaded, err := es.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 2 || loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("Load() = %+v", loaded)
	}

	created, _ := es.LoadByType(ctx, event.SessionCreated)
	if len(created) != 2 {
		t.Errorf("LoadByType() returned %d, want 2", len(created))
	}

	dup := event.Event{AggregateID: "s1", Type: event.ItemOffered, Data: json.RawMessage(`{}`), Version: 2}
	if err := es.Append(ctx, dup); err == nil {
		t.Error("Append() duplicate version error = nil, want error")
	}
}
