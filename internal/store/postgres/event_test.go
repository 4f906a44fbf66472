package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, testClk)
	ctx := context.Background()

	aggID := "session-001"
	events := []event.Event{
		{ID: "evt-1", AggregateID: aggID, Type: event.ItemOffered, Data: json.RawMessage(`{"item_id":"player-1"}`), Version: 1},
		{AggregateID: aggID, Type: event.BidAccepted, Data: json.RawMessage(`{"bidder":"alice","amount":"0.2"}`), Version: 2},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}
	if loaded[0].ID != "evt-1" {
		t.Errorf("event[0].ID = %q, want evt-1", loaded[0].ID)
	}
	if loaded[1].ID == "" {
		t.Error("event[1] was stored without an id")
	}
	if !loaded[1].CreatedAt.Equal(testClk.Now()) {
		t.Errorf("event[1].CreatedAt = %v, want %v", loaded[1].CreatedAt, testClk.Now())
	}
	if loaded[0].Type != event.ItemOffered {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.ItemOffered)
	}

	var bid event.BidAcceptedData
	if err := loaded[1].Decode(&bid); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if bid.Bidder != "alice" {
		t.Errorf("Bidder = %q, want alice", bid.Bidder)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, testClk)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "s1", Type: event.SessionCreated, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "s1", Type: event.ItemSold, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "s2", Type: event.SessionCreated, Data: json.RawMessage(`{}`), Version: 1},
	}
	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	created, err := es.LoadByType(ctx, event.SessionCreated)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("LoadByType(SessionCreated) returned %d, want 2", len(created))
	}

	sold, err := es.LoadByType(ctx, event.ItemSold)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(sold) != 1 {
		t.Fatalf("LoadByType(ItemSold) returned %d, want 1", len(sold))
	}
}

func TestEventStore_UniqueAggregateVersion(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, testClk)
	ctx := context.Background()

	e := event.Event{
		AggregateID: "dup-test",
		Type:        event.PhaseChanged,
		Data:        json.RawMessage(`{}`),
		Version:     1,
	}
	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := es.Append(ctx, e); err == nil {
		t.Fatal("expected error for duplicate aggregate_id + version")
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db, testClk)

	loaded, err := es.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
