package event_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/event"
)

func TestFanout_Publish(t *testing.T) {
	rec := &event.Recorder{}
	failing := event.SinkFunc(func(context.Context, event.Event) error {
		return errors.New("channel gone")
	})
	f := event.Fanout{failing, rec}

	err := f.Publish(context.Background(), event.Event{Type: event.ItemOffered})
	if err == nil {
		t.Fatal("Publish() error = nil, want joined error")
	}
	if got := rec.Types(); len(got) != 1 || got[0] != event.ItemOffered {
		t.Errorf("recorded %v, want [%s]", got, event.ItemOffered)
	}
}

func TestEvent_Decode(t *testing.T) {
	data, err := json.Marshal(event.ItemSoldData{ItemID: "p1", Buyer: "alice", Price: decimal.RequireFromString("2.5")})
	if err != nil {
		t.Fatal(err)
	}
	e := event.Event{Type: event.ItemSold, Data: data}

	var got event.ItemSoldData
	if err := e.Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Buyer != "alice" || !got.Price.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Decode() = %+v", got)
	}
}
