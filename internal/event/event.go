package event

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies an event kind.
type Type string

const (
	SessionCreated    Type = "session.created"
	ParticipantJoined Type = "participant.joined"
	ParticipantLeft   Type = "participant.left"
	AdminChanged      Type = "admin.changed"
	PhaseChanged      Type = "phase.changed"

	ItemOffered Type = "item.offered"
	ItemSold    Type = "item.sold"
	ItemUnsold  Type = "item.unsold"

	BidAccepted Type = "bid.accepted"
	// BidRejected is never broadcast; transports build it for the caller.
	BidRejected Type = "bid.rejected"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// SessionCreatedData is the payload for SessionCreated events.
type SessionCreatedData struct {
	Code   string          `json:"code"`
	Admin  string          `json:"admin"`
	Budget decimal.Decimal `json:"budget"`
	Bots   int             `json:"bots"`
}

// ParticipantData is the payload for ParticipantJoined and ParticipantLeft.
type ParticipantData struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Franchise     string `json:"franchise"`
	Bot           bool   `json:"bot"`
	Reconnected   bool   `json:"reconnected,omitempty"`
}

// AdminChangedData is the payload for AdminChanged events.
type AdminChangedData struct {
	Previous string `json:"previous"`
	Admin    string `json:"admin"`
}

// PhaseChangedData is the payload for PhaseChanged events.
type PhaseChangedData struct {
	From string `json:"from"`
	To   string `json:"to"`
	By   string `json:"by,omitempty"`
}

// ItemOfferedData is the payload for ItemOffered events.
type ItemOfferedData struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Role      string          `json:"role"`
	BasePrice decimal.Decimal `json:"base_price"`
	Rating    float64         `json:"rating"`
	Category  string          `json:"category"`
}

// BidAcceptedData is the payload for BidAccepted events.
type BidAcceptedData struct {
	ItemID   string          `json:"item_id"`
	BidderID string          `json:"bidder_id"`
	Bidder   string          `json:"bidder"`
	Amount   decimal.Decimal `json:"amount"`
	Bot      bool            `json:"bot"`
	Reason   string          `json:"reason,omitempty"`
}

// BidRejectedData is the payload for BidRejected replies.
type BidRejectedData struct {
	ItemID string          `json:"item_id"`
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// ItemSoldData is the payload for ItemSold events.
type ItemSoldData struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Role     string          `json:"role"`
	BuyerID  string          `json:"buyer_id"`
	Buyer    string          `json:"buyer"`
	Price    decimal.Decimal `json:"price"`
	Rating   float64         `json:"rating"`
	Complete bool            `json:"roster_complete"`
}

// ItemUnsoldData is the payload for ItemUnsold events.
type ItemUnsoldData struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
}
