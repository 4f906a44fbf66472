// Package memory provides a store.Driver that keeps everything in process
// memory. It is the default driver and backs tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

func init() {
	store.Register("memory", open)
}

func open(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	return New(clk), nil
}

// New returns memory-backed repositories.
func New(clk clock.Clock) *store.Repositories {
	return &store.Repositories{
		Sessions: NewSessionRepo(clk),
		Sales:    NewSaleRepo(clk),
		Events:   NewEventStore(clk),
		Closer:   store.CloserFunc(func() error { return nil }),
		Ping:     func(context.Context) error { return nil },
	}
}

// SessionRepo implements store.SessionRepository in memory.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	clock    clock.Clock
}

// NewSessionRepo returns an empty SessionRepo.
func NewSessionRepo(clk clock.Clock) *SessionRepo {
	return &SessionRepo{sessions: make(map[string]store.Session), clock: clk}
}

func (r *SessionRepo) Create(_ context.Context, s *store.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	s.Status = "open"
	s.CreatedAt = r.clock.Now().UTC()
	r.sessions[s.ID] = *s
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*store.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("getting session %s: %w", id, store.ErrNotFound)
	}
	return &s, nil
}

func (r *SessionRepo) Close(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != "open" {
		return fmt.Errorf("session %s not found or already closed", id)
	}
	now := r.clock.Now().UTC()
	s.Status = "closed"
	s.ClosedAt = &now
	r.sessions[id] = s
	return nil
}

func (r *SessionRepo) ListOpen(_ context.Context) ([]store.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Session
	for _, s := range r.sessions {
		if s.Status == "open" {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaleRepo implements store.SaleRepository in memory.
type SaleRepo struct {
	mu    sync.RWMutex
	sales []store.Sale
	clock clock.Clock
}

// NewSaleRepo returns an empty SaleRepo.
func NewSaleRepo(clk clock.Clock) *SaleRepo {
	return &SaleRepo{clock: clk}
}

func (r *SaleRepo) Record(_ context.Context, s *store.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = r.clock.Now().UTC()
	r.sales = append(r.sales, *s)
	return nil
}

func (r *SaleRepo) ListBySession(_ context.Context, sessionID string) ([]store.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []store.Sale
	for _, s := range r.sales {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *SaleRepo) Standings(ctx context.Context, sessionID string) ([]store.Standing, error) {
	sales, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
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
	out := make([]store.Standing, 0, len(byBuyer))
	for _, st := range byBuyer {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Buyer < out[j].Buyer
	})
	return out, nil
}

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	seen   map[string]map[int]bool
	clock  clock.Clock
}

// NewEventStore returns an empty EventStore.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{seen: make(map[string]map[int]bool), clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if s.seen[e.AggregateID][e.Version] {
			return fmt.Errorf("inserting event (aggregate=%s, version=%d): duplicate version", e.AggregateID, e.Version)
		}
	}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		if s.seen[e.AggregateID] == nil {
			s.seen[e.AggregateID] = make(map[int]bool)
		}
		s.seen[e.AggregateID][e.Version] = true
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}
