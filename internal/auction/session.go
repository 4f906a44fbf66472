package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/bidding"
	"github.com/jensholdgaard/draft-auction/internal/bots"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/rng"
	"github.com/jensholdgaard/draft-auction/internal/roster"
	"github.com/jensholdgaard/draft-auction/internal/store"
)

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
	PhasePaused Phase = "paused"
	PhaseEnded  Phase = "ended"
)

// Franchises label participants in join order after a shuffle.
var Franchises = []string{"CSK", "MI", "RCB", "KKR", "DC", "SRH", "RR", "PK", "GT", "LSG"}

// Settings are the per-session knobs taken from configuration.
type Settings struct {
	Budget          decimal.Decimal
	MaxParticipants int
	TrimPool        bool
	SaleWindow      time.Duration
	NextItemDelay   time.Duration
	FirstRoundDelay time.Duration
	InterRoundDelay time.Duration
}

// env is shared by every session of a Manager.
type env struct {
	catalog *catalog.Catalog
	ledger  *roster.Ledger
	events  event.Store
	sales   store.SaleRepository
	sink    event.Sink
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	clock   clock.Clock
	rand    rng.Source
}

// Participant is a human or automated member of a session.
type Participant struct {
	ID        string
	Name      string
	Franchise string
	Bot       bool
	Connected bool
	JoinedAt  time.Time
	LastSeen  time.Time

	roster *roster.Roster
}

// Session is one auction room. Every transition runs under mu; events
// produced by a transition are delivered in order once it completes.
type Session struct {
	ID       string
	Code     string
	settings Settings
	env      *env
	bg       context.Context

	mu           sync.Mutex
	phase        Phase
	admin        string
	participants []*Participant
	byID         map[string]*Participant
	franchises   []string
	pool         *catalog.Pool
	bots         *bots.Pool
	awarded      map[string]bool
	sold         int

	categoryCursor int
	itemCursor     int

	item              *catalog.Item
	current           decimal.Decimal
	holder            string
	biddingInProgress bool

	saleTimer    clock.Timer
	advanceTimer clock.Timer
	roundTimer   clock.Timer
	saleSeq      uint64
	advanceSeq   uint64
	cascadeSeq   uint64
	cancelRound  context.CancelFunc

	version      int
	outbox       []event.Event
	pendingSales []store.Sale

	flushMu sync.Mutex
}

func newSession(bg context.Context, id, code string, settings Settings, e *env) *Session {
	franchises := make([]string, len(Franchises))
	copy(franchises, Franchises)
	rng.Shuffle(e.rand, len(franchises), func(i, j int) { franchises[i], franchises[j] = franchises[j], franchises[i] })

	return &Session{
		ID:         id,
		Code:       code,
		settings:   settings,
		env:        e,
		bg:         bg,
		phase:      PhaseIdle,
		byID:       make(map[string]*Participant),
		franchises: franchises,
		awarded:    make(map[string]bool),
		bots:       bots.NewPool(e.ledger),
	}
}

// seat adds the admin and the automated bidders. It runs once, before the
// session is visible to anyone else.
func (s *Session) seat(admin string, lineup []bots.Seat, botEnv bots.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.addParticipant(uuid.NewString(), admin, false)
	s.admin = p.ID
	s.emit(event.SessionCreated, event.SessionCreatedData{
		Code:   s.Code,
		Admin:  admin,
		Budget: s.settings.Budget,
		Bots:   len(lineup),
	})
	s.emitJoined(p, false)

	bidders := make([]*bots.Bidder, 0, len(lineup))
	for i, seat := range lineup {
		profile, err := profileFor(seat)
		if err != nil {
			return err
		}
		bp := s.addParticipant(fmt.Sprintf("bot-%d", i+1), seat.Name, true)
		bidders = append(bidders, bots.NewBidder(bp.ID, bp.Name, profile, botEnv))
		s.emitJoined(bp, false)
	}
	s.bots = bots.NewPool(s.env.ledger, bidders...)
	return nil
}

func (s *Session) addParticipant(id, name string, bot bool) *Participant {
	now := s.env.clock.Now()
	p := &Participant{
		ID:        id,
		Name:      name,
		Bot:       bot,
		Connected: true,
		JoinedAt:  now,
		LastSeen:  now,
		roster:    roster.New(id, s.settings.Budget),
	}
	if n := len(s.participants); n < len(s.franchises) {
		p.Franchise = s.franchises[n]
	}
	s.participants = append(s.participants, p)
	s.byID[id] = p
	return p
}

func (s *Session) emitJoined(p *Participant, reconnected bool) {
	s.emit(event.ParticipantJoined, event.ParticipantData{
		ParticipantID: p.ID,
		Name:          p.Name,
		Franchise:     p.Franchise,
		Bot:           p.Bot,
		Reconnected:   reconnected,
	})
}

// emit queues an event for ordered delivery. Callers hold mu.
func (s *Session) emit(t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	s.version++
	s.outbox = append(s.outbox, event.Event{
		ID:          uuid.NewString(),
		AggregateID: s.ID,
		Type:        t,
		Data:        data,
		Version:     s.version,
		CreatedAt:   s.env.clock.Now().UTC(),
	})
}

// flush persists and publishes everything queued so far. Batches leave in
// the order they were queued.
func (s *Session) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch, sales := s.outbox, s.pendingSales
	s.outbox, s.pendingSales = nil, nil
	s.mu.Unlock()

	if len(batch) == 0 && len(sales) == 0 {
		return
	}
	if len(batch) > 0 {
		if err := s.env.events.Append(ctx, batch...); err != nil {
			s.env.logger.ErrorContext(ctx, "failed to persist session events",
				slog.String("session", s.Code), slog.Any("error", err))
		}
	}
	for i := range sales {
		if err := s.env.sales.Record(ctx, &sales[i]); err != nil {
			s.env.logger.ErrorContext(ctx, "failed to record sale",
				slog.String("session", s.Code),
				slog.String("item", sales[i].ItemID),
				slog.Any("error", err))
		}
	}
	for _, e := range batch {
		if err := s.env.sink.Publish(ctx, e); err != nil {
			s.env.logger.WarnContext(ctx, "failed to publish event",
				slog.String("session", s.Code),
				slog.String("type", string(e.Type)),
				slog.Any("error", err))
		}
	}
}

// findByName matches case-insensitively. Callers hold mu.
func (s *Session) findByName(name string) *Participant {
	for _, p := range s.participants {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (s *Session) requireAdmin(by string) error {
	p := s.findByName(by)
	if p == nil || p.Bot || p.ID != s.admin {
		return ErrNotAdmin
	}
	p.LastSeen = s.env.clock.Now()
	return nil
}

func (s *Session) join(name string) (reconnected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.findByName(name); p != nil {
		if p.Bot || p.Connected {
			return false, ErrNameTaken
		}
		p.Connected = true
		p.LastSeen = s.env.clock.Now()
		s.emitJoined(p, true)
		if admin := s.byID[s.admin]; admin == nil || !admin.Connected {
			s.setAdmin(p)
		}
		return true, nil
	}
	if s.phase != PhaseIdle {
		return false, ErrAlreadyStarted
	}
	if len(s.participants) >= s.settings.MaxParticipants {
		return false, ErrSessionFull
	}
	p := s.addParticipant(uuid.NewString(), name, false)
	s.emitJoined(p, false)
	return false, nil
}

func (s *Session) leave(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findByName(name)
	if p == nil || p.Bot {
		return ErrUnknownBidder
	}
	s.disconnect(p)
	return nil
}

// disconnect marks p gone and hands the admin role on. Callers hold mu.
func (s *Session) disconnect(p *Participant) {
	if !p.Connected {
		return
	}
	p.Connected = false
	s.emit(event.ParticipantLeft, event.ParticipantData{
		ParticipantID: p.ID,
		Name:          p.Name,
		Franchise:     p.Franchise,
	})
	if p.ID != s.admin {
		return
	}
	for _, next := range s.participants {
		if !next.Bot && next.Connected {
			s.setAdmin(next)
			return
		}
	}
}

func (s *Session) setAdmin(p *Participant) {
	previous := ""
	if old := s.byID[s.admin]; old != nil {
		previous = old.Name
	}
	s.admin = p.ID
	s.emit(event.AdminChanged, event.AdminChangedData{Previous: previous, Admin: p.Name})
}

// reapIdle disconnects humans silent for longer than timeout and reports
// whether anyone human is still connected.
func (s *Session) reapIdle(now time.Time, timeout time.Duration) (occupied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants {
		if p.Bot || !p.Connected {
			continue
		}
		if now.Sub(p.LastSeen) > timeout {
			s.env.logger.Info("dropping idle participant",
				slog.String("session", s.Code), slog.String("name", p.Name))
			s.disconnect(p)
		}
	}
	for _, p := range s.participants {
		if !p.Bot && p.Connected {
			return true
		}
	}
	return false
}

func (s *Session) setPhase(to Phase, by string) {
	from := s.phase
	s.phase = to
	s.emit(event.PhaseChanged, event.PhaseChangedData{From: string(from), To: string(to), By: by})
}

// start opens bidding from Idle, or restarts an Ended auction from the
// first category so unsold items are offered again.
func (s *Session) start(by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(by); err != nil {
		return err
	}
	if s.phase == PhaseActive || s.phase == PhasePaused {
		return nil
	}
	s.pool = s.env.catalog.Select(len(s.participants), s.settings.TrimPool)
	s.categoryCursor, s.itemCursor = 0, 0
	s.setPhase(PhaseActive, by)
	s.advance()
	return nil
}

func (s *Session) pause(by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(by); err != nil {
		return err
	}
	if s.phase != PhaseActive {
		return nil
	}
	s.stopTimers()
	s.setPhase(PhasePaused, by)
	return nil
}

func (s *Session) resume(by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(by); err != nil {
		return err
	}
	if s.phase != PhasePaused {
		return nil
	}
	s.setPhase(PhaseActive, by)
	if s.item == nil {
		s.scheduleAdvance()
		return nil
	}
	s.armSaleTimer()
	s.triggerCascade(s.settings.InterRoundDelay)
	return nil
}

// end is idempotent: ending an ended session changes nothing.
func (s *Session) end(by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if by != "" {
		if err := s.requireAdmin(by); err != nil {
			return err
		}
	}
	if s.phase == PhaseEnded {
		return nil
	}
	s.finish(by)
	return nil
}

func (s *Session) finish(by string) {
	s.clearLive()
	s.setPhase(PhaseEnded, by)
}

// clearLive drops the live item and cancels every pending continuation.
func (s *Session) clearLive() {
	s.stopTimers()
	s.item = nil
	s.current = decimal.Zero
	s.holder = ""
}

func (s *Session) stopTimers() {
	if s.saleTimer != nil {
		s.saleTimer.Stop()
		s.saleTimer = nil
	}
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	s.saleSeq++
	s.advanceSeq++
	s.cancelCascade()
}

// advance offers the next unawarded item in category order, ending the
// auction when nothing is left or every roster is complete.
func (s *Session) advance() {
	if s.allComplete() {
		s.finish("")
		return
	}
	cats := s.pool.Categories()
	for s.categoryCursor < len(cats) {
		items := s.pool.Items(cats[s.categoryCursor])
		for s.itemCursor < len(items) {
			it := items[s.itemCursor]
			s.itemCursor++
			if s.awarded[it.ID] {
				continue
			}
			s.offer(it)
			return
		}
		s.categoryCursor++
		s.itemCursor = 0
	}
	s.finish("")
}

func (s *Session) offer(it catalog.Item) {
	s.item = &it
	s.current = decimal.Zero
	s.holder = ""
	s.emit(event.ItemOffered, event.ItemOfferedData{
		ItemID:    it.ID,
		Name:      it.Name,
		Role:      string(it.Role),
		BasePrice: it.BasePrice,
		Rating:    it.Rating,
		Category:  it.Set,
	})
	s.armSaleTimer()
	s.triggerCascade(s.settings.FirstRoundDelay)
}

func (s *Session) allComplete() bool {
	if len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if !s.env.ledger.IsComplete(p.roster) {
			return false
		}
	}
	return true
}

func (s *Session) armSaleTimer() {
	if s.saleTimer != nil {
		s.saleTimer.Stop()
	}
	s.saleSeq++
	seq := s.saleSeq
	s.saleTimer = s.env.clock.AfterFunc(s.settings.SaleWindow, func() { s.onSaleExpiry(seq) })
}

func (s *Session) onSaleExpiry(seq uint64) {
	s.mu.Lock()
	if seq != s.saleSeq || s.phase != PhaseActive || s.item == nil {
		s.mu.Unlock()
		return
	}
	s.saleTimer = nil
	s.settle()
	s.mu.Unlock()
	s.flush(s.bg)
}

// settle closes the live item: an award to the holder, or a pass when
// nobody bid.
func (s *Session) settle() {
	it := *s.item
	ctx := s.bg
	if p := s.byID[s.holder]; p != nil {
		if err := s.env.ledger.Award(p.roster, it, s.current); err != nil {
			s.env.logger.WarnContext(ctx, "award refused, item passes unsold",
				slog.String("session", s.Code),
				slog.String("item", it.ID),
				slog.String("holder", p.Name),
				slog.Any("error", err))
			s.pass(it)
		} else {
			s.awarded[it.ID] = true
			s.sold++
			price, _ := s.current.Float64()
			s.env.metrics.itemsSold.Add(ctx, 1)
			s.env.metrics.salePrice.Record(ctx, price, metric.WithAttributes(attribute.String("role", string(it.Role))))
			s.emit(event.ItemSold, event.ItemSoldData{
				ItemID:   it.ID,
				Name:     it.Name,
				Role:     string(it.Role),
				BuyerID:  p.ID,
				Buyer:    p.Name,
				Price:    s.current,
				Rating:   it.Rating,
				Complete: s.env.ledger.IsComplete(p.roster),
			})
			s.pendingSales = append(s.pendingSales, store.Sale{
				SessionID: s.ID,
				ItemID:    it.ID,
				ItemName:  it.Name,
				Role:      string(it.Role),
				Buyer:     p.Name,
				Price:     s.current,
				Rating:    it.Rating,
			})
		}
	} else {
		s.pass(it)
	}

	s.clearLive()
	if s.allComplete() {
		s.finish("")
		return
	}
	s.scheduleAdvance()
}

func (s *Session) pass(it catalog.Item) {
	s.env.metrics.itemsUnsold.Add(s.bg, 1)
	s.emit(event.ItemUnsold, event.ItemUnsoldData{ItemID: it.ID, Name: it.Name})
}

func (s *Session) scheduleAdvance() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
	}
	s.advanceSeq++
	seq := s.advanceSeq
	s.advanceTimer = s.env.clock.AfterFunc(s.settings.NextItemDelay, func() { s.onAdvance(seq) })
}

func (s *Session) onAdvance(seq uint64) {
	s.mu.Lock()
	if seq != s.advanceSeq || s.phase != PhaseActive || s.item != nil {
		s.mu.Unlock()
		return
	}
	s.advanceTimer = nil
	s.advance()
	s.mu.Unlock()
	s.flush(s.bg)
}

// placeBid applies a human bid. Rejections leave the session untouched.
func (s *Session) placeBid(name string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateBid(name, amount); err != nil {
		s.env.metrics.bidsRejected.Add(s.bg, 1)
		return err
	}
	p := s.findByName(name)
	p.LastSeen = s.env.clock.Now()
	s.apply(p, amount, "")
	s.triggerCascade(s.settings.InterRoundDelay)
	return nil
}

func (s *Session) validateBid(name string, amount decimal.Decimal) error {
	if s.phase != PhaseActive {
		return reject(name, ErrNotActive)
	}
	if s.item == nil {
		return reject(name, ErrNoItem)
	}
	p := s.findByName(name)
	if p == nil {
		return reject(name, ErrUnknownBidder)
	}
	if p.Bot {
		return reject(name, ErrBotBidder)
	}
	if s.holder == p.ID {
		return reject(name, ErrAlreadyHighest)
	}
	if !amount.IsPositive() || !amount.GreaterThan(s.current) {
		return reject(name, ErrBidTooLow)
	}
	if !amount.Equal(bidding.Next(s.current, s.item.BasePrice)) {
		return reject(name, ErrOffLadder)
	}
	if err := s.env.ledger.Check(p.roster, s.item.Role); err != nil {
		return reject(name, fmt.Errorf("%w: %w", ErrRoleForbidden, err))
	}
	if amount.GreaterThan(p.roster.Remaining()) {
		return reject(name, ErrInsufficientBudget)
	}
	return nil
}

// apply makes p the holder at amount and restarts the sale window.
func (s *Session) apply(p *Participant, amount decimal.Decimal, reason string) {
	s.current = amount
	s.holder = p.ID
	s.env.metrics.bidsAccepted.Add(s.bg, 1, metric.WithAttributes(attribute.Bool("bot", p.Bot)))
	s.emit(event.BidAccepted, event.BidAcceptedData{
		ItemID:   s.item.ID,
		BidderID: p.ID,
		Bidder:   p.Name,
		Amount:   amount,
		Bot:      p.Bot,
		Reason:   reason,
	})
	s.armSaleTimer()
}

func (s *Session) nextBid() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return decimal.Zero, ErrNotActive
	}
	if s.item == nil {
		return decimal.Zero, ErrNoItem
	}
	return bidding.Next(s.current, s.item.BasePrice), nil
}

// Standing is one participant's roster summary.
type Standing struct {
	ParticipantID string
	Name          string
	Franchise     string
	Bot           bool
	Status        roster.Status
}

func (s *Session) standings() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Standing, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, Standing{
			ParticipantID: p.ID,
			Name:          p.Name,
			Franchise:     p.Franchise,
			Bot:           p.Bot,
			Status:        s.env.ledger.Status(p.roster),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status.Rating > out[j].Status.Rating
	})
	return out
}

// ParticipantView is the public face of a participant.
type ParticipantView struct {
	Name      string
	Franchise string
	Bot       bool
	Connected bool
	Admin     bool
}

// State is a point-in-time view of a session.
type State struct {
	Code         string
	SessionID    string
	Phase        Phase
	Admin        string
	Item         *catalog.Item
	Current      decimal.Decimal
	Holder       string
	Next         decimal.Decimal
	Participants []ParticipantView
	Sold         int
	Unsold       int
	Stage        bots.Stage
	BotsBidding  bool
}

func (s *Session) state() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Code:        s.Code,
		SessionID:   s.ID,
		Phase:       s.phase,
		Current:     s.current,
		Sold:        s.sold,
		Stage:       bots.StageOf(s.sold, len(s.participants), s.env.ledger.Table().Size()),
		BotsBidding: s.biddingInProgress,
	}
	if admin := s.byID[s.admin]; admin != nil {
		st.Admin = admin.Name
	}
	if s.item != nil {
		it := *s.item
		st.Item = &it
		st.Next = bidding.Next(s.current, it.BasePrice)
	}
	if h := s.byID[s.holder]; h != nil {
		st.Holder = h.Name
	}
	if s.pool != nil {
		st.Unsold = s.pool.Count(func(it catalog.Item) bool { return !s.awarded[it.ID] }, s.pool.Categories()...)
	}
	for _, p := range s.participants {
		st.Participants = append(st.Participants, ParticipantView{
			Name:      p.Name,
			Franchise: p.Franchise,
			Bot:       p.Bot,
			Connected: p.Connected,
			Admin:     p.ID == s.admin,
		})
	}
	return st
}

func (s *Session) botHistory(name string) ([]bots.Decision, error) {
	s.mu.Lock()
	p := s.findByName(name)
	s.mu.Unlock()
	if p == nil || !p.Bot {
		return nil, ErrUnknownBidder
	}
	for _, b := range s.bots.Bidders() {
		if b.ID == p.ID {
			return b.History(), nil
		}
	}
	return nil, ErrUnknownBidder
}
