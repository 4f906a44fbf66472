package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/draft-auction/internal/bots"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/rng"
	"github.com/jensholdgaard/draft-auction/internal/roster"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/valuation"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Deps are the collaborators a Manager needs.
type Deps struct {
	Catalog        *catalog.Catalog
	Sessions       store.SessionRepository
	Sales          store.SaleRepository
	Events         event.Store
	Sink           event.Sink
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Clock          clock.Clock
	Rand           rng.Source
}

// Manager owns every live session, keyed by room code.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	archive  *archive

	cfg    config.AuctionConfig
	env    *env
	engine *valuation.Engine
	repo   store.SessionRepository
	events event.Store
	logger *slog.Logger
	tracer trace.Tracer
	clock  clock.Clock
	rand   rng.Source
}

// NewManager creates a Manager over the shared catalog.
func NewManager(cfg config.AuctionConfig, deps Deps) (*Manager, error) {
	if deps.Catalog == nil || deps.Catalog.Len() == 0 {
		return nil, &catalog.Error{Source: cfg.CatalogPath, Err: catalog.ErrEmpty}
	}
	if deps.Rand == nil {
		deps.Rand = rng.Fast{}
	}
	if deps.Sink == nil {
		deps.Sink = event.Fanout{}
	}
	m, err := newMetrics(deps.MeterProvider)
	if err != nil {
		return nil, err
	}
	arc, err := newArchive(cfg.ArchiveSize)
	if err != nil {
		return nil, err
	}
	ledger := roster.NewLedger(roster.DefaultTable)
	tracer := deps.TracerProvider.Tracer("github.com/jensholdgaard/draft-auction/internal/auction")
	return &Manager{
		sessions: make(map[string]*Session),
		archive:  arc,
		cfg:      cfg,
		env: &env{
			catalog: deps.Catalog,
			ledger:  ledger,
			events:  deps.Events,
			sales:   deps.Sales,
			sink:    deps.Sink,
			logger:  deps.Logger,
			tracer:  tracer,
			metrics: m,
			clock:   deps.Clock,
			rand:    deps.Rand,
		},
		engine: valuation.New(ledger),
		repo:   deps.Sessions,
		events: deps.Events,
		logger: deps.Logger,
		tracer: tracer,
		clock:  deps.Clock,
		rand:   deps.Rand,
	}, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) session(code string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[normalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return s, nil
}

// normalizeCode maps user-typed room codes onto the stored form.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// record finds a closed session's row by id once the archive has let it go.
func (m *Manager) record(ctx context.Context, id string) (*store.Session, error) {
	rec, err := m.repo.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session %s: %w", id, err)
	}
	return rec, nil
}

// newCode draws a room code unused by live and archived sessions, walking
// forward from the draw on collision. Callers hold mu.
func (m *Manager) newCode() (string, error) {
	b := make([]byte, 4)
	for i := range b {
		b[i] = byte(m.rand.Intn(len(codeLetters)))
	}
	for range 26 * 26 * 26 * 26 {
		code := make([]byte, len(b))
		for i, v := range b {
			code[i] = codeLetters[v]
		}
		_, live := m.sessions[string(code)]
		_, old := m.archive.get(string(code))
		if !live && !old {
			return string(code), nil
		}
		for i := len(b) - 1; i >= 0; i-- {
			b[i] = (b[i] + 1) % byte(len(codeLetters))
			if b[i] != 0 {
				break
			}
		}
	}
	return "", errors.New("no free room code")
}

// CreateSession opens a room administered by adminName with botCount
// automated bidders. A zero budget takes the configured default.
func (m *Manager) CreateSession(ctx context.Context, adminName string, budget decimal.Decimal, botCount int) (State, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.CreateSession",
		trace.WithAttributes(
			attribute.String("admin", adminName),
			attribute.Int("bots", botCount),
		),
	)
	defer span.End()

	adminName = strings.TrimSpace(adminName)
	if adminName == "" {
		return State{}, ErrUnknownBidder
	}
	if budget.IsZero() {
		budget = decimal.NewFromFloat(m.cfg.DefaultBudget)
	}
	if !budget.IsPositive() {
		return State{}, ErrInvalidBudget
	}
	if botCount < 0 || botCount > m.cfg.MaxBots || botCount+1 > m.cfg.MaxParticipants {
		return State{}, fmt.Errorf("%w: %d (max %d)", ErrTooManyBots, botCount, m.cfg.MaxBots)
	}
	if pool := m.env.catalog.Select(botCount+1, m.cfg.TrimPool); pool.Len() == 0 {
		return State{}, &catalog.Error{Source: m.cfg.CatalogPath, Err: catalog.ErrEmpty}
	}

	settings := Settings{
		Budget:          budget.Round(2),
		MaxParticipants: m.cfg.MaxParticipants,
		TrimPool:        m.cfg.TrimPool,
		SaleWindow:      m.cfg.SaleWindow,
		NextItemDelay:   m.cfg.NextItemDelay,
		FirstRoundDelay: m.cfg.FirstRoundDelay,
		InterRoundDelay: m.cfg.InterRoundDelay,
	}
	botEnv := bots.Env{
		Engine:         m.engine,
		Ledger:         m.env.ledger,
		Clock:          m.clock,
		Rand:           m.rand,
		ReactionMin:    m.cfg.BotReactionMin,
		ReactionJitter: m.cfg.BotReactionJitter,
	}

	m.mu.Lock()
	code, err := m.newCode()
	if err != nil {
		m.mu.Unlock()
		return State{}, err
	}
	s := newSession(context.Background(), uuid.NewString(), code, settings, m.env)
	if err := s.seat(adminName, bots.Lineup(botCount, m.rand), botEnv); err != nil {
		m.mu.Unlock()
		return State{}, err
	}
	if err := m.repo.Create(ctx, &store.Session{
		ID:     s.ID,
		Code:   code,
		Admin:  adminName,
		Budget: settings.Budget,
		Bots:   botCount,
	}); err != nil {
		m.mu.Unlock()
		return State{}, fmt.Errorf("persisting session: %w", err)
	}
	m.sessions[code] = s
	m.mu.Unlock()

	m.env.metrics.sessions.Add(ctx, 1)
	s.flush(ctx)

	m.logger.InfoContext(ctx, "session created",
		slog.String("code", code),
		slog.String("admin", adminName),
		slog.Int("bots", botCount),
		slog.String("budget", settings.Budget.String()),
	)
	return s.state(), nil
}

// JoinSession adds name to the room, or reconnects a returning participant.
// New participants may only join before the auction starts.
func (m *Manager) JoinSession(ctx context.Context, code, name string) (State, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.JoinSession",
		trace.WithAttributes(attribute.String("code", code), attribute.String("name", name)),
	)
	defer span.End()

	s, err := m.session(code)
	if err != nil {
		return State{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return State{}, ErrUnknownBidder
	}
	reconnected, err := s.join(name)
	if err != nil {
		return State{}, err
	}
	s.flush(ctx)

	m.logger.InfoContext(ctx, "participant joined",
		slog.String("code", s.Code),
		slog.String("name", name),
		slog.Bool("reconnected", reconnected),
	)
	return s.state(), nil
}

// LeaveSession disconnects name. The participant's roster stays.
func (m *Manager) LeaveSession(ctx context.Context, code, name string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.LeaveSession",
		trace.WithAttributes(attribute.String("code", code), attribute.String("name", name)),
	)
	defer span.End()

	s, err := m.session(code)
	if err != nil {
		return err
	}
	if err := s.leave(name); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

// Start begins or restarts the auction. Only the admin may call it.
func (m *Manager) Start(ctx context.Context, code, by string) error {
	return m.transition(ctx, "Manager.Start", code, by, (*Session).start)
}

// Pause freezes the live item. Only the admin may call it.
func (m *Manager) Pause(ctx context.Context, code, by string) error {
	return m.transition(ctx, "Manager.Pause", code, by, (*Session).pause)
}

// Resume restarts the sale window on the live item. Only the admin may
// call it.
func (m *Manager) Resume(ctx context.Context, code, by string) error {
	return m.transition(ctx, "Manager.Resume", code, by, (*Session).resume)
}

// End stops the auction. Only the admin may call it; ending twice is a
// no-op.
func (m *Manager) End(ctx context.Context, code, by string) error {
	if strings.TrimSpace(by) == "" {
		return ErrNotAdmin
	}
	return m.transition(ctx, "Manager.End", code, by, (*Session).end)
}

func (m *Manager) transition(ctx context.Context, op, code, by string, fn func(*Session, string) error) error {
	ctx, span := m.tracer.Start(ctx, op,
		trace.WithAttributes(attribute.String("code", code), attribute.String("by", by)),
	)
	defer span.End()

	s, err := m.session(code)
	if err != nil {
		return err
	}
	if err := fn(s, by); err != nil {
		return err
	}
	s.flush(ctx)

	m.logger.InfoContext(ctx, "session transition",
		slog.String("op", op),
		slog.String("code", s.Code),
		slog.String("by", by),
	)
	return nil
}

// PlaceBid submits a human bid of amount on the live item.
func (m *Manager) PlaceBid(ctx context.Context, code, bidder string, amount decimal.Decimal) error {
	ctx, span := m.tracer.Start(ctx, "Manager.PlaceBid",
		trace.WithAttributes(
			attribute.String("code", code),
			attribute.String("bidder", bidder),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	s, err := m.session(code)
	if err != nil {
		return err
	}
	if err := s.placeBid(bidder, amount); err != nil {
		return err
	}
	s.flush(ctx)

	m.logger.InfoContext(ctx, "bid placed",
		slog.String("code", s.Code),
		slog.String("bidder", bidder),
		slog.String("amount", amount.String()),
	)
	return nil
}

// NextBid returns the only amount the next bid may be.
func (m *Manager) NextBid(ctx context.Context, code string) (decimal.Decimal, error) {
	s, err := m.session(code)
	if err != nil {
		return decimal.Zero, err
	}
	return s.nextBid()
}

// State returns a snapshot of a live session.
func (m *Manager) State(ctx context.Context, code string) (State, error) {
	s, err := m.session(code)
	if err != nil {
		return State{}, err
	}
	return s.state(), nil
}

// Standings returns every roster of a live or archived session, best
// rated first. ref is a room code or, for sessions gone from the archive,
// the session id from the audit log; those are rebuilt from recorded sales
// and list buyers only.
func (m *Manager) Standings(ctx context.Context, ref string) ([]Standing, error) {
	if s, err := m.session(ref); err == nil {
		return s.standings(), nil
	}
	if sum, ok := m.archive.get(normalizeCode(ref)); ok {
		return sum.Standings, nil
	}
	rec, err := m.record(ctx, ref)
	if err != nil {
		return nil, err
	}
	sold, err := m.env.sales.Standings(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("loading recorded standings: %w", err)
	}
	out := make([]Standing, 0, len(sold))
	for _, st := range sold {
		out = append(out, Standing{
			Name:   st.Buyer,
			Status: roster.Status{
				Owner:     st.Buyer,
				Players:   st.Players,
				Spent:     st.Spent,
				Remaining: rec.Budget.Sub(st.Spent),
				Rating:    st.Rating,
			},
		})
	}
	return out, nil
}

// BotHistory returns the raises an automated bidder has proposed.
func (m *Manager) BotHistory(ctx context.Context, code, bot string) ([]bots.Decision, error) {
	s, err := m.session(code)
	if err != nil {
		return nil, err
	}
	return s.botHistory(bot)
}

// History returns the recorded events of a live or archived session. ref
// is a room code or a session id from the audit log.
func (m *Manager) History(ctx context.Context, ref string) ([]event.Event, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.History",
		trace.WithAttributes(attribute.String("ref", ref)),
	)
	defer span.End()

	var id string
	if s, err := m.session(ref); err == nil {
		id = s.ID
	} else if sum, ok := m.archive.get(normalizeCode(ref)); ok {
		id = sum.SessionID
	} else {
		rec, err := m.record(ctx, ref)
		if err != nil {
			return nil, err
		}
		id = rec.ID
	}
	events, err := m.events.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}
	return events, nil
}

// Reap drops idle participants and closes sessions nobody human is left
// in. It returns the number of sessions closed.
func (m *Manager) Reap(ctx context.Context) int {
	ctx, span := m.tracer.Start(ctx, "Manager.Reap")
	defer span.End()

	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	closed := 0
	for _, s := range live {
		occupied := s.reapIdle(now, m.cfg.IdleTimeout)
		s.flush(ctx)
		if !occupied && m.close(ctx, s) {
			closed++
		}
	}
	span.SetAttributes(attribute.Int("sessions.closed", closed))
	return closed
}

// Run reaps on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := clock.Sleep(ctx, m.clock, m.cfg.ReapInterval); err != nil {
			return nil
		}
		if n := m.Reap(ctx); n > 0 {
			m.logger.InfoContext(ctx, "reaped empty sessions", slog.Int("count", n))
		}
	}
}

// Shutdown ends and archives every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		m.close(ctx, s)
	}
}

// close ends s and moves it to the archive. Reap and Shutdown may race on
// the same session; only the caller that unregisters it does the rest and
// gets true.
func (m *Manager) close(ctx context.Context, s *Session) bool {
	_ = s.end("")
	s.flush(ctx)

	s.mu.Lock()
	admin := ""
	if p := s.byID[s.admin]; p != nil {
		admin = p.Name
	}
	s.mu.Unlock()
	summary := Summary{
		Code:      s.Code,
		SessionID: s.ID,
		Admin:     admin,
		Standings: s.standings(),
		ClosedAt:  m.clock.Now(),
	}

	m.mu.Lock()
	if m.sessions[s.Code] != s {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, s.Code)
	m.archive.put(summary)
	m.mu.Unlock()

	if err := m.repo.Close(ctx, s.ID); err != nil {
		m.logger.WarnContext(ctx, "failed to close session record",
			slog.String("code", s.Code), slog.Any("error", err))
	}
	m.env.metrics.sessions.Add(ctx, -1)
	m.logger.InfoContext(ctx, "session closed", slog.String("code", s.Code))
	return true
}
