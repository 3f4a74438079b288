package antiforgery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hllvc/domaindoctor/internal/fingerprint"
)

const (
	// SafetyMargin treats a token as expired this long before the server
	// does, tolerating clock skew and in-flight request latency.
	SafetyMargin = 5 * time.Minute

	// RefreshSoonThreshold is the time-to-expiry below which
	// ShouldRefreshSoon asks for a proactive background refresh, keeping the
	// reactive refresh path out of active user actions.
	RefreshSoonThreshold = 30 * time.Minute
)

// Manager owns the token lifecycle: cached reads inside the safety margin,
// single-flight refreshes, fingerprint persistence and explicit invalidation.
// It is the only component that mutates the state store or the coordinator.
type Manager struct {
	fetcher Fetcher
	bridge  *fingerprint.Bridge
	state   *StateStore
	coord   *Coordinator
	logger  *slog.Logger
	now     func() time.Time

	bootstrapOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for lifecycle diagnostics.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the clock used for freshness decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager. No I/O is performed until the first Token
// call.
func NewManager(fetcher Fetcher, bridge *fingerprint.Bridge, opts ...ManagerOption) (*Manager, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("missing fetcher")
	}
	if bridge == nil {
		return nil, fmt.Errorf("missing fingerprint bridge")
	}

	m := &Manager{
		fetcher: fetcher,
		bridge:  bridge,
		state:   &StateStore{},
		coord:   &Coordinator{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Token returns the cached token while now is at least SafetyMargin before
// its expiry, otherwise performs (or joins) a single-flight refresh. On
// refresh failure the error describes why no protected call can currently be
// made; the Manager does not schedule retries.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	m.bootstrapOnce.Do(func() { m.bootstrap(ctx) })

	if tok, ok := m.state.Read(); ok && tok.Fresh(m.now(), SafetyMargin) {
		return tok, nil
	}

	return m.coord.RunExclusive(ctx, m.refresh)
}

// ShouldRefreshSoon reports whether a background refresh is worthwhile. With
// no cached token it always is. Optimization hint only; Token stays correct
// without it.
func (m *Manager) ShouldRefreshSoon() bool {
	tok, ok := m.state.Read()
	if !ok {
		return true
	}

	return tok.ExpiresAt.Sub(m.now()) < RefreshSoonThreshold
}

// Invalidate discards the cached token and the persisted fingerprint, so the
// very next Token call performs a fresh fetch. Idempotent.
func (m *Manager) Invalidate(ctx context.Context) {
	m.state.Clear()
	m.bridge.Clear(ctx)
}

// bootstrap consults the persisted fingerprint once per process. The record
// cannot reconstitute the secret, so a live fetch is still required before
// the first protected call; the fingerprint only informs diagnostics.
func (m *Manager) bootstrap(ctx context.Context) {
	if rec, ok := m.bridge.Load(ctx); ok {
		m.logger.DebugContext(ctx, "token fingerprint from previous session still live, fresh fetch required regardless",
			"expires_at", rec.ExpiresAt)
	}
}

// refresh performs one fetch and records the outcome. Runs inside the
// coordinator's exclusive slot.
func (m *Manager) refresh(ctx context.Context) (Token, error) {
	tok, err := m.fetcher.Fetch(ctx)
	if err != nil {
		// A failed fetch destroys whatever stale token was cached.
		m.state.Clear()
		return Token{}, fmt.Errorf("fetching security token: %w", err)
	}

	m.state.Write(tok)
	// Persistence is an optimization; Save degrades to a logged no-op on
	// storage failure.
	m.bridge.Save(ctx, tok.Value, tok.ExpiresAt)

	return tok, nil
}
