package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Bridge writes and reads fingerprint records on behalf of the token
// manager, scoped to one session. Storage failures are swallowed and logged;
// the token path must never go down with its persistence.
type Bridge struct {
	store     Store
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogger sets the logger used for storage degradation warnings.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithClock overrides the clock used for staleness checks.
func WithClock(now func() time.Time) BridgeOption {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithSessionID pins the session scope instead of generating one. Useful for
// tests and for callers that manage their own session identity.
func WithSessionID(id string) BridgeOption {
	return func(b *Bridge) {
		b.sessionID = id
	}
}

// NewBridge creates a Bridge over the given store. Each Bridge gets its own
// session scope, the analogue of per-tab storage: records from other sessions
// are neither read nor touched.
func NewBridge(store Store, opts ...BridgeOption) (*Bridge, error) {
	if store == nil {
		return nil, fmt.Errorf("missing fingerprint store")
	}

	b := &Bridge{
		store:     store,
		sessionID: uuid.NewString(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// SessionID returns the scope key this bridge persists under.
func (b *Bridge) SessionID() string {
	return b.sessionID
}

// Save records the fingerprint of the token, never the token itself.
func (b *Bridge) Save(ctx context.Context, token string, expiresAt time.Time) {
	rec := Record{Hash: Digest(token), ExpiresAt: expiresAt}
	if err := b.store.Save(ctx, b.sessionID, rec); err != nil {
		b.logger.WarnContext(ctx, "fingerprint persistence degraded, continuing in-memory only", "error", err)
	}
}

// Load returns the persisted record when present and not yet expired. Stale
// records are cleared on sight.
func (b *Bridge) Load(ctx context.Context) (Record, bool) {
	rec, ok, err := b.store.Load(ctx, b.sessionID)
	if err != nil {
		b.logger.WarnContext(ctx, "fingerprint load degraded, treating as absent", "error", err)
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	if !b.now().Before(rec.ExpiresAt) {
		b.Clear(ctx)
		return Record{}, false
	}

	return rec, true
}

// Clear removes the persisted record. Idempotent; failures are logged only.
func (b *Bridge) Clear(ctx context.Context) {
	if err := b.store.Clear(ctx, b.sessionID); err != nil {
		b.logger.WarnContext(ctx, "failed to clear persisted fingerprint", "error", err)
	}
}
