package antiforgery

import "time"

// Token is the anti-forgery token issued by the diagnostics backend. The
// value is opaque: the client never inspects it beyond non-emptiness.
type Token struct {
	// Value is the token exactly as issued by the backend.
	Value string

	// ExpiresAt is the wall-clock instant the token stops being usable,
	// derived from the server-reported relative lifetime at fetch time.
	ExpiresAt time.Time

	// ServerTimeOffset is reserved for clock-skew correction. The token
	// endpoint does not report its clock today, so the offset is always zero.
	ServerTimeOffset time.Duration
}

// Fresh reports whether the token is usable at now. The margin expires the
// token early so it is never attached to a request moments before the server
// considers it dead.
func (t Token) Fresh(now time.Time, margin time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-margin))
}
