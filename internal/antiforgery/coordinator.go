package antiforgery

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coordinator collapses concurrent token refreshes into a single fetch:
// however many callers ask while a fetch is in flight, exactly one network
// round trip happens and every caller observes its outcome.
type Coordinator struct {
	group singleflight.Group
}

// RunExclusive invokes fetch unless a fetch is already in flight, in which
// case the caller joins the existing one and receives the same result. A
// failed fetch is shared with every waiter; it does not poison the
// coordinator, so the next call after completion may start a brand-new fetch.
func (c *Coordinator) RunExclusive(ctx context.Context, fetch func(context.Context) (Token, error)) (Token, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// The shared fetch must not die with the caller that happened to
		// start it; other waiters may still need the result.
		return fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Token{}, err
	}

	return v.(Token), nil
}
