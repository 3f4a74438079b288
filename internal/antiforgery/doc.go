// Package antiforgery manages the short-lived security token that guards
// every mutating request to the diagnostics backend.
//
// The Manager is the single owner of the token lifecycle. It hands out a
// cached token while it is comfortably inside its lifetime, collapses
// concurrent refreshes into one fetch, and persists a one-way fingerprint of
// the token (never the token itself) across restarts.
//
// # Usage
//
//	fetcher, _ := antiforgery.NewHTTPFetcher(tokenURL)
//	manager, _ := antiforgery.NewManager(fetcher, bridge)
//	tok, err := manager.Token(ctx)
//
// The fetch transport is pluggable: any Fetcher implementation can replace
// HTTPFetcher, e.g. when the backend is reached through a routed proxy.
package antiforgery
