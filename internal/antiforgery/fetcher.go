package antiforgery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// Bounds the token fetch even when the caller's context carries no
	// deadline (e.g. the background refresher).
	defaultFetchTimeout = 30 * time.Second

	maxTokenResponseBytes = 64 << 10
)

// Fetcher obtains a fresh token from the backend. Implementations are the
// pluggable fetch transport selected at construction time.
type Fetcher interface {
	Fetch(ctx context.Context) (Token, error)
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithTransport sets a custom base transport for token fetch requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.client.Transport = transport
	}
}

// WithFetchClock overrides the clock used to anchor token expiry.
func WithFetchClock(now func() time.Time) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.now = now
	}
}

// HTTPFetcher fetches tokens from the backend token endpoint, a GET returning
// {"token": "...", "expiresInSeconds": n}.
type HTTPFetcher struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// Compile-time check to ensure HTTPFetcher implements Fetcher
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher for the given token endpoint URL.
func NewHTTPFetcher(endpoint string, opts ...HTTPFetcherOption) (*HTTPFetcher, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("token endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid token endpoint: %w", err)
	}

	f := &HTTPFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultFetchTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Fetch performs one token fetch. Transport failures map to
// ErrNetworkUnavailable, non-2xx answers to ServerRejectedError, and missing
// or empty token fields to ErrMalformedResponse.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Token{}, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenResponseBytes))
		return Token{}, &ServerRejectedError{Status: resp.StatusCode}
	}

	var payload struct {
		Token            string `json:"token"`
		ExpiresInSeconds int64  `json:"expiresInSeconds"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&payload); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Token == "" {
		return Token{}, fmt.Errorf("%w: missing token field", ErrMalformedResponse)
	}

	return Token{
		Value:     payload.Token,
		ExpiresAt: f.now().Add(time.Duration(payload.ExpiresInSeconds) * time.Second),
		// ServerTimeOffset stays zero until the backend reports its clock.
	}, nil
}
