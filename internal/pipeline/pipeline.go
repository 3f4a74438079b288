// Package pipeline wraps the outbound HTTP client so every mutating request
// to the diagnostics backend carries a valid anti-forgery token and
// server-signaled invalidations clear the cached token.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hllvc/domaindoctor/internal/antiforgery"
)

const (
	// DefaultTokenHeader carries the anti-forgery token on mutating requests.
	DefaultTokenHeader = "X-Csrf-Token"

	// invalidationCode is the machine-readable error code the backend sends
	// alongside 403 when a previously issued token must no longer be used.
	// A 403 without this code is an ordinary request failure.
	invalidationCode = "security_token_invalid"

	defaultRequestTimeout = 2 * time.Minute

	maxSignalBodyBytes = 8 << 10
)

// TokenProvider is the slice of the token lifecycle manager the pipeline
// needs: acquire a token, and report one as rejected.
type TokenProvider interface {
	Token(ctx context.Context) (antiforgery.Token, error)
	Invalidate(ctx context.Context)
}

// TokenRejectedError reports that the backend refused the attached token.
// The pipeline has already invalidated the cached token; it deliberately does
// not retry the request, leaving resubmission to explicit caller action.
type TokenRejectedError struct {
	Status int
	Code   string
}

func (e *TokenRejectedError) Error() string {
	return fmt.Sprintf("backend invalidated security token: status %d, code %q", e.Status, e.Code)
}

// Pipeline sends protected requests to the diagnostics backend.
type Pipeline struct {
	client *http.Client
	tokens TokenProvider
	header string
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransport sets the base transport used for backend requests, e.g. an
// oauth2.Transport authenticating the channel.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Pipeline) {
		p.client.Transport = transport
	}
}

// WithTokenHeader overrides the header name the token is attached under.
func WithTokenHeader(name string) Option {
	return func(p *Pipeline) {
		p.header = name
	}
}

// WithLogger sets the logger for invalidation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline over the given token provider.
func New(tokens TokenProvider, opts ...Option) (*Pipeline, error) {
	if tokens == nil {
		return nil, fmt.Errorf("missing token provider")
	}

	p := &Pipeline{
		client: &http.Client{Timeout: defaultRequestTimeout},
		tokens: tokens,
		header: DefaultTokenHeader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Do sends the request. Mutating requests get the current token attached; if
// none can be obtained the request is not sent at all. When the backend
// signals token invalidation, the cached token is invalidated exactly once
// and a TokenRejectedError is returned without retrying the request.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	if mutating(req.Method) {
		tok, err := p.tokens.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("acquiring security token: %w", err)
		}
		req.Header.Set(p.header, tok.Value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	if code, ok := invalidationSignal(resp); ok {
		_ = resp.Body.Close()
		p.tokens.Invalidate(req.Context())
		p.logger.WarnContext(req.Context(), "backend invalidated security token",
			"status", resp.StatusCode, "code", code)
		return nil, &TokenRejectedError{Status: resp.StatusCode, Code: code}
	}

	return resp, nil
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// invalidationSignal reports whether the response is the backend's token
// invalidation signal. Non-signal responses keep their body readable for the
// caller.
func invalidationSignal(resp *http.Response) (string, bool) {
	if resp.StatusCode != http.StatusForbidden {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSignalBodyBytes))
	original := resp.Body
	resp.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(body), original),
		closer: original,
	}
	if err != nil {
		return "", false
	}

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "", false
	}

	return payload.Error.Code, payload.Error.Code == invalidationCode
}

// replayBody re-attaches already-read bytes in front of the original body so
// the response stays usable after signal inspection.
type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error {
	return b.closer.Close()
}
