package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hllvc/domaindoctor/internal/antiforgery"
	"github.com/hllvc/domaindoctor/internal/pipeline"
)

type staticTokens struct {
	mu  sync.Mutex
	err error
}

func (s *staticTokens) Token(ctx context.Context) (antiforgery.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return antiforgery.Token{}, s.err
	}
	return antiforgery.Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *staticTokens) Invalidate(ctx context.Context) {}

func newTestClient(t *testing.T, url string, tokens pipeline.TokenProvider) *Client {
	t.Helper()

	p, err := pipeline.New(tokens)
	require.NoError(t, err)
	c, err := NewClient(p, url)
	require.NoError(t, err)
	return c
}

func TestRunReturnsCategorizedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			Domain string `json:"domain"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "example.com", payload.Domain)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"domain": "example.com",
			"checks": [
				{"name": "ns", "status": "pass", "message": "2 name servers found"},
				{"name": "mx", "status": "warning", "message": "single MX record"},
				{"name": "dnssec", "status": "error", "message": "no DS record"}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &staticTokens{})

	report, err := c.Run(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", report.Domain)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, StatusPass, report.Checks[0].Status)
	assert.Equal(t, StatusWarning, report.Checks[1].Status)
	assert.Equal(t, StatusError, report.Checks[2].Status)
}

func TestRunMapsTokenFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the backend without a token")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &staticTokens{err: antiforgery.ErrNetworkUnavailable})

	_, err := c.Run(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrSecurityUnverified)
}

func TestRunMapsServerInvalidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": "security_token_invalid"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &staticTokens{})

	_, err := c.Run(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrSecurityUnverified)
}

func TestRunOrdinaryFailureIsNotSecurityFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &staticTokens{})

	_, err := c.Run(context.Background(), "example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecurityUnverified)
}

func TestRunRejectsEmptyDomain(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", &staticTokens{})

	_, err := c.Run(context.Background(), "")
	assert.Error(t, err)
}
