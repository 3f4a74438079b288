// Package diag is the client for the remote domain-diagnostics backend. It
// submits domain checks through the token-guarded pipeline and decodes the
// categorized report.
package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hllvc/domaindoctor/internal/antiforgery"
	"github.com/hllvc/domaindoctor/internal/pipeline"
)

// Statuses a check can report.
const (
	StatusPass    = "pass"
	StatusWarning = "warning"
	StatusError   = "error"
)

// ErrSecurityUnverified distinguishes "cannot currently verify request
// security, try again" from DNS-analysis failures, so callers can phrase the
// two differently.
var ErrSecurityUnverified = errors.New("cannot currently verify request security")

// CheckResult is one categorized finding for a domain.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Report is the backend's categorized answer for one domain.
type Report struct {
	Domain string        `json:"domain"`
	Checks []CheckResult `json:"checks"`
}

// Client runs domain checks against the diagnostics backend.
type Client struct {
	pipe     *pipeline.Pipeline
	checkURL string
}

// NewClient creates a Client submitting checks to the given endpoint URL
// through the pipeline.
func NewClient(pipe *pipeline.Pipeline, checkURL string) (*Client, error) {
	if pipe == nil {
		return nil, fmt.Errorf("missing pipeline")
	}
	if _, err := url.ParseRequestURI(checkURL); err != nil {
		return nil, fmt.Errorf("invalid check endpoint: %w", err)
	}

	return &Client{
		pipe:     pipe,
		checkURL: checkURL,
	}, nil
}

// Run submits the domain for analysis and returns the categorized report.
// Token lifecycle failures come back wrapped in ErrSecurityUnverified; the
// request is never retried here, resubmission is the caller's decision.
func (c *Client) Run(ctx context.Context, domain string) (*Report, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return nil, fmt.Errorf("encoding check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.checkURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pipe.Do(req)
	if err != nil {
		if isSecurityFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrSecurityUnverified, err)
		}
		return nil, fmt.Errorf("submitting domain check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("domain check failed: status %d", resp.StatusCode)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding check report: %w", err)
	}

	return &report, nil
}

// isSecurityFailure reports whether the error originated in the token
// lifecycle (fetch failure or server-side invalidation) rather than in the
// check request itself.
func isSecurityFailure(err error) bool {
	var rejected *pipeline.TokenRejectedError
	var rejectedFetch *antiforgery.ServerRejectedError

	return errors.As(err, &rejected) ||
		errors.As(err, &rejectedFetch) ||
		errors.Is(err, antiforgery.ErrNetworkUnavailable) ||
		errors.Is(err, antiforgery.ErrMalformedResponse)
}
