package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/hllvc/domaindoctor/internal/antiforgery"
	"github.com/hllvc/domaindoctor/internal/diag"
	"github.com/hllvc/domaindoctor/internal/fingerprint"
	"github.com/hllvc/domaindoctor/internal/pipeline"
	"github.com/hllvc/domaindoctor/internal/server"
)

// App orchestrates the lifecycle of the local server, the token manager and
// the background refresher.
type App struct {
	cfg     *Config
	manager *antiforgery.Manager
	server  *server.Server
}

// New creates a new App instance. No I/O is performed; the first token fetch
// happens on the first protected call (or the first background refresh).
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	baseTransport, err := newBaseTransport(cfg.Backend.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend transport: %w", err)
	}

	store, err := cfg.Fingerprint.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint store: %w", err)
	}

	bridge, err := fingerprint.NewBridge(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint bridge: %w", err)
	}

	tokenURL, err := url.JoinPath(cfg.Backend.BaseURL, cfg.Backend.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("invalid token endpoint: %w", err)
	}
	checkURL, err := url.JoinPath(cfg.Backend.BaseURL, cfg.Backend.CheckPath)
	if err != nil {
		return nil, fmt.Errorf("invalid check endpoint: %w", err)
	}

	fetcher, err := antiforgery.NewHTTPFetcher(tokenURL, antiforgery.WithTransport(baseTransport))
	if err != nil {
		return nil, fmt.Errorf("failed to create token fetcher: %w", err)
	}

	manager, err := antiforgery.NewManager(fetcher, bridge)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	pipe, err := pipeline.New(manager,
		pipeline.WithTransport(baseTransport),
		pipeline.WithTokenHeader(cfg.Backend.TokenHeader),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request pipeline: %w", err)
	}

	checks, err := diag.NewClient(pipe, checkURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics client: %w", err)
	}

	srv, err := server.New(checks)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		cfg:     cfg,
		manager: manager,
		server:  srv,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting local server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	// Proactive token refresh keeps user actions off the reactive refresh
	// path. Best effort: failures only matter once a protected call is made.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Refresh.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if !a.manager.ShouldRefreshSoon() {
					continue
				}
				if _, err := a.manager.Token(gCtx); err != nil {
					slog.DebugContext(gCtx, "proactive token refresh failed", "error", err)
				}
			}
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// newBaseTransport builds the transport authenticating the channel to the
// backend. The anti-forgery token rides on top of it.
func newBaseTransport(cfg BackendAuthConfig) (http.RoundTripper, error) {
	switch cfg.Method {
	case BackendAuthNone:
		return http.DefaultTransport, nil
	case BackendAuthBearer:
		token := os.Getenv(cfg.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("environment variable %s is empty", cfg.TokenEnv)
		}
		return &oauth2.Transport{
			Base:   http.DefaultTransport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}, nil
	case BackendAuthOAuth:
		cc := &clientcredentials.Config{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
		}
		return &oauth2.Transport{
			Base: http.DefaultTransport,
			// oauth2 token sources have no context parameter on Token();
			// the construction-time context is the documented API.
			Source: cc.TokenSource(context.Background()),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported authentication method: %s", cfg.Method)
	}
}
