// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/postdesk/internal/api"
	"github.com/starford/postdesk/internal/auth"
	"github.com/starford/postdesk/internal/blogservice"
	"github.com/starford/postdesk/internal/ghapp"
	"github.com/starford/postdesk/internal/mcpserver"
	"github.com/starford/postdesk/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store", cfg.Store.Backend),
		slog.String("repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo),
		slog.String("branch", cfg.GitHub.Branch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	handler, err := newHandler(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.logOutput, app.config.App)
	slog.SetDefault(logger)

	svc, err := newService(app.config, logger)
	if err != nil {
		return err
	}
	logger.Info("Starting MCP server on stdio", slog.String("store", app.config.Store.Backend))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// CheckCredentials exchanges the GitHub App credentials for an
// installation token once and reports its expiry.
func CheckCredentials(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOutput, cfg.App)

	if cfg.Store.Backend != StoreBackendGitHub {
		return fmt.Errorf("store backend %q does not use GitHub credentials", cfg.Store.Backend)
	}
	tokens, err := newTokenSource(cfg.GitHub, newHTTPClient(cfg.GitHub))
	if err != nil {
		return err
	}
	tok, err := tokens.Installation(ctx)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	logger.Info("GitHub App credentials are valid",
		slog.String("installation_id", cfg.GitHub.InstallationID),
		slog.Time("expires_at", tok.ExpiresAt))
	return nil
}

// newHandler builds the root router: health checks, OAuth routes and the
// gated API.
func newHandler(cfg *Config, logger *slog.Logger) (http.Handler, error) {
	if !cfg.Auth.OAuthEnabled() {
		return nil, errors.New("auth: client_id and client_secret are required to serve the API")
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions := auth.NewSessions([]byte(cfg.Auth.SessionSecret), cfg.Auth.CookieSecure)
	gate := auth.NewGate(sessions, auth.ParseAllowList(cfg.Auth.AllowedEmails), logger)
	oauth := auth.NewOAuth(auth.OAuthConfig{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  strings.TrimRight(cfg.App.HTTP.BaseURL, "/") + "/auth/callback",
		APIURL:       cfg.GitHub.APIURL,
		HTTPClient:   newHTTPClient(cfg.GitHub),
	}, sessions, gate, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	// OAuth sign-in.
	r.Get("/auth/login", oauth.Login)
	r.Get("/auth/callback", oauth.Callback)
	r.Post("/auth/logout", oauth.Logout)

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(svc, gate))

	return r, nil
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func newService(cfg *Config, logger *slog.Logger) (*blogservice.Service, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	layout := blogservice.Layout{
		PostsDir:        cfg.Content.PostsDir,
		PostExt:         cfg.Content.PostExt,
		ImagesDir:       cfg.Content.ImagesDir,
		ImagesURLPrefix: cfg.Content.ImagesURLPrefix,
		MaxImageBytes:   cfg.Content.MaxImageBytes,
	}
	return blogservice.NewService(store, layout, blogservice.WithLogger(logger)), nil
}

func newStore(cfg *Config) (storage.Provider, error) {
	if cfg.Store.Backend == StoreBackendFS {
		if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return store, nil
	}

	client := newHTTPClient(cfg.GitHub)
	tokens, err := newTokenSource(cfg.GitHub, client)
	if err != nil {
		return nil, err
	}
	return storage.NewGitHub(storage.GitHubConfig{
		APIURL: cfg.GitHub.APIURL,
		Owner:  cfg.GitHub.Owner,
		Repo:   cfg.GitHub.Repo,
		Branch: cfg.GitHub.Branch,
	}, tokens, client), nil
}

func newTokenSource(cfg GitHubConfig, client *http.Client) (*ghapp.AppTokenSource, error) {
	pemText, err := cfg.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	key, err := ghapp.ParsePrivateKey(pemText)
	if err != nil {
		return nil, fmt.Errorf("github app private key: %w", err)
	}
	return ghapp.NewAppTokenSource(cfg.AppID, cfg.InstallationID, key,
		ghapp.WithAPIURL(cfg.APIURL),
		ghapp.WithHTTPClient(client),
	), nil
}

func newHTTPClient(cfg GitHubConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
