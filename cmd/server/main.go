package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitsmart/internal/assistant"
	"github.com/mmynk/splitsmart/internal/auth"
	"github.com/mmynk/splitsmart/internal/config"
	"github.com/mmynk/splitsmart/internal/metrics"
	"github.com/mmynk/splitsmart/internal/middleware"
	"github.com/mmynk/splitsmart/internal/service"
	"github.com/mmynk/splitsmart/internal/session"
	"github.com/mmynk/splitsmart/internal/storage/sqlite"
	"github.com/mmynk/splitsmart/pkg/api/apiconnect"
	"github.com/mmynk/splitsmart/pkg/logging"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	if cfg.EphemeralSecret {
		slog.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}
	ai := assistant.NewGeminiClient(assistant.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AssistantTimeout,
	})
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, receipt scanning and chat commands are disabled")
	}

	m := metrics.New()
	sessions := session.NewManager(cfg.MaxSessions, cfg.SessionTTL, cfg.UndoDepth)
	tokens := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL)

	splitSvc := service.NewSplitService(service.SplitServiceDeps{
		Sessions:      sessions,
		Tokens:        tokens,
		Assistant:     ai,
		Metrics:       m,
		SessionTTL:    cfg.SessionTTL,
		MaxImageBytes: cfg.MaxImageBytes,
	})
	historySvc := service.NewHistoryService(store, splitSvc, m)

	mux := http.NewServeMux()

	// Metrics first so rejected calls are counted; logging last so it sees the session.
	splitPath, splitHandler := apiconnect.NewSplitServiceHandler(splitSvc,
		connect.WithInterceptors(
			middleware.MetricsInterceptor(m),
			middleware.RequireSession(tokens,
				apiconnect.SplitServiceCalculateSplitProcedure,
				apiconnect.SplitServiceStartSessionProcedure,
			),
			middleware.LoggingInterceptor(),
		),
	)
	mux.Handle(splitPath, splitHandler)

	historyPath, historyHandler := apiconnect.NewHistoryServiceHandler(historySvc,
		connect.WithInterceptors(
			middleware.MetricsInterceptor(m),
			middleware.RequireSession(tokens),
			middleware.LoggingInterceptor(),
		),
	)
	mux.Handle(historyPath, historyHandler)

	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.StaticPath != "" {
		handler, err := staticHandler(cfg.StaticPath)
		if err != nil {
			return err
		}
		mux.Handle("/", handler)
	}

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(corsMiddleware(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sessions.RunJanitor(gctx, janitorInterval)
	})
	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			m.SetActiveSessions(sessions.Len())
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

// staticHandler serves the web client. Unknown paths fall back to index.html.
func staticHandler(staticPath string) (http.Handler, error) {
	staticDir, err := filepath.Abs(staticPath)
	if err != nil {
		return nil, fmt.Errorf("resolving static path: %w", err)
	}
	slog.Info("Serving static files", "path", staticDir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API requests that reached here have no handler
		if strings.HasPrefix(r.URL.Path, "/splitsmart.v1.") {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		http.ServeFile(w, r, filePath)
	}), nil
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
