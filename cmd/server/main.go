package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/willemschots/sessiongate/assets"
	"github.com/willemschots/sessiongate/internal"
	"github.com/willemschots/sessiongate/internal/account"
	"github.com/willemschots/sessiongate/internal/auth"
	"github.com/willemschots/sessiongate/internal/errorz"
	"github.com/willemschots/sessiongate/internal/session"
	"github.com/willemschots/sessiongate/internal/web"
	"github.com/willemschots/sessiongate/internal/web/view"
	"golang.org/x/sync/errgroup"
)

// envFile is loaded at startup when it exists.
const envFile = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	err := loadEnvFile(envFile)
	if err != nil {
		logger.Error("failed to load env file", "file", envFile, "error", err)
		return 1
	}

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	logger = newLogger(w, cfg.log)

	st, err := openStore(ctx, logger, cfg.db)
	if err != nil {
		errorz.LogError(ctx, logger, "failed to open store", err)
		return 1
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	handler, err := newHandler(logger, cfg, st)
	if err != nil {
		errorz.LogError(ctx, logger, "failed to create handler", err)
		return 1
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      handler,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"env", cfg.env,
			"dbDriver", cfg.db.driver,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

func newLogger(w io.Writer, cfg logConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.level}
	if cfg.format == logFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newHandler wires the application components into a HTTP handler.
func newHandler(logger *slog.Logger, cfg config, st *store) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hasher, err := auth.NewBcryptHasherWithCost(cfg.bcryptCost)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(st.repo, hasher, auth.PolicyValidator{}, logger, auth.NewMetrics(reg))
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(cfg.session, st.repo, logger)
	if err != nil {
		return nil, err
	}

	renderer, err := view.NewRenderer(assets.TemplateFS)
	if err != nil {
		return nil, err
	}

	csrfKey, err := web.CSRFKeyFromSecret(cfg.session.Secret)
	if err != nil {
		return nil, err
	}

	srv, err := web.NewServer(&web.ServerDeps{
		Logger:       logger,
		ViewRenderer: renderer,
		Accounts:     account.New(authSvc, sessions),
		Sessions:     sessions,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		HealthCheck:  st.ping,
	}, web.ServerConfig{
		CSRFKey:      csrfKey,
		SecureCookie: cfg.session.Secure,
	})
	if err != nil {
		return nil, err
	}

	return srv, nil
}
