package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/audit"
	"github.com/DoyleJ11/drawing-board/internal/board"
	"github.com/DoyleJ11/drawing-board/internal/config"
	"github.com/DoyleJ11/drawing-board/internal/discovery"
	"github.com/DoyleJ11/drawing-board/internal/httpapi"
	"github.com/DoyleJ11/drawing-board/internal/hub"
	"github.com/DoyleJ11/drawing-board/internal/metrics"
	"github.com/DoyleJ11/drawing-board/internal/ws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	releaseVersion  = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(context.Background()))
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drawboard",
		Short:   "A shared canvas that everyone connected can draw on.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.BindFlags(cmd, cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("drawboard v{{.Version}}\n")
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(parent context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
	)
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	opts := board.Options{
		Logger:      logger.Named("board"),
		Metrics:     m,
		IdleTimeout: cfg.BoardIdleTimeout,
	}
	if cfg.DatabaseURL != "" {
		journal, err := audit.Open(cfg.DatabaseURL, logger.Named("audit"))
		if err != nil {
			return err
		}
		opts.Journal = journal
		g.Go(func() error { return journal.Run(ctx) })
	}

	h := hub.NewHub(ctx, cfg.Settings(), opts)

	routeOpts := httpapi.Options{
		Logger:    logger.Named("http"),
		Metrics:   m,
		StaticDir: cfg.StaticDir,
		WS: ws.Options{
			OriginPatterns: cfg.AllowedOrigins,
			OutboxSize:     cfg.OutboxSize,
		},
	}
	if reg != nil {
		routeOpts.Gatherer = reg
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(h, routeOpts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("version", releaseVersion))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.MDNS {
		g.Go(func() error {
			if err := discovery.Advertise(ctx, cfg.MDNSName, cfg.Port, logger.Named("mdns")); err != nil {
				// the board still works without LAN discovery
				logger.Warn("mDNS advertising stopped", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		// boards stop with ctx and close their client outboxes
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
