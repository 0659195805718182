package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/drawing-board/internal/hub"
	"github.com/DoyleJ11/drawing-board/internal/metrics"
	"github.com/DoyleJ11/drawing-board/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. The route is not mounted when it is nil.
	Gatherer  prometheus.Gatherer
	StaticDir string
	WS        ws.Options
}

type api struct {
	hub     *hub.Hub
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{hub: h, logger: logger, metrics: opts.Metrics}

	wsOpts := opts.WS
	if wsOpts.Logger == nil {
		wsOpts.Logger = logger.Named("ws")
	}
	if wsOpts.Metrics == nil {
		wsOpts.Metrics = opts.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, wsOpts))

	r.Route("/boards", func(r chi.Router) {
		r.Get("/", a.ListBoards)
		r.Post("/", a.CreateBoard)
		r.Get("/{code}", a.GetBoard)
		r.Get("/{code}/canvas.png", a.CanvasPNG)
		r.Get("/{code}/canvas.pdf", a.CanvasPDF)
		r.Get("/{code}/qr.png", a.QR)
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}
