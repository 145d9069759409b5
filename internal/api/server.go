// Package api serves the analytics views and the prediction endpoints over
// HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/analytics"
	"github.com/sells-group/booking-risk/internal/cache"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/store"
)

// ModelStatus reports whether the model bundle is loaded.
type ModelStatus interface {
	Loaded() bool
}

// Deps are the services behind the API. Cache and Models may be nil.
type Deps struct {
	Analytics *analytics.Service
	Store     store.Store
	Cache     cache.Cache
	Processor *pipeline.Processor
	Enricher  *pipeline.Enricher
	Models    ModelStatus
}

// Options tune request handling.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	Dedupe         store.DedupeMode // bulk-predict default
}

const defaultMaxUpload = 16 << 20

// Server is the HTTP API.
type Server struct {
	deps Deps
	opts Options
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{deps: deps, opts: opts}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "X-Cache"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard-summary", filterView(s, "summary", s.deps.Analytics.Summary))
		r.Get("/stats/overview", s.handleOverview)
		r.Get("/stats/charts", filterView(s, "charts", s.deps.Analytics.Charts))
		r.Get("/bookings-over-time", s.handleBookingsOverTime)
		r.Get("/cancellations-by-port", topNView(s, "cancellations-by-port", s.deps.Analytics.CancellationsByPort))
		r.Get("/cancellations-by-lane", topNView(s, "cancellations-by-lane", s.deps.Analytics.CancellationsByLane))
		r.Get("/risk-distribution", filterView(s, "risk-distribution", s.deps.Analytics.RiskDistribution))
		r.Get("/flow-data", filterView(s, "flow", s.deps.Analytics.Flow))
		r.Get("/seasonality-data", filterView(s, "seasonality", s.deps.Analytics.Seasonality))
		r.Get("/network-data", filterView(s, "network", s.deps.Analytics.Network))
		r.Get("/top-outliers", topNView(s, "top-outliers", s.deps.Analytics.TopRiskyBookings))
		r.Get("/risk-matrix", filterView(s, "risk-matrix", s.deps.Analytics.RiskMatrix))
		r.Get("/ridgeline-data", filterView(s, "ridgeline", s.deps.Analytics.Ridgeline))
		r.Get("/stacked-area-data", filterView(s, "stacked-area", s.deps.Analytics.StackedArea))
		r.Get("/waffle-data", filterView(s, "waffle", s.deps.Analytics.Waffle))
		r.Get("/top-risky-lanes", topNView(s, "top-risky-lanes", s.deps.Analytics.TopRiskyLanes))
		r.Get("/top-risky-ports", topNView(s, "top-risky-ports", s.deps.Analytics.TopRiskyPorts))
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/filter-options", s.handleFilterOptions)

		r.Post("/predict", s.handlePredict)
		r.Post("/bulk-predict", s.handleBulkPredict)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("api: starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Models != nil {
		resp["models_loaded"] = s.deps.Models.Loaded()
	}
	writeJSON(w, http.StatusOK, resp)
}
