package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/analytics"
	"github.com/sells-group/booking-risk/internal/cache"
	"github.com/sells-group/booking-risk/internal/model"
)

// serveView answers from the cache when possible, otherwise computes the view
// and stores it under the generation the lookup saw. Cache failures only
// degrade to a recompute.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, key string, compute func(context.Context) (any, error)) {
	ctx := r.Context()

	var cached json.RawMessage
	gen, ok, err := s.deps.Cache.Get(ctx, key, &cached)
	if err != nil {
		zap.L().Warn("api: cache get failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		w.Header().Set("X-Cache", "hit")
		writeRaw(w, http.StatusOK, cached)
		return
	}

	v, err := compute(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Cache.Set(ctx, gen, key, v); err != nil {
		zap.L().Warn("api: cache set failed", zap.String("key", key), zap.Error(err))
	}
	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, v)
}

// filterView serves a view that takes only the request filter.
func filterView[T any](s *Server, name string, fn func(context.Context, model.Filter) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.serveView(w, r, cache.Key(name, f), func(ctx context.Context) (any, error) {
			return fn(ctx, f)
		})
	}
}

// topNView serves a view limited by the top_n parameter.
func topNView[T any](s *Server, name string, fn func(context.Context, model.Filter, int) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		n, err := intParam(r, "top_n")
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.serveView(w, r, cache.Key(name, f, strconv.Itoa(n)), func(ctx context.Context) (any, error) {
			return fn(ctx, f, n)
		})
	}
}

type overview struct {
	TotalBookings int     `json:"total_bookings"`
	CancelRate    float64 `json:"cancel_rate"`
	BrokenRate    float64 `json:"broken_rate"`
	UniqueLanes   int     `json:"unique_lanes"`
	UniquePorts   int     `json:"unique_ports"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveView(w, r, cache.Key("overview", f), func(ctx context.Context) (any, error) {
		sum, err := s.deps.Analytics.Summary(ctx, f)
		if err != nil {
			return nil, err
		}
		return overview{
			TotalBookings: sum.TotalBookings,
			CancelRate:    sum.CancelRate,
			BrokenRate:    sum.BrokenRouteRate,
			UniqueLanes:   sum.UniqueLanes,
			UniquePorts:   sum.UniquePorts,
		}, nil
	})
}

func (s *Server) handleBookingsOverTime(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	freq, err := analytics.ParseFrequency(r.URL.Query().Get("freq"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveView(w, r, cache.Key("bookings-over-time", f, string(freq)), func(ctx context.Context) (any, error) {
		return s.deps.Analytics.BookingsOverTime(ctx, f, string(freq))
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	freq, err := analytics.ParseFrequency(r.URL.Query().Get("freq"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	topN, err := intParam(r, "top_n")
	if err != nil {
		writeError(w, r, err)
		return
	}
	topRiskyN, err := intParam(r, "top_risky_n")
	if err != nil {
		writeError(w, r, err)
		return
	}

	opts := analytics.DashboardOptions{Frequency: freq, TopN: topN, TopRiskyN: topRiskyN}
	key := cache.Key("dashboard", f, string(freq), strconv.Itoa(topN), strconv.Itoa(topRiskyN))
	s.serveView(w, r, key, func(ctx context.Context) (any, error) {
		return s.deps.Analytics.Dashboard(ctx, f, opts)
	})
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, cache.Key("filter-options", model.Filter{}), func(ctx context.Context) (any, error) {
		return s.deps.Store.FilterOptions(ctx)
	})
}
