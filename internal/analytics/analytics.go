// Package analytics computes dashboard views over persisted scored bookings.
//
// Every view loads the rows matching a filter, re-applies the filter in
// memory and aggregates. Rows whose grouping key is missing are left out of
// that grouping. Views never fail on empty input; they return empty, non-nil
// collections instead.
package analytics

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/booking-risk/internal/model"
)

// Default top-N sizes.
const (
	DefaultTopN      = 10
	DefaultTopRiskyN = 5
	networkPorts     = 10
	matrixSize       = 10
	laneSeriesSize   = 5
)

// Source returns the persisted rows matching a filter.
type Source interface {
	Query(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error)
}

// Service computes views from a Source.
type Service struct {
	src Source
}

// New returns a Service reading from src.
func New(src Source) *Service {
	return &Service{src: src}
}

// load validates f, queries the source and keeps only matching rows.
func (s *Service) load(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.src.Query(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: query")
	}
	out := rows[:0:0]
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, f model.Filter) (*Summary, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return summarize(rows), nil
}

// BookingsOverTime buckets rows by day ("D"), ISO week ("W") or month ("M").
func (s *Service) BookingsOverTime(ctx context.Context, f model.Filter, freq string) (*TimeSeries, error) {
	fr, err := ParseFrequency(freq)
	if err != nil {
		return nil, err
	}
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return bookingsOverTime(rows, fr), nil
}

func (s *Service) CancellationsByPort(ctx context.Context, f model.Filter, topN int) (*PortBreakdown, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return cancellationsByPort(rows, topN), nil
}

func (s *Service) CancellationsByLane(ctx context.Context, f model.Filter, topN int) (*LaneBreakdown, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return cancellationsByLane(rows, topN), nil
}

func (s *Service) RiskDistribution(ctx context.Context, f model.Filter) (*Distribution, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return riskDistribution(rows), nil
}

func (s *Service) Flow(ctx context.Context, f model.Filter) (*Flow, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return flow(rows), nil
}

func (s *Service) Seasonality(ctx context.Context, f model.Filter) (*Seasonality, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return seasonality(rows), nil
}

func (s *Service) Network(ctx context.Context, f model.Filter) (*Network, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return network(rows), nil
}

func (s *Service) TopRiskyBookings(ctx context.Context, f model.Filter, topN int) ([]RiskyBooking, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return topRiskyBookings(rows, topN), nil
}

func (s *Service) RiskMatrix(ctx context.Context, f model.Filter) (*RiskMatrix, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return riskMatrix(rows), nil
}

func (s *Service) Ridgeline(ctx context.Context, f model.Filter) (*Ridgeline, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return ridgeline(rows), nil
}

func (s *Service) StackedArea(ctx context.Context, f model.Filter) (*StackedArea, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return stackedArea(rows), nil
}

func (s *Service) Waffle(ctx context.Context, f model.Filter) (*Distribution, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return waffle(rows), nil
}

func (s *Service) TopRiskyLanes(ctx context.Context, f model.Filter, topN int) ([]LaneRisk, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return topRiskyLanes(rows, topN), nil
}

func (s *Service) TopRiskyPorts(ctx context.Context, f model.Filter, topN int) ([]PortRisk, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return topRiskyPorts(rows, topN), nil
}

// Charts returns the top lanes and ports of loading by cancel rate and the
// booking count per month.
func (s *Service) Charts(ctx context.Context, f model.Filter) (*Charts, error) {
	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return charts(rows), nil
}
