package analytics

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/booking-risk/internal/model"
)

// DashboardOptions sets the per-view parameters of Dashboard.
type DashboardOptions struct {
	Frequency Frequency
	TopN      int // by-port, by-lane and risky bookings
	TopRiskyN int // risky lanes and ports
}

// Dashboard computes every view concurrently over a single query.
func (s *Service) Dashboard(ctx context.Context, f model.Filter, opts DashboardOptions) (*Dashboard, error) {
	if opts.Frequency == "" {
		opts.Frequency = Daily
	}
	if _, err := ParseFrequency(string(opts.Frequency)); err != nil {
		return nil, err
	}

	rows, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{}
	// Each view writes its own field and only reads rows.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { d.Summary = summarize(rows); return nil })
	g.Go(func() error { d.BookingsOverTime = bookingsOverTime(rows, opts.Frequency); return nil })
	g.Go(func() error { d.CancellationsByPort = cancellationsByPort(rows, opts.TopN); return nil })
	g.Go(func() error { d.CancellationsByLane = cancellationsByLane(rows, opts.TopN); return nil })
	g.Go(func() error { d.RiskDistribution = riskDistribution(rows); return nil })
	g.Go(func() error { d.Flow = flow(rows); return nil })
	g.Go(func() error { d.Seasonality = seasonality(rows); return nil })
	g.Go(func() error { d.Network = network(rows); return nil })
	g.Go(func() error { d.TopRiskyBookings = topRiskyBookings(rows, opts.TopN); return nil })
	g.Go(func() error { d.RiskMatrix = riskMatrix(rows); return nil })
	g.Go(func() error { d.Ridgeline = ridgeline(rows); return nil })
	g.Go(func() error { d.StackedArea = stackedArea(rows); return nil })
	g.Go(func() error { d.Waffle = waffle(rows); return nil })
	g.Go(func() error { d.TopRiskyLanes = topRiskyLanes(rows, opts.TopRiskyN); return nil })
	g.Go(func() error { d.TopRiskyPorts = topRiskyPorts(rows, opts.TopRiskyN); return nil })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Debug("analytics: dashboard computed",
		zap.String("filter", f.Key()),
		zap.Int("rows", len(rows)),
	)
	return d, nil
}
