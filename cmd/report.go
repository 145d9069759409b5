package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/booking-risk/internal/analytics"
	"github.com/sells-group/booking-risk/internal/config"
	"github.com/sells-group/booking-risk/internal/model"
)

var (
	reportFilter    filterFlags
	reportTopN      int
	reportTopRiskyN int
	reportFreq      string
)

// reportParams are the view arguments beyond the filter.
type reportParams struct {
	topN      int
	topRiskyN int
	freq      analytics.Frequency
}

type reportFunc func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error)

// reportViews maps view names, matching the API paths, to analytics calls.
var reportViews = map[string]reportFunc{
	"summary": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Summary(ctx, f)
	},
	"charts": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Charts(ctx, f)
	},
	"bookings-over-time": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.BookingsOverTime(ctx, f, string(p.freq))
	},
	"cancellations-by-port": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.CancellationsByPort(ctx, f, p.topN)
	},
	"cancellations-by-lane": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.CancellationsByLane(ctx, f, p.topN)
	},
	"risk-distribution": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.RiskDistribution(ctx, f)
	},
	"flow": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Flow(ctx, f)
	},
	"seasonality": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Seasonality(ctx, f)
	},
	"network": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Network(ctx, f)
	},
	"top-outliers": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.TopRiskyBookings(ctx, f, p.topN)
	},
	"risk-matrix": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.RiskMatrix(ctx, f)
	},
	"ridgeline": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Ridgeline(ctx, f)
	},
	"stacked-area": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.StackedArea(ctx, f)
	},
	"waffle": func(ctx context.Context, svc *analytics.Service, f model.Filter, _ reportParams) (any, error) {
		return svc.Waffle(ctx, f)
	},
	"top-risky-lanes": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.TopRiskyLanes(ctx, f, p.topN)
	},
	"top-risky-ports": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.TopRiskyPorts(ctx, f, p.topN)
	},
	"dashboard": func(ctx context.Context, svc *analytics.Service, f model.Filter, p reportParams) (any, error) {
		return svc.Dashboard(ctx, f, analytics.DashboardOptions{
			Frequency: p.freq,
			TopN:      p.topN,
			TopRiskyN: p.topRiskyN,
		})
	},
}

func reportViewNames() []string {
	names := make([]string, 0, len(reportViews))
	for name := range reportViews {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var reportCmd = &cobra.Command{
	Use:       "report <view>",
	Short:     "Print an analytics view as JSON",
	Long:      "Computes one analytics view over the stored bookings. Views: " + strings.Join(reportViewNames(), ", ") + ".",
	Args:      cobra.ExactArgs(1),
	ValidArgs: reportViewNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeQuery); err != nil {
			return err
		}
		f, err := reportFilter.filter()
		if err != nil {
			return err
		}
		freq, err := analytics.ParseFrequency(reportFreq)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		v, err := runReport(ctx, analytics.New(st), args[0], f, reportParams{
			topN:      reportTopN,
			topRiskyN: reportTopRiskyN,
			freq:      freq,
		})
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, v)
	},
}

// runReport computes the named view.
func runReport(ctx context.Context, svc *analytics.Service, view string, f model.Filter, p reportParams) (any, error) {
	fn, ok := reportViews[view]
	if !ok {
		return nil, &model.ValidationError{
			Reason:  fmt.Sprintf("unknown view %q, want one of %s", view, strings.Join(reportViewNames(), ", ")),
			Columns: []string{"view"},
		}
	}
	return fn(ctx, svc, f, p)
}

func init() {
	reportFilter.register(reportCmd)
	reportCmd.Flags().IntVar(&reportTopN, "top-n", 0, "rows in ranked views (0 = view default)")
	reportCmd.Flags().IntVar(&reportTopRiskyN, "top-risky-n", 0, "rows in the dashboard's risky lane and port rankings (0 = default)")
	reportCmd.Flags().StringVar(&reportFreq, "freq", "", "time bucket for bookings-over-time: D, W or M (default D)")
	rootCmd.AddCommand(reportCmd)
}
