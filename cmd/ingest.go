package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/booking-risk/internal/config"
	"github.com/sells-group/booking-risk/internal/export"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/scorer"
)

var (
	ingestDedupe      string
	ingestDryRun      bool
	ingestOutput      string
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source>...",
	Short: "Normalize, score and store booking files or URLs",
	Long:  "Each source (path, http(s):// or ftp:// URL) is normalized, scored and inserted as its own batch. --dry-run scores without storing.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeIngest); err != nil {
			return err
		}
		dedupe, err := dedupeMode(ingestDedupe)
		if err != nil {
			return err
		}
		if ingestOutput != "" {
			if _, err := export.FormatOf(ingestOutput); err != nil {
				return err
			}
		}

		enricher := pipeline.NewEnricher(scorer.New(scorer.NewLazy(cfg.Models.Dir)))
		opts := []pipeline.ProcessorOption{pipeline.WithIngestOptions(ingestOptions())}
		if !ingestDryRun {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			c := initCache(ctx)
			defer func() { _ = c.Close() }()
			opts = append(opts, pipeline.WithStore(st), pipeline.WithInvalidator(c))
		}
		proc := pipeline.NewProcessor(newOpener(), enricher, opts...)

		results, runErr := runIngest(ctx, proc, args, pipeline.ProcessOptions{
			Persist: !ingestDryRun,
			Dedupe:  dedupe,
		}, ingestConcurrency)

		if err := printJSON(os.Stdout, results); err != nil {
			return err
		}
		if ingestOutput != "" {
			if err := export.ToFile(ingestOutput, export.Scored(scoredRows(results))); err != nil {
				return err
			}
			zap.L().Info("scored bookings written", zap.String("output", ingestOutput))
		}
		return runErr
	},
}

// sourceResult is the per-source summary printed by ingest.
type sourceResult struct {
	*pipeline.Outcome
	Error string `json:"error,omitempty"`
}

// runIngest processes sources concurrently, one batch per source. A failing
// source does not stop the others. Results are in argument order.
func runIngest(ctx context.Context, proc *pipeline.Processor, sources []string, opts pipeline.ProcessOptions, concurrency int) ([]sourceResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]sourceResult, len(sources))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, source := range sources {
		g.Go(func() error {
			log := zap.L().With(zap.String("source", source))

			out, err := proc.ProcessSource(gctx, source, opts)
			results[i].Outcome = out
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				log.Error("ingest failed", zap.Error(err))
				return nil // other sources keep going
			}

			log.Info("ingest complete",
				zap.String("batch_id", out.BatchID),
				zap.Int("rows", len(out.Scored)),
				zap.Int("inserted", out.Insert.Inserted),
				zap.Int("skipped", out.Insert.Skipped),
				zap.Int("replaced", out.Insert.Replaced),
				zap.Duration("duration", out.Duration),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "ingest")
	}
	if n := failed.Load(); n > 0 {
		return results, eris.Errorf("ingest: %d of %d sources failed", n, len(sources))
	}
	return results, nil
}

// scoredRows concatenates the scored rows of every successful source.
func scoredRows(results []sourceResult) []model.ScoredBooking {
	var rows []model.ScoredBooking
	for _, r := range results {
		if r.Error == "" && r.Outcome != nil {
			rows = append(rows, r.Scored...)
		}
	}
	return rows
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDedupe, "dedupe", "", "duplicate handling: none, skip or replace (default from config)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "score without storing")
	ingestCmd.Flags().StringVar(&ingestOutput, "output", "", "also write scored bookings to a .csv or .xlsx file")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 4, "number of sources processed in parallel")
	rootCmd.AddCommand(ingestCmd)
}
