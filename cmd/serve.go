package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/analytics"
	"github.com/sells-group/booking-risk/internal/api"
	"github.com/sells-group/booking-risk/internal/config"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/scorer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analytics and prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		c := initCache(ctx)
		defer func() { _ = c.Close() }()

		// Prediction endpoints answer 503 until the bundle loads; analytics
		// keep working without it.
		models := scorer.NewLazy(cfg.Models.Dir)
		if _, err := models.Bundle(); err != nil {
			zap.L().Warn("models not loaded", zap.String("dir", cfg.Models.Dir), zap.Error(err))
		}

		enricher := pipeline.NewEnricher(scorer.New(models))
		proc := pipeline.NewProcessor(newOpener(), enricher,
			pipeline.WithStore(st),
			pipeline.WithInvalidator(c),
			pipeline.WithIngestOptions(ingestOptions()),
		)

		dedupe, err := dedupeMode("")
		if err != nil {
			return err
		}

		srv := api.New(api.Deps{
			Analytics: analytics.New(st),
			Store:     st,
			Cache:     c,
			Processor: proc,
			Enricher:  enricher,
			Models:    models,
		}, api.Options{
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxUploadBytes: int64(cfg.Ingest.MaxUploadMB) << 20,
			Dedupe:         dedupe,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
