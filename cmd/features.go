package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/export"
	"github.com/sells-group/booking-risk/internal/ingest"
)

var featuresOutput string

var featuresCmd = &cobra.Command{
	Use:   "features <source>",
	Short: "Write the engineered feature matrix of a booking file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := export.FormatOf(featuresOutput); err != nil {
			return err
		}

		res, err := ingest.IngestSource(ctx, newOpener(), args[0], ingestOptions())
		if err != nil {
			return err
		}
		if err := export.ToFile(featuresOutput, export.Features(res.Bookings)); err != nil {
			return err
		}

		zap.L().Info("feature matrix written",
			zap.String("source", args[0]),
			zap.String("output", featuresOutput),
			zap.Int("rows", len(res.Bookings)),
		)
		return nil
	},
}

func init() {
	featuresCmd.Flags().StringVar(&featuresOutput, "output", "", "output file (.csv or .xlsx, required)")
	_ = featuresCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(featuresCmd)
}
