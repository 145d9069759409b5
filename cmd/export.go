package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/config"
	"github.com/sells-group/booking-risk/internal/export"
)

var (
	exportFilter filterFlags
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored scored bookings to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeQuery); err != nil {
			return err
		}
		if _, err := export.FormatOf(exportOutput); err != nil {
			return err
		}
		f, err := exportFilter.filter()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		rows, err := st.Query(ctx, f)
		if err != nil {
			return err
		}
		if err := export.ToFile(exportOutput, export.Scored(rows)); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("output", exportOutput),
			zap.String("filter", f.Key()),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	exportFilter.register(exportCmd)
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file (.csv or .xlsx, required)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
