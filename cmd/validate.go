package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/booking-risk/internal/ingest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <source>",
	Short: "Print the normalization report for a booking file without scoring it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := ingest.IngestSource(ctx, newOpener(), args[0], ingestOptions())
		if res != nil && res.Report != nil {
			if pErr := printJSON(os.Stdout, res.Report); pErr != nil {
				return pErr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
