package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/booking-risk/internal/config"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/pipeline"
	"github.com/sells-group/booking-risk/internal/scorer"
)

var predictFlags struct {
	id             string
	date           string
	lane           string
	pol            string
	pod            string
	containerState string
	bundle         string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a single booking and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModePredict); err != nil {
			return err
		}

		b, err := predictBooking()
		if err != nil {
			return err
		}

		enricher := pipeline.NewEnricher(scorer.New(scorer.NewLazy(cfg.Models.Dir)))
		scored, err := enricher.PredictOne(cmd.Context(), b)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, scored)
	},
}

// predictBooking builds the booking described by the predict flags.
func predictBooking() (model.Booking, error) {
	b := model.Booking{
		BookingID:      predictFlags.id,
		Lane:           model.StrPtr(predictFlags.lane),
		POL:            model.StrPtr(predictFlags.pol),
		POD:            model.StrPtr(predictFlags.pod),
		ContainerState: model.StrPtr(predictFlags.containerState),
		Bundle:         model.StrPtr(predictFlags.bundle),
	}
	if predictFlags.date != "" {
		d, err := model.ParseDate(predictFlags.date)
		if err != nil {
			return b, &model.ValidationError{Reason: "invalid booking date", Columns: []string{model.FieldBookingDate}}
		}
		b.BookingDate = &d
	}
	return b, nil
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.id, "id", "", "booking id")
	f.StringVar(&predictFlags.date, "date", "", "booking date (YYYY-MM-DD)")
	f.StringVar(&predictFlags.lane, "lane", "", "trade lane")
	f.StringVar(&predictFlags.pol, "pol", "", "port of loading")
	f.StringVar(&predictFlags.pod, "pod", "", "port of discharge")
	f.StringVar(&predictFlags.containerState, "container-state", "", "container state (FCL or LCL)")
	f.StringVar(&predictFlags.bundle, "bundle", "", "bundle code")
	rootCmd.AddCommand(predictCmd)
}
