// Package pipeline joins normalization, scoring and persistence into the
// operations used by the CLI and the HTTP API.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/scorer"
)

// Predictor scores canonical bookings, one prediction per input in order.
type Predictor interface {
	Score(ctx context.Context, bookings []model.Booking) ([]scorer.Prediction, error)
}

// Enricher attaches risk predictions to bookings. It has no side effects.
type Enricher struct {
	predictor Predictor
}

// NewEnricher returns an Enricher backed by p.
func NewEnricher(p Predictor) *Enricher {
	return &Enricher{predictor: p}
}

// Enrich returns one scored booking per input, in input order.
func (e *Enricher) Enrich(ctx context.Context, bookings []model.Booking) ([]model.ScoredBooking, error) {
	preds, err := e.predictor.Score(ctx, bookings)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(bookings) {
		return nil, &model.EncodingError{Reason: fmt.Sprintf("scorer returned %d predictions for %d bookings", len(preds), len(bookings))}
	}

	out := make([]model.ScoredBooking, len(bookings))
	for i, b := range bookings {
		p := preds[i]
		out[i] = model.ScoredBooking{
			Booking:                b,
			CancelProbability:      p.CancelProbability,
			CancelRisk:             p.CancelRisk,
			BrokenRouteProbability: p.BrokenRouteProbability,
			BrokenRouteRisk:        p.BrokenRouteRisk,
		}
	}
	return out, nil
}

// PredictOne scores a single booking. A blank booking id becomes "0".
func (e *Enricher) PredictOne(ctx context.Context, b model.Booking) (model.ScoredBooking, error) {
	if b.BookingID == "" {
		b.BookingID = "0"
	}
	out, err := e.Enrich(ctx, []model.Booking{b})
	if err != nil {
		return model.ScoredBooking{}, err
	}
	return out[0], nil
}
