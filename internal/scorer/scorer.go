// Package scorer turns canonical bookings into cancellation and broken-route
// probabilities using a fitted encoder and two classifiers.
package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/booking-risk/internal/features"
	"github.com/sells-group/booking-risk/internal/model"
)

// Prediction holds both model outputs for one booking.
type Prediction struct {
	CancelProbability      float64         `json:"cancel_probability"`
	CancelRisk             model.RiskLabel `json:"cancel_risk"`
	BrokenRouteProbability float64         `json:"broken_route_probability"`
	BrokenRouteRisk        model.RiskLabel `json:"broken_route_risk"`
}

// Scorer scores batches of bookings against a model bundle.
type Scorer struct {
	source BundleSource
}

// New returns a Scorer reading its models from source.
func New(source BundleSource) *Scorer {
	return &Scorer{source: source}
}

// Score returns one prediction per booking, in input order. It fails with
// ModelsNotLoadedError when the bundle cannot be loaded and EncodingError when
// the encoded matrix does not fit a classifier.
func (s *Scorer) Score(ctx context.Context, bookings []model.Booking) ([]Prediction, error) {
	if len(bookings) == 0 {
		return []Prediction{}, nil
	}

	b, err := s.source.Bundle()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "scorer: score")
	}

	width := b.Encoder.Width()
	for _, c := range []struct {
		name string
		clf  Classifier
	}{{"cancel", b.Cancel}, {"broken_route", b.BrokenRoute}} {
		if c.clf.NumFeatures() != width {
			return nil, &model.EncodingError{Reason: fmt.Sprintf(
				"%s classifier expects %d features, encoder produces %d", c.name, c.clf.NumFeatures(), width)}
		}
	}

	x, err := b.Encoder.Transform(features.PrepareAll(bookings))
	if err != nil {
		return nil, err
	}

	cancel, err := predict(b.Cancel, x, "cancel")
	if err != nil {
		return nil, err
	}
	broken, err := predict(b.BrokenRoute, x, "broken_route")
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, len(bookings))
	for i := range out {
		out[i] = Prediction{
			CancelProbability:      cancel[i],
			CancelRisk:             model.RiskFor(cancel[i]),
			BrokenRouteProbability: broken[i],
			BrokenRouteRisk:        model.RiskFor(broken[i]),
		}
	}
	return out, nil
}

func predict(c Classifier, x [][]float64, name string) ([]float64, error) {
	p, err := c.PredictProba(x)
	if err != nil {
		return nil, err
	}
	if len(p) != len(x) {
		return nil, &model.EncodingError{Reason: fmt.Sprintf("%s classifier returned %d probabilities for %d rows", name, len(p), len(x))}
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return nil, &model.EncodingError{Reason: fmt.Sprintf("%s classifier returned invalid probability %v for row %d", name, v, i)}
		}
	}
	return p, nil
}
