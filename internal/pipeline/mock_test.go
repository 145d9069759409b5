package pipeline

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/scorer"
	"github.com/sells-group/booking-risk/internal/store"
)

// --- Predictor Mock ---

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Score(ctx context.Context, bookings []model.Booking) ([]scorer.Prediction, error) {
	args := m.Called(ctx, bookings)
	if fn, ok := args.Get(0).(func(context.Context, []model.Booking) []scorer.Prediction); ok {
		return fn(ctx, bookings), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scorer.Prediction), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, rows []model.ScoredBooking, opts store.InsertOptions) (store.InsertResult, error) {
	args := m.Called(ctx, rows, opts)
	return args.Get(0).(store.InsertResult), args.Error(1)
}

func (m *mockStore) Query(ctx context.Context, f model.Filter) ([]model.ScoredBooking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScoredBooking), args.Error(1)
}

func (m *mockStore) DistinctValues(ctx context.Context, field string) ([]string, error) {
	args := m.Called(ctx, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) FilterOptions(ctx context.Context) (*store.FilterOptions, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.FilterOptions), args.Error(1)
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Cleanup(ctx context.Context) (store.CleanupResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.CleanupResult), args.Error(1)
}

func (m *mockStore) Clear(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Invalidator Mock ---

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Opener stub ---

type stubOpener map[string]string

func (s stubOpener) Open(_ context.Context, source string) (io.ReadCloser, string, error) {
	body, ok := s[source]
	if !ok {
		return nil, "", io.ErrUnexpectedEOF
	}
	return io.NopCloser(strings.NewReader(body)), source, nil
}
