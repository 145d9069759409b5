package analytics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sells-group/booking-risk/internal/model"
)

// group accumulates rows sharing a key.
type group struct {
	key   string
	count int
	sum   float64 // cancel probability
}

func (g group) mean() float64 {
	if g.count == 0 {
		return 0
	}
	return g.sum / float64(g.count)
}

// groupBy buckets rows by key, in first-seen order. Rows with a nil key are
// skipped.
func groupBy(rows []model.ScoredBooking, key func(model.ScoredBooking) *string) []group {
	idx := make(map[string]int)
	var out []group
	for _, r := range rows {
		k := key(r)
		if k == nil {
			continue
		}
		i, ok := idx[*k]
		if !ok {
			i = len(out)
			idx[*k] = i
			out = append(out, group{key: *k})
		}
		out[i].count++
		out[i].sum += r.CancelProbability
	}
	return out
}

// byMeanDesc orders groups by mean cancel probability, highest first.
func byMeanDesc(groups []group) {
	slices.SortStableFunc(groups, func(a, b group) int {
		if c := cmp.Compare(b.mean(), a.mean()); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
}

// byCountDesc orders groups by row count, highest first.
func byCountDesc(groups []group) {
	slices.SortStableFunc(groups, func(a, b group) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
}

// mostFrequent returns up to n keys ordered by frequency.
func mostFrequent(rows []model.ScoredBooking, key func(model.ScoredBooking) *string, n int) []string {
	groups := groupBy(rows, key)
	byCountDesc(groups)
	return keys(head(groups, n))
}

func head[T any](s []T, n int) []T {
	if n < len(s) {
		return s[:n]
	}
	return s
}

func keys(groups []group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.key
	}
	return out
}

func topN(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func pct(p float64) float64 { return p * 100 }

func lane(r model.ScoredBooking) *string { return r.Lane }
func pol(r model.ScoredBooking) *string { return r.POL }
func pod(r model.ScoredBooking) *string { return r.POD }
func state(r model.ScoredBooking) *string { return r.ContainerState }

// Frequency is a time bucket size for BookingsOverTime.
type Frequency string

const (
	Daily   Frequency = "D"
	Weekly  Frequency = "W"
	Monthly Frequency = "M"
)

// ParseFrequency accepts D, W or M. Empty means daily.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case "":
		return Daily, nil
	case Daily, Weekly, Monthly:
		return f, nil
	default:
		return "", &model.ValidationError{Reason: fmt.Sprintf("unknown frequency %q, want D, W or M", s), Columns: []string{"freq"}}
	}
}

// bucket labels a date: the day itself, the Monday of its ISO week or YYYY-MM.
func (f Frequency) bucket(d model.Date) string {
	switch f {
	case Weekly:
		offset := (int(d.Weekday()) + 6) % 7
		return model.DateOf(d.AddDate(0, 0, -offset)).String()
	case Monthly:
		return d.Format("2006-01")
	default:
		return d.String()
	}
}

// dated returns a key func yielding the bucket label of a row's booking date.
func dated(f Frequency) func(model.ScoredBooking) *string {
	return func(r model.ScoredBooking) *string {
		if r.BookingDate == nil {
			return nil
		}
		s := f.bucket(*r.BookingDate)
		return &s
	}
}

// chronological sorts groups by key; date and month labels sort lexically.
func chronological(groups []group) {
	slices.SortFunc(groups, func(a, b group) int { return cmp.Compare(a.key, b.key) })
}
