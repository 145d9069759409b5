package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sells-group/booking-risk/internal/model"
)

// parseFilter reads start_date, end_date, lane, pol, pod, month and year from
// the query string. Blank parameters are ignored.
func parseFilter(r *http.Request) (model.Filter, error) {
	q := r.URL.Query()
	f := model.Filter{
		Lane: strings.TrimSpace(q.Get("lane")),
		POL:  strings.TrimSpace(q.Get("pol")),
		POD:  strings.TrimSpace(q.Get("pod")),
	}

	var bad []string
	for _, p := range []struct {
		name string
		dst  **model.Date
	}{{"start_date", &f.StartDate}, {"end_date", &f.EndDate}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		d, err := model.ParseDate(v)
		if err != nil {
			bad = append(bad, p.name)
			continue
		}
		*p.dst = &d
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"month", &f.Month}, {"year", &f.Year}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			bad = append(bad, p.name)
			continue
		}
		*p.dst = n
	}
	if len(bad) > 0 {
		return f, &model.ValidationError{
			Reason:  fmt.Sprintf("invalid filter parameters: %s", strings.Join(bad, ", ")),
			Columns: bad,
		}
	}
	return f, f.Validate()
}

// intParam reads a non-negative integer query parameter; absent means 0.
func intParam(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &model.ValidationError{
			Reason:  fmt.Sprintf("%s must be a non-negative integer, got %q", name, v),
			Columns: []string{name},
		}
	}
	return n, nil
}
