// Package cache stores computed analytics views keyed by view name and
// filter. Every write to the bookings table invalidates all entries at once.
package cache

import (
	"context"

	"github.com/sells-group/booking-risk/internal/model"
)

// Generation identifies the cache contents a Get looked in. A value computed
// after a miss is stored with the generation of that miss, so a view computed
// from rows that an Invalidate has since superseded is never served.
type Generation int64

// NoGeneration is returned when the lookup did not reach the backend. Set
// ignores it.
const NoGeneration Generation = -1

// Cache is a JSON view cache. Get reports whether key was found and decoded
// into dest, and the generation it looked in.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (Generation, bool, error)
	Set(ctx context.Context, gen Generation, key string, v any) error
	Invalidate(ctx context.Context) error
	Close() error
}

// Key builds the cache key of a view computed for a filter. Extra parts (top
// n, frequency) are appended in order.
func Key(view string, f model.Filter, extra ...string) string {
	k := view + "|" + f.Key()
	for _, e := range extra {
		k += "|" + e
	}
	return k
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (Generation, bool, error) {
	return NoGeneration, false, nil
}
func (Nop) Set(context.Context, Generation, string, any) error { return nil }
func (Nop) Invalidate(context.Context) error { return nil }
func (Nop) Close() error { return nil }
