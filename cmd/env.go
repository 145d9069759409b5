package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/cache"
	"github.com/sells-group/booking-risk/internal/fetcher"
	"github.com/sells-group/booking-risk/internal/ingest"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/store"
)

// initStore opens the configured store and applies migrations. Callers
// should defer Close.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		var s *store.SQLiteStore
		s, err = store.NewSQLite(cfg.Store.DatabaseURL)
		if err == nil {
			st = s
		}
	case "postgres":
		var s *store.PostgresStore
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.PoolConfig)
		if err == nil {
			st = s
		}
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCache connects to Redis when the cache is enabled. An unreachable
// Redis at startup is logged and replaced by a no-op cache; later outages are
// absorbed by the circuit breaker.
func initCache(ctx context.Context) cache.Cache {
	if !cfg.Cache.Enabled {
		return cache.Nop{}
	}
	c, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		TTL:      cfg.Cache.TTL(),
	})
	if err != nil {
		zap.L().Warn("redis unavailable, view cache disabled", zap.Error(err))
		return cache.Nop{}
	}
	zap.L().Info("view cache enabled", zap.String("addr", cfg.Cache.RedisAddr))
	return cache.NewGuarded(c, cache.BreakerConfig{})
}

// invalidateCache drops cached views after the CLI changed stored rows.
func invalidateCache(ctx context.Context) {
	c := initCache(ctx)
	defer func() { _ = c.Close() }()
	if err := c.Invalidate(ctx); err != nil {
		zap.L().Warn("cache invalidation failed", zap.Error(err))
	}
}

func newOpener() *fetcher.Opener {
	return fetcher.NewOpener(fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Fetch.Timeout(),
			MaxRetries: cfg.Fetch.MaxRetries,
			RatePerSec: cfg.Fetch.RatePerSec,
		},
		FTP: fetcher.FTPOptions{Timeout: cfg.Fetch.Timeout()},
	})
}

func ingestOptions() ingest.Options {
	return ingest.Options{RequiredColumns: cfg.Ingest.RequiredColumns}
}

// dedupeMode resolves a --dedupe flag, falling back to ingest.dedupe.
func dedupeMode(flag string) (store.DedupeMode, error) {
	if flag == "" {
		flag = cfg.Ingest.Dedupe
	}
	return store.ParseDedupeMode(flag)
}

// filterFlags are the filter flags shared by report and export.
type filterFlags struct {
	startDate string
	endDate   string
	lane      string
	pol       string
	pod       string
	month     int
	year      int
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.startDate, "start-date", "", "earliest booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.endDate, "end-date", "", "latest booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.lane, "lane", "", "trade lane")
	cmd.Flags().StringVar(&ff.pol, "pol", "", "port of loading")
	cmd.Flags().StringVar(&ff.pod, "pod", "", "port of discharge")
	cmd.Flags().IntVar(&ff.month, "month", 0, "booking month (1-12)")
	cmd.Flags().IntVar(&ff.year, "year", 0, "booking year")
}

// filter converts the flags into a validated model.Filter.
func (ff *filterFlags) filter() (model.Filter, error) {
	f := model.Filter{
		Lane:  strings.TrimSpace(ff.lane),
		POL:   strings.TrimSpace(ff.pol),
		POD:   strings.TrimSpace(ff.pod),
		Month: ff.month,
		Year:  ff.year,
	}

	var bad []string
	for _, p := range []struct {
		name string
		raw  string
		dst  **model.Date
	}{{"start-date", ff.startDate, &f.StartDate}, {"end-date", ff.endDate, &f.EndDate}} {
		v := strings.TrimSpace(p.raw)
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
	if len(bad) > 0 {
		return f, &model.ValidationError{
			Reason:  fmt.Sprintf("invalid dates: %s", strings.Join(bad, ", ")),
			Columns: bad,
		}
	}
	return f, f.Validate()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
