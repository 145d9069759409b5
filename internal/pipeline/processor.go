package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/ingest"
	"github.com/sells-group/booking-risk/internal/model"
	"github.com/sells-group/booking-risk/internal/store"
)

// Invalidator is notified after a batch is persisted.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ProcessOptions selects what happens after scoring.
type ProcessOptions struct {
	Persist bool
	Dedupe  store.DedupeMode
}

// Outcome is the result of processing one source.
type Outcome struct {
	Source    string                  `json:"source"`
	BatchID   string                  `json:"batch_id"`
	Report    *model.ValidationReport `json:"report"`
	Scored    []model.ScoredBooking   `json:"-"`
	Insert    store.InsertResult      `json:"insert"`
	Persisted bool                    `json:"persisted"`
	Duration  time.Duration           `json:"duration"`
}

// Processor runs ingest, enrichment and optional persistence for one source.
type Processor struct {
	opener      ingest.Opener
	enricher    *Enricher
	store       store.Store
	invalidator Invalidator
	ingestOpts  ingest.Options
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithStore sets the store used when ProcessOptions.Persist is true.
func WithStore(st store.Store) ProcessorOption {
	return func(p *Processor) { p.store = st }
}

// WithInvalidator sets a hook run after every persisted batch.
func WithInvalidator(inv Invalidator) ProcessorOption {
	return func(p *Processor) { p.invalidator = inv }
}

// WithIngestOptions sets normalization options.
func WithIngestOptions(opts ingest.Options) ProcessorOption {
	return func(p *Processor) { p.ingestOpts = opts }
}

// NewProcessor creates a Processor. opener may be nil when only
// ProcessReader is used.
func NewProcessor(opener ingest.Opener, enricher *Enricher, opts ...ProcessorOption) *Processor {
	p := &Processor{opener: opener, enricher: enricher}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessSource ingests a path or URL.
func (p *Processor) ProcessSource(ctx context.Context, source string, opts ProcessOptions) (*Outcome, error) {
	if p.opener == nil {
		return nil, eris.New("pipeline: no opener configured")
	}
	start := time.Now()
	res, err := ingest.IngestSource(ctx, p.opener, source, p.ingestOpts)
	if err != nil {
		return outcomeOnError(source, res), err
	}
	return p.process(ctx, res, opts, start)
}

// ProcessReader ingests an already open stream; name selects the format.
func (p *Processor) ProcessReader(ctx context.Context, name string, r io.Reader, opts ProcessOptions) (*Outcome, error) {
	start := time.Now()
	res, err := ingest.Ingest(ctx, name, r, p.ingestOpts)
	if err != nil {
		return outcomeOnError(name, res), err
	}
	return p.process(ctx, res, opts, start)
}

func outcomeOnError(source string, res *ingest.Result) *Outcome {
	out := &Outcome{Source: source}
	if res != nil {
		out.Report = res.Report
	}
	return out
}

func (p *Processor) process(ctx context.Context, res *ingest.Result, opts ProcessOptions, start time.Time) (*Outcome, error) {
	log := zap.L().With(zap.String("source", res.Source))
	out := &Outcome{Source: res.Source, Report: res.Report, BatchID: uuid.New().String()}

	scored, err := p.enricher.Enrich(ctx, res.Bookings)
	if err != nil {
		return out, eris.Wrapf(err, "pipeline: score %s", res.Source)
	}
	now := time.Now().UTC()
	for i := range scored {
		scored[i].BatchID = out.BatchID
		scored[i].CreatedAt = now
	}
	out.Scored = scored

	if opts.Persist {
		if p.store == nil {
			return out, eris.New("pipeline: persist requested without a store")
		}
		ins, err := p.store.Insert(ctx, scored, store.InsertOptions{Dedupe: opts.Dedupe})
		if err != nil {
			return out, eris.Wrapf(err, "pipeline: persist %s", res.Source)
		}
		out.Insert = ins
		out.Persisted = true

		if p.invalidator != nil {
			if err := p.invalidator.Invalidate(ctx); err != nil {
				log.Warn("pipeline: cache invalidation failed", zap.Error(err))
			}
		}
	}

	out.Duration = time.Since(start)
	log.Info("pipeline: processed",
		zap.String("batch_id", out.BatchID),
		zap.Int("rows", len(scored)),
		zap.Bool("persisted", out.Persisted),
		zap.Int("inserted", out.Insert.Inserted),
		zap.Int("skipped", out.Insert.Skipped),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}
