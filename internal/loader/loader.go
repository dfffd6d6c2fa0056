// Package loader runs one source for one entity through the
// FETCH, TRANSFORM, VALIDATE, SCORE and UPSERT phases.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raghuneu/finsage/internal/archive"
	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/quality"
	"github.com/raghuneu/finsage/internal/validation"
	"github.com/raghuneu/finsage/internal/warehouse"
)

type State string

const (
	StateStart     State = "START"
	StateFetch     State = "FETCH"
	StateTransform State = "TRANSFORM"
	StateValidate  State = "VALIDATE"
	StateScore     State = "SCORE"
	StateUpsert    State = "UPSERT"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

const InvariantMinQuality = "min_quality_score"

// Fetcher returns records for entityKey newer than since. A nil since means a
// full backfill. Nothing new is an empty slice, not an error.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, entityKey string, since *string) ([]T, error)
}

type FetcherFunc[T any] func(ctx context.Context, entityKey string, since *string) ([]T, error)

func (f FetcherFunc[T]) Fetch(ctx context.Context, entityKey string, since *string) ([]T, error) {
	return f(ctx, entityKey, since)
}

// Runner is the type-erased view the orchestrator works with.
type Runner interface {
	Source() string
	Table() warehouse.Table
	Load(ctx context.Context, entityKey string) Outcome
}

type Outcome struct {
	Source       string        `json:"source"`
	EntityKey    string        `json:"entity_key"`
	State        State         `json:"state"`
	FailedAt     State         `json:"failed_at,omitempty"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Watermark    *string       `json:"watermark,omitempty"`
	Fetched      int           `json:"fetched"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Affected     int64         `json:"affected"`
	QualityScore float64       `json:"quality_score"`
	Defects      []string      `json:"defects,omitempty"`
	ArchivePath  string        `json:"archive_path,omitempty"`
	Duration     time.Duration `json:"duration"`
}

func (o Outcome) OK() bool {
	return o.State == StateDone
}

type Options struct {
	// Timeout bounds the whole load. Zero disables it.
	Timeout time.Duration
	// MinQualityScore rejects batches scoring below it. Zero disables the gate.
	MinQualityScore float64
	// Archive receives every committed batch when set.
	Archive archive.Writer
	Now     func() time.Time
}

type Loader[T any, P interface {
	*T
	models.Record
}] struct {
	source   string
	store    *warehouse.Store
	table    warehouse.Table
	fetcher  Fetcher[T]
	validate func([]T) error
	score    func([]T) quality.Report
	logger   *zap.Logger
	opts     Options
}

func New[T any, P interface {
	*T
	models.Record
}](source string, store *warehouse.Store, table warehouse.Table, fetcher Fetcher[T],
	validate func([]T) error, score func([]T) quality.Report, logger *zap.Logger, opts Options) *Loader[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader[T, P]{
		source:   source,
		store:    store,
		table:    table,
		fetcher:  fetcher,
		validate: validate,
		score:    score,
		logger:   logger.With(zap.String("source", source), zap.String("table", table.Name)),
		opts:     opts,
	}
}

func (l *Loader[T, P]) Source() string { return l.source }

func (l *Loader[T, P]) Table() warehouse.Table { return l.table }

func (l *Loader[T, P]) Load(ctx context.Context, entityKey string) (out Outcome) {
	started := l.opts.Now()
	out = Outcome{Source: l.source, EntityKey: entityKey, State: StateStart}
	log := l.logger.With(zap.String("entity", entityKey))

	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out = failed(out, fmt.Errorf("panic in %s: %v", out.State, r))
		}
		out.Duration = l.opts.Now().Sub(started)
		if out.OK() {
			log.Info("load done",
				zap.Int("fetched", out.Fetched),
				zap.Int("inserted", out.Inserted),
				zap.Int("updated", out.Updated),
				zap.Float64("quality_score", out.QualityScore),
				zap.Duration("duration", out.Duration))
			return
		}
		log.Warn("load failed",
			zap.String("failed_at", string(out.FailedAt)),
			zap.String("kind", out.ErrorKind),
			zap.Error(out.Err))
	}()

	if err := ctx.Err(); err != nil {
		return failed(out, err)
	}

	out.State = StateFetch
	since, err := l.store.Watermark(ctx, l.table, entityKey)
	if err != nil {
		return failed(out, err)
	}
	out.Watermark = since
	batch, err := l.fetcher.Fetch(ctx, entityKey, since)
	if err != nil {
		return failed(out, l.fetchError(entityKey, err))
	}
	out.Fetched = len(batch)
	if len(batch) == 0 {
		out.State = StateDone
		return out
	}

	out.State = StateTransform
	ingestedAt := models.FormatTimestamp(l.opts.Now())
	for i := range batch {
		rec := P(&batch[i])
		rec.Stamp(entityKey, ingestedAt)
		if err := rec.Normalize(); err != nil {
			return failed(out, &ingesterr.ValidationError{Invariant: "normalize", Row: i, Detail: err.Error()})
		}
	}

	out.State = StateValidate
	if err := validation.MergeKeys[T, P](batch); err != nil {
		return failed(out, err)
	}
	if l.validate != nil {
		if err := l.validate(batch); err != nil {
			return failed(out, err)
		}
	}

	out.State = StateScore
	report := l.score(batch)
	out.QualityScore = report.Score
	out.Defects = report.Defects
	for i := range batch {
		P(&batch[i]).SetQualityScore(report.Score)
	}
	if l.opts.MinQualityScore > 0 && report.Score < l.opts.MinQualityScore {
		return failed(out, &ingesterr.ValidationError{
			Invariant: InvariantMinQuality,
			Row:       -1,
			Detail:    fmt.Sprintf("score %.1f below minimum %.1f", report.Score, l.opts.MinQualityScore),
		})
	}

	out.State = StateUpsert
	res, err := warehouse.Upsert(ctx, l.store, l.table, batch)
	if err != nil {
		return failed(out, err)
	}
	out.Inserted = res.Inserted
	out.Updated = res.Updated
	out.Affected = res.Affected

	if l.opts.Archive != nil {
		out.ArchivePath = l.archive(ctx, log, entityKey, ingestedAt, report.Score, batch)
	}

	out.State = StateDone
	return out
}

func (l *Loader[T, P]) archive(ctx context.Context, log *zap.Logger, entityKey, ingestedAt string, score float64, batch []T) string {
	b, err := archive.Rows[T, P](archive.Batch{
		RunID:        warehouse.RunIDFrom(ctx),
		Source:       l.source,
		EntityKey:    entityKey,
		IngestedAt:   ingestedAt,
		QualityScore: score,
	}, batch)
	if err == nil {
		var path string
		if path, err = l.opts.Archive.Write(b); err == nil {
			return path
		}
	}
	log.Warn("archive batch failed", zap.Error(err))
	return ""
}

func (l *Loader[T, P]) fetchError(entityKey string, err error) error {
	var (
		fe *ingesterr.FetchError
		ue *ingesterr.UnknownEntityError
	)
	if errors.As(err, &fe) || errors.As(err, &ue) {
		return err
	}
	return &ingesterr.FetchError{Source: l.source, EntityKey: entityKey, Err: err}
}

func failed(out Outcome, err error) Outcome {
	out.FailedAt = out.State
	out.State = StateFailed
	out.Err = err
	out.Error = err.Error()
	out.ErrorKind = ingesterr.Kind(err)
	return out
}
