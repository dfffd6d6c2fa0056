// Package pipeline runs every enabled loader over a ticker list and reports
// per-entity outcomes.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/loader"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/repository"
	"github.com/raghuneu/finsage/internal/runlock"
	"github.com/raghuneu/finsage/internal/warehouse"
)

var ErrNoEntities = errors.New("pipeline: no entities to run")

const (
	BucketSuccess = "success"
	BucketPartial = "partial"
	BucketFailed  = "failed"
)

type Service struct {
	Runners     []loader.Runner
	Locker      runlock.Locker
	LockKey     string
	LockTTL     time.Duration
	Runs        repository.RunRepository
	Logger      *zap.Logger
	TickerDelay time.Duration
	Now         func() time.Time

	mu     sync.Mutex
	active string
	bg     sync.WaitGroup
}

type Options struct {
	RunID   string
	Tickers []string
	// Sources limits the run to the named loaders. Empty runs all of them.
	Sources []string
}

type EntityResult struct {
	EntityKey string           `json:"entity_key"`
	Bucket    string           `json:"bucket"`
	Outcomes  []loader.Outcome `json:"outcomes"`
}

type Summary struct {
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Sources    []string       `json:"sources"`
	Success    []string       `json:"success"`
	Partial    []string       `json:"partial"`
	Failed     []string       `json:"failed"`
	Entities   []EntityResult `json:"entities"`
}

// Active returns the id of the run this process is executing, if any.
func (s *Service) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

// Run executes one pipeline run. Loader failures are reported in the summary;
// an error is returned only when the run cannot start.
func (s *Service) Run(ctx context.Context, opts Options) (Summary, error) {
	p, err := s.begin(ctx, opts)
	if err != nil {
		return Summary{}, err
	}
	defer p.release()
	return s.execute(ctx, p), nil
}

// Start takes the run lock and executes the run in the background. done, when
// set, receives the summary after the run is persisted.
func (s *Service) Start(ctx context.Context, opts Options, done func(Summary)) (string, error) {
	p, err := s.begin(ctx, opts)
	if err != nil {
		return "", err
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer p.release()
		sum := s.execute(ctx, p)
		if done != nil {
			done(sum)
		}
	}()
	return p.runID, nil
}

// Wait blocks until every run launched by Start has returned.
func (s *Service) Wait() {
	s.bg.Wait()
}

type plan struct {
	runID    string
	entities []string
	runners  []loader.Runner
	release  func()
}

func (s *Service) begin(ctx context.Context, opts Options) (plan, error) {
	entities := config.NormalizeTickers(opts.Tickers)
	if len(entities) == 0 {
		return plan{}, ErrNoEntities
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	release, err := s.acquire(ctx, runID)
	if err != nil {
		return plan{}, err
	}
	return plan{runID: runID, entities: entities, runners: s.selectRunners(opts.Sources), release: release}, nil
}

func (s *Service) execute(ctx context.Context, p plan) Summary {
	now := s.now()
	runID, entities, runners := p.runID, p.entities, p.runners

	sum := Summary{
		RunID:     runID,
		Status:    models.RunStatusRunning,
		StartedAt: now().UTC(),
		Sources:   make([]string, 0, len(runners)),
		Success:   []string{},
		Partial:   []string{},
		Failed:    []string{},
	}
	for _, r := range runners {
		sum.Sources = append(sum.Sources, r.Source())
	}
	log := s.logger().With(zap.String("run_id", runID))
	log.Info("pipeline run started", zap.Strings("entities", entities), zap.Strings("sources", sum.Sources))
	s.persist(ctx, log, sum, len(entities))

	runCtx := warehouse.WithRunID(ctx, runID)
	results := make([][]loader.Outcome, len(runners))
	var g errgroup.Group
	for i, r := range runners {
		g.Go(func() error {
			results[i] = s.walk(runCtx, r, entities)
			return nil
		})
	}
	_ = g.Wait()

	sum.Entities = make([]EntityResult, len(entities))
	for e, key := range entities {
		res := EntityResult{EntityKey: key, Outcomes: make([]loader.Outcome, 0, len(runners))}
		ok := 0
		for i := range runners {
			out := results[i][e]
			if out.OK() {
				ok++
			}
			res.Outcomes = append(res.Outcomes, out)
		}
		switch {
		case ok == len(runners):
			res.Bucket = BucketSuccess
			sum.Success = append(sum.Success, key)
		case ok > 0:
			res.Bucket = BucketPartial
			sum.Partial = append(sum.Partial, key)
		default:
			res.Bucket = BucketFailed
			sum.Failed = append(sum.Failed, key)
		}
		sum.Entities[e] = res
	}

	sum.FinishedAt = now().UTC()
	sum.Duration = sum.FinishedAt.Sub(sum.StartedAt)
	sum.Status = models.RunStatusCompleted
	if ctx.Err() != nil {
		sum.Status = models.RunStatusCanceled
	}

	log.Info("pipeline run finished",
		zap.String("status", sum.Status),
		zap.Int("success", len(sum.Success)),
		zap.Int("partial", len(sum.Partial)),
		zap.Int("failed", len(sum.Failed)),
		zap.Duration("duration", sum.Duration),
		zap.Strings("failed_entities", sum.Failed))
	s.persist(context.WithoutCancel(ctx), log, sum, len(entities))
	return sum
}

// walk loads entities one at a time for a single source, pausing TickerDelay
// between them. A cancelled context skips the pause and each remaining
// entity fails fast inside Load.
func (s *Service) walk(ctx context.Context, r loader.Runner, entities []string) []loader.Outcome {
	out := make([]loader.Outcome, len(entities))
	for i, key := range entities {
		if i > 0 && s.TickerDelay > 0 && ctx.Err() == nil {
			t := time.NewTimer(s.TickerDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		out[i] = r.Load(ctx, key)
	}
	return out
}

func (s *Service) selectRunners(names []string) []loader.Runner {
	if len(names) == 0 {
		return s.Runners
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]loader.Runner, 0, len(s.Runners))
	for _, r := range s.Runners {
		if _, ok := want[r.Source()]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) acquire(ctx context.Context, runID string) (func(), error) {
	s.mu.Lock()
	if s.active != "" {
		s.mu.Unlock()
		return nil, runlock.ErrLocked
	}
	s.active = runID
	s.mu.Unlock()

	done := func() {
		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
	}
	if s.Locker == nil {
		return done, nil
	}

	key := s.LockKey
	if key == "" {
		key = "finsage:pipeline:run"
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	token, err := s.Locker.Acquire(ctx, key, ttl)
	if err != nil {
		done()
		return nil, err
	}
	return func() {
		if err := s.Locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger().Warn("release run lock failed", zap.String("key", key), zap.Error(err))
		}
		done()
	}, nil
}

func (s *Service) persist(ctx context.Context, log *zap.Logger, sum Summary, entities int) {
	if s.Runs == nil {
		return
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		log.Warn("encode run summary failed", zap.Error(err))
		return
	}
	run := &models.PipelineRun{
		RunID:        sum.RunID,
		StartedAt:    sum.StartedAt,
		Status:       sum.Status,
		Entities:     entities,
		SuccessCount: len(sum.Success),
		PartialCount: len(sum.Partial),
		FailedCount:  len(sum.Failed),
		SummaryJSON:  datatypes.JSON(raw),
	}
	if !sum.FinishedAt.IsZero() {
		finished := sum.FinishedAt
		run.FinishedAt = &finished
	}
	if err := s.Runs.SaveRun(ctx, run); err != nil {
		log.Warn("save pipeline run failed", zap.Error(err))
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) now() func() time.Time {
	if s.Now == nil {
		return time.Now
	}
	return s.Now
}
