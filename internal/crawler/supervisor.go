package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/config"
	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
	"github.com/BenjaminSRussell/shelfcrawl/internal/metrics"
	"github.com/BenjaminSRussell/shelfcrawl/internal/pacer"
	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// Runner performs one full traversal.
type Runner interface {
	Run(ctx context.Context, cfg *types.Config) (types.Results, error)
}

// ResultSet exposes the accumulated records.
type ResultSet interface {
	Records() []types.Record
	Len() int
}

// Sink persists the final result set.
type Sink interface {
	Persist(ctx context.Context, records []types.Record, schema []string, destination string) error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSleeper replaces the cooldown sleep.
func WithSleeper(sleep pacer.Sleeper) Option {
	return func(s *Supervisor) { s.sleep = sleep }
}

// WithRunID sets the run id instead of a random one.
func WithRunID(id string) Option {
	return func(s *Supervisor) { s.runID = id }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// Supervisor retries whole traversals with a cooldown and persists the
// result set once a traversal completes.
type Supervisor struct {
	cfg       *types.Config
	traversal Runner
	results   ResultSet
	sinks     []Sink
	log       logger.Interface
	metrics   *metrics.Metrics

	sleep pacer.Sleeper
	now   func() time.Time
	runID string

	// dest is fixed by the first persist of a run. written holds, per sink
	// index, the record count that sink last stored.
	dest    string
	written map[int]int
}

// NewSupervisor creates a new Supervisor
func NewSupervisor(
	cfg *types.Config,
	traversal Runner,
	results ResultSet,
	sinks []Sink,
	log logger.Interface,
	m *metrics.Metrics,
	opts ...Option,
) *Supervisor {
	s := &Supervisor{
		cfg:       cfg,
		traversal: traversal,
		results:   results,
		sinks:     sinks,
		log:       log,
		metrics:   m,
		sleep:     pacer.Sleep,
		now:       time.Now,
		runID:     uuid.NewString(),
		written:   make(map[int]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes up to restart_count attempts. It never panics and never
// returns an error; the outcome is described by the report.
func (s *Supervisor) Run(ctx context.Context) types.RunReport {
	report := types.RunReport{RunID: s.runID, StartedAt: s.now()}
	log := s.log.With(zap.String("run_id", s.runID))

	applied, err := config.Normalize(s.cfg)
	for _, note := range applied {
		log.Info(note)
	}
	if err != nil {
		log.Error("failed to prepare run", zap.Error(err))
		report.State = types.RunState{Phase: types.PhaseExhausted}
		report.Err = err
		report.FinishedAt = s.now()
		return report
	}

	state := types.RunState{
		Phase:       types.PhaseIdle,
		MaxAttempts: s.cfg.Restart.Count,
		Cooldown:    s.cfg.Restart.Cooldown(),
	}
	log.Info("START PARSING", zap.Int("max_attempts", state.MaxAttempts), zap.Duration("cooldown", state.Cooldown))

	for attempt := 1; attempt <= state.MaxAttempts; attempt++ {
		state.Attempt = attempt
		state.Phase = types.PhaseAttempting

		res, dest, err := s.attempt(ctx)
		report.Results = res
		if err == nil {
			state.Phase = types.PhaseSucceeded
			report.Destination = dest
			report.Err = nil
			s.metrics.IncRunAttempt("succeeded")
			break
		}

		report.Err = err
		s.metrics.IncRunAttempt("failed")
		fields := []zap.Field{zap.Int("attempt", attempt), zap.Error(err)}
		var pe *PanicError
		if errors.As(err, &pe) {
			fields = append(fields, zap.ByteString("stack", pe.Stack))
		}
		log.Error("MAIN ERROR", fields...)

		if ctx.Err() != nil {
			state.Phase = types.PhaseCanceled
			break
		}
		if attempt == state.MaxAttempts {
			state.Phase = types.PhaseExhausted
			log.Warn("BAD TRY", zap.Int("try", attempt))
			break
		}

		state.Phase = types.PhaseRetrying
		log.Warn("BAD TRY", zap.Int("try", attempt), zap.Float64("sleep_m", s.cfg.Restart.IntervalM))
		if err := s.sleep(ctx, state.Cooldown); err != nil {
			state.Phase = types.PhaseCanceled
			report.Err = err
			break
		}
	}

	report.State = state
	report.Records = s.results.Len()
	report.FinishedAt = s.now()
	log.Info("END PARSING",
		zap.String("state", string(state.Phase)),
		zap.Int("attempts", state.Attempt),
		zap.Int("records", report.Records))
	return report
}

func (s *Supervisor) attempt(ctx context.Context) (res types.Results, dest string, err error) {
	err = safely(func() error {
		var runErr error
		res, runErr = s.traversal.Run(ctx, s.cfg)
		if runErr != nil {
			return runErr
		}
		dest, runErr = s.persist(ctx)
		return runErr
	})
	return res, dest, err
}

func (s *Supervisor) persist(ctx context.Context) (string, error) {
	if s.dest == "" {
		s.dest = s.cfg.OutputFile
		if s.dest == "" {
			s.dest = fmt.Sprintf("results_%d", s.now().UnixNano())
		}
	}

	records := s.results.Records()
	for i, sink := range s.sinks {
		if n, ok := s.written[i]; ok && n == len(records) {
			continue
		}
		if err := sink.Persist(ctx, records, types.RecordSchema, s.dest); err != nil {
			return s.dest, fmt.Errorf("failed to persist %s: %w", s.dest, err)
		}
		s.written[i] = len(records)
	}
	return s.dest, nil
}
