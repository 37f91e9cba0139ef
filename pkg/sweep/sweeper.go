// Package sweep periodically finds deals old enough for their pipeline deal
// age automations and hands them to the automation coordinator.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "@hourly"

// AgeHandler evaluates deal age automations for a batch of deals.
type AgeHandler interface {
	HandleAgeSweep(ctx context.Context, dealIDs []string) error
}

type Option func(*Sweeper)

// WithSchedule sets the cron expression (standard five fields or a
// descriptor such as @hourly).
func WithSchedule(schedule string) Option {
	return func(s *Sweeper) {
		s.schedule = schedule
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// Sweeper selects candidate deals on a cron schedule. A deal is a candidate
// when it is old enough for at least one enabled deal age automation that
// has not fired for it yet; the coordinator makes the final decision.
type Sweeper struct {
	deals     persistence.DealRepository
	pipelines persistence.PipelineRepository
	markers   persistence.AgeMarkerRepository
	handler   AgeHandler
	logger    *slog.Logger
	schedule  string
	now       func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(store persistence.Persistence, handler AgeHandler, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		deals:     store.DealRepository(),
		pipelines: store.PipelineRepository(),
		markers:   store.AgeMarkerRepository(),
		handler:   handler,
		logger:    logger.With("module", "age_sweeper"),
		schedule:  DefaultSchedule,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Validate checks the configured schedule.
func (s *Sweeper) Validate() error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule '%s': %w", s.schedule, err)
	}

	return nil
}

// Start schedules the sweep. Runs never overlap; a run still in progress
// when the next one is due makes the next one skip.
func (s *Sweeper) Start(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo))
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		swept, err := s.Sweep(s.ctx)
		if err != nil {
			s.logger.ErrorContext(s.ctx, "Age sweep finished with errors", "deals", swept, "error", err)

			return
		}

		s.logger.InfoContext(s.ctx, "Age sweep finished", "deals", swept)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule age sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Age sweeper started", "schedule", s.schedule, "entry_id", entryID)

	return nil
}

// Stop cancels a running sweep and waits for it to return.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.InfoContext(ctx, "Age sweeper stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one pass over every pipeline and returns how many deals were
// handed to the coordinator.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	pipelines, err := s.pipelines.ListPipelines(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list pipelines: %w", err)
	}

	candidates := make([]string, 0)

	for _, pipeline := range pipelines {
		rules := ageRules(pipeline)
		if len(rules) == 0 {
			continue
		}

		deals, err := s.deals.ListByPipeline(ctx, pipeline.AccountID, pipeline.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to list deals of pipeline %s: %w", pipeline.ID, err)
		}

		for _, deal := range deals {
			due, err := s.due(ctx, deal, rules, now)
			if err != nil {
				return 0, err
			}

			if due {
				candidates = append(candidates, deal.ID)
			}
		}
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	s.logger.DebugContext(ctx, "Sweeping aged deals", "deals", len(candidates))

	return len(candidates), s.handler.HandleAgeSweep(ctx, candidates)
}

func (s *Sweeper) due(ctx context.Context, deal *models.Deal, rules []rule, now time.Time) (bool, error) {
	age := deal.AgeInDays(now)

	for _, r := range rules {
		if age < r.days {
			continue
		}

		fired, err := s.markers.HasFired(ctx, deal.ID, r.id)
		if err != nil {
			return false, fmt.Errorf("failed to read age marker for deal %s: %w", deal.ID, err)
		}

		if !fired {
			return true, nil
		}
	}

	return false, nil
}

type rule struct {
	id   string
	days int
}

func ageRules(pipeline *models.Pipeline) []rule {
	rules := make([]rule, 0)

	for _, automation := range pipeline.EnabledAutomations() {
		if trigger, ok := automation.Trigger.(models.DealAge); ok {
			rules = append(rules, rule{id: automation.ID, days: trigger.Days})
		}
	}

	return rules
}
