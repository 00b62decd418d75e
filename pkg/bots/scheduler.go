package bots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
)

const (
	// DefaultTickInterval is how often the scheduler scans for due bots,
	// independent of any individual bot's cadence
	DefaultTickInterval = time.Minute

	// fallbackScheduleDelay is applied when a bot's cron expression cannot
	// be parsed, so a bad expression stalls one bot, not the scheduler
	fallbackScheduleDelay = 24 * time.Hour
)

// Scheduler periodically scans for due bots and dispatches their runs
// asynchronously. Each dispatched run owns its bot's mutable state for the
// duration; the loop itself never blocks on a run.
type Scheduler struct {
	store    Store
	executor *RunExecutor
	logger   *logrus.Logger
	interval time.Duration
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler. A zero interval means DefaultTickInterval.
func NewScheduler(store Store, executor *RunExecutor, logger *logrus.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	if interval == 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		logger:   logger,
		interval: interval,
	}
}

// Run drives the scheduler loop until the context is cancelled, then waits
// for in-flight runs to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithField("interval", s.interval).Info("Scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping, waiting for dispatched runs")
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick dispatches every due bot. The next scheduled run advances
// unconditionally before dispatch: a failing run surfaces through the bot's
// ERROR status and its BotRun, never through a missed schedule slot.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	due, err := s.store.DueBots(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query due bots")
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.WithField("due", len(due)).Debug("Dispatching due bots")

	for i := range due {
		bot := due[i]
		s.advanceSchedule(ctx, &bot, now)

		s.wg.Add(1)
		go func(b models.Bot) {
			defer s.wg.Done()
			if _, err := s.executor.Execute(ctx, &b, models.TriggerScheduled); err != nil {
				// Rejections here are routine: a manual run may still
				// hold the bot RUNNING when its slot comes up.
				s.logger.WithError(err).WithField("bot", b.Name).Info("Scheduled trigger rejected")
			}
		}(bot)
	}
}

// advanceSchedule computes and persists the bot's next scheduled run
func (s *Scheduler) advanceSchedule(ctx context.Context, bot *models.Bot, now time.Time) {
	next, err := NextScheduledRun(bot.CronExpression, now)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"bot":  bot.Name,
			"cron": bot.CronExpression,
		}).Warn("Unparseable cron expression, deferring bot")
		next = now.Add(fallbackScheduleDelay)
	}

	bot.NextScheduledRun = &next
	if err := s.store.SaveBot(ctx, bot); err != nil {
		s.logger.WithError(err).WithField("bot", bot.Name).Error("Failed to advance schedule")
	}
}

// NextScheduledRun evaluates a standard five-field cron expression against
// the given instant
func NextScheduledRun(expression string, after time.Time) (time.Time, error) {
	if expression == "" {
		return time.Time{}, fmt.Errorf("empty cron expression")
	}
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return schedule.Next(after), nil
}
