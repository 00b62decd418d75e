package bots

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
)

const (
	// DefaultLiveRunThreshold is how recent a live run must be for a
	// RUNNING bot to be considered healthy at startup
	DefaultLiveRunThreshold = 10 * time.Minute

	// DefaultMaxRunDuration is the maximum plausible wall time of any run;
	// live runs older than this are orphans regardless of bot status
	DefaultMaxRunDuration = 2 * time.Hour

	interruptedMessage = "interrupted: process terminated while the run was in progress"
)

// Reconciler repairs state left behind by a process that died mid-run. A bot
// must never stay RUNNING forever because the run that owned it vanished; on
// startup orphaned runs are forced FAILED and their bots forced ERROR.
type Reconciler struct {
	store            Store
	logger           *logrus.Logger
	liveRunThreshold time.Duration
	maxRunDuration   time.Duration
}

// NewReconciler creates a Reconciler with the given thresholds; zero values
// take the defaults
func NewReconciler(store Store, logger *logrus.Logger, liveRunThreshold, maxRunDuration time.Duration) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	if liveRunThreshold == 0 {
		liveRunThreshold = DefaultLiveRunThreshold
	}
	if maxRunDuration == 0 {
		maxRunDuration = DefaultMaxRunDuration
	}
	return &Reconciler{
		store:            store,
		logger:           logger,
		liveRunThreshold: liveRunThreshold,
		maxRunDuration:   maxRunDuration,
	}
}

// Reconcile scans for orphaned state and repairs it. Returns the number of
// runs it forced FAILED.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	now := time.Now()
	repaired := 0

	// Live runs past any plausible duration are orphans no matter what
	// their bot says.
	stale, err := r.store.StaleLiveRuns(ctx, now.Add(-r.maxRunDuration))
	if err != nil {
		return 0, err
	}
	for i := range stale {
		if r.failOrphanedRun(ctx, &stale[i], now) {
			repaired++
		}
	}

	// RUNNING bots without a sufficiently recent live run were interrupted.
	running, err := r.store.RunningBots(ctx)
	if err != nil {
		return repaired, err
	}
	for i := range running {
		bot := &running[i]

		live, err := r.store.LiveRunsForBot(ctx, bot.ID)
		if err != nil {
			r.logger.WithError(err).WithField("bot", bot.Name).Error("Failed to load live runs")
			continue
		}

		healthy := false
		for j := range live {
			if live[j].StartedAt.After(now.Add(-r.liveRunThreshold)) {
				healthy = true
				break
			}
		}
		if healthy {
			continue
		}

		for j := range live {
			if r.failOrphanedRun(ctx, &live[j], now) {
				repaired++
			}
		}
		r.failOrphanedBot(ctx, bot)
	}

	if repaired > 0 {
		r.logger.WithField("repaired", repaired).Warn("Reconciled orphaned runs from previous process")
	}
	return repaired, nil
}

func (r *Reconciler) failOrphanedRun(ctx context.Context, run *models.BotRun, now time.Time) bool {
	if run.Status.IsTerminal() {
		return false
	}

	completed := now
	run.Status = models.RunFailed
	run.ErrorMessage = interruptedMessage
	run.CompletedAt = &completed
	run.DurationSeconds = completed.Sub(run.StartedAt).Seconds()
	run.LogOutput += interruptedMessage + "\n"

	if err := r.store.SaveRun(ctx, run); err != nil {
		r.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to finalize orphaned run")
		return false
	}

	r.logger.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"bot_id":     run.BotID,
		"started_at": run.StartedAt,
	}).Warn("Forced orphaned run to FAILED")
	return true
}

func (r *Reconciler) failOrphanedBot(ctx context.Context, bot *models.Bot) {
	bot.Status = models.StatusError
	bot.FailedRuns++
	bot.ConsecutiveFailures++
	bot.LastErrorMessage = interruptedMessage

	if err := r.store.SaveBot(ctx, bot); err != nil {
		r.logger.WithError(err).WithField("bot", bot.Name).Error("Failed to force orphaned bot to ERROR")
		return
	}
	r.logger.WithField("bot", bot.Name).Warn("Forced orphaned bot to ERROR")
}
