package bots

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/pipeline"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// AlertFunc receives the operational alert emitted when a bot reaches its
// consecutive-failure threshold. The bot is not auto-disabled; that stays an
// operator decision.
type AlertFunc func(bot *models.Bot, err error)

// RunExecutor executes exactly one BotRun to completion and keeps the bot's
// rolling statistics consistent with the outcome, whatever branch the run
// takes.
type RunExecutor struct {
	store    Store
	registry *pipeline.Registry
	logger   *logrus.Logger
	alert    AlertFunc
}

// NewRunExecutor creates a RunExecutor
func NewRunExecutor(store Store, registry *pipeline.Registry, logger *logrus.Logger, alert AlertFunc) *RunExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	return &RunExecutor{
		store:    store,
		registry: registry,
		logger:   logger,
		alert:    alert,
	}
}

// Execute runs one attempt for the bot.
//
// The trigger boundary is a single conditional status update: a concurrent
// trigger that loses the race is rejected with INVALID_STATE before any run
// row exists. Once a run row exists the caller always gets it back, whether
// the run completed or failed; only the pre-run rejection surfaces as an
// error.
func (e *RunExecutor) Execute(ctx context.Context, bot *models.Bot, trigger models.TriggerType) (*models.BotRun, error) {
	ok, err := e.store.TransitionStatus(ctx, bot.ID, triggerableStates, models.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("trigger transition failed: %w", err)
	}
	if !ok {
		return nil, e.rejectTrigger(ctx, bot)
	}
	bot.Status = models.StatusRunning

	now := time.Now()
	run := &models.BotRun{
		ID:          uuid.New(),
		BotID:       bot.ID,
		Status:      models.RunStarted,
		TriggerType: trigger,
		StartedAt:   now,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		// Undo the trigger transition so the bot is not stuck RUNNING
		// with no run to finalize it.
		if _, terr := e.store.TransitionStatus(ctx, bot.ID, []models.BotStatus{models.StatusRunning}, models.StatusIdle); terr != nil {
			e.logger.WithError(terr).WithField("bot", bot.Name).Error("Failed to revert trigger transition")
		}
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	bot.TotalRuns++
	bot.LastRunAt = &now
	if err := e.store.SaveBot(ctx, bot); err != nil {
		e.logger.WithError(err).WithField("bot", bot.Name).Error("Failed to persist run start on bot")
	}

	log := e.logger.WithFields(logrus.Fields{
		"bot":     bot.Name,
		"run_id":  run.ID,
		"trigger": trigger,
	})
	log.Info("Run started")

	run.Status = models.RunRunning
	if err := e.store.SaveRun(ctx, run); err != nil {
		log.WithError(err).Error("Failed to persist run transition")
	}

	runlog := &pipeline.RunLog{}
	runlog.Appendf("run %s started for bot %s (%s trigger)", run.ID, bot.Name, trigger)

	result, runErr := e.dispatch(ctx, bot, runlog)

	completed := time.Now()
	run.CompletedAt = &completed
	run.DurationSeconds = completed.Sub(run.StartedAt).Seconds()

	if runErr == nil {
		e.finalizeSuccess(bot, run, result, completed)
		log.WithField("duration", run.DurationSeconds).Info("Run completed")
	} else {
		e.finalizeFailure(bot, run, runlog, runErr)
		log.WithError(runErr).Error("Run failed")
	}
	run.LogOutput = runlog.String()

	// Correctness-critical: persist both rows regardless of branch, so the
	// bot can never be left RUNNING by a completed attempt.
	if err := e.store.SaveRun(ctx, run); err != nil {
		log.WithError(err).Error("Failed to persist finalized run")
	}
	if err := e.store.SaveBot(ctx, bot); err != nil {
		log.WithError(err).Error("Failed to persist bot statistics")
	}

	return run, nil
}

// dispatch selects the strategy for the bot type and executes it, converting
// panics into run failures so a broken strategy cannot take the process down
// or leave the bot RUNNING.
func (e *RunExecutor) dispatch(ctx context.Context, bot *models.Bot, runlog *pipeline.RunLog) (result *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v\n%s", r, debug.Stack())
		}
	}()

	strategy, ok := e.registry.Get(bot.BotType)
	if !ok {
		return nil, NewBotError(ErrCodeUnsupportedBotType,
			fmt.Sprintf("no strategy registered for bot type %s", bot.BotType), nil)
	}

	result, err = strategy.Execute(ctx, bot, runlog)
	return result, e.classify(bot, err)
}

// classify maps whole-run source failures onto their error codes so run
// history and alerts carry a machine-readable failure class
func (e *RunExecutor) classify(bot *models.Bot, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scrape.ErrSourceUnavailable):
		return &BotError{Code: ErrCodeSourceFetch, Message: "source fetch failed", Err: err, BotName: bot.Name}
	case errors.Is(err, scrape.ErrPageUnparseable):
		return &BotError{Code: ErrCodeParse, Message: "source page parse failed", Err: err, BotName: bot.Name}
	default:
		return err
	}
}

func (e *RunExecutor) finalizeSuccess(bot *models.Bot, run *models.BotRun, result *pipeline.Result, completed time.Time) {
	run.Status = models.RunCompleted
	if result != nil {
		run.RecordsFetched = result.Fetched
		run.RecordsInserted = result.Inserted
		run.RecordsUpdated = result.Updated
		run.RecordsSkipped = result.Skipped
		run.RecordsFailed = result.Failed
	}

	bot.Status = models.StatusIdle
	bot.LastSuccessfulRunAt = &completed
	bot.SuccessfulRuns++
	bot.ConsecutiveFailures = 0
	bot.LastRecordsFetched = run.RecordsFetched
	bot.LastRecordsInserted = run.RecordsInserted
	bot.LastRecordsUpdated = run.RecordsUpdated
	bot.LastErrorMessage = ""
}

func (e *RunExecutor) finalizeFailure(bot *models.Bot, run *models.BotRun, runlog *pipeline.RunLog, runErr error) {
	run.Status = models.RunFailed
	run.ErrorMessage = runErr.Error()
	run.RetryCount++
	runlog.Appendf("run failed: %+v", runErr)

	bot.Status = models.StatusError
	bot.FailedRuns++
	bot.ConsecutiveFailures++
	bot.LastErrorMessage = runErr.Error()

	if bot.ConsecutiveFailures >= bot.MaxRetries && bot.MaxRetries > 0 {
		e.logger.WithFields(logrus.Fields{
			"bot":                  bot.Name,
			"consecutive_failures": bot.ConsecutiveFailures,
			"max_retries":          bot.MaxRetries,
		}).Warn("Bot reached failure threshold")
		if e.alert != nil {
			e.alert(bot, runErr)
		}
	}
}

// rejectTrigger builds the right INVALID_STATE error for a trigger that lost
// the transition race, without ever creating a run row
func (e *RunExecutor) rejectTrigger(ctx context.Context, bot *models.Bot) error {
	current, err := e.store.GetBot(ctx, bot.ID)
	if err != nil {
		return fmt.Errorf("failed to read bot after rejected trigger: %w", err)
	}
	if current == nil {
		return ErrBotNotFound(bot.ID)
	}

	switch current.Status {
	case models.StatusRunning:
		return ErrAlreadyRunning(current.Name)
	case models.StatusDisabled:
		return ErrDisabled(current.Name)
	default:
		return NewBotError(ErrCodeInvalidState,
			fmt.Sprintf("bot %s cannot be triggered from status %s", current.Name, current.Status), nil)
	}
}
