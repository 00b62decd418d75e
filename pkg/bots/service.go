package bots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// Service is the facade the API layer consumes. It owns no state beyond its
// collaborators; every operation is a thin, validated pass-through to the
// store, the executor or the aggregator.
type Service struct {
	store     Store
	executor  *RunExecutor
	dashboard *DashboardAggregator
	logger    *logrus.Logger
}

// NewService creates a Service
func NewService(store Store, executor *RunExecutor, dashboard *DashboardAggregator, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		store:     store,
		executor:  executor,
		dashboard: dashboard,
		logger:    logger,
	}
}

// BotSpec describes a bot to create
type BotSpec struct {
	Name            string         `json:"name"`
	BotType         models.BotType `json:"botType"`
	TargetState     string         `json:"targetState"`
	TargetStateCode string         `json:"targetStateCode"`
	SourceURL       string         `json:"sourceUrl"`
	DataSourceName  string         `json:"dataSourceName"`
	IsScheduled     bool           `json:"isScheduled"`
	CronExpression  string         `json:"cronExpression"`
	MaxRetries      int            `json:"maxRetries"`
}

// BotPatch carries the updatable fields of a bot; nil fields stay untouched
type BotPatch struct {
	TargetState     *string `json:"targetState"`
	TargetStateCode *string `json:"targetStateCode"`
	SourceURL       *string `json:"sourceUrl"`
	DataSourceName  *string `json:"dataSourceName"`
	IsScheduled     *bool   `json:"isScheduled"`
	CronExpression  *string `json:"cronExpression"`
	MaxRetries      *int    `json:"maxRetries"`
}

// ListBots returns all configured bots
func (s *Service) ListBots(ctx context.Context) ([]models.Bot, error) {
	return s.store.ListBots(ctx)
}

// GetBot returns one bot or NOT_FOUND
func (s *Service) GetBot(ctx context.Context, id uint) (*models.Bot, error) {
	bot, err := s.store.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound(id)
	}
	return bot, nil
}

// CreateBot validates and persists a new bot in IDLE
func (s *Service) CreateBot(ctx context.Context, spec BotSpec) (*models.Bot, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("bot name is required")
	}
	if spec.BotType == "" {
		return nil, fmt.Errorf("bot type is required")
	}
	existing, err := s.store.GetBotByName(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("bot %q already exists", spec.Name)
	}

	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	bot := &models.Bot{
		Name:            spec.Name,
		BotType:         spec.BotType,
		TargetState:     spec.TargetState,
		TargetStateCode: spec.TargetStateCode,
		SourceURL:       spec.SourceURL,
		DataSourceName:  spec.DataSourceName,
		IsScheduled:     spec.IsScheduled,
		CronExpression:  spec.CronExpression,
		MaxRetries:      maxRetries,
		Status:          models.StatusIdle,
	}

	if bot.IsScheduled && bot.CronExpression != "" {
		next, err := NextScheduledRun(bot.CronExpression, time.Now())
		if err != nil {
			return nil, err
		}
		bot.NextScheduledRun = &next
	}

	if err := s.store.CreateBot(ctx, bot); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"bot":  bot.Name,
		"type": bot.BotType,
	}).Info("Bot created")
	return bot, nil
}

// UpdateBot applies a patch to a bot's configuration
func (s *Service) UpdateBot(ctx context.Context, id uint, patch BotPatch) (*models.Bot, error) {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.TargetState != nil {
		bot.TargetState = *patch.TargetState
	}
	if patch.TargetStateCode != nil {
		bot.TargetStateCode = *patch.TargetStateCode
	}
	if patch.SourceURL != nil {
		bot.SourceURL = *patch.SourceURL
	}
	if patch.DataSourceName != nil {
		bot.DataSourceName = *patch.DataSourceName
	}
	if patch.IsScheduled != nil {
		bot.IsScheduled = *patch.IsScheduled
	}
	if patch.CronExpression != nil {
		bot.CronExpression = *patch.CronExpression
	}
	if patch.MaxRetries != nil && *patch.MaxRetries > 0 {
		bot.MaxRetries = *patch.MaxRetries
	}

	if bot.IsScheduled && bot.CronExpression != "" &&
		(patch.CronExpression != nil || patch.IsScheduled != nil) {
		next, err := NextScheduledRun(bot.CronExpression, time.Now())
		if err != nil {
			return nil, err
		}
		bot.NextScheduledRun = &next
	}

	if err := s.store.SaveBot(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// DeleteBot removes a bot and, through the schema, its run history
func (s *Service) DeleteBot(ctx context.Context, id uint) error {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBot(ctx, bot.ID); err != nil {
		return err
	}
	s.logger.WithField("bot", bot.Name).Info("Bot deleted")
	return nil
}

// TriggerBot starts a manual run and blocks until it finishes. The returned
// run may be COMPLETED or FAILED; both are normal completions. Rejections
// (already running, disabled, unknown id) surface as errors before any run
// exists.
func (s *Service) TriggerBot(ctx context.Context, id uint) (*models.BotRun, error) {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, bot, models.TriggerManual)
}

// EnableBot forces a bot back to IDLE from any state
func (s *Service) EnableBot(ctx context.Context, id uint) error {
	return s.setStatus(ctx, id, models.StatusIdle)
}

// DisableBot stops all triggering of a bot until it is enabled again
func (s *Service) DisableBot(ctx context.Context, id uint) error {
	return s.setStatus(ctx, id, models.StatusDisabled)
}

// PauseBot suspends scheduled triggering; manual runs stay allowed
func (s *Service) PauseBot(ctx context.Context, id uint) error {
	return s.setStatus(ctx, id, models.StatusPaused)
}

func (s *Service) setStatus(ctx context.Context, id uint, status models.BotStatus) error {
	bot, err := s.GetBot(ctx, id)
	if err != nil {
		return err
	}
	bot.Status = status
	if status == models.StatusIdle {
		bot.ConsecutiveFailures = 0
	}
	if err := s.store.SaveBot(ctx, bot); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"bot":   bot.Name,
		"state": status,
	}).Info("Bot status changed by operator")
	return nil
}

// ListRuns returns one page of a bot's run history plus the total count
func (s *Service) ListRuns(ctx context.Context, botID uint, page, pageSize int) ([]models.BotRun, int64, error) {
	if _, err := s.GetBot(ctx, botID); err != nil {
		return nil, 0, err
	}
	return s.store.ListRuns(ctx, botID, page, pageSize)
}

// LatestRun returns a bot's most recent run or NOT_FOUND when it has none
func (s *Service) LatestRun(ctx context.Context, botID uint) (*models.BotRun, error) {
	if _, err := s.GetBot(ctx, botID); err != nil {
		return nil, err
	}
	run, err := s.store.LatestRun(ctx, botID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, NewBotError(ErrCodeNotFound, fmt.Sprintf("bot %d has no runs", botID), nil)
	}
	return run, nil
}

// GetRun returns one run by id or NOT_FOUND
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*models.BotRun, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, NewBotError(ErrCodeNotFound, fmt.Sprintf("run %s does not exist", id), nil)
	}
	return run, nil
}

// ActiveRuns returns every run currently in a live state
func (s *Service) ActiveRuns(ctx context.Context) ([]models.BotRun, error) {
	return s.store.ActiveRuns(ctx)
}

// DashboardStats returns the operational rollup
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	return s.dashboard.Stats(ctx)
}
