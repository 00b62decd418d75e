// Package store provides the GORM-backed persistence layer for bots, runs,
// members and constituencies. Interfaces consumed by the orchestration and
// pipeline packages are defined by those packages; this package supplies the
// postgres implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// BotStore persists bots and their runs
type BotStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewBotStore creates a BotStore on the given connection
func NewBotStore(db *gorm.DB, logger *logrus.Logger) *BotStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &BotStore{db: db, logger: logger}
}

// ListBots returns all bots ordered by name
func (s *BotStore) ListBots(ctx context.Context) ([]models.Bot, error) {
	var bots []models.Bot
	err := s.db.WithContext(ctx).Order("name asc").Find(&bots).Error
	return bots, err
}

// GetBot returns one bot by id, or (nil, nil) when it does not exist
func (s *BotStore) GetBot(ctx context.Context, id uint) (*models.Bot, error) {
	var bot models.Bot
	err := s.db.WithContext(ctx).First(&bot, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetBotByName returns one bot by its unique name, or (nil, nil)
func (s *BotStore) GetBotByName(ctx context.Context, name string) (*models.Bot, error) {
	var bot models.Bot
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// CreateBot inserts a new bot
func (s *BotStore) CreateBot(ctx context.Context, bot *models.Bot) error {
	return s.db.WithContext(ctx).Create(bot).Error
}

// SaveBot writes the full bot row back
func (s *BotStore) SaveBot(ctx context.Context, bot *models.Bot) error {
	return s.db.WithContext(ctx).Save(bot).Error
}

// DeleteBot removes a bot; its runs cascade at the schema level
func (s *BotStore) DeleteBot(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Bot{}, id).Error
}

// DueBots returns scheduled, non-disabled, non-paused bots whose next
// scheduled run is at or before now
func (s *BotStore) DueBots(ctx context.Context, now time.Time) ([]models.Bot, error) {
	var bots []models.Bot
	err := s.db.WithContext(ctx).
		Where("is_scheduled = ?", true).
		Where("status NOT IN ?", []models.BotStatus{models.StatusDisabled, models.StatusPaused}).
		Where("next_scheduled_run IS NOT NULL AND next_scheduled_run <= ?", now).
		Find(&bots).Error
	return bots, err
}

// RunningBots returns bots currently marked RUNNING
func (s *BotStore) RunningBots(ctx context.Context) ([]models.Bot, error) {
	var bots []models.Bot
	err := s.db.WithContext(ctx).Where("status = ?", models.StatusRunning).Find(&bots).Error
	return bots, err
}

// TransitionStatus moves a bot from one of the given states to another in a
// single conditional UPDATE. It reports false when the bot was not in any of
// the from states, which is how concurrent triggers lose the race cleanly.
func (s *BotStore) TransitionStatus(ctx context.Context, id uint, from []models.BotStatus, to models.BotStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Bot{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountBotsByStatus returns the number of bots per status
func (s *BotStore) CountBotsByStatus(ctx context.Context) (map[models.BotStatus]int64, error) {
	type row struct {
		Status models.BotStatus
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Bot{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.BotStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// DeleteAllBots truncates the bot table (runs cascade)
func (s *BotStore) DeleteAllBots(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Bot{}).Error
}

// CreateRun inserts a new run, assigning an id when the caller did not
func (s *BotStore) CreateRun(ctx context.Context, run *models.BotRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// SaveRun writes the full run row back
func (s *BotStore) SaveRun(ctx context.Context, run *models.BotRun) error {
	return s.db.WithContext(ctx).Save(run).Error
}

// GetRun returns one run by id, or (nil, nil)
func (s *BotStore) GetRun(ctx context.Context, id uuid.UUID) (*models.BotRun, error) {
	var run models.BotRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns one page of a bot's run history, newest first, along with
// the total count
func (s *BotStore) ListRuns(ctx context.Context, botID uint, page, pageSize int) ([]models.BotRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.BotRun{}).
		Where("bot_id = ?", botID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.BotRun
	err := s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("started_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&runs).Error
	return runs, total, err
}

// LatestRun returns a bot's most recent run, or (nil, nil)
func (s *BotStore) LatestRun(ctx context.Context, botID uint) (*models.BotRun, error) {
	var run models.BotRun
	err := s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("started_at desc").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ActiveRuns returns all runs still in a live state
func (s *BotStore) ActiveRuns(ctx context.Context) ([]models.BotRun, error) {
	var runs []models.BotRun
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.RunStatus{models.RunStarted, models.RunRunning}).
		Order("started_at asc").
		Find(&runs).Error
	return runs, err
}

// LiveRunsForBot returns a bot's live runs, newest first
func (s *BotStore) LiveRunsForBot(ctx context.Context, botID uint) ([]models.BotRun, error) {
	var runs []models.BotRun
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND status IN ?", botID, []models.RunStatus{models.RunStarted, models.RunRunning}).
		Order("started_at desc").
		Find(&runs).Error
	return runs, err
}

// RunsSince returns every run started at or after the given instant
func (s *BotStore) RunsSince(ctx context.Context, since time.Time) ([]models.BotRun, error) {
	var runs []models.BotRun
	err := s.db.WithContext(ctx).
		Where("started_at >= ?", since).
		Order("started_at desc").
		Find(&runs).Error
	return runs, err
}

// StaleLiveRuns returns live runs started before the given cutoff
func (s *BotStore) StaleLiveRuns(ctx context.Context, olderThan time.Time) ([]models.BotRun, error) {
	var runs []models.BotRun
	err := s.db.WithContext(ctx).
		Where("status IN ? AND started_at < ?",
			[]models.RunStatus{models.RunStarted, models.RunRunning}, olderThan).
		Find(&runs).Error
	return runs, err
}

// DeleteAllRuns truncates the run table
func (s *BotStore) DeleteAllRuns(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&models.BotRun{}).Error
}
