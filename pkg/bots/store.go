package bots

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// Store is the persistence surface the orchestration layer depends on. The
// GORM implementation lives in pkg/store; tests substitute an in-memory one.
//
// Get methods return (nil, nil) when the row does not exist.
type Store interface {
	ListBots(ctx context.Context) ([]models.Bot, error)
	GetBot(ctx context.Context, id uint) (*models.Bot, error)
	GetBotByName(ctx context.Context, name string) (*models.Bot, error)
	CreateBot(ctx context.Context, bot *models.Bot) error
	SaveBot(ctx context.Context, bot *models.Bot) error
	DeleteBot(ctx context.Context, id uint) error
	DueBots(ctx context.Context, now time.Time) ([]models.Bot, error)
	RunningBots(ctx context.Context) ([]models.Bot, error)
	CountBotsByStatus(ctx context.Context) (map[models.BotStatus]int64, error)
	DeleteAllBots(ctx context.Context) error

	// TransitionStatus performs the conditional status update that guards
	// the trigger boundary: it must be atomic at the persistence layer and
	// report false when the bot was not in any of the from states.
	TransitionStatus(ctx context.Context, id uint, from []models.BotStatus, to models.BotStatus) (bool, error)

	CreateRun(ctx context.Context, run *models.BotRun) error
	SaveRun(ctx context.Context, run *models.BotRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.BotRun, error)
	ListRuns(ctx context.Context, botID uint, page, pageSize int) ([]models.BotRun, int64, error)
	LatestRun(ctx context.Context, botID uint) (*models.BotRun, error)
	ActiveRuns(ctx context.Context) ([]models.BotRun, error)
	LiveRunsForBot(ctx context.Context, botID uint) ([]models.BotRun, error)
	RunsSince(ctx context.Context, since time.Time) ([]models.BotRun, error)
	StaleLiveRuns(ctx context.Context, olderThan time.Time) ([]models.BotRun, error)
	DeleteAllRuns(ctx context.Context) error
}

// triggerableStates are the bot states a trigger may transition to RUNNING
// from. RUNNING and DISABLED are deliberately absent.
var triggerableStates = []models.BotStatus{
	models.StatusIdle,
	models.StatusError,
	models.StatusPaused,
}
