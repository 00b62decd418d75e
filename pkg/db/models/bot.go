package models

import (
	"time"

	"github.com/google/uuid"
)

// BotStatus represents the lifecycle state of a bot
type BotStatus string

const (
	StatusIdle     BotStatus = "IDLE"
	StatusRunning  BotStatus = "RUNNING"
	StatusPaused   BotStatus = "PAUSED"
	StatusDisabled BotStatus = "DISABLED"
	StatusError    BotStatus = "ERROR"
)

// BotType selects the extraction strategy a bot dispatches to
type BotType string

const (
	// TypeResultsScrape scrapes a primary-source results page
	TypeResultsScrape BotType = "RESULTS_SCRAPE"
	// TypeMemberSync re-links stored members against constituencies
	TypeMemberSync BotType = "MEMBER_SYNC"
	// TypeArchiveScrape scrapes a secondary/archive source
	TypeArchiveScrape BotType = "ARCHIVE_SCRAPE"
)

// Bot represents the database model for a configured extraction job
type Bot struct {
	ID   uint   `gorm:"primaryKey;column:id"`
	Name string `gorm:"column:name;uniqueIndex;size:120;not null"`

	// Classification and target
	BotType         BotType `gorm:"column:bot_type;type:bot_type;not null"`
	TargetState     string  `gorm:"column:target_state;size:80"`
	TargetStateCode string  `gorm:"column:target_state_code;size:8;index"`
	SourceURL       string  `gorm:"column:source_url"`
	DataSourceName  string  `gorm:"column:data_source_name;size:80"`

	// Scheduling
	IsScheduled      bool       `gorm:"column:is_scheduled;default:false"`
	CronExpression   string     `gorm:"column:cron_expression;size:120"`
	NextScheduledRun *time.Time `gorm:"column:next_scheduled_run;index"`

	// Lifecycle counters
	TotalRuns           int `gorm:"column:total_runs;default:0"`
	SuccessfulRuns      int `gorm:"column:successful_runs;default:0"`
	FailedRuns          int `gorm:"column:failed_runs;default:0"`
	ConsecutiveFailures int `gorm:"column:consecutive_failures;default:0"`
	MaxRetries          int `gorm:"column:max_retries;default:3"`

	// Last-run snapshot
	LastRunAt           *time.Time `gorm:"column:last_run_at"`
	LastSuccessfulRunAt *time.Time `gorm:"column:last_successful_run_at"`
	LastRecordsFetched  int        `gorm:"column:last_records_fetched;default:0"`
	LastRecordsInserted int        `gorm:"column:last_records_inserted;default:0"`
	LastRecordsUpdated  int        `gorm:"column:last_records_updated;default:0"`
	LastErrorMessage    string     `gorm:"column:last_error_message;type:text"`

	Status BotStatus `gorm:"column:status;type:bot_status;not null;default:'IDLE';index"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for the Bot model
func (Bot) TableName() string {
	return "bots"
}

// CanTrigger reports whether a trigger attempt is allowed from the bot's
// current status. RUNNING and DISABLED reject; every other state accepts.
func (b *Bot) CanTrigger() bool {
	return b.Status != StatusRunning && b.Status != StatusDisabled
}

// AcceptsScheduledTrigger reports whether the scheduler may dispatch this
// bot. PAUSED suspends scheduled runs but still allows manual ones.
func (b *Bot) AcceptsScheduledTrigger() bool {
	return b.IsScheduled && b.Status != StatusDisabled && b.Status != StatusPaused
}

// RunStatus represents the lifecycle state of a single run
type RunStatus string

const (
	RunStarted   RunStatus = "STARTED"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// IsTerminal returns true once a run can no longer change status
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// TriggerType records what initiated a run
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// BotRun represents the database model for one execution attempt of a Bot.
// Rows are immutable once COMPLETED or FAILED except for LogOutput, which is
// append-only.
type BotRun struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	BotID uint      `gorm:"column:bot_id;not null;index"`

	Status      RunStatus   `gorm:"column:status;type:run_status;not null;index"`
	TriggerType TriggerType `gorm:"column:trigger_type;type:trigger_type;not null"`

	StartedAt       time.Time  `gorm:"column:started_at;not null"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	DurationSeconds float64    `gorm:"column:duration_seconds;default:0"`

	RecordsFetched  int `gorm:"column:records_fetched;default:0"`
	RecordsInserted int `gorm:"column:records_inserted;default:0"`
	RecordsUpdated  int `gorm:"column:records_updated;default:0"`
	RecordsSkipped  int `gorm:"column:records_skipped;default:0"`
	RecordsFailed   int `gorm:"column:records_failed;default:0"`

	ErrorMessage string `gorm:"column:error_message;type:text"`
	RetryCount   int    `gorm:"column:retry_count;default:0"`
	LogOutput    string `gorm:"column:log_output;type:text"`
}

// TableName specifies the table name for the BotRun model
func (BotRun) TableName() string {
	return "bot_runs"
}

// Duration returns the elapsed wall time of the run
func (r *BotRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
