package bots

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
)

const (
	// dashboardWindow is the trailing window for run rollups
	dashboardWindow = 24 * time.Hour

	// maxRecentFailures caps the recent-failure list
	maxRecentFailures = 10
)

// FailureSummary is one entry in the recent-failure list
type FailureSummary struct {
	RunID        uuid.UUID `json:"runId"`
	BotID        uint      `json:"botId"`
	BotName      string    `json:"botName"`
	StartedAt    time.Time `json:"startedAt"`
	ErrorMessage string    `json:"errorMessage"`
}

// BotRollup aggregates one bot's runs inside the trailing window
type BotRollup struct {
	BotID              uint    `json:"botId"`
	BotName            string  `json:"botName"`
	Runs               int     `json:"runs"`
	AvgDurationSeconds float64 `json:"avgDurationSeconds"`
	TotalInserted      int     `json:"totalInserted"`
	TotalUpdated       int     `json:"totalUpdated"`
}

// DashboardStats is the read-side rollup served to operators
type DashboardStats struct {
	TotalBots    int64 `json:"totalBots"`
	IdleBots     int64 `json:"idleBots"`
	RunningBots  int64 `json:"runningBots"`
	PausedBots   int64 `json:"pausedBots"`
	DisabledBots int64 `json:"disabledBots"`
	ErrorBots    int64 `json:"errorBots"`

	RunCountsLast24h map[models.RunStatus]int `json:"runCountsLast24h"`
	RecentFailures   []FailureSummary         `json:"recentFailures"`
	BotRollups       []BotRollup              `json:"botRollups"`
}

// DashboardAggregator computes operational rollups from bot and run history.
// It only reads; its numbers are eventually consistent with in-flight runs
// and may be recomputed at any time alongside them.
type DashboardAggregator struct {
	store  Store
	logger *logrus.Logger
}

// NewDashboardAggregator creates a DashboardAggregator
func NewDashboardAggregator(store Store, logger *logrus.Logger) *DashboardAggregator {
	if logger == nil {
		logger = logrus.New()
	}
	return &DashboardAggregator{store: store, logger: logger}
}

// Stats computes the full dashboard rollup
func (a *DashboardAggregator) Stats(ctx context.Context) (*DashboardStats, error) {
	counts, err := a.store.CountBotsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		IdleBots:         counts[models.StatusIdle],
		RunningBots:      counts[models.StatusRunning],
		PausedBots:       counts[models.StatusPaused],
		DisabledBots:     counts[models.StatusDisabled],
		ErrorBots:        counts[models.StatusError],
		RunCountsLast24h: make(map[models.RunStatus]int),
	}
	for _, n := range counts {
		stats.TotalBots += n
	}

	runs, err := a.store.RunsSince(ctx, time.Now().Add(-dashboardWindow))
	if err != nil {
		return nil, err
	}

	botNames, err := a.botNames(ctx)
	if err != nil {
		return nil, err
	}

	rollups := make(map[uint]*BotRollup)
	durations := make(map[uint]float64)
	for i := range runs {
		run := &runs[i]
		stats.RunCountsLast24h[run.Status]++

		if run.Status == models.RunFailed && len(stats.RecentFailures) < maxRecentFailures {
			stats.RecentFailures = append(stats.RecentFailures, FailureSummary{
				RunID:        run.ID,
				BotID:        run.BotID,
				BotName:      botNames[run.BotID],
				StartedAt:    run.StartedAt,
				ErrorMessage: run.ErrorMessage,
			})
		}

		roll, ok := rollups[run.BotID]
		if !ok {
			roll = &BotRollup{BotID: run.BotID, BotName: botNames[run.BotID]}
			rollups[run.BotID] = roll
		}
		roll.Runs++
		roll.TotalInserted += run.RecordsInserted
		roll.TotalUpdated += run.RecordsUpdated
		durations[run.BotID] += run.DurationSeconds
	}

	for id, roll := range rollups {
		if roll.Runs > 0 {
			roll.AvgDurationSeconds = durations[id] / float64(roll.Runs)
		}
		stats.BotRollups = append(stats.BotRollups, *roll)
	}
	sort.Slice(stats.BotRollups, func(i, j int) bool {
		return stats.BotRollups[i].BotID < stats.BotRollups[j].BotID
	})

	return stats, nil
}

func (a *DashboardAggregator) botNames(ctx context.Context) (map[uint]string, error) {
	all, err := a.store.ListBots(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(all))
	for i := range all {
		names[all[i].ID] = all[i].Name
	}
	return names, nil
}
