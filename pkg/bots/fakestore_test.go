package bots_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// fakeStore is a mutex-guarded in-memory implementation of bots.Store. It
// hands out copies so callers mutate rows only through explicit saves, the
// way the GORM store behaves.
type fakeStore struct {
	mu     sync.Mutex
	bots   map[uint]models.Bot
	runs   map[uuid.UUID]models.BotRun
	nextID uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bots:   make(map[uint]models.Bot),
		runs:   make(map[uuid.UUID]models.BotRun),
		nextID: 1,
	}
}

func (s *fakeStore) ListBots(_ context.Context) ([]models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Bot, 0, len(s.bots))
	for _, b := range s.bots {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetBot(_ context.Context, id uint) (*models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *fakeStore) GetBotByName(_ context.Context, name string) (*models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bots {
		if b.Name == name {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateBot(_ context.Context, bot *models.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bot.ID == 0 {
		bot.ID = s.nextID
		s.nextID++
	}
	s.bots[bot.ID] = *bot
	return nil
}

func (s *fakeStore) SaveBot(_ context.Context, bot *models.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bots[bot.ID] = *bot
	return nil
}

func (s *fakeStore) DeleteBot(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bots, id)
	for runID, run := range s.runs {
		if run.BotID == id {
			delete(s.runs, runID)
		}
	}
	return nil
}

func (s *fakeStore) DueBots(_ context.Context, now time.Time) ([]models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Bot
	for _, b := range s.bots {
		if !b.IsScheduled ||
			b.Status == models.StatusDisabled || b.Status == models.StatusPaused ||
			b.NextScheduledRun == nil || b.NextScheduledRun.After(now) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) RunningBots(_ context.Context) ([]models.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Bot
	for _, b := range s.bots {
		if b.Status == models.StatusRunning {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) CountBotsByStatus(_ context.Context) (map[models.BotStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.BotStatus]int64)
	for _, b := range s.bots {
		counts[b.Status]++
	}
	return counts, nil
}

func (s *fakeStore) DeleteAllBots(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bots = make(map[uint]models.Bot)
	return nil
}

func (s *fakeStore) TransitionStatus(_ context.Context, id uint, from []models.BotStatus, to models.BotStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			s.bots[id] = b
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateRun(_ context.Context, run *models.BotRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) SaveRun(_ context.Context, run *models.BotRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*models.BotRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeStore) ListRuns(_ context.Context, botID uint, page, pageSize int) ([]models.BotRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	all := s.runsWhere(func(r models.BotRun) bool { return r.BotID == botID })
	total := int64(len(all))

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *fakeStore) LatestRun(_ context.Context, botID uint) (*models.BotRun, error) {
	all := s.runsWhere(func(r models.BotRun) bool { return r.BotID == botID })
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (s *fakeStore) ActiveRuns(_ context.Context) ([]models.BotRun, error) {
	return s.runsWhere(func(r models.BotRun) bool { return !r.Status.IsTerminal() }), nil
}

func (s *fakeStore) LiveRunsForBot(_ context.Context, botID uint) ([]models.BotRun, error) {
	return s.runsWhere(func(r models.BotRun) bool {
		return r.BotID == botID && !r.Status.IsTerminal()
	}), nil
}

func (s *fakeStore) RunsSince(_ context.Context, since time.Time) ([]models.BotRun, error) {
	return s.runsWhere(func(r models.BotRun) bool {
		return !r.StartedAt.Before(since)
	}), nil
}

func (s *fakeStore) StaleLiveRuns(_ context.Context, olderThan time.Time) ([]models.BotRun, error) {
	return s.runsWhere(func(r models.BotRun) bool {
		return !r.Status.IsTerminal() && r.StartedAt.Before(olderThan)
	}), nil
}

func (s *fakeStore) DeleteAllRuns(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[uuid.UUID]models.BotRun)
	return nil
}

// runsWhere returns matching runs newest first
func (s *fakeStore) runsWhere(keep func(models.BotRun) bool) []models.BotRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.BotRun
	for _, r := range s.runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *fakeStore) mustGetBot(id uint) models.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bots[id]
}
