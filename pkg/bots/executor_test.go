package bots_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/bots"
	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/pipeline"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// stubStrategy is a canned pipeline.Strategy
type stubStrategy struct {
	mu     sync.Mutex
	result *pipeline.Result
	err    error
	panics bool
	calls  int
}

func (s *stubStrategy) Execute(_ context.Context, _ *models.Bot, runlog *pipeline.RunLog) (*pipeline.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.panics {
		panic("strategy blew up")
	}
	if s.err != nil {
		return nil, s.err
	}
	runlog.Appendf("stub strategy ran")
	return s.result, nil
}

func (s *stubStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var _ = Describe("RunExecutor", func() {
	var (
		ctx      context.Context
		store    *fakeStore
		registry *pipeline.Registry
		strategy *stubStrategy
		alerts   []*models.Bot
		executor *bots.RunExecutor
		bot      *models.Bot
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		registry = pipeline.NewRegistry()
		strategy = &stubStrategy{result: &pipeline.Result{Fetched: 5, Inserted: 2, Updated: 3}}
		Expect(registry.Register(models.TypeResultsScrape, strategy)).To(Succeed())

		alerts = nil
		executor = bots.NewRunExecutor(store, registry, quietLogger(), func(b *models.Bot, _ error) {
			alerts = append(alerts, b)
		})

		bot = &models.Bot{
			Name:       "bihar-assembly-results",
			BotType:    models.TypeResultsScrape,
			Status:     models.StatusIdle,
			MaxRetries: 3,
		}
		Expect(store.CreateBot(ctx, bot)).To(Succeed())
	})

	Describe("a successful run", func() {
		It("completes the run and returns the bot to IDLE", func() {
			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunCompleted))
			Expect(run.TriggerType).To(Equal(models.TriggerManual))
			Expect(run.CompletedAt).NotTo(BeNil())
			Expect(run.RecordsFetched).To(Equal(5))
			Expect(run.RecordsInserted).To(Equal(2))
			Expect(run.RecordsUpdated).To(Equal(3))
			Expect(run.LogOutput).To(ContainSubstring("stub strategy ran"))

			saved := store.mustGetBot(bot.ID)
			Expect(saved.Status).To(Equal(models.StatusIdle))
			Expect(saved.TotalRuns).To(Equal(1))
			Expect(saved.SuccessfulRuns).To(Equal(1))
			Expect(saved.FailedRuns).To(BeZero())
			Expect(saved.LastRecordsFetched).To(Equal(5))
			Expect(saved.LastRunAt).NotTo(BeNil())
			Expect(saved.LastSuccessfulRunAt).NotTo(BeNil())
		})

		It("resets the consecutive-failure counter", func() {
			bot.ConsecutiveFailures = 2
			Expect(store.SaveBot(ctx, bot)).To(Succeed())

			_, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(store.mustGetBot(bot.ID).ConsecutiveFailures).To(BeZero())
		})
	})

	Describe("a failing run", func() {
		BeforeEach(func() {
			strategy.err = errors.New("source fetch failed: connection refused")
		})

		It("fails the run and moves the bot to ERROR", func() {
			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred(), "a finished run is never an error, whatever its status")
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(ContainSubstring("connection refused"))

			saved := store.mustGetBot(bot.ID)
			Expect(saved.Status).To(Equal(models.StatusError))
			Expect(saved.TotalRuns).To(Equal(1))
			Expect(saved.FailedRuns).To(Equal(1))
			Expect(saved.ConsecutiveFailures).To(Equal(1))
			Expect(saved.LastErrorMessage).To(ContainSubstring("connection refused"))
		})

		It("allows retriggering from ERROR", func() {
			_, err := executor.Execute(ctx, bot, models.TriggerManual)
			Expect(err).NotTo(HaveOccurred())

			reloaded, err := store.GetBot(ctx, bot.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Status).To(Equal(models.StatusError))

			run, err := executor.Execute(ctx, reloaded, models.TriggerManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(store.mustGetBot(bot.ID).ConsecutiveFailures).To(Equal(2))
		})

		It("fires the alert exactly once when the third straight failure hits the threshold", func() {
			for i := 0; i < 3; i++ {
				reloaded, err := store.GetBot(ctx, bot.ID)
				Expect(err).NotTo(HaveOccurred())
				_, err = executor.Execute(ctx, reloaded, models.TriggerManual)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(alerts).To(HaveLen(1))
			Expect(alerts[0].ConsecutiveFailures).To(Equal(3))
			Expect(store.mustGetBot(bot.ID).Status).To(Equal(models.StatusError))
		})
	})

	Describe("failure classification", func() {
		It("codes a source transport failure as SOURCE_FETCH_FAILED", func() {
			strategy.err = fmt.Errorf("source fetch failed: %w", scrape.ErrSourceUnavailable)

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(ContainSubstring("SOURCE_FETCH_FAILED"))
			Expect(store.mustGetBot(bot.ID).LastErrorMessage).To(ContainSubstring("SOURCE_FETCH_FAILED"))
		})

		It("codes an unparseable page as PARSE_FAILED", func() {
			strategy.err = fmt.Errorf("source fetch failed: %w", scrape.ErrPageUnparseable)

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(ContainSubstring("PARSE_FAILED"))
		})

		It("leaves unclassified failures untouched", func() {
			strategy.err = errors.New("member listing failed")

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(Equal("member listing failed"))
		})
	})

	Describe("trigger rejection", func() {
		It("rejects a bot that is already RUNNING without creating a run", func() {
			bot.Status = models.StatusRunning
			Expect(store.SaveBot(ctx, bot)).To(Succeed())

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(run).To(BeNil())
			Expect(bots.IsBotError(err, bots.ErrCodeInvalidState)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("already in progress"))

			active, aerr := store.ActiveRuns(ctx)
			Expect(aerr).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
			Expect(strategy.callCount()).To(BeZero())
		})

		It("rejects a DISABLED bot", func() {
			bot.Status = models.StatusDisabled
			Expect(store.SaveBot(ctx, bot)).To(Succeed())

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(run).To(BeNil())
			Expect(bots.IsBotError(err, bots.ErrCodeInvalidState)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("disabled"))
		})

		It("rejects an unknown bot id with NOT_FOUND", func() {
			ghost := &models.Bot{ID: 9999, Name: "ghost"}

			run, err := executor.Execute(ctx, ghost, models.TriggerManual)

			Expect(run).To(BeNil())
			Expect(bots.IsBotError(err, bots.ErrCodeNotFound)).To(BeTrue())
		})

		It("allows a manual trigger on a PAUSED bot", func() {
			bot.Status = models.StatusPaused
			Expect(store.SaveBot(ctx, bot)).To(Succeed())

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunCompleted))
		})
	})

	Describe("dispatch problems", func() {
		It("fails the run when no strategy serves the bot type", func() {
			bot.BotType = models.TypeMemberSync
			Expect(store.SaveBot(ctx, bot)).To(Succeed())

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(ContainSubstring("UNSUPPORTED_BOT_TYPE"))
			Expect(store.mustGetBot(bot.ID).Status).To(Equal(models.StatusError))
		})

		It("converts a strategy panic into a failed run", func() {
			strategy.panics = true

			run, err := executor.Execute(ctx, bot, models.TriggerManual)

			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(models.RunFailed))
			Expect(run.ErrorMessage).To(ContainSubstring("strategy panic"))
			Expect(store.mustGetBot(bot.ID).Status).To(Equal(models.StatusError))
		})
	})
})
