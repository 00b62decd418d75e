package bots_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/electdata/electbot-go/pkg/bots"
	"github.com/electdata/electbot-go/pkg/db/models"
)

var _ = Describe("DashboardAggregator", func() {
	var (
		ctx        context.Context
		store      *fakeStore
		aggregator *bots.DashboardAggregator
		scraper    *models.Bot
		syncer     *models.Bot
	)

	addRun := func(botID uint, status models.RunStatus, startedAgo time.Duration, duration float64, inserted, updated int, errMsg string) {
		Expect(store.CreateRun(ctx, &models.BotRun{
			ID:              uuid.New(),
			BotID:           botID,
			Status:          status,
			TriggerType:     models.TriggerScheduled,
			StartedAt:       time.Now().Add(-startedAgo),
			DurationSeconds: duration,
			RecordsInserted: inserted,
			RecordsUpdated:  updated,
			ErrorMessage:    errMsg,
		})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		aggregator = bots.NewDashboardAggregator(store, quietLogger())

		scraper = &models.Bot{Name: "bihar-assembly-results", Status: models.StatusIdle}
		syncer = &models.Bot{Name: "member-link-repair", Status: models.StatusError}
		Expect(store.CreateBot(ctx, scraper)).To(Succeed())
		Expect(store.CreateBot(ctx, syncer)).To(Succeed())
	})

	It("counts bots per status", func() {
		stats, err := aggregator.Stats(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.TotalBots).To(Equal(int64(2)))
		Expect(stats.IdleBots).To(Equal(int64(1)))
		Expect(stats.ErrorBots).To(Equal(int64(1)))
		Expect(stats.RunningBots).To(BeZero())
	})

	It("rolls up the trailing day of runs per bot", func() {
		addRun(scraper.ID, models.RunCompleted, time.Hour, 10, 100, 20, "")
		addRun(scraper.ID, models.RunCompleted, 2*time.Hour, 30, 50, 10, "")
		addRun(syncer.ID, models.RunFailed, 3*time.Hour, 5, 0, 0, "source fetch failed")
		// Outside the window, must not count
		addRun(scraper.ID, models.RunCompleted, 25*time.Hour, 99, 999, 999, "")

		stats, err := aggregator.Stats(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.RunCountsLast24h[models.RunCompleted]).To(Equal(2))
		Expect(stats.RunCountsLast24h[models.RunFailed]).To(Equal(1))

		Expect(stats.RecentFailures).To(HaveLen(1))
		Expect(stats.RecentFailures[0].BotName).To(Equal("member-link-repair"))
		Expect(stats.RecentFailures[0].ErrorMessage).To(Equal("source fetch failed"))

		Expect(stats.BotRollups).To(HaveLen(2))
		var scraperRollup bots.BotRollup
		for _, roll := range stats.BotRollups {
			if roll.BotID == scraper.ID {
				scraperRollup = roll
			}
		}
		Expect(scraperRollup.BotName).To(Equal("bihar-assembly-results"))
		Expect(scraperRollup.Runs).To(Equal(2))
		Expect(scraperRollup.AvgDurationSeconds).To(BeNumerically("~", 20, 0.001))
		Expect(scraperRollup.TotalInserted).To(Equal(150))
		Expect(scraperRollup.TotalUpdated).To(Equal(30))
	})

	It("keeps the rollup order stable across recomputes", func() {
		addRun(syncer.ID, models.RunCompleted, time.Hour, 5, 0, 10, "")
		addRun(scraper.ID, models.RunCompleted, time.Hour, 10, 100, 20, "")

		for i := 0; i < 20; i++ {
			stats, err := aggregator.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.BotRollups).To(HaveLen(2))
			Expect(stats.BotRollups[0].BotID).To(Equal(scraper.ID))
			Expect(stats.BotRollups[1].BotID).To(Equal(syncer.ID))
		}
	})

	It("caps the recent-failure list at ten entries", func() {
		for i := 0; i < 15; i++ {
			addRun(syncer.ID, models.RunFailed, time.Duration(i)*time.Minute, 1, 0, 0, "boom")
		}

		stats, err := aggregator.Stats(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(stats.RecentFailures).To(HaveLen(10))
	})
})
