package bots

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// defaultBotSpecs are the bots provisioned on a fresh installation: one
// results scraper per tracked state page plus the nightly link-repair job.
func defaultBotSpecs() []BotSpec {
	return []BotSpec{
		{
			Name:            "bihar-assembly-results",
			BotType:         models.TypeResultsScrape,
			TargetState:     "Bihar",
			TargetStateCode: "BR",
			SourceURL:       "https://results.eci.gov.in/ResultAcGenNov2025/statewiseS041.htm",
			DataSourceName:  "eci-trends",
			IsScheduled:     true,
			CronExpression:  "*/30 * * * *",
			MaxRetries:      3,
		},
		{
			Name:            "uttar-pradesh-assembly-results",
			BotType:         models.TypeResultsScrape,
			TargetState:     "Uttar Pradesh",
			TargetStateCode: "UP",
			SourceURL:       "https://results.eci.gov.in/ResultAcGen2027/statewiseS241.htm",
			DataSourceName:  "eci-trends",
			IsScheduled:     true,
			CronExpression:  "*/30 * * * *",
			MaxRetries:      3,
		},
		{
			Name:            "bihar-archive-results",
			BotType:         models.TypeArchiveScrape,
			TargetState:     "Bihar",
			TargetStateCode: "BR",
			SourceURL:       "https://www.indiavotes.com/ac/winners/bihar",
			DataSourceName:  "indiavotes",
			IsScheduled:     false,
			CronExpression:  "",
			MaxRetries:      3,
		},
		{
			Name:            "member-link-repair",
			BotType:         models.TypeMemberSync,
			TargetState:     "Bihar",
			TargetStateCode: "BR",
			DataSourceName:  "internal",
			IsScheduled:     true,
			CronExpression:  "15 2 * * *",
			MaxRetries:      5,
		},
	}
}

// SeedDefaults provisions the default bots. It is idempotent on a non-empty
// store: when any bot exists nothing happens.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.store.ListBots(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		s.logger.WithField("bots", len(existing)).Debug("Skipping seed, bots already present")
		return 0, nil
	}

	created := 0
	for _, spec := range defaultBotSpecs() {
		if _, err := s.CreateBot(ctx, spec); err != nil {
			return created, err
		}
		created++
	}

	s.logger.WithField("created", created).Info("Seeded default bots")
	return created, nil
}

// ResetAndReseed wipes all bots and run history and reseeds the defaults.
// Destructive; intended for administrative resets only. Member and
// constituency data is untouched.
func (s *Service) ResetAndReseed(ctx context.Context) (int, error) {
	s.logger.Warn("Resetting all bots and run history")

	if err := s.store.DeleteAllRuns(ctx); err != nil {
		return 0, err
	}
	if err := s.store.DeleteAllBots(ctx); err != nil {
		return 0, err
	}

	created := 0
	for _, spec := range defaultBotSpecs() {
		if _, err := s.CreateBot(ctx, spec); err != nil {
			return created, err
		}
		created++
	}

	s.logger.WithFields(logrus.Fields{
		"created": created,
		"at":      time.Now().Format(time.RFC3339),
	}).Info("Reset complete, defaults reseeded")
	return created, nil
}
