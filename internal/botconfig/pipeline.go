package botconfig

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/match"
	"github.com/electdata/electbot-go/pkg/pipeline"
	"github.com/electdata/electbot-go/pkg/scrape"
	"github.com/electdata/electbot-go/pkg/store"
)

// PipelineConfig holds the collaborators needed to assemble the extraction
// pipeline
type PipelineConfig struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

// ConfigurePipeline wires the source adapters, the matcher and the strategy
// registry for all supported bot types
func ConfigurePipeline(config PipelineConfig) (*pipeline.Registry, error) {
	members := store.NewMemberStore(config.DB, config.Logger)
	consts := store.NewConstituencyStore(config.DB, config.Logger)
	matcher := match.NewMatcher(consts, config.Logger)
	normalizer := scrape.NewNormalizer(config.Logger)

	adapters := scrape.NewAdapterRegistry()
	for _, name := range []string{"eci-trends", "indiavotes"} {
		adapter, err := scrape.NewResultsPageAdapter(scrape.ResultsPageAdapterConfig{
			Name:   name,
			Logger: config.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build %s adapter: %w", name, err)
		}
		if err := adapters.Register(adapter); err != nil {
			return nil, err
		}
	}

	registry := pipeline.NewRegistry()
	if err := registry.Register(models.TypeResultsScrape,
		pipeline.NewResultsScrapeStrategy(adapters, normalizer, matcher, members, consts, config.Logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(models.TypeArchiveScrape,
		pipeline.NewArchiveScrapeStrategy(adapters, normalizer, matcher, members, consts, config.Logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(models.TypeMemberSync,
		pipeline.NewSyncStrategy(matcher, members, consts, config.Logger)); err != nil {
		return nil, err
	}

	return registry, nil
}
