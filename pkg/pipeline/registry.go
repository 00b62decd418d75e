package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// Strategy is one extraction strategy, selected by bot type. Execute runs a
// full extraction cycle synchronously and returns the aggregated counters.
// Per-record problems are absorbed into the Result; a returned error means
// the run as a whole failed.
type Strategy interface {
	Execute(ctx context.Context, bot *models.Bot, runlog *RunLog) (*Result, error)
}

// Registry maps bot types to strategies. Dispatch to an unregistered type
// fails fast; there is no fallback strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[models.BotType]Strategy
}

// NewRegistry creates an empty strategy registry
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[models.BotType]Strategy),
	}
}

// Register adds a strategy for a bot type
func (r *Registry) Register(botType models.BotType, strategy Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[botType]; exists {
		return fmt.Errorf("strategy for bot type %s already registered", botType)
	}

	r.strategies[botType] = strategy
	return nil
}

// Get returns the strategy registered for a bot type
func (r *Registry) Get(botType models.BotType) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, exists := r.strategies[botType]
	return strategy, exists
}
