// Package refresh runs deferred page refreshes, either in-process or through
// an asynq queue backed by Redis.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/pagecache/pkg/cache"
	"github.com/hibiken/asynq"
)

// TypeRefresh is the asynq task type of a page refresh.
const TypeRefresh = "pagecache:refresh"

// Refresher executes one refresh unit. *cache.Manager implements it.
type Refresher interface {
	Refresh(ctx context.Context, unit cache.RefreshUnit) error
}

// NewTask encodes unit as an asynq task.
func NewTask(unit cache.RefreshUnit) (*asynq.Task, error) {
	payload, err := json.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh payload: %w", err)
	}
	return asynq.NewTask(TypeRefresh, payload), nil
}

// ParseTask decodes the refresh unit carried by t.
func ParseTask(t *asynq.Task) (cache.RefreshUnit, error) {
	var unit cache.RefreshUnit
	if err := json.Unmarshal(t.Payload(), &unit); err != nil {
		return unit, fmt.Errorf("decode refresh payload: %w", err)
	}
	if unit.URL == "" {
		return unit, fmt.Errorf("decode refresh payload: empty url")
	}
	return unit, nil
}
