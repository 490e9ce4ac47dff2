package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"adsync/internal/domain"
	"adsync/pkg/logger"
)

// RunRepository keeps run summaries in memory. Runs are ephemeral job
// status, not pipeline output: losing them on restart is acceptable.
type RunRepository struct {
	runs   map[string]domain.RunSummary
	mutex  sync.RWMutex
	logger *logger.Logger
}

func NewRunRepository(log *logger.Logger) *RunRepository {
	return &RunRepository{
		runs:   make(map[string]domain.RunSummary),
		logger: log,
	}
}

func (r *RunRepository) Save(ctx context.Context, summary *domain.RunSummary) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.runs[summary.RunID] = *summary

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": summary.RunID,
		"state":  string(summary.State),
	}).Debug("Saved run summary")
	return nil
}

func (r *RunRepository) Get(ctx context.Context, runID string) (*domain.RunSummary, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	summary, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return &summary, nil
}
