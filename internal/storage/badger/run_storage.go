package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.GenerationRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save generation run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get generation run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, userID string, limit int) ([]*models.GenerationRun, error) {
	query := badgerhold.Where("ID").Ne("")
	if userID != "" {
		query = query.And("UserID").Eq(userID)
	}
	query = query.SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.GenerationRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}

	result := make([]*models.GenerationRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("StartedAt").Lt(cutoff)

	count, err := s.db.Store().Count(&models.GenerationRun{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired runs: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.GenerationRun{}, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to delete expired runs: %w", err)
	}

	s.logger.Debug().Int("count", int(count)).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Deleted expired generation runs")
	return int(count), nil
}
