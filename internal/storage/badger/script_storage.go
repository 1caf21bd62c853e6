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

// ScriptStorage implements the ScriptStorage interface for Badger
type ScriptStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScriptStorage creates a new ScriptStorage instance
func NewScriptStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScriptStorage {
	return &ScriptStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ScriptStorage) SaveScript(ctx context.Context, record *models.ScriptRecord) error {
	if record.ID == "" {
		return fmt.Errorf("script ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}

	s.logger.Debug().
		Str("script_id", record.ID).
		Str("user_id", record.UserID).
		Int("word_count", record.WordCount).
		Msg("Script saved")
	return nil
}

func (s *ScriptStorage) GetScript(ctx context.Context, id string) (*models.ScriptRecord, error) {
	var record models.ScriptRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrScriptNotFound
		}
		return nil, fmt.Errorf("failed to get script: %w", err)
	}
	return &record, nil
}

func (s *ScriptStorage) ListScripts(ctx context.Context, opts *interfaces.ScriptListOptions) ([]*models.ScriptRecord, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.UserID != "" {
			query = query.And("UserID").Eq(opts.UserID)
		}
		query = query.SortBy("CreatedAt").Reverse()
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	} else {
		query = query.SortBy("CreatedAt").Reverse()
	}

	var records []models.ScriptRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}

	result := make([]*models.ScriptRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *ScriptStorage) CountScripts(ctx context.Context, userID string) (int, error) {
	var query *badgerhold.Query
	if userID != "" {
		query = badgerhold.Where("UserID").Eq(userID)
	}
	count, err := s.db.Store().Count(&models.ScriptRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count scripts: %w", err)
	}
	return int(count), nil
}
