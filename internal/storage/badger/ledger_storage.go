package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// maxTxnConflictRetries bounds retries when concurrent ledger writes collide
const maxTxnConflictRetries = 5

// LedgerStorage implements the LedgerStorage interface for Badger.
// Balance changes and their entries are written in one Badger transaction.
type LedgerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLedgerStorage creates a new LedgerStorage instance
func NewLedgerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LedgerStorage {
	return &LedgerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LedgerStorage) GetAccount(ctx context.Context, userID string) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	if err := s.db.Store().Get(userID, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}
	return &account, nil
}

func (s *LedgerStorage) Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	var entry *models.LedgerEntry
	err := s.update(func(tx *badgerdb.Txn) error {
		now := time.Now()
		account, err := s.txAccount(tx, userID, now)
		if err != nil {
			return err
		}

		account.Balance += amount
		account.UpdatedAt = now
		if err := s.db.Store().TxUpsert(tx, userID, account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		entry = &models.LedgerEntry{
			ID:           common.NewLedgerEntryID(),
			UserID:       userID,
			Kind:         models.LedgerGrant,
			Amount:       amount,
			BalanceAfter: account.Balance,
			Description:  description,
			CreatedAt:    now,
		}
		if err := s.db.Store().TxInsert(tx, entry.ID, entry); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("amount", amount).
		Int("balance", entry.BalanceAfter).
		Msg("Credits granted")
	return entry, nil
}

func (s *LedgerStorage) Debit(ctx context.Context, userID string, requestID string, amount int, description string, metadata map[string]string) (*models.LedgerEntry, bool, error) {
	if requestID == "" {
		return nil, false, fmt.Errorf("request ID is required for debit")
	}
	if amount <= 0 {
		return nil, false, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	var entry *models.LedgerEntry
	duplicate := false

	err := s.update(func(tx *badgerdb.Txn) error {
		entry, duplicate = nil, false

		var existing []models.LedgerEntry
		query := badgerhold.Where("RequestID").Eq(requestID).And("Kind").Eq(models.LedgerDebit)
		if err := s.db.Store().TxFind(tx, &existing, query); err != nil {
			return fmt.Errorf("failed to check existing debit: %w", err)
		}
		if len(existing) > 0 {
			prior := existing[0]
			if prior.UserID != userID || prior.Amount != amount {
				return fmt.Errorf("%w: request %s belongs to another debit", interfaces.ErrDebitConflict, requestID)
			}
			entry = &prior
			duplicate = true
			return nil
		}

		var account models.LedgerAccount
		if err := s.db.Store().TxGet(tx, userID, &account); err != nil {
			if err == badgerhold.ErrNotFound {
				return interfaces.ErrInsufficientCredits
			}
			return fmt.Errorf("failed to get ledger account: %w", err)
		}
		if account.Balance < amount {
			return interfaces.ErrInsufficientCredits
		}

		now := time.Now()
		account.Balance -= amount
		account.UpdatedAt = now
		if err := s.db.Store().TxUpsert(tx, userID, &account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		entry = &models.LedgerEntry{
			ID:           common.NewLedgerEntryID(),
			UserID:       userID,
			RequestID:    requestID,
			Kind:         models.LedgerDebit,
			Amount:       amount,
			BalanceAfter: account.Balance,
			Description:  description,
			Metadata:     metadata,
			CreatedAt:    now,
		}
		if err := s.db.Store().TxInsert(tx, entry.ID, entry); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return entry, duplicate, nil
}

func (s *LedgerStorage) ListEntries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	query := badgerhold.Where("UserID").Eq(userID).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.LedgerEntry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	result := make([]*models.LedgerEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// txAccount loads the account inside tx, creating an empty one if absent
func (s *LedgerStorage) txAccount(tx *badgerdb.Txn, userID string, now time.Time) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := s.db.Store().TxGet(tx, userID, &account)
	if err == badgerhold.ErrNotFound {
		return &models.LedgerAccount{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}
	return &account, nil
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (s *LedgerStorage) update(fn func(tx *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnConflictRetries; attempt++ {
		err = s.db.Store().Badger().Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("Ledger transaction conflict, retrying")
	}
	return fmt.Errorf("ledger transaction failed after %d conflicts: %w", maxTxnConflictRetries, err)
}
