package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
)

// Service implements interfaces.BillingLedger over ledger storage.
// New users are provisioned with the configured starting balance on first touch.
type Service struct {
	ledger      interfaces.LedgerStorage
	config      *common.CreditsConfig
	logger      arbor.ILogger
	provisionMu sync.Mutex
}

var _ interfaces.BillingLedger = (*Service)(nil)

// NewService creates a billing service
func NewService(ledger interfaces.LedgerStorage, config *common.CreditsConfig, logger arbor.ILogger) *Service {
	return &Service{
		ledger: ledger,
		config: config,
		logger: logger,
	}
}

// Balance returns the user's balance, provisioning the account if needed
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// CheckBalance reports whether the user can afford cost
func (s *Service) CheckBalance(ctx context.Context, userID string, cost int) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// Debit charges cost once per requestID
func (s *Service) Debit(ctx context.Context, userID string, requestID string, cost int, metadata map[string]string) (*models.Receipt, error) {
	if requestID == "" {
		return nil, fmt.Errorf("debit requires a request id")
	}
	if cost <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", cost)
	}

	entry, duplicate, err := s.ledger.Debit(ctx, userID, requestID, cost, s.config.DebitDescription, metadata)
	if err != nil {
		return nil, err
	}

	if duplicate {
		s.logger.Warn().
			Str("user_id", userID).
			Str("request_id", requestID).
			Msg("Duplicate debit ignored")
	} else {
		s.logger.Info().
			Str("user_id", userID).
			Str("request_id", requestID).
			Int("amount", cost).
			Int("balance", entry.BalanceAfter).
			Msg("Credits debited")
	}

	return &models.Receipt{
		EntryID:      entry.ID,
		UserID:       entry.UserID,
		RequestID:    entry.RequestID,
		Amount:       entry.Amount,
		BalanceAfter: entry.BalanceAfter,
		Duplicate:    duplicate,
		CreatedAt:    entry.CreatedAt,
	}, nil
}

// Grant adds credits to a user's balance
func (s *Service) Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error) {
	if _, err := s.account(ctx, userID); err != nil {
		return nil, err
	}
	entry, err := s.ledger.Grant(ctx, userID, amount, description)
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

// History returns the user's most recent ledger entries
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	return s.ledger.ListEntries(ctx, userID, limit)
}

func (s *Service) account(ctx context.Context, userID string) (*models.LedgerAccount, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	account, err := s.ledger.GetAccount(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, interfaces.ErrAccountNotFound) {
		return nil, err
	}

	s.provisionMu.Lock()
	defer s.provisionMu.Unlock()

	// another request may have provisioned while we waited
	if account, err := s.ledger.GetAccount(ctx, userID); err == nil {
		return account, nil
	}

	if s.config.StartingBalance <= 0 {
		return &models.LedgerAccount{UserID: userID}, nil
	}
	if _, err := s.ledger.Grant(ctx, userID, s.config.StartingBalance, "starting balance"); err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	s.logger.Info().
		Str("user_id", userID).
		Int("balance", s.config.StartingBalance).
		Msg("Provisioned credit account")
	return s.ledger.GetAccount(ctx, userID)
}
