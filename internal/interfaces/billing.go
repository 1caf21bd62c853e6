package interfaces

import (
	"context"

	"github.com/ternarybob/longform/internal/models"
)

// BillingLedger is the credit check/debit boundary used by the generation pipeline
type BillingLedger interface {
	// CheckBalance reports whether the user can afford cost
	CheckBalance(ctx context.Context, userID string, cost int) (bool, error)

	// Debit charges cost once per requestID; repeats return the first receipt
	Debit(ctx context.Context, userID string, requestID string, cost int, metadata map[string]string) (*models.Receipt, error)

	// Balance returns the current balance
	Balance(ctx context.Context, userID string) (int, error)

	// Grant adds credits to a user's balance
	Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error)
}
