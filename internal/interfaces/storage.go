package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/longform/internal/models"
)

// ErrScriptNotFound is returned when a script ID does not exist
var ErrScriptNotFound = errors.New("script not found")

// ErrRunNotFound is returned when a generation run ID does not exist
var ErrRunNotFound = errors.New("generation run not found")

// ErrAccountNotFound is returned when a user has no ledger account yet
var ErrAccountNotFound = errors.New("ledger account not found")

// ErrInsufficientCredits is returned when a debit exceeds the balance
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrDebitConflict is returned when a request ID was already debited for another user or amount
var ErrDebitConflict = errors.New("request id already debited with different terms")

// ScriptListOptions filters ListScripts
type ScriptListOptions struct {
	UserID string
	Limit  int
	Offset int
}

// ScriptStorage persists gate-approved scripts
type ScriptStorage interface {
	SaveScript(ctx context.Context, record *models.ScriptRecord) error
	GetScript(ctx context.Context, id string) (*models.ScriptRecord, error)
	ListScripts(ctx context.Context, opts *ScriptListOptions) ([]*models.ScriptRecord, error)
	CountScripts(ctx context.Context, userID string) (int, error)
}

// LedgerStorage persists credit accounts and ledger entries
type LedgerStorage interface {
	GetAccount(ctx context.Context, userID string) (*models.LedgerAccount, error)
	// Grant adds credits, creating the account if needed
	Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error)
	// Debit subtracts credits atomically. A repeated (userID, requestID) with the same
	// amount returns the original entry with duplicate=true and does not change the
	// balance; any other reuse of requestID fails with ErrDebitConflict.
	Debit(ctx context.Context, userID string, requestID string, amount int, description string, metadata map[string]string) (entry *models.LedgerEntry, duplicate bool, err error)
	ListEntries(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
}

// RunStorage persists GenerationRun audit records
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.GenerationRun) error
	GetRun(ctx context.Context, id string) (*models.GenerationRun, error)
	ListRuns(ctx context.Context, userID string, limit int) ([]*models.GenerationRun, error)
	// DeleteRunsBefore removes runs started before cutoff and returns how many were removed
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	ScriptStorage() ScriptStorage
	LedgerStorage() LedgerStorage
	RunStorage() RunStorage
	Close() error
}
