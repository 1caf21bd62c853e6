package models

import "time"

// LedgerEntryKind distinguishes credits added from credits spent
type LedgerEntryKind string

const (
	LedgerGrant LedgerEntryKind = "grant"
	LedgerDebit LedgerEntryKind = "debit"
)

// LedgerAccount is a user's credit balance
type LedgerAccount struct {
	UserID    string    `json:"user_id" badgerhold:"key"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is one balance change. RequestID makes debits idempotent.
type LedgerEntry struct {
	ID           string            `json:"id" badgerhold:"key"`
	UserID       string            `json:"user_id" badgerhold:"index"`
	RequestID    string            `json:"request_id" badgerhold:"index"`
	Kind         LedgerEntryKind   `json:"kind"`
	Amount       int               `json:"amount"`
	BalanceAfter int               `json:"balance_after"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Receipt confirms a debit
type Receipt struct {
	EntryID      string    `json:"entry_id"`
	UserID       string    `json:"user_id"`
	RequestID    string    `json:"request_id"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Duplicate    bool      `json:"duplicate"`
	CreatedAt    time.Time `json:"created_at"`
}
