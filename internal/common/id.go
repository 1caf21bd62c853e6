package common

import (
	"github.com/google/uuid"
)

// NewScriptID generates a persisted script identifier
// Format: scr_<uuid>
func NewScriptID() string {
	return "scr_" + uuid.New().String()
}

// NewRequestID generates an idempotency key for a generation request
// Format: req_<uuid>
func NewRequestID() string {
	return "req_" + uuid.New().String()
}

// NewLedgerEntryID generates a ledger entry identifier
// Format: led_<uuid>
func NewLedgerEntryID() string {
	return "led_" + uuid.New().String()
}
