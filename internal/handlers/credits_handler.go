package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/models"
)

// CreditAccounts is the ledger surface exposed over HTTP
type CreditAccounts interface {
	Balance(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error)
	History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error)
}

// CreditsHandler serves balances and top-ups
type CreditsHandler struct {
	accounts CreditAccounts
	logger   arbor.ILogger
}

func NewCreditsHandler(accounts CreditAccounts, logger arbor.ILogger) *CreditsHandler {
	return &CreditsHandler{accounts: accounts, logger: logger}
}

// GrantRequest is the body of POST /api/credits/{user}/grant
type GrantRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// GetHandler returns balance and recent ledger entries: GET /api/credits/{user}
func (h *CreditsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	limit, _ := GetLimitOffset(r)

	balance, err := h.accounts.Balance(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read balance")
		WriteError(w, http.StatusInternalServerError, "Failed to read balance")
		return
	}

	entries, err := h.accounts.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read ledger history")
		entries = nil
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"balance": balance,
		"entries": entries,
	})
}

// GrantHandler tops up a balance: POST /api/credits/{user}/grant
func (h *CreditsHandler) GrantHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req GrantRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		WriteError(w, http.StatusUnprocessableEntity, "amount must be greater than 0")
		return
	}
	if req.Description == "" {
		req.Description = "manual grant"
	}

	entry, err := h.accounts.Grant(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to grant credits")
		WriteError(w, http.StatusInternalServerError, "Failed to grant credits")
		return
	}

	h.logger.Info().
		Str("user_id", userID).
		Int("amount", req.Amount).
		Int("balance", entry.BalanceAfter).
		Msg("Credits granted")

	WriteJSON(w, http.StatusOK, entry)
}
