package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

type stubGenerator struct {
	result  *generation.Result
	err     error
	lastReq *generation.Request
}

func (g *stubGenerator) Generate(ctx context.Context, req *generation.Request) (*generation.Result, error) {
	g.lastReq = req
	return g.result, g.err
}

func (g *stubGenerator) Estimate(durationSeconds int, tier models.ModelTier) (models.CreditCost, error) {
	if tier == "ultra" {
		return models.CreditCost{}, generation.InputError("model_tier", "unknown model tier", string(tier))
	}
	return models.CreditCost{Credits: 49, Minutes: durationSeconds / 60, Tier: tier}, nil
}

type memScripts struct {
	records map[string]*models.ScriptRecord
}

func (m *memScripts) SaveScript(ctx context.Context, record *models.ScriptRecord) error {
	m.records[record.ID] = record
	return nil
}

func (m *memScripts) GetScript(ctx context.Context, id string) (*models.ScriptRecord, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, interfaces.ErrScriptNotFound
}

func (m *memScripts) ListScripts(ctx context.Context, opts *interfaces.ScriptListOptions) ([]*models.ScriptRecord, error) {
	var out []*models.ScriptRecord
	for _, r := range m.records {
		if opts.UserID == "" || r.UserID == opts.UserID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memScripts) CountScripts(ctx context.Context, userID string) (int, error) {
	list, _ := m.ListScripts(ctx, &interfaces.ScriptListOptions{UserID: userID})
	return len(list), nil
}

func newScriptHandler(gen *stubGenerator) (*ScriptHandler, *memScripts) {
	scripts := &memScripts{records: map[string]*models.ScriptRecord{
		"scr-1": {ID: "scr-1", UserID: "user-1", Topic: "Tides", Script: "text", CreatedAt: time.Now()},
	}}
	return NewScriptHandler(gen, scripts, arbor.NewLogger()), scripts
}

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
}

func TestGenerateHandler_Success(t *testing.T) {
	id := "scr-9"
	gen := &stubGenerator{result: &generation.Result{Script: "hello", CreditsUsed: 2, ScriptID: &id}}
	h, _ := newScriptHandler(gen)

	req := postJSON(t, "/api/scripts/generate", models.ContentBrief{UserID: "user-1", Topic: "Tides"})
	req.Header.Set("Idempotency-Key", "req-abc")
	rec := httptest.NewRecorder()
	h.GenerateHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello", body["script"])
	assert.Equal(t, float64(2), body["creditsUsed"])
	assert.Equal(t, "scr-9", body["scriptId"])
	assert.Equal(t, "req-abc", gen.lastReq.RequestID)
	assert.Equal(t, "Tides", gen.lastReq.Brief.Topic)
}

func TestGenerateHandler_ErrorContract(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		retry  bool
	}{
		{"input", generation.InputError("research", "insufficient research", "0 substantive sources"), http.StatusUnprocessableEntity, false},
		{"credits", generation.InsufficientCreditsError(49, 10), http.StatusPaymentRequired, false},
		{"rate limit", generation.RateLimitError("slow down"), http.StatusTooManyRequests, true},
		{"quality", generation.QualityError("tags", "tags missing", "9 of 10"), http.StatusInternalServerError, true},
		{"config", generation.ConfigError("missing API key", nil), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newScriptHandler(&stubGenerator{err: tt.err})
			rec := httptest.NewRecorder()
			h.GenerateHandler(rec, postJSON(t, "/api/scripts/generate", models.ContentBrief{}))

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.retry, body.Retry)
		})
	}
}

func TestGenerateHandler_BadBody(t *testing.T) {
	h, _ := newScriptHandler(&stubGenerator{})
	req := httptest.NewRequest(http.MethodPost, "/api/scripts/generate", bytes.NewBufferString(`{"unknown_field": 1}`))
	rec := httptest.NewRecorder()
	h.GenerateHandler(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEstimateHandler(t *testing.T) {
	h, _ := newScriptHandler(&stubGenerator{})

	rec := httptest.NewRecorder()
	h.EstimateHandler(rec, postJSON(t, "/api/scripts/estimate", EstimateRequest{DurationSeconds: 2100, ModelTier: models.TierPremium}))
	require.Equal(t, http.StatusOK, rec.Code)
	var cost models.CreditCost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cost))
	assert.Equal(t, 49, cost.Credits)

	rec = httptest.NewRecorder()
	h.EstimateHandler(rec, postJSON(t, "/api/scripts/estimate", EstimateRequest{DurationSeconds: 60, ModelTier: "ultra"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScriptHandler_GetAndList(t *testing.T) {
	h, _ := newScriptHandler(&stubGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/scripts/scr-1", nil)
	req.SetPathValue("id", "scr-1")
	rec := httptest.NewRecorder()
	h.GetHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/scripts/missing", nil)
	req.SetPathValue("id", "missing")
	rec = httptest.NewRecorder()
	h.GetHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/scripts?user=user-1&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Scripts []models.ScriptSummary `json:"scripts"`
		Total   int                    `json:"total"`
		Limit   int                    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Scripts, 1)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 5, body.Limit)
}

type memAccounts struct {
	balance int
	entries []*models.LedgerEntry
}

func (m *memAccounts) Balance(ctx context.Context, userID string) (int, error) { return m.balance, nil }

func (m *memAccounts) Grant(ctx context.Context, userID string, amount int, description string) (*models.LedgerEntry, error) {
	m.balance += amount
	entry := &models.LedgerEntry{UserID: userID, BalanceAfter: m.balance, Description: description}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memAccounts) History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	return m.entries, nil
}

func TestCreditsHandler(t *testing.T) {
	accounts := &memAccounts{balance: 10}
	h := NewCreditsHandler(accounts, arbor.NewLogger())

	req := postJSON(t, "/api/credits/user-1/grant", GrantRequest{Amount: 40})
	req.SetPathValue("user", "user-1")
	rec := httptest.NewRecorder()
	h.GrantHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, accounts.balance)
	assert.Equal(t, "manual grant", accounts.entries[0].Description)

	req = postJSON(t, "/api/credits/user-1/grant", GrantRequest{Amount: 0})
	req.SetPathValue("user", "user-1")
	rec = httptest.NewRecorder()
	h.GrantHandler(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/credits/user-1", nil)
	req.SetPathValue("user", "user-1")
	rec = httptest.NewRecorder()
	h.GetHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Balance int                   `json:"balance"`
		Entries []*models.LedgerEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Balance)
	assert.Len(t, body.Entries, 1)
}
