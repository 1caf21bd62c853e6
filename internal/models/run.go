package models

import "time"

// RunStatus is the terminal pipeline status of a generation run
type RunStatus string

const (
	RunComplete RunStatus = "COMPLETE"
	RunFailed   RunStatus = "FAILED"
)

// GenerationRun is the audit record written for every pipeline run
type GenerationRun struct {
	ID              string        `json:"id" badgerhold:"key"`
	UserID          string        `json:"user_id" badgerhold:"index"`
	Topic           string        `json:"topic"`
	Status          RunStatus     `json:"status"`
	DurationSeconds int           `json:"duration_seconds"`
	ModelTier       ModelTier     `json:"model_tier"`
	Plan            ChunkPlan     `json:"plan"`
	OutlineUsed     bool          `json:"outline_used"`
	Chunks          []ChunkResult `json:"chunks,omitempty"`
	Verdict         *GateVerdict  `json:"verdict,omitempty"`
	CreditsQuoted   int           `json:"credits_quoted"`
	CreditsDebited  int           `json:"credits_debited"`
	ScriptID        string        `json:"script_id,omitempty"`
	ErrorKind       string        `json:"error_kind,omitempty"`
	ErrorCheck      string        `json:"error_check,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	LLMCalls        int           `json:"llm_calls"`
	StartedAt       time.Time     `json:"started_at" badgerhold:"index"`
	CompletedAt     time.Time     `json:"completed_at"`
}
