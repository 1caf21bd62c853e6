package models

import "time"

// ScriptRecord is a persisted, gate-approved script
type ScriptRecord struct {
	ID              string         `json:"id" badgerhold:"key"`
	UserID          string         `json:"user_id" badgerhold:"index"`
	RequestID       string         `json:"request_id"`
	Topic           string         `json:"topic"`
	Script          string         `json:"script"`
	WordCount       int            `json:"word_count"`
	ExpectedWords   int            `json:"expected_words"`
	DurationSeconds int            `json:"duration_seconds"`
	ModelTier       ModelTier      `json:"model_tier"`
	Provider        string         `json:"provider"`
	Model           string         `json:"model"`
	CreditsUsed     int            `json:"credits_used"`
	Chunked         bool           `json:"chunked"`
	ChunkCount      int            `json:"chunk_count"`
	OutlineUsed     bool           `json:"outline_used"`
	SourceCount     int            `json:"source_count"`
	ContentPoints   []ContentPoint `json:"content_points"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ScriptSummary is the list view of a ScriptRecord
type ScriptSummary struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Topic           string    `json:"topic"`
	WordCount       int       `json:"word_count"`
	DurationSeconds int       `json:"duration_seconds"`
	CreditsUsed     int       `json:"credits_used"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary returns the list view of the record
func (r *ScriptRecord) Summary() ScriptSummary {
	return ScriptSummary{
		ID:              r.ID,
		UserID:          r.UserID,
		Topic:           r.Topic,
		WordCount:       r.WordCount,
		DurationSeconds: r.DurationSeconds,
		CreditsUsed:     r.CreditsUsed,
		CreatedAt:       r.CreatedAt,
	}
}
