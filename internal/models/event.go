package models

import "time"

// ProgressEvent is published on each pipeline transition
type ProgressEvent struct {
	RequestID  string                 `json:"request_id"`
	UserID     string                 `json:"user_id"`
	Stage      string                 `json:"stage"`
	ChunkIndex int                    `json:"chunk_index"`
	ChunkState ChunkState             `json:"chunk_state,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}
