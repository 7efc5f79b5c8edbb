package dto

import (
	"encoding/json"
	"time"
)

// TestCreateDTO is the admin request body for creating one test. The
// payload must be a JSON object {task, options, correct_answer}; it is
// canonicalized before storage.
type TestCreateDTO struct {
	Model   string          `json:"model" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// TestBulkCreateDTO is the admin request body for idempotent bulk
// ingestion; duplicates of existing (model, payload) pairs are skipped.
type TestBulkCreateDTO struct {
	Tests []TestCreateDTO `json:"tests" binding:"required,dive"`
}

// TestBulkCreateResponseDTO reports how many rows were newly inserted.
type TestBulkCreateResponseDTO struct {
	Inserted int64 `json:"inserted"`
}

// TestResponseDTO is the admin projection of a stored test.
type TestResponseDTO struct {
	ID          uint            `json:"id"`
	Model       string          `json:"model"`
	Payload     json.RawMessage `json:"payload"`
	IsActive    bool            `json:"is_active"`
	TotalTokens *int            `json:"total_tokens,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TestUpdateDTO toggles a test's active flag; retired tests are
// deactivated, never deleted.
type TestUpdateDTO struct {
	IsActive *bool `json:"is_active" binding:"required"`
}
