package model

import "time"

// TestResult statuses. PENDING claims the (attempt, test) slot; VALID
// and FAILED are terminal.
const (
	ResultStatusPending = "PENDING"
	ResultStatusValid   = "VALID"
	ResultStatusFailed  = "FAILED"
)

// TestResult is the outcome of running one attempt against one test.
// The composite primary key doubles as the lock that gives at-most-one
// writer per (attempt, test) pair: the first PENDING insert wins.
type TestResult struct {
	AttemptID uint    `json:"attempt_id" gorm:"primaryKey;autoIncrement:false"`
	TestID    uint    `json:"test_id" gorm:"primaryKey;autoIncrement:false"`
	Attempt   Attempt `json:"-" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
	Test      Test    `json:"-" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
	Status    string  `json:"status" gorm:"not null;default:'PENDING'"`
	// CompressedPrompt and CompressionRatio are non-nil whenever Status
	// is VALID.
	CompressedPrompt *string  `json:"compressed_prompt,omitempty" gorm:"type:text"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	// RequestJSON is the canonical record of the LLM requests that
	// produced this result, kept for audit.
	RequestJSON  *string   `json:"request_json,omitempty" gorm:"type:text"`
	LastModified time.Time `json:"last_modified" gorm:"autoUpdateTime"`
}
