package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Test is a stored prompt plus its evaluation contract, designed
// against a specific evaluation model. Tests are retired by
// deactivation, never deleted.
type Test struct {
	ID    uint   `json:"id" gorm:"primarykey"`
	Model string `json:"model" gorm:"not null;uniqueIndex:idx_tests_model_payload"`
	// Payload holds the canonical JSON encoding of TestPayload. The
	// (model, payload) pair is globally unique; bulk ingestion relies on
	// this to skip duplicates.
	Payload  string `json:"payload" gorm:"type:text;not null;uniqueIndex:idx_tests_model_payload"`
	IsActive bool   `json:"is_active" gorm:"not null;default:true"`
	// TotalTokens caches the token count of the uncompressed task when
	// known; nil until a baseline evaluation has measured it.
	TotalTokens *int      `json:"total_tokens,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TestPayload is the decoded form of Test.Payload. Field order matches
// the lexicographic key order of the canonical encoding.
type TestPayload struct {
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options"`
	Task          string   `json:"task"`
}

// Validate checks the payload invariants: a non-empty ordered list of
// distinct options, with correct_answer among them.
func (p TestPayload) Validate() error {
	if strings.TrimSpace(p.Task) == "" {
		return fmt.Errorf("payload task must not be empty")
	}
	if len(p.Options) == 0 {
		return fmt.Errorf("payload options must not be empty")
	}
	seen := make(map[string]bool, len(p.Options))
	for _, opt := range p.Options {
		if seen[opt] {
			return fmt.Errorf("payload options must be distinct, %q appears twice", opt)
		}
		seen[opt] = true
	}
	if !seen[p.CorrectAnswer] {
		return fmt.Errorf("correct_answer %q is not among the options", p.CorrectAnswer)
	}
	return nil
}

// Canonical returns the deterministic JSON encoding of the payload,
// with keys in lexicographic order. Equal payloads always produce
// byte-equal output, which the (model, payload) uniqueness constraint
// depends on.
func (p TestPayload) Canonical() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode test payload: %w", err)
	}
	return string(b), nil
}

// TestCase is the evaluation contract of one test, decoded from its
// payload and carrying the test's database id.
type TestCase struct {
	ID            uint
	Task          string
	Options       []string
	CorrectAnswer string
}

// Case decodes the stored payload into the test's evaluation contract.
func (t *Test) Case() (TestCase, error) {
	p, err := DecodePayload(t.Payload)
	if err != nil {
		return TestCase{}, fmt.Errorf("test %d: %w", t.ID, err)
	}
	return TestCase{
		ID:            t.ID,
		Task:          p.Task,
		Options:       p.Options,
		CorrectAnswer: p.CorrectAnswer,
	}, nil
}

// DecodePayload parses and validates a payload JSON document.
func DecodePayload(raw string) (TestPayload, error) {
	var p TestPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return TestPayload{}, fmt.Errorf("malformed test payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return TestPayload{}, err
	}
	return p, nil
}
