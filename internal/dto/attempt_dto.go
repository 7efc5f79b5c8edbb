package dto

import "time"

// AttemptSubmitDTO is the request body for submitting an attempt.
// Evaluation happens asynchronously; submission always succeeds.
type AttemptSubmitDTO struct {
	CompressingPrompt string `json:"compressing_prompt" binding:"required"`
	Model             string `json:"model" binding:"required"`
}

// AttemptResponseDTO summarizes one attempt.
type AttemptResponseDTO struct {
	ID                      uint      `json:"id"`
	Timestamp               time.Time `json:"timestamp"`
	CompressingPrompt       string    `json:"compressing_prompt"`
	Model                   string    `json:"model"`
	Login                   string    `json:"login"`
	AverageCompressionRatio *float64  `json:"average_compression_ratio,omitempty"`
}

// TestResultResponseDTO is one per-test outcome within an attempt.
type TestResultResponseDTO struct {
	AttemptID        uint      `json:"attempt_id"`
	TestID           uint      `json:"test_id"`
	Status           string    `json:"status"`
	CompressedPrompt *string   `json:"compressed_prompt,omitempty"`
	CompressionRatio *float64  `json:"compression_ratio,omitempty"`
	LastModified     time.Time `json:"last_modified"`
}

// AttemptDetailDTO is an attempt together with its recorded results.
type AttemptDetailDTO struct {
	AttemptResponseDTO
	Results []TestResultResponseDTO `json:"results"`
}
