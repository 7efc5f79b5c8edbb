package model

import "time"

// Attempt is a user-submitted (compressing prompt, compression model)
// pair to be evaluated against the active test corpus. A non-nil
// AverageCompressionRatio marks the attempt as finished; nothing but
// the tasker ever mutates an attempt after creation.
type Attempt struct {
	ID                uint      `json:"id" gorm:"primarykey"`
	Timestamp         time.Time `json:"timestamp" gorm:"not null;autoCreateTime;index"`
	CompressingPrompt string    `json:"compressing_prompt" gorm:"type:text;not null"`
	Model             string    `json:"model" gorm:"not null"`
	Login             string    `json:"login" gorm:"not null;index"`
	User              User      `json:"-" gorm:"foreignKey:Login;references:Login"`
	// AverageCompressionRatio is the mean compression ratio over the
	// attempt's VALID results; set exactly once on completion.
	AverageCompressionRatio *float64 `json:"average_compression_ratio,omitempty"`
}
