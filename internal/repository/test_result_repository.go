package repository

import (
	"github.com/ndthien/promptshrink/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TestResultRepository interface {
	// Claim atomically inserts a PENDING row for the (attempt, test)
	// pair, or re-arms an existing PENDING row left behind by a worker
	// that crashed between claim and finalize. Returns false only when
	// the pair already has a terminal result.
	Claim(attemptID, testID uint) (bool, error)
	// Finalize transitions the claimed row to a terminal status in
	// place. Idempotent when repeated with the same final status.
	Finalize(attemptID, testID uint, status string, compressedPrompt *string, compressionRatio *float64, requestJSON *string) error
	FindAllByAttempt(attemptID uint) ([]model.TestResult, error)
}

type testResultRepository struct {
	db *gorm.DB
}

func NewTestResultRepository(db *gorm.DB) TestResultRepository {
	return &testResultRepository{db: db}
}

func (r *testResultRepository) Claim(attemptID, testID uint) (bool, error) {
	row := model.TestResult{
		AttemptID: attemptID,
		TestID:    testID,
		Status:    model.ResultStatusPending,
	}
	// On conflict the update fires only while the existing row is still
	// PENDING, so a stale claim from a crashed worker is taken over but
	// a terminal result is never touched. RowsAffected is 0 when the
	// update is filtered out, which signals a lost claim.
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "test_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"status": model.ResultStatusPending}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "test_results", Name: "status"}, Value: model.ResultStatusPending},
		}},
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *testResultRepository) Finalize(attemptID, testID uint, status string, compressedPrompt *string, compressionRatio *float64, requestJSON *string) error {
	updates := map[string]interface{}{
		"status":            status,
		"compressed_prompt": compressedPrompt,
		"compression_ratio": compressionRatio,
		"request_json":      requestJSON,
	}
	return r.db.Model(&model.TestResult{}).
		Where("attempt_id = ? AND test_id = ?", attemptID, testID).
		Updates(updates).Error
}

func (r *testResultRepository) FindAllByAttempt(attemptID uint) ([]model.TestResult, error) {
	var results []model.TestResult
	err := r.db.Where("attempt_id = ?", attemptID).Order("test_id ASC").Find(&results).Error
	return results, err
}
