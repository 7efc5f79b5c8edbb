package repository

import (
	"github.com/ndthien/promptshrink/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TestRepository interface {
	Create(test *model.Test) error
	// UpsertTests bulk inserts tests keyed by the (model, payload)
	// uniqueness constraint; rows that already exist are left untouched.
	// Returns the number of newly inserted rows.
	UpsertTests(tests []model.Test) (int64, error)
	FindByID(id uint) (*model.Test, error)
	FindAll() ([]model.Test, error)
	// UnfinishedActiveTests returns every active test that has either no
	// TestResult for the attempt or one still in PENDING (a prior worker
	// crashed mid-evaluation), ordered by test id.
	UnfinishedActiveTests(attemptID uint) ([]model.Test, error)
	SetActive(id uint, active bool) error
	SetTotalTokens(id uint, totalTokens int) error
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	return r.db.Create(test).Error
}

func (r *testRepository) UpsertTests(tests []model.Test) (int64, error) {
	if len(tests) == 0 {
		return 0, nil
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model"}, {Name: "payload"}},
		DoNothing: true,
	}).Create(&tests)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindAll() ([]model.Test, error) {
	var tests []model.Test
	if err := r.db.Order("id ASC").Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

func (r *testRepository) UnfinishedActiveTests(attemptID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.db.
		Where("is_active = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM test_results tr WHERE tr.test_id = tests.id AND tr.attempt_id = ? AND tr.status <> ?)",
			attemptID, model.ResultStatusPending).
		Order("id ASC").
		Find(&tests).Error
	if err != nil {
		return nil, err
	}
	return tests, nil
}

func (r *testRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&model.Test{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *testRepository) SetTotalTokens(id uint, totalTokens int) error {
	return r.db.Model(&model.Test{}).Where("id = ?", id).Update("total_tokens", totalTokens).Error
}
