package repository

import (
	"errors"

	"github.com/ndthien/promptshrink/internal/model"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(attempt *model.Attempt) error
	FindByID(id uint) (*model.Attempt, error)
	FindAllByLogin(login string) ([]model.Attempt, error)
	// NextWithPendingWork returns the oldest attempt that is still
	// unfinished, has no FAILED result, and has at least one active test
	// without a terminal result. PENDING rows do not count as coverage:
	// an attempt whose worker crashed mid-evaluation stays eligible so
	// its stale claims can be swept on a later cycle. An attempt is also
	// eligible when no active tests exist at all, so that it can
	// complete immediately with an empty aggregate. Returns nil when
	// nothing is eligible.
	NextWithPendingWork() (*model.Attempt, error)
	// MarkComplete sets the terminal average on the attempt.
	MarkComplete(id uint, averageCompressionRatio float64) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.Attempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindAllByLogin(login string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.Where("login = ?", login).Order("timestamp DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) NextWithPendingWork() (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.Raw(`
		SELECT a.*
		FROM attempts a
		WHERE a.average_compression_ratio IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM test_results tr
			WHERE tr.attempt_id = a.id AND tr.status = ?
		  )
		  AND (
			(SELECT COUNT(*) FROM test_results tr
			   JOIN tests t ON t.id = tr.test_id AND t.is_active
			 WHERE tr.attempt_id = a.id AND tr.status <> ?)
			< (SELECT COUNT(*) FROM tests t WHERE t.is_active)
			OR (SELECT COUNT(*) FROM tests t WHERE t.is_active) = 0
		  )
		ORDER BY a.timestamp ASC
		LIMIT 1`, model.ResultStatusFailed, model.ResultStatusPending).
		Scan(&attempt).Error
	if err != nil {
		return nil, err
	}
	if attempt.ID == 0 {
		return nil, nil
	}
	return &attempt, nil
}

func (r *attemptRepository) MarkComplete(id uint, averageCompressionRatio float64) error {
	res := r.db.Model(&model.Attempt{}).
		Where("id = ?", id).
		Update("average_compression_ratio", averageCompressionRatio)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("attempt not found")
	}
	return nil
}
