package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ndthien/promptshrink/internal/dto"
	"github.com/ndthien/promptshrink/internal/model"
	"github.com/ndthien/promptshrink/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrDuplicateTest = errors.New("a test with this model and payload already exists")
	ErrTestNotFound  = errors.New("test not found")
)

// AdminTestService administers the test corpus: creation, idempotent
// bulk ingestion, and retirement by deactivation.
type AdminTestService interface {
	CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	// BulkCreateTests skips rows whose (model, payload) pair already
	// exists and reports the number actually inserted. Applying the same
	// batch twice inserts nothing the second time.
	BulkCreateTests(req dto.TestBulkCreateDTO) (int64, error)
	GetAllTests() ([]dto.TestResponseDTO, error)
	SetTestActive(id uint, active bool) error
}

type adminTestService struct {
	testRepo repository.TestRepository
}

func NewAdminTestService(testRepo repository.TestRepository) AdminTestService {
	return &adminTestService{testRepo: testRepo}
}

// buildTest validates the incoming payload and canonicalizes it so the
// (model, payload) uniqueness constraint compares stable bytes.
func buildTest(req dto.TestCreateDTO) (model.Test, error) {
	payload, err := model.DecodePayload(string(req.Payload))
	if err != nil {
		return model.Test{}, err
	}
	canonical, err := payload.Canonical()
	if err != nil {
		return model.Test{}, err
	}
	return model.Test{
		Model:    req.Model,
		Payload:  canonical,
		IsActive: true,
	}, nil
}

func (s *adminTestService) CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	test, err := buildTest(req)
	if err != nil {
		return nil, err
	}
	if err := s.testRepo.Create(&test); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateTest
		}
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	log.Info().Uint("testID", test.ID).Str("model", test.Model).Msg("Test created")
	return testToDTO(&test), nil
}

func (s *adminTestService) BulkCreateTests(req dto.TestBulkCreateDTO) (int64, error) {
	tests := make([]model.Test, 0, len(req.Tests))
	for i, row := range req.Tests {
		test, err := buildTest(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		tests = append(tests, test)
	}
	inserted, err := s.testRepo.UpsertTests(tests)
	if err != nil {
		return 0, fmt.Errorf("failed to ingest tests: %w", err)
	}
	log.Info().Int("submitted", len(tests)).Int64("inserted", inserted).Msg("Bulk test ingestion finished")
	return inserted, nil
}

func (s *adminTestService) GetAllTests() ([]dto.TestResponseDTO, error) {
	tests, err := s.testRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	dtos := make([]dto.TestResponseDTO, 0, len(tests))
	for i := range tests {
		dtos = append(dtos, *testToDTO(&tests[i]))
	}
	return dtos, nil
}

func (s *adminTestService) SetTestActive(id uint, active bool) error {
	if _, err := s.testRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to load test: %w", err)
	}
	if err := s.testRepo.SetActive(id, active); err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	log.Info().Uint("testID", id).Bool("active", active).Msg("Test activity updated")
	return nil
}

func testToDTO(test *model.Test) *dto.TestResponseDTO {
	return &dto.TestResponseDTO{
		ID:          test.ID,
		Model:       test.Model,
		Payload:     json.RawMessage(test.Payload),
		IsActive:    test.IsActive,
		TotalTokens: test.TotalTokens,
		CreatedAt:   test.CreatedAt,
	}
}
