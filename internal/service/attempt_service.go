package service

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/ndthien/promptshrink/internal/dto"
	"github.com/ndthien/promptshrink/internal/model"
	"github.com/ndthien/promptshrink/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrForbidden       = errors.New("not allowed to read this attempt")
)

// AttemptService is the producer side of the platform: it inserts
// attempts for the tasker to consume and exposes read access to their
// progress. Submission always succeeds; evaluation failures surface
// only through later reads.
type AttemptService interface {
	SubmitAttempt(login string, req dto.AttemptSubmitDTO) (*dto.AttemptResponseDTO, error)
	GetAttemptsForUser(login string) ([]dto.AttemptResponseDTO, error)
	GetAttemptDetails(attemptID uint, login string, isAdmin bool) (*dto.AttemptDetailDTO, error)
}

type attemptService struct {
	attemptRepo repository.AttemptRepository
	resultRepo  repository.TestResultRepository
}

func NewAttemptService(attemptRepo repository.AttemptRepository, resultRepo repository.TestResultRepository) AttemptService {
	return &attemptService{attemptRepo: attemptRepo, resultRepo: resultRepo}
}

func (s *attemptService) SubmitAttempt(login string, req dto.AttemptSubmitDTO) (*dto.AttemptResponseDTO, error) {
	attempt := model.Attempt{
		CompressingPrompt: req.CompressingPrompt,
		Model:             req.Model,
		Login:             login,
	}
	if err := s.attemptRepo.Create(&attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	log.Info().Uint("attemptID", attempt.ID).Str("login", login).Str("model", req.Model).Msg("Attempt submitted")

	var resp dto.AttemptResponseDTO
	if err := copier.Copy(&resp, &attempt); err != nil {
		return nil, fmt.Errorf("error preparing response: %w", err)
	}
	return &resp, nil
}

func (s *attemptService) GetAttemptsForUser(login string) ([]dto.AttemptResponseDTO, error) {
	attempts, err := s.attemptRepo.FindAllByLogin(login)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	dtos := make([]dto.AttemptResponseDTO, 0, len(attempts))
	for i := range attempts {
		var resp dto.AttemptResponseDTO
		if err := copier.Copy(&resp, &attempts[i]); err != nil {
			return nil, fmt.Errorf("error preparing response: %w", err)
		}
		dtos = append(dtos, resp)
	}
	return dtos, nil
}

func (s *attemptService) GetAttemptDetails(attemptID uint, login string, isAdmin bool) (*dto.AttemptDetailDTO, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.Login != login && !isAdmin {
		return nil, ErrForbidden
	}

	results, err := s.resultRepo.FindAllByAttempt(attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test results: %w", err)
	}

	var resp dto.AttemptDetailDTO
	if err := copier.Copy(&resp.AttemptResponseDTO, attempt); err != nil {
		return nil, fmt.Errorf("error preparing response: %w", err)
	}
	resp.Results = make([]dto.TestResultResponseDTO, 0, len(results))
	for i := range results {
		var r dto.TestResultResponseDTO
		if err := copier.Copy(&r, &results[i]); err != nil {
			return nil, fmt.Errorf("error preparing response: %w", err)
		}
		resp.Results = append(resp.Results, r)
	}
	return &resp, nil
}
