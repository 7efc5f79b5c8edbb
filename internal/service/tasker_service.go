package service

import (
	"context"
	"time"

	"github.com/ndthien/promptshrink/config"
	"github.com/ndthien/promptshrink/internal/model"
	"github.com/ndthien/promptshrink/internal/repository"
	"github.com/rs/zerolog/log"
)

// TaskerService is the evaluation worker: it polls for attempts with
// pending work, claims their tests one at a time through the
// TestResult composite key, runs the compression pipeline, and
// aggregates per-attempt metrics. Several tasker processes may run
// against the same database; the claim insert arbitrates ownership.
type TaskerService interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context)
}

type taskerService struct {
	attemptRepo  repository.AttemptRepository
	testRepo     repository.TestRepository
	resultRepo   repository.TestResultRepository
	evaluator    EvaluatorService
	pollInterval time.Duration
}

func NewTaskerService(
	cfg *config.Config,
	attemptRepo repository.AttemptRepository,
	testRepo repository.TestRepository,
	resultRepo repository.TestResultRepository,
	evaluator EvaluatorService,
) TaskerService {
	interval := time.Duration(cfg.Tasker.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &taskerService{
		attemptRepo:  attemptRepo,
		testRepo:     testRepo,
		resultRepo:   resultRepo,
		evaluator:    evaluator,
		pollInterval: interval,
	}
}

func (s *taskerService) Run(ctx context.Context) {
	log.Info().Dur("pollInterval", s.pollInterval).Msg("Tasker started")
	for {
		if ctx.Err() != nil {
			log.Info().Msg("Tasker stopped")
			return
		}

		attempt, err := s.attemptRepo.NextWithPendingWork()
		if err != nil {
			log.Error().Err(err).Msg("Tasker: failed to poll for pending attempts")
			if !s.sleep(ctx) {
				return
			}
			continue
		}
		if attempt == nil {
			if !s.sleep(ctx) {
				return
			}
			continue
		}

		s.processAttempt(ctx, attempt)
	}
}

// processAttempt runs every unfinished active test of the attempt
// sequentially. Tests owned by another worker are skipped and excluded
// from aggregation. The first failed test aborts the attempt; a later
// poll will see the FAILED row and leave the attempt alone.
func (s *taskerService) processAttempt(ctx context.Context, attempt *model.Attempt) {
	tests, err := s.testRepo.UnfinishedActiveTests(attempt.ID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Tasker: failed to load unfinished tests")
		return
	}

	testsPassed := 0
	ratioSum := 0.0

	for i := range tests {
		test := &tests[i]
		if ctx.Err() != nil {
			return
		}

		claimed, err := s.resultRepo.Claim(attempt.ID, test.ID)
		if err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Uint("testID", test.ID).Msg("Tasker: claim failed")
			s.sleep(ctx)
			return
		}
		if !claimed {
			// Another worker owns this slot; it is not ours to account.
			continue
		}

		outcome := s.runTest(ctx, attempt, test)
		if outcome == nil {
			return
		}
		testsPassed++
		ratioSum += *outcome
	}

	average := 0.0
	if testsPassed > 0 {
		average = ratioSum / float64(testsPassed)
	}
	if err := s.attemptRepo.MarkComplete(attempt.ID, average); err != nil {
		log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Tasker: failed to mark attempt complete")
		return
	}
	log.Info().
		Uint("attemptID", attempt.ID).
		Int("testsPassed", testsPassed).
		Float64("averageCompressionRatio", average).
		Msg("Tasker: attempt completed")
}

// runTest evaluates one claimed test and finalizes its row. Returns
// the compression ratio on a VALID outcome, nil when the attempt must
// be aborted.
func (s *taskerService) runTest(ctx context.Context, attempt *model.Attempt, test *model.Test) *float64 {
	testCase, err := test.Case()
	if err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Tasker: unusable test payload")
		s.finalize(attempt.ID, test.ID, model.ResultStatusFailed, nil, nil, nil)
		return nil
	}

	uncompressedTokens, ok := s.uncompressedTotalTokens(ctx, test, testCase)
	if !ok {
		s.finalize(attempt.ID, test.ID, model.ResultStatusFailed, nil, nil, nil)
		return nil
	}

	result, err := s.evaluator.EvaluateCompression(ctx, testCase, attempt.CompressingPrompt, attempt.Model, test.Model, uncompressedTokens)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attempt.ID).Uint("testID", test.ID).Msg("Tasker: evaluation failed, aborting attempt")
		s.finalize(attempt.ID, test.ID, model.ResultStatusFailed, nil, nil, nil)
		return nil
	}

	if !result.Passed {
		s.finalize(attempt.ID, test.ID, model.ResultStatusFailed, &result.CompressedTask, nil, &result.RequestJSON)
		return nil
	}

	ratio := result.CompressionRatio
	if err := s.finalize(attempt.ID, test.ID, model.ResultStatusValid, &result.CompressedTask, &ratio, &result.RequestJSON); err != nil {
		// The row stays PENDING and is swept up on a later cycle.
		return nil
	}
	return &ratio
}

// uncompressedTotalTokens returns the cached baseline token count of
// the test, measuring and caching it first when unknown. A test whose
// uncompressed task cannot be answered correctly has no meaningful
// baseline and fails the pair.
func (s *taskerService) uncompressedTotalTokens(ctx context.Context, test *model.Test, testCase model.TestCase) (int, bool) {
	if test.TotalTokens != nil {
		return *test.TotalTokens, true
	}

	baseline := s.evaluator.EvaluatePrompt(ctx, testCase, test.Model, 1)
	if !baseline.Passed {
		log.Warn().Uint("testID", test.ID).Msg("Tasker: baseline evaluation of uncompressed task failed")
		return 0, false
	}
	if err := s.testRepo.SetTotalTokens(test.ID, baseline.Usage.TotalTokens); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Tasker: failed to cache baseline token count")
	}
	return baseline.Usage.TotalTokens, true
}

func (s *taskerService) finalize(attemptID, testID uint, status string, compressedPrompt *string, compressionRatio *float64, requestJSON *string) error {
	err := s.resultRepo.Finalize(attemptID, testID, status, compressedPrompt, compressionRatio, requestJSON)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Uint("testID", testID).Str("status", status).Msg("Tasker: failed to finalize test result")
	}
	return err
}

// sleep waits one poll interval; returns false when ctx was cancelled
// while waiting.
func (s *taskerService) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.pollInterval):
		return true
	}
}
