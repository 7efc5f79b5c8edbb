package service

import (
	"context"
	"strings"

	"github.com/ndthien/promptshrink/internal/model"
	"github.com/rs/zerolog/log"
)

const answerSystemPrompt = "You answer multiple-choice questions. Read the question in the user message and respond by calling the answer_question function with the single best answer. The answer must be exactly one of the allowed options."

// EvaluationResult is the outcome of asking the evaluation model to
// answer one test case.
type EvaluationResult struct {
	Passed bool
	// Usage accumulates across iterations when more than one attempt was
	// requested.
	Usage Usage
	// RequestJSON is the canonical request of the last completed gateway
	// call; empty when no call completed.
	RequestJSON string
}

// TestCompressionResult bundles the full outcome of the two-phase
// compress-then-answer pipeline for one test case.
type TestCompressionResult struct {
	TestCase         model.TestCase
	CompressedTask   string
	CompressionUsage Usage
	CompressionRatio float64
	Passed           bool
	EvaluationUsage  Usage
	// RequestJSON combines the compression and evaluation request
	// records under stable keys.
	RequestJSON string
}

// EvaluatorService drives the LLM gateway for single test cases. It
// never writes to storage and is safe to call concurrently for
// distinct inputs.
type EvaluatorService interface {
	// EvaluatePrompt asks the evaluation model to answer the test case
	// up to attempts times. Any gateway failure or wrong answer stops
	// iteration and yields Passed=false. This never reports an error to
	// the caller.
	EvaluatePrompt(ctx context.Context, testCase model.TestCase, evaluationModel string, attempts int) EvaluationResult
	// EvaluateCompression compresses the task with the compressing
	// prompt, then re-evaluates the compressed task. The error is
	// non-nil only when the compression phase fails; a wrong answer on
	// the compressed task is a normal Passed=false result.
	EvaluateCompression(ctx context.Context, testCase model.TestCase, compressingPrompt, compressionModel, evaluationModel string, uncompressedTotalTokens int) (*TestCompressionResult, error)
}

type evaluatorService struct {
	llm LLMService
}

func NewEvaluatorService(llm LLMService) EvaluatorService {
	return &evaluatorService{llm: llm}
}

func answersMatch(answer, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct))
}

func (s *evaluatorService) EvaluatePrompt(ctx context.Context, testCase model.TestCase, evaluationModel string, attempts int) EvaluationResult {
	if attempts < 1 {
		attempts = 1
	}

	result := EvaluationResult{}
	for i := 0; i < attempts; i++ {
		answer, usage, requestJSON, err := s.llm.AnswerWithTool(ctx, evaluationModel, answerSystemPrompt, testCase.Task, testCase.Options)
		result.Usage = result.Usage.Add(usage)
		if requestJSON != "" {
			result.RequestJSON = requestJSON
		}
		if err != nil {
			log.Warn().Err(err).Uint("testID", testCase.ID).Str("model", evaluationModel).Msg("EvaluatePrompt: gateway call failed")
			result.Passed = false
			return result
		}
		if !answersMatch(answer, testCase.CorrectAnswer) {
			result.Passed = false
			return result
		}
	}
	result.Passed = true
	return result
}

func (s *evaluatorService) EvaluateCompression(ctx context.Context, testCase model.TestCase, compressingPrompt, compressionModel, evaluationModel string, uncompressedTotalTokens int) (*TestCompressionResult, error) {
	compressedTask, compressionUsage, compressionJSON, err := s.llm.Compress(ctx, compressionModel, compressingPrompt, testCase.Task)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testCase.ID).Str("model", compressionModel).Msg("EvaluateCompression: compression failed")
		return nil, err
	}

	derived := model.TestCase{
		ID:            testCase.ID,
		Task:          compressedTask,
		Options:       testCase.Options,
		CorrectAnswer: testCase.CorrectAnswer,
	}
	evaluation := s.EvaluatePrompt(ctx, derived, evaluationModel, 1)

	ratio := 0.0
	if evaluation.Usage.TotalTokens > 0 {
		ratio = float64(uncompressedTotalTokens) / float64(evaluation.Usage.TotalTokens)
	}

	requestJSON, err := combineRequestJSON(compressionJSON, evaluation.RequestJSON)
	if err != nil {
		return nil, err
	}

	return &TestCompressionResult{
		TestCase:         testCase,
		CompressedTask:   compressedTask,
		CompressionUsage: compressionUsage,
		CompressionRatio: ratio,
		Passed:           evaluation.Passed,
		EvaluationUsage:  evaluation.Usage,
		RequestJSON:      requestJSON,
	}, nil
}
