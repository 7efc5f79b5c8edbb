package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ndthien/promptshrink/config"
)

// Usage holds the token counters reported by the provider for one or
// more chat-completion calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// LLMService is the gateway to the external chat-completions endpoint.
// Both operations return the canonical key-sorted serialization of the
// outbound request alongside the provider's answer and usage counters.
type LLMService interface {
	// AnswerWithTool forces the model to answer via the answer_question
	// function, whose single argument is pinned to the supplied options.
	AnswerWithTool(ctx context.Context, model, system, user string, options []string) (answer string, usage Usage, requestJSON string, err error)
	// Compress sends the compressing prompt as the system message and
	// the task as the user message, returning the free-form reply.
	Compress(ctx context.Context, model, compressingPrompt, task string) (compressed string, usage Usage, requestJSON string, err error)
}

type openRouterLLMService struct {
	cfg    *config.Config
	client *http.Client
}

func NewOpenRouterLLMService(cfg *config.Config) LLMService {
	timeout := time.Duration(cfg.OpenRouter.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openRouterLLMService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func chatMessage(role, content string) map[string]interface{} {
	return map[string]interface{}{"role": role, "content": content}
}

// doChat posts the request body to the chat-completions endpoint. The
// body is a map so that the canonical (key-sorted) serialization and
// the bytes actually sent are the same.
func (s *openRouterLLMService) doChat(ctx context.Context, body map[string]interface{}) (*chatCompletionResponse, string, error) {
	payload, err := canonicalJSON(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.OpenRouter.BaseURL+"/chat/completions", bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, payload, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenRouter.APIKey)
	if s.cfg.OpenRouter.HTTPReferer != "" {
		req.Header.Set("HTTP-Referer", s.cfg.OpenRouter.HTTPReferer)
	}
	if s.cfg.OpenRouter.XTitle != "" {
		req.Header.Set("X-Title", s.cfg.OpenRouter.XTitle)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, payload, fmt.Errorf("chat completions request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, payload, fmt.Errorf("failed to read chat completions response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, payload, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, payload, fmt.Errorf("malformed chat completions response: %w", err)
	}
	if parsed.Error != nil {
		return nil, payload, fmt.Errorf("chat completions error: %s", parsed.Error.Message)
	}
	return &parsed, payload, nil
}

const answerToolName = "answer_question"

func (s *openRouterLLMService) AnswerWithTool(ctx context.Context, model, system, user string, options []string) (string, Usage, string, error) {
	body := map[string]interface{}{
		"model": model,
		"messages": []interface{}{
			chatMessage("system", system),
			chatMessage("user", user),
		},
		"tools": []interface{}{
			map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        answerToolName,
					"description": "Answer the question with one of the allowed options.",
					"strict":      true,
					"parameters": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"answer": map[string]interface{}{
								"type": "string",
								"enum": options,
							},
						},
						"required":             []interface{}{"answer"},
						"additionalProperties": false,
					},
				},
			},
		},
		"tool_choice": map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": answerToolName},
		},
	}

	resp, requestJSON, err := s.doChat(ctx, body)
	if err != nil {
		return "", Usage{}, requestJSON, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, requestJSON, fmt.Errorf("chat completions returned no choices")
	}
	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return "", Usage{}, requestJSON, fmt.Errorf("model returned no tool call")
	}
	var args struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(toolCalls[0].Function.Arguments), &args); err != nil {
		return "", Usage{}, requestJSON, fmt.Errorf("malformed tool call arguments: %w", err)
	}
	if resp.Usage == nil {
		return "", Usage{}, requestJSON, fmt.Errorf("chat completions response has no usage")
	}
	return args.Answer, *resp.Usage, requestJSON, nil
}

func (s *openRouterLLMService) Compress(ctx context.Context, model, compressingPrompt, task string) (string, Usage, string, error) {
	body := map[string]interface{}{
		"model": model,
		"messages": []interface{}{
			chatMessage("system", compressingPrompt),
			chatMessage("user", task),
		},
	}

	resp, requestJSON, err := s.doChat(ctx, body)
	if err != nil {
		return "", Usage{}, requestJSON, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, requestJSON, fmt.Errorf("chat completions returned no choices")
	}
	compressed := resp.Choices[0].Message.Content
	if strings.TrimSpace(compressed) == "" {
		return "", Usage{}, requestJSON, fmt.Errorf("model returned an empty compression")
	}
	if resp.Usage == nil {
		return "", Usage{}, requestJSON, fmt.Errorf("chat completions response has no usage")
	}
	return compressed, *resp.Usage, requestJSON, nil
}
