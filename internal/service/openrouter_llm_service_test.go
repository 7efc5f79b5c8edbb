package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ndthien/promptshrink/config"
)

func newGatewayFixture(t *testing.T, handler http.HandlerFunc) (LLMService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{}
	cfg.OpenRouter.BaseURL = srv.URL
	cfg.OpenRouter.APIKey = "test-key"
	cfg.OpenRouter.HTTPReferer = "https://promptshrink.example"
	cfg.OpenRouter.XTitle = "promptshrink"
	cfg.OpenRouter.TimeoutMs = 5000
	return NewOpenRouterLLMService(cfg), srv
}

func toolCallResponse(answer string, usage *Usage) string {
	resp := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"message": map[string]interface{}{
					"tool_calls": []interface{}{
						map[string]interface{}{
							"function": map[string]interface{}{
								"name":      "answer_question",
								"arguments": `{"answer":"` + answer + `"}`,
							},
						},
					},
				},
			},
		},
	}
	if usage != nil {
		resp["usage"] = usage
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func contentResponse(content string, usage *Usage) string {
	resp := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"message": map[string]interface{}{"content": content},
			},
		},
	}
	if usage != nil {
		resp["usage"] = usage
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestAnswerWithTool(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	svc, _ := newGatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("HTTP-Referer"); got != "https://promptshrink.example" {
			t.Errorf("unexpected HTTP-Referer header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		io.WriteString(w, toolCallResponse("blue", &Usage{PromptTokens: 25, CompletionTokens: 5, TotalTokens: 50}))
	})

	answer, usage, requestJSON, err := svc.AnswerWithTool(context.Background(), "M-eval", "answer the question", "sky color?", []string{"blue", "green"})
	if err != nil {
		t.Fatalf("AnswerWithTool: %v", err)
	}
	if answer != "blue" {
		t.Fatalf("expected answer blue, got %q", answer)
	}
	if usage.TotalTokens != 50 || usage.PromptTokens != 25 || usage.CompletionTokens != 5 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	mu.Lock()
	sent := bodies[0]
	mu.Unlock()
	if requestJSON != sent {
		t.Fatalf("requestJSON must equal the bytes sent:\n got %s\nsent %s", requestJSON, sent)
	}
	for _, fragment := range []string{
		`"tool_choice":{"function":{"name":"answer_question"},"type":"function"}`,
		`"enum":["blue","green"]`,
		`"strict":true`,
		`"additionalProperties":false`,
	} {
		if !strings.Contains(requestJSON, fragment) {
			t.Errorf("request JSON missing fragment %s\nbody: %s", fragment, requestJSON)
		}
	}
}

func TestAnswerWithToolCanonicalRequestEquality(t *testing.T) {
	svc, _ := newGatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, toolCallResponse("blue", &Usage{TotalTokens: 10}))
	})

	_, _, first, err := svc.AnswerWithTool(context.Background(), "M-eval", "s", "u", []string{"blue", "green"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, _, second, err := svc.AnswerWithTool(context.Background(), "M-eval", "s", "u", []string{"blue", "green"})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs must produce byte-equal request JSON:\n%s\n%s", first, second)
	}
}

func TestAnswerWithToolFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			"no tool call",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, contentResponse("blue", &Usage{TotalTokens: 10}))
			},
			"no tool call",
		},
		{
			"missing usage",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, toolCallResponse("blue", nil))
			},
			"no usage",
		},
		{
			"provider error field",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			},
			"rate limited",
		},
		{
			"http error",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream exploded", http.StatusBadGateway)
			},
			"status 502",
		},
		{
			"no choices",
			func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[],"usage":{"total_tokens":1}}`)
			},
			"no choices",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newGatewayFixture(t, tc.handler)
			_, _, _, err := svc.AnswerWithTool(context.Background(), "M", "s", "u", []string{"a", "b"})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCompress(t *testing.T) {
	svc, _ := newGatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("malformed request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Messages[0].Content != "Rewrite shorter." {
			t.Errorf("system message must carry the compressing prompt, got %q", req.Messages[0].Content)
		}
		io.WriteString(w, contentResponse("sky color clear day?", &Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}))
	})

	compressed, usage, requestJSON, err := svc.Compress(context.Background(), "M-compress", "Rewrite shorter.", "What color is the sky on a clear day?")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if compressed != "sky color clear day?" {
		t.Fatalf("unexpected compression %q", compressed)
	}
	if usage.TotalTokens != 30 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if !strings.Contains(requestJSON, `"model":"M-compress"`) {
		t.Fatalf("request JSON missing model: %s", requestJSON)
	}
}

func TestCompressFailures(t *testing.T) {
	t.Run("empty reply", func(t *testing.T) {
		svc, _ := newGatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, contentResponse("  ", &Usage{TotalTokens: 5}))
		})
		_, _, _, err := svc.Compress(context.Background(), "M", "p", "t")
		if err == nil || !strings.Contains(err.Error(), "empty compression") {
			t.Fatalf("expected empty compression error, got %v", err)
		}
	})

	t.Run("missing usage", func(t *testing.T) {
		svc, _ := newGatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, contentResponse("short", nil))
		})
		_, _, _, err := svc.Compress(context.Background(), "M", "p", "t")
		if err == nil || !strings.Contains(err.Error(), "no usage") {
			t.Fatalf("expected missing usage error, got %v", err)
		}
	})
}
