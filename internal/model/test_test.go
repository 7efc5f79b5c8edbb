package model

import (
	"strings"
	"testing"
)

func validPayload() TestPayload {
	return TestPayload{
		CorrectAnswer: "blue",
		Options:       []string{"blue", "green"},
		Task:          "What color is the sky on a clear day?",
	}
}

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*TestPayload)
		wantErr string
	}{
		{"valid", func(p *TestPayload) {}, ""},
		{"empty task", func(p *TestPayload) { p.Task = "  " }, "task"},
		{"no options", func(p *TestPayload) { p.Options = nil }, "options"},
		{"duplicate options", func(p *TestPayload) { p.Options = []string{"blue", "blue"} }, "distinct"},
		{"answer not an option", func(p *TestPayload) { p.CorrectAnswer = "red" }, "not among"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPayloadCanonicalKeyOrder(t *testing.T) {
	canonical, err := validPayload().Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"correct_answer":"blue","options":["blue","green"],"task":"What color is the sky on a clear day?"}`
	if canonical != want {
		t.Fatalf("canonical payload mismatch:\n got %s\nwant %s", canonical, want)
	}
}

func TestDecodePayloadNormalizesKeyOrder(t *testing.T) {
	// Client-supplied key order must not matter once canonicalized.
	raw := `{"task":"2+2?","correct_answer":"4","options":["3","4"]}`
	p, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	canonical, err := p.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"correct_answer":"4","options":["3","4"],"task":"2+2?"}`
	if canonical != want {
		t.Fatalf("canonical payload mismatch:\n got %s\nwant %s", canonical, want)
	}
}

func TestDecodePayloadRejectsMalformed(t *testing.T) {
	if _, err := DecodePayload(`{"task":`); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if _, err := DecodePayload(`{"task":"x","options":["a"],"correct_answer":"b"}`); err == nil {
		t.Fatal("expected error for answer outside options")
	}
}

func TestCaseCarriesTestID(t *testing.T) {
	canonical, err := validPayload().Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	test := Test{ID: 42, Model: "M-eval", Payload: canonical}
	tc, err := test.Case()
	if err != nil {
		t.Fatalf("Case: %v", err)
	}
	if tc.ID != 42 || tc.Task != validPayload().Task || tc.CorrectAnswer != "blue" {
		t.Fatalf("unexpected test case: %+v", tc)
	}
	if len(tc.Options) != 2 {
		t.Fatalf("expected 2 options, got %v", tc.Options)
	}
}

func TestCaseRejectsBrokenPayload(t *testing.T) {
	test := Test{ID: 7, Payload: "not json"}
	if _, err := test.Case(); err == nil {
		t.Fatal("expected error for unusable payload")
	}
}
