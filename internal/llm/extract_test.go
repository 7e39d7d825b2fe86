package llm

import (
	"errors"
	"testing"
)

type assessmentReply struct {
	Level       string `json:"level"`
	Score       any    `json:"score"`
	Explanation string `json:"explanation"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantLevel string
		wantErr   bool
	}{
		{"strict", `{"level":"apply","score":80,"explanation":"ok"}`, "apply", false},
		{"surrounding whitespace", "\n  {\"level\":\"apply\"}\n", "apply", false},
		{"prose before and after", `Sure! Here is the JSON: {"level":"analyze","score":60} Hope that helps.`, "analyze", false},
		{"markdown fence", "```json\n{\"level\":\"create\",\"score\":100}\n```", "create", false},
		{"braces inside strings", `note {"level":"evaluate","explanation":"uses {curly} braces"} end`, "evaluate", false},
		{"prose braces first", `I {think} this is it: {"level":"remember"}`, "remember", false},
		{"no json", "I cannot grade this answer.", "", true},
		{"unbalanced", `{"level":"apply"`, "", true},
		{"empty", "", "", true},
		{"array not object", `[1,2,3]`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got assessmentReply
			err := DecodeJSON(tt.raw, AssessmentSchema, &got)
			if tt.wantErr {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestDecodeJSONSchemaRejects(t *testing.T) {
	var out map[string]any
	err := DecodeJSON(`{"items":[]}`, QuestionSetSchema, &out)
	if err == nil {
		t.Fatal("expected schema validation error for missing questions")
	}

	err = DecodeJSON(`{"questions":"not a list"}`, QuestionSetSchema, &out)
	if err == nil {
		t.Fatal("expected schema validation error for wrong type")
	}

	err = DecodeJSON(`{"questions":[{"level":"remember","question":"What?"}]}`, QuestionSetSchema, &out)
	if err != nil {
		t.Fatalf("valid question set rejected: %v", err)
	}
}

func TestAssessmentSchemaAcceptsLooseTypes(t *testing.T) {
	tests := []string{
		`{"level":3,"score":100,"explanation":"ok"}`,
		`{"score":true}`,
		`{"score":{"value":80},"explanation":["a"]}`,
	}
	for _, raw := range tests {
		var out map[string]any
		if err := DecodeJSON(raw, AssessmentSchema, &out); err != nil {
			t.Errorf("DecodeJSON(%s): %v", raw, err)
		}
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`x {"a":{"b":1}} y`, `{"a":{"b":1}}`, true},
		{`{"s":"}"}`, `{"s":"}"}`, true},
		{`{"s":"\"}"} tail`, `{"s":"\"}"}`, true},
		{`no braces`, "", false},
		{`{ open`, "", false},
	}
	for _, tt := range tests {
		got, _, ok := firstBalancedObject(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("firstBalancedObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
