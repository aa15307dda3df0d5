package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type fakeLLM struct {
	called bool
	system string
	user   string
	resp   string
	err    error
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system string, user string) (string, error) {
	f.called = true
	f.system = system
	f.user = user
	return f.resp, f.err
}

func testExtractor(t *testing.T, llm *fakeLLM) Extractor {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return NewExtractionService(log, llm)
}

var testActionTypes = []*types.ActionType{
	{Code: "document_request", Label: "Document Request"},
	{Code: "schedule_meeting", Label: "Schedule Meeting"},
}

func TestExtractTasks_ParsesTasksAndHints(t *testing.T) {
	llm := &fakeLLM{resp: `{
		"tasks": [
			{"title": "Send W-2 forms", "description": "Client needs W-2s", "priority": "high", "action_type_code": "document_request", "confidence": 0.92}
		],
		"client_hint": {"names": ["Maria Santos"], "phones": ["555-123-4567"], "companies": ["Santos Bakery"]},
		"summary": "W-2 request"
	}`}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "Please send my W-2s", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !llm.called {
		t.Fatalf("expected llm call")
	}
	if len(got.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(got.Tasks))
	}
	task := got.Tasks[0]
	if task.Title != "Send W-2 forms" || task.Priority != "high" || task.ActionTypeCode != "document_request" {
		t.Fatalf("unexpected task: %#v", task)
	}
	if len(got.ClientHint.Names) != 1 || got.ClientHint.Names[0] != "Maria Santos" {
		t.Fatalf("unexpected client hint: %#v", got.ClientHint)
	}
}

func TestExtractTasks_PromptCarriesVocabularyAndContent(t *testing.T) {
	llm := &fakeLLM{resp: `{"tasks": [], "client_hint": {}, "summary": ""}`}
	extractor := testExtractor(t, llm)

	if _, err := extractor.ExtractTasks(context.Background(), "Need an appointment", testActionTypes); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(llm.user, "document_request") || !strings.Contains(llm.user, "schedule_meeting") {
		t.Fatalf("expected action codes in prompt, got %q", llm.user)
	}
	if !strings.Contains(llm.user, "Need an appointment") {
		t.Fatalf("expected message content in prompt")
	}
}

func TestExtractTasks_DropsUnknownActionCodes(t *testing.T) {
	llm := &fakeLLM{resp: `{"tasks": [
		{"title": "Keep me", "action_type_code": "document_request", "confidence": 0.8},
		{"title": "Drop me", "action_type_code": "launch_rocket", "confidence": 0.9}
	]}`}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "Keep me" {
		t.Fatalf("expected unknown code dropped, got %#v", got.Tasks)
	}
}

func TestExtractTasks_DropsEmptyTitles(t *testing.T) {
	llm := &fakeLLM{resp: `{"tasks": [{"title": "  ", "action_type_code": "document_request"}]}`}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Tasks) != 0 {
		t.Fatalf("expected empty-title task dropped, got %#v", got.Tasks)
	}
}

func TestExtractTasks_ClampsConfidenceAndBlanksBadPriority(t *testing.T) {
	llm := &fakeLLM{resp: `{"tasks": [
		{"title": "A", "confidence": 1.7, "priority": "asap"},
		{"title": "B", "confidence": -0.4, "priority": "low"}
	]}`}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("expected two tasks, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Confidence != 1 || got.Tasks[0].Priority != "" {
		t.Fatalf("expected clamped confidence and blanked priority, got %#v", got.Tasks[0])
	}
	if got.Tasks[1].Confidence != 0 || got.Tasks[1].Priority != "low" {
		t.Fatalf("unexpected second task: %#v", got.Tasks[1])
	}
}

func TestExtractTasks_RecoversJSONFromProse(t *testing.T) {
	llm := &fakeLLM{resp: "Sure, here is the result:\n```json\n" +
		`{"tasks": [{"title": "Call back", "action_type_code": "schedule_meeting", "confidence": 0.5}], "summary": "call"}` +
		"\n```\nLet me know if you need anything else."}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "Call back" {
		t.Fatalf("expected task recovered from prose, got %#v", got.Tasks)
	}
}

func TestExtractTasks_ErrorsOnNonJSONResponse(t *testing.T) {
	llm := &fakeLLM{resp: "I could not process that message."}
	extractor := testExtractor(t, llm)

	if _, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes); err == nil {
		t.Fatalf("expected error for response without JSON")
	}
}

func TestExtractTasks_PropagatesLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	extractor := testExtractor(t, llm)

	if _, err := extractor.ExtractTasks(context.Background(), "hello", testActionTypes); err == nil {
		t.Fatalf("expected llm error to propagate")
	}
}

func TestExtractTasks_EmptyContentSkipsLLM(t *testing.T) {
	llm := &fakeLLM{}
	extractor := testExtractor(t, llm)

	got, err := extractor.ExtractTasks(context.Background(), "   ", testActionTypes)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if llm.called {
		t.Fatalf("llm must not be called for empty content")
	}
	if len(got.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %#v", got.Tasks)
	}
}

func TestFirstJSONObject_RespectsNestingAndStrings(t *testing.T) {
	raw := `noise {"a": {"b": "close me not: }"}, "c": "esc \" }"} trailing {"d": 1}`
	got, err := firstJSONObject(raw)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := `{"a": {"b": "close me not: }"}, "c": "esc \" }"}`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFirstJSONObject_UnbalancedFails(t *testing.T) {
	if _, err := firstJSONObject(`{"a": 1`); err == nil {
		t.Fatalf("expected error for unbalanced braces")
	}
	if _, err := firstJSONObject(`no braces here`); err == nil {
		t.Fatalf("expected error without opening brace")
	}
}
