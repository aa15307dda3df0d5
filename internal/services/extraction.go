package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/waypointcpa/taskpool-backend/internal/clients/openai"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

// ExtractedTask is one candidate task parsed from the model's response.
type ExtractedTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Priority       string  `json:"priority"`
	ActionTypeCode string  `json:"action_type_code"`
	Confidence     float64 `json:"confidence"`
}

// ClientHint is the model's guess at who the sender is, fed into the matcher
// as extra search signals.
type ClientHint struct {
	Names     []string `json:"names"`
	Phones    []string `json:"phones"`
	Companies []string `json:"companies"`
}

type ExtractionResult struct {
	Tasks      []ExtractedTask `json:"tasks"`
	ClientHint ClientHint      `json:"client_hint"`
	Summary    string          `json:"summary"`
}

// Extractor is the narrow seam around the LLM so the pipeline can run against
// a deterministic stub in tests. Errors propagate: extraction is all or
// nothing per invocation and the caller owns the fallback.
type Extractor interface {
	ExtractTasks(ctx context.Context, content string, actionTypes []*types.ActionType) (*ExtractionResult, error)
}

type extractionService struct {
	log *logger.Logger
	llm openai.Client
}

func NewExtractionService(log *logger.Logger, llm openai.Client) Extractor {
	serviceLog := log.With("service", "ExtractionService")
	return &extractionService{log: serviceLog, llm: llm}
}

const extractionSystemPrompt = `You are an assistant for a CPA firm's office management system.
Given a message from a client, extract the discrete work items it implies.
Respond with exactly one JSON object of the shape:
{"tasks":[{"title":string,"description":string,"priority":"low"|"medium"|"high"|"urgent","action_type_code":string,"confidence":number}],"client_hint":{"names":[string],"phones":[string],"companies":[string]},"summary":string}
Each confidence is your certainty in [0,1] that the task is genuinely requested.
Use only action_type_code values from the provided list. Do not invent codes.`

func (es *extractionService) ExtractTasks(ctx context.Context, content string, actionTypes []*types.ActionType) (*ExtractionResult, error) {
	if strings.TrimSpace(content) == "" {
		return &ExtractionResult{}, nil
	}

	known := make(map[string]struct{}, len(actionTypes))
	var vocab strings.Builder
	for _, at := range actionTypes {
		if at == nil || strings.TrimSpace(at.Code) == "" {
			continue
		}
		known[at.Code] = struct{}{}
		fmt.Fprintf(&vocab, "- %s: %s\n", at.Code, at.Label)
	}

	user := fmt.Sprintf("Allowed action types:\n%s\nMessage:\n%s", vocab.String(), content)

	raw, err := es.llm.GenerateJSON(ctx, extractionSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("llm extraction call: %w", err)
	}

	return es.parseResponse(raw, known)
}

// parseResponse defensively locates the first {...} block in the model output
// and decodes it. Tasks referencing unknown action type codes are dropped with
// a warning, not treated as a parse failure.
func (es *extractionService) parseResponse(raw string, known map[string]struct{}) (*ExtractionResult, error) {
	block, err := firstJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("llm response had no JSON object: %w", err)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(block), &result); err != nil {
		return nil, fmt.Errorf("llm response JSON decode: %w", err)
	}

	kept := result.Tasks[:0]
	for _, task := range result.Tasks {
		code := strings.TrimSpace(task.ActionTypeCode)
		if code != "" {
			if _, ok := known[code]; !ok {
				es.log.Warn("Dropping extracted task with unknown action type", "action_type_code", code, "title", task.Title)
				continue
			}
		}
		if strings.TrimSpace(task.Title) == "" {
			es.log.Warn("Dropping extracted task with empty title")
			continue
		}
		if task.Confidence < 0 {
			task.Confidence = 0
		}
		if task.Confidence > 1 {
			task.Confidence = 1
		}
		if !types.ValidTaskPriority(task.Priority) {
			task.Priority = ""
		}
		kept = append(kept, task)
	}
	result.Tasks = kept
	return &result, nil
}

// firstJSONObject scans for the first balanced {...} block, respecting string
// literals and escapes.
func firstJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", fmt.Errorf("no opening brace")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced braces")
}
