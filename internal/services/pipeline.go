package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/config"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

// TaskOutcome reports one created (or failed) task from a pipeline run.
// Persistence failures are carried per task so siblings from the same item
// still land.
type TaskOutcome struct {
	Task   *types.Task
	Source string
	Err    error
}

type ProcessResult struct {
	Item      *types.InboundItem
	Duplicate bool
	Match     *MatchResult
	RuleID    *uuid.UUID
	Outcomes  []TaskOutcome
}

// PipelineService turns one inbound item into zero or more persisted tasks
// with provenance, assignment and client linkage.
type PipelineService interface {
	ProcessItem(ctx context.Context, item *types.InboundItem) (*ProcessResult, error)
	ProcessBatch(ctx context.Context, items []*types.InboundItem) ([]*ProcessResult, error)
}

type pipelineService struct {
	db             *gorm.DB
	log            *logger.Logger
	cfg            config.PipelineConfig
	itemRepo       repos.InboundItemRepo
	taskRepo       repos.TaskRepo
	matchRepo      repos.ClientMatchRepo
	actionTypeRepo repos.ActionTypeRepo
	activityRepo   repos.ActivityLogRepo
	matcher        ClientMatcherService
	ruleEngine     RuleEngineService
	extractor      Extractor
	notifier       NotifierService
}

func NewPipelineService(
	db *gorm.DB,
	log *logger.Logger,
	cfg config.PipelineConfig,
	itemRepo repos.InboundItemRepo,
	taskRepo repos.TaskRepo,
	matchRepo repos.ClientMatchRepo,
	actionTypeRepo repos.ActionTypeRepo,
	activityRepo repos.ActivityLogRepo,
	matcher ClientMatcherService,
	ruleEngine RuleEngineService,
	extractor Extractor,
	notifier NotifierService,
) PipelineService {
	serviceLog := log.With("service", "PipelineService")
	return &pipelineService{
		db:             db,
		log:            serviceLog,
		cfg:            cfg,
		itemRepo:       itemRepo,
		taskRepo:       taskRepo,
		matchRepo:      matchRepo,
		actionTypeRepo: actionTypeRepo,
		activityRepo:   activityRepo,
		matcher:        matcher,
		ruleEngine:     ruleEngine,
		extractor:      extractor,
		notifier:       notifier,
	}
}

var pipelineTracer = otel.Tracer("github.com/waypointcpa/taskpool-backend/internal/services/pipeline")

func (ps *pipelineService) ProcessItem(ctx context.Context, item *types.InboundItem) (*ProcessResult, error) {
	if item == nil || strings.TrimSpace(item.SourceID) == "" || strings.TrimSpace(item.SourceType) == "" {
		return nil, fmt.Errorf("%w: inbound item requires source_type and source_id", pkgerrors.ErrInvalidArgument)
	}

	ctx, span := pipelineTracer.Start(ctx, "pipeline.ProcessItem")
	span.SetAttributes(
		attribute.String("source_type", item.SourceType),
		attribute.String("source_id", item.SourceID),
	)
	defer span.End()

	// Idempotency: the same source id never spawns a second batch of tasks.
	if existing, err := ps.itemRepo.GetBySource(ctx, nil, item.SourceType, item.SourceID); err == nil && existing != nil {
		ps.log.Info("Inbound item already processed, skipping", "source_type", item.SourceType, "source_id", item.SourceID)
		return &ProcessResult{Item: existing, Duplicate: true}, nil
	}

	stored, err := ps.itemRepo.Create(ctx, nil, item)
	if err != nil {
		// Two concurrent ingests of the same source can both pass the lookup
		// above; the unique index decides the winner and the loser returns
		// the already stored row.
		if errors.Is(err, pkgerrors.ErrDuplicateSource) {
			if existing, gerr := ps.itemRepo.GetBySource(ctx, nil, item.SourceType, item.SourceID); gerr == nil {
				return &ProcessResult{Item: existing, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("persist inbound item: %w", err)
	}
	result := &ProcessResult{Item: stored}

	// Step 1: AI extraction, where enabled for the source type. A failed or
	// unparseable extraction degrades to an empty task list; the rule-driven
	// path below still runs.
	extraction := &ExtractionResult{}
	if ps.cfg.ExtractionEnabledFor(stored.SourceType) && ps.extractor != nil {
		actionTypes, atErr := ps.actionTypeRepo.ListActive(ctx, nil)
		if atErr != nil {
			ps.log.Warn("Action type lookup failed, extracting without vocabulary", "error", atErr)
		}
		extracted, exErr := ps.extractor.ExtractTasks(ctx, extractionContent(stored), actionTypes)
		if exErr != nil {
			ps.log.Warn("AI extraction failed, continuing without it",
				"source_type", stored.SourceType, "source_id", stored.SourceID, "error", exErr)
		} else if extracted != nil {
			extraction = extracted
		}
	}

	// Step 2: client matching on sender identity plus extraction hints.
	matchInput := MatchInput{
		SenderEmail:        stored.SenderEmail,
		SenderName:         stored.SenderName,
		ExtractedNames:     extraction.ClientHint.Names,
		ExtractedPhones:    append([]string{stored.SenderPhone}, extraction.ClientHint.Phones...),
		ExtractedCompanies: append([]string{stored.SenderCompany}, extraction.ClientHint.Companies...),
	}
	match, err := ps.matcher.MatchClientToItem(ctx, matchInput)
	if err != nil {
		ps.log.Warn("Client matching failed, continuing unlinked", "source_id", stored.SourceID, "error", err)
		match = &MatchResult{}
	}
	result.Match = match
	ps.persistMatch(ctx, stored, match)

	// Step 3: rule evaluation against the item's normalized fields. The
	// fields are constant across the item's tasks, so one evaluation decides
	// the action for all of them.
	fields := stored.NormalizedFields()
	ruleMatch, err := ps.ruleEngine.Evaluate(ctx, fields)
	if err != nil {
		ps.log.Warn("Rule evaluation failed, falling back to defaults", "source_id", stored.SourceID, "error", err)
		ruleMatch = nil
	}
	if ruleMatch != nil {
		id := ruleMatch.Rule.ID
		result.RuleID = &id
	}

	// Step 4: build and persist tasks.
	specs := taskSpecs(stored, extraction, ruleMatch, ps.cfg)
	var persisted int
	for _, spec := range specs {
		task := ps.buildTask(stored, spec, match, ruleMatch)
		created, perr := ps.taskRepo.Create(ctx, nil, task)
		if perr != nil {
			ps.log.Error("Task persistence failed, continuing with siblings",
				"source_id", stored.SourceID, "title", task.Title, "error", perr)
			result.Outcomes = append(result.Outcomes, TaskOutcome{Task: task, Source: spec.source, Err: perr})
			continue
		}
		persisted++
		result.Outcomes = append(result.Outcomes, TaskOutcome{Task: created, Source: spec.source})
		ps.recordActivity(ctx, created, spec, match, ruleMatch)
		ps.notifier.TaskCreated(ctx, created, nil)
		if created.AssigneeID != nil {
			ps.notifier.TaskAssigned(ctx, created, nil)
		}
	}

	// Step 5: usage counters, only once the rule's suggestion actually landed.
	if ruleMatch != nil && persisted > 0 {
		if err := ps.ruleEngine.RecordOutcome(ctx, ruleMatch.Rule.ID, true, false); err != nil {
			ps.log.Warn("Rule outcome recording failed", "rule_id", ruleMatch.Rule.ID, "error", err)
		}
	}

	return result, nil
}

// ProcessBatch runs independent items concurrently under a bounded errgroup.
// Per-item failures stay in their result slot; only context cancellation
// aborts the batch.
func (ps *pipelineService) ProcessBatch(ctx context.Context, items []*types.InboundItem) ([]*ProcessResult, error) {
	results := make([]*ProcessResult, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.cfg.Batch.MaxConcurrent)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := ps.ProcessItem(gctx, item)
			if err != nil {
				ps.log.Warn("Batch item failed", "index", i, "error", err)
				res = &ProcessResult{Item: item, Outcomes: []TaskOutcome{{Err: err}}}
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

type taskSpec struct {
	title          string
	description    string
	priority       string
	actionTypeCode string
	confidence     *float64
	raw            []byte
	source         string
}

// taskSpecs decides what tasks an item produces: the extracted ones, or a
// single synthesized default when extraction produced nothing but the item's
// category (or a matched auto-create rule) requires a task.
func taskSpecs(item *types.InboundItem, extraction *ExtractionResult, ruleMatch *RuleMatch, cfg config.PipelineConfig) []taskSpec {
	var specs []taskSpec
	for _, ex := range extraction.Tasks {
		conf := ex.Confidence
		raw, _ := json.Marshal(ex)
		specs = append(specs, taskSpec{
			title:          ex.Title,
			description:    ex.Description,
			priority:       ex.Priority,
			actionTypeCode: ex.ActionTypeCode,
			confidence:     &conf,
			raw:            raw,
			source:         types.ActivitySourceAIExtraction,
		})
	}
	if len(specs) > 0 {
		return specs
	}

	needsTask := cfg.RequiresTask(item.Category)
	if ruleMatch != nil && ruleMatch.Action.AutoCreateTask {
		needsTask = true
	}
	if !needsTask {
		return nil
	}

	title := strings.TrimSpace(item.Subject)
	if title == "" {
		title = fmt.Sprintf("Follow up on %s from %s", item.SourceType, senderLabel(item))
	}
	return []taskSpec{{
		title:       title,
		description: summarizeBody(item.Body),
		source:      types.ActivitySourceRuleEngine,
	}}
}

func senderLabel(item *types.InboundItem) string {
	if item.SenderName != "" {
		return item.SenderName
	}
	if item.SenderEmail != "" {
		return item.SenderEmail
	}
	if item.SenderPhone != "" {
		return item.SenderPhone
	}
	return "unknown sender"
}

func summarizeBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 500 {
		return body[:500] + "..."
	}
	return body
}

// buildTask applies the precedence rules: rule action priority over extraction
// priority over medium; rule assignee or unset; client linked only above the
// acceptance threshold.
func (ps *pipelineService) buildTask(item *types.InboundItem, spec taskSpec, match *MatchResult, ruleMatch *RuleMatch) *types.Task {
	task := &types.Task{
		Title:          spec.title,
		Description:    spec.description,
		Status:         types.TaskStatusPending,
		Priority:       types.TaskPriorityMedium,
		SourceType:     item.SourceType,
		SourceID:       item.SourceID,
		ActionTypeCode: spec.actionTypeCode,
		AIConfidence:   spec.confidence,
	}
	if spec.raw != nil {
		task.AIRawData = spec.raw
	}
	if types.ValidTaskPriority(spec.priority) {
		task.Priority = spec.priority
	}
	if ruleMatch != nil {
		if types.ValidTaskPriority(ruleMatch.Action.SetPriority) {
			task.Priority = ruleMatch.Action.SetPriority
		}
		if ruleMatch.Action.AssignToUserID != nil {
			id := *ruleMatch.Action.AssignToUserID
			task.AssigneeID = &id
		}
		task.Column = ruleMatch.Action.AssignToColumn
		if len(ruleMatch.Action.AddTags) > 0 {
			if tags, err := json.Marshal(ruleMatch.Action.AddTags); err == nil {
				task.Tags = tags
			}
		}
	}
	if match != nil && match.Primary != nil && match.Primary.Confidence >= ps.cfg.Matching.AcceptThreshold {
		id := match.Primary.ClientID
		task.ClientID = &id
	}
	return task
}

func (ps *pipelineService) persistMatch(ctx context.Context, item *types.InboundItem, match *MatchResult) {
	row := &types.ClientMatch{InboundItemID: item.ID}
	if match.Primary != nil {
		id := match.Primary.ClientID
		row.ClientID = &id
		row.MatchType = match.Primary.MatchType
		row.Confidence = match.Primary.Confidence
		row.Reason = match.Primary.Reason
	}
	if len(match.Alternatives) > 0 {
		altIDs := make([]string, 0, len(match.Alternatives))
		for _, alt := range match.Alternatives {
			altIDs = append(altIDs, alt.ClientID.String())
		}
		if raw, err := json.Marshal(altIDs); err == nil {
			row.Alternatives = raw
		}
	}
	if len(match.SearchTerms) > 0 {
		if raw, err := json.Marshal(match.SearchTerms); err == nil {
			row.SearchTerms = raw
		}
	}
	if _, err := ps.matchRepo.Upsert(ctx, nil, row); err != nil {
		ps.log.Warn("Client match persistence failed", "inbound_item_id", item.ID, "error", err)
	}
}

func (ps *pipelineService) recordActivity(ctx context.Context, task *types.Task, spec taskSpec, match *MatchResult, ruleMatch *RuleMatch) {
	meta := map[string]interface{}{}
	reason := "created from " + spec.source
	if ruleMatch != nil {
		meta["rule_id"] = ruleMatch.Rule.ID.String()
		meta["rule_name"] = ruleMatch.Rule.Name
	}
	if match != nil && match.Primary != nil {
		meta["match_type"] = match.Primary.MatchType
		meta["match_confidence"] = match.Primary.Confidence
	}
	var raw []byte
	if len(meta) > 0 {
		raw, _ = json.Marshal(meta)
	}
	entry := &types.ActivityLog{
		TaskID: task.ID,
		Action: "created",
		Source: spec.source,
		Reason: reason,
	}
	if raw != nil {
		entry.Meta = raw
	}
	if _, err := ps.activityRepo.Create(ctx, nil, entry); err != nil {
		ps.log.Warn("Activity log write failed", "task_id", task.ID, "error", err)
	}
}

func extractionContent(item *types.InboundItem) string {
	var b strings.Builder
	if item.Subject != "" {
		b.WriteString("Subject: ")
		b.WriteString(item.Subject)
		b.WriteString("\n\n")
	}
	b.WriteString(item.Body)
	return b.String()
}
