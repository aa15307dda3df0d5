package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/services"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type InboundHandler struct {
	pipeline services.PipelineService
}

func NewInboundHandler(pipeline services.PipelineService) *InboundHandler {
	return &InboundHandler{pipeline: pipeline}
}

type inboundItemRequest struct {
	SourceType    string                 `json:"source_type" binding:"required"`
	SourceID      string                 `json:"source_id" binding:"required"`
	SenderName    string                 `json:"sender_name"`
	SenderEmail   string                 `json:"sender_email"`
	SenderPhone   string                 `json:"sender_phone"`
	SenderCompany string                 `json:"sender_company"`
	Subject       string                 `json:"subject"`
	Body          string                 `json:"body"`
	Category      string                 `json:"category"`
	Payload       map[string]interface{} `json:"payload"`
	ReceivedAt    *time.Time             `json:"received_at"`
}

func (req *inboundItemRequest) toItem() *types.InboundItem {
	item := &types.InboundItem{
		SourceType:    req.SourceType,
		SourceID:      req.SourceID,
		SenderName:    req.SenderName,
		SenderEmail:   req.SenderEmail,
		SenderPhone:   req.SenderPhone,
		SenderCompany: req.SenderCompany,
		Subject:       req.Subject,
		Body:          req.Body,
		Category:      req.Category,
		ReceivedAt:    time.Now().UTC(),
	}
	if req.ReceivedAt != nil {
		item.ReceivedAt = *req.ReceivedAt
	}
	if len(req.Payload) > 0 {
		if raw, err := json.Marshal(req.Payload); err == nil {
			item.Payload = raw
		}
	}
	return item
}

type outcomeView struct {
	Task   *types.Task `json:"task"`
	Source string      `json:"source"`
	Error  string      `json:"error,omitempty"`
}

func resultView(res *services.ProcessResult) gin.H {
	outcomes := make([]outcomeView, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		view := outcomeView{Task: o.Task, Source: o.Source}
		if o.Err != nil {
			view.Error = o.Err.Error()
		}
		outcomes = append(outcomes, view)
	}
	view := gin.H{
		"item":      res.Item,
		"duplicate": res.Duplicate,
		"tasks":     outcomes,
	}
	if res.RuleID != nil {
		view["rule_id"] = res.RuleID
	}
	if res.Match != nil && res.Match.Primary != nil {
		view["match"] = res.Match.Primary
	}
	return view
}

// Ingest processes a single inbound item. Replays of the same source_type +
// source_id come back 200 with duplicate=true rather than erroring.
func (ih *InboundHandler) Ingest(c *gin.Context) {
	var req inboundItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := ih.pipeline.ProcessItem(c.Request.Context(), req.toItem())
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resultView(res))
}

type inboundBatchRequest struct {
	Items []inboundItemRequest `json:"items" binding:"required"`
}

func (ih *InboundHandler) IngestBatch(c *gin.Context) {
	var req inboundBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items must not be empty"})
		return
	}
	items := make([]*types.InboundItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		items = append(items, itemReq.toItem())
	}
	results, err := ih.pipeline.ProcessBatch(c.Request.Context(), items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]gin.H, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		views = append(views, resultView(res))
	}
	c.JSON(http.StatusOK, gin.H{"results": views})
}
