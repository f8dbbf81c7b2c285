package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rescindhq/rescind/internal/types"
)

type reviewerActionPayload struct {
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes"`
}

type infoRequestPayload struct {
	ReviewerID string `json:"reviewer_id"`
	Message    string `json:"message"`
}

type customerResponsePayload struct {
	Message string `json:"message"`
}

type queueItemResponse struct {
	QueueItemID     types.QueueItemID     `json:"queue_item_id"`
	RequestID       types.RequestID       `json:"request_id"`
	OrderID         types.OrderID         `json:"order_id"`
	OrgID           types.OrgID           `json:"org_id"`
	RiskLevel       types.RiskLevel       `json:"risk_level"`
	RiskIndicators  types.RiskIndicators  `json:"risk_indicators"`
	CustomerHistory types.CustomerHistory `json:"customer_history"`
	ReviewStatus    types.ReviewStatus    `json:"review_status"`
	ReviewerID      string                `json:"reviewer_id,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	ReviewedAt      *time.Time            `json:"reviewed_at,omitempty"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func toQueueItemResponse(item types.ReviewQueueItem) queueItemResponse {
	return queueItemResponse{
		QueueItemID:     item.QueueItemID,
		RequestID:       item.RequestID,
		OrderID:         item.OrderID,
		OrgID:           item.OrgID,
		RiskLevel:       item.RiskLevel,
		RiskIndicators:  item.RiskIndicators,
		CustomerHistory: item.CustomerHistory,
		ReviewStatus:    item.ReviewStatus,
		ReviewerID:      item.ReviewerID,
		Notes:           item.Notes,
		ReviewedAt:      item.ReviewedAt,
		Version:         item.Version,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

// listQueueItems returns an organization's queue, oldest first. Status
// defaults to pending (the working view).
func (s *Service) listQueueItems(c *gin.Context) {
	org := types.OrgID(c.Query("org_id"))
	if org == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}

	status := types.ReviewStatus(c.DefaultQuery("status", string(types.ReviewPending)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	items, err := s.store.ListQueueItems(c.Request.Context(), org, status, s.pageLimit(limit))
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]queueItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toQueueItemResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (s *Service) getQueueItem(c *gin.Context) {
	id, err := types.ParseQueueItemID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	item, err := s.store.GetQueueItem(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueueItemResponse(item))
}

// itemAction runs a reviewer transition and returns the item's new state.
func (s *Service) itemAction(c *gin.Context, run func(id types.QueueItemID) error) {
	id, err := types.ParseQueueItemID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := run(id); err != nil {
		s.writeError(c, err)
		return
	}

	item, err := s.store.GetQueueItem(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueueItemResponse(item))
}

func (s *Service) approveItem(c *gin.Context) {
	var payload reviewerActionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	s.itemAction(c, func(id types.QueueItemID) error {
		return s.engine.Approve(c.Request.Context(), id, payload.ReviewerID, payload.Notes)
	})
}

func (s *Service) denyItem(c *gin.Context) {
	var payload reviewerActionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	s.itemAction(c, func(id types.QueueItemID) error {
		return s.engine.Deny(c.Request.Context(), id, payload.ReviewerID, payload.Notes)
	})
}

func (s *Service) requestInfo(c *gin.Context) {
	var payload infoRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	s.itemAction(c, func(id types.QueueItemID) error {
		return s.engine.RequestInfo(c.Request.Context(), id, payload.ReviewerID, payload.Message)
	})
}

func (s *Service) escalateItem(c *gin.Context) {
	var payload reviewerActionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	s.itemAction(c, func(id types.QueueItemID) error {
		return s.engine.Escalate(c.Request.Context(), id, payload.ReviewerID, payload.Notes)
	})
}

func (s *Service) respondToInfo(c *gin.Context) {
	var payload customerResponsePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	s.itemAction(c, func(id types.QueueItemID) error {
		return s.engine.RespondToInfo(c.Request.Context(), id, payload.Message)
	})
}
