package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rescindhq/rescind/internal/types"
)

type createRequestPayload struct {
	OrderID          string `json:"order_id" binding:"required"`
	Reason           string `json:"reason"`
	ReasonCategory   string `json:"reason_category"`
	Initiator        string `json:"initiator" binding:"required,oneof=customer merchant system"`
	RefundPreference string `json:"refund_preference" binding:"omitempty,oneof=full partial none"`
}

type requestResponse struct {
	RequestID        types.RequestID        `json:"request_id"`
	OrderID          types.OrderID          `json:"order_id"`
	CustomerID       types.CustomerID       `json:"customer_id"`
	OrgID            types.OrgID            `json:"org_id"`
	Reason           string                 `json:"reason"`
	ReasonCategory   types.ReasonCategory   `json:"reason_category"`
	Initiator        types.Initiator        `json:"initiator"`
	RefundPreference types.RefundPreference `json:"refund_preference"`
	Status           types.RequestStatus    `json:"status"`
	RiskScore        *float64               `json:"risk_score,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func toRequestResponse(req types.CancellationRequest) requestResponse {
	return requestResponse{
		RequestID:        req.RequestID,
		OrderID:          req.OrderID,
		CustomerID:       req.CustomerID,
		OrgID:            req.OrgID,
		Reason:           req.Reason,
		ReasonCategory:   req.ReasonCategory,
		Initiator:        req.Initiator,
		RefundPreference: req.RefundPreference,
		Status:           req.Status,
		RiskScore:        req.RiskScore,
		Notes:            req.Notes,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
}

// createRequest opens a cancellation request against an existing order. The
// customer and organization come from the order record, not the payload, so
// a request cannot be filed on someone else's order by mislabeling it.
func (s *Service) createRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	order, err := s.store.GetOrder(c.Request.Context(), types.OrderID(payload.OrderID))
	if err != nil {
		s.writeError(c, err)
		return
	}

	category := types.ReasonCategory(payload.ReasonCategory)
	if category == "" {
		category = types.ReasonOther
	}
	refund := types.RefundPreference(payload.RefundPreference)
	if refund == "" {
		refund = types.RefundFull
	}

	now := time.Now().UTC()
	req := types.CancellationRequest{
		RequestID:        types.NewRequestID(),
		OrderID:          order.OrderID,
		CustomerID:       order.CustomerID,
		OrgID:            order.OrgID,
		Reason:           payload.Reason,
		ReasonCategory:   category,
		Initiator:        types.Initiator(payload.Initiator),
		RefundPreference: refund,
		Status:           types.RequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateRequest(c.Request.Context(), &req); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRequestResponse(req))
}

func (s *Service) getRequest(c *gin.Context) {
	id, err := types.ParseRequestID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	req, err := s.store.GetRequest(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(req))
}

// decideRequest runs the decisioning pipeline for a request. Idempotent:
// repeated calls return the recorded outcome.
func (s *Service) decideRequest(c *gin.Context) {
	id, err := types.ParseRequestID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}

	decision, err := s.engine.ScoreAndDecide(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
