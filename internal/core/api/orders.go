package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rescindhq/rescind/internal/types"
)

type createOrderPayload struct {
	OrderID           string    `json:"order_id" binding:"required"`
	OrgID             string    `json:"org_id" binding:"required"`
	CustomerID        string    `json:"customer_id" binding:"required"`
	Status            string    `json:"status" binding:"required"`
	FulfillmentStatus string    `json:"fulfillment_status" binding:"required"`
	PaymentStatus     string    `json:"payment_status" binding:"required"`
	TotalAmount       string    `json:"total_amount" binding:"required"`
	Currency          string    `json:"currency"`
	PlacedAt          time.Time `json:"placed_at" binding:"required"`
}

type orderResponse struct {
	OrderID           types.OrderID    `json:"order_id"`
	OrgID             types.OrgID      `json:"org_id"`
	CustomerID        types.CustomerID `json:"customer_id"`
	Status            string           `json:"status"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	PaymentStatus     string           `json:"payment_status"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	Currency          string           `json:"currency"`
	PlacedAt          time.Time        `json:"placed_at"`
}

func toOrderResponse(order types.Order) orderResponse {
	return orderResponse{
		OrderID:           order.OrderID,
		OrgID:             order.OrgID,
		CustomerID:        order.CustomerID,
		Status:            order.Status,
		FulfillmentStatus: order.FulfillmentStatus,
		PaymentStatus:     order.PaymentStatus,
		TotalAmount:       order.TotalAmount,
		Currency:          order.Currency,
		PlacedAt:          order.PlacedAt,
	}
}

// createOrder mirrors an order from the host commerce platform. Amounts are
// decimal strings; float payloads are rejected by the string binding.
func (s *Service) createOrder(c *gin.Context) {
	var payload createOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}

	amount, err := decimal.NewFromString(payload.TotalAmount)
	if err != nil {
		badRequest(c, err)
		return
	}

	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}

	order := types.Order{
		OrderID:           types.OrderID(payload.OrderID),
		OrgID:             types.OrgID(payload.OrgID),
		CustomerID:        types.CustomerID(payload.CustomerID),
		Status:            payload.Status,
		FulfillmentStatus: payload.FulfillmentStatus,
		PaymentStatus:     payload.PaymentStatus,
		TotalAmount:       amount,
		Currency:          currency,
		PlacedAt:          payload.PlacedAt.UTC(),
	}
	if err := s.store.CreateOrder(c.Request.Context(), &order); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (s *Service) getOrder(c *gin.Context) {
	order, err := s.store.GetOrder(c.Request.Context(), types.OrderID(c.Param("id")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}
