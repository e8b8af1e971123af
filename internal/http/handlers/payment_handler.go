// README: Payment endpoints: attach gateway order, verify callback.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusride/internal/modules/payment"
	"campusride/internal/types"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) AttachOrder(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	var body struct {
		RideID  string `json:"ride_id"`
		OrderID string `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RideID == "" || body.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ride_id and order_id required"})
		return
	}
	r, err := h.payments.AttachOrder(c.Request.Context(), types.ID(body.RideID), body.OrderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	var body struct {
		RideID    string `json:"ride_id"`
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.RideID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	r, err := h.payments.ConfirmPayment(c.Request.Context(),
		types.ID(body.RideID), body.OrderID, body.PaymentID, body.Signature)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": r})
}
