package handler

import (
	"io"
	"log"
	"net/http"

	"marketpay/internal/service"

	"github.com/gin-gonic/gin"
)

// maxNotificationBody bounds provider payloads read into memory.
const maxNotificationBody = 64 << 10

// PaymentWebhookHandler receives unauthenticated provider notifications. Providers
// always get 200 {"received": true}; rejected notifications are audited by the service.
type PaymentWebhookHandler struct {
	svc *service.PaymentService
}

func NewPaymentWebhookHandler(svc *service.PaymentService) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc}
}

// Callback handles POST /payments/callback/:method for Telebirr and SantimPay.
func (h *PaymentWebhookHandler) Callback(c *gin.Context) {
	method := c.Param("method")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBody))
	if err != nil {
		log.Printf("[WEBHOOK] %s callback read error: %v", method, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	res, err := h.svc.ReconcileCallback(c.Request.Context(), method, body, requestMeta(c))
	if err != nil {
		log.Printf("[WEBHOOK] %s callback error: %v", method, err)
	} else if res.Err != nil {
		log.Printf("[WEBHOOK] %s callback rejected: %v", method, res.Err)
	} else if !res.Success {
		log.Printf("[WEBHOOK] %s callback rejected: %s", method, res.Outcome)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Chapa handles POST /payments/webhook/chapa.
func (h *PaymentWebhookHandler) Chapa(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBody))
	if err != nil {
		log.Printf("[WEBHOOK] chapa read error: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	sig := c.GetHeader("Chapa-Signature")
	if sig == "" {
		sig = c.GetHeader("x-chapa-signature")
	}
	res, err := h.svc.ReconcileWebhook(c.Request.Context(), body, sig, requestMeta(c))
	if err != nil {
		log.Printf("[WEBHOOK] chapa error: %v", err)
	} else if res.Err != nil {
		log.Printf("[WEBHOOK] chapa rejected: %v", res.Err)
	} else if !res.Success {
		log.Printf("[WEBHOOK] chapa rejected: %s", res.Outcome)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
