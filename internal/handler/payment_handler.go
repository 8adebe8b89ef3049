package handler

import (
	"errors"
	"log"
	"net/http"

	"marketpay/internal/middleware"
	"marketpay/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type initiateReq struct {
	OrderID string `json:"orderId" binding:"required,max=36"`
	Method  string `json:"method" binding:"required,paymethod"`
}

type verifyReq struct {
	OrderID string `json:"orderId" binding:"required,max=36"`
}

// Initiate starts payment for one of the caller's pending orders.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	res, err := h.svc.Initiate(c.Request.Context(), middleware.GetUserID(c), req.OrderID, req.Method)
	if errors.Is(err, service.ErrProviderUnavailable) {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Status(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId required"})
		return
	}
	view, err := h.svc.GetStatus(c.Request.Context(), middleware.GetUserID(c), orderID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Verify asks the provider for the authoritative payment state.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), middleware.GetUserID(c), req.OrderID, requestMeta(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeServiceError maps service sentinels to HTTP statuses. Anything else is a 500
// and is logged rather than echoed.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnsupportedMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrProviderUnavailable.Error()})
	default:
		log.Printf("[PAYMENT] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
