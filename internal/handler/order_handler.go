package handler

import (
	"net/http"

	"marketpay/internal/middleware"
	"marketpay/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	svc *service.PaymentService
}

func NewOrderHandler(svc *service.PaymentService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	o, err := h.svc.Cancel(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// MarkReady is called by the merchant when a paid shop order can be collected.
func (h *OrderHandler) MarkReady(c *gin.Context) {
	o, err := h.svc.MarkReadyForPickup(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *OrderHandler) Complete(c *gin.Context) {
	actor := service.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
	o, err := h.svc.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
