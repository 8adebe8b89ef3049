package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketpay/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	adminRepo   *repository.AdminRepository
	paymentRepo *repository.PaymentRepository
	auditRepo   *repository.AuditLogRepository
}

func NewAdminHandler(
	adminRepo *repository.AdminRepository,
	paymentRepo *repository.PaymentRepository,
	auditRepo *repository.AuditLogRepository,
) *AdminHandler {
	return &AdminHandler{
		adminRepo:   adminRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
	}
}

// ListPayments handles GET /admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.adminRepo.ListPayments(strings.ToUpper(c.Query("status")), strings.ToUpper(c.Query("method")), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// PaymentAudit handles GET /admin/payments/:id/audit: the payment plus every
// reconciliation attempt recorded against it.
func (h *AdminHandler) PaymentAudit(c *gin.Context) {
	p, err := h.paymentRepo.GetByID(c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment"})
		return
	}
	entries, err := h.auditRepo.ListByResource(p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p, "audit": entries})
}

// ListAuditLogs handles GET /admin/audit-logs?action=&outcome=.
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.adminRepo.ListAuditLogs(c.Query("action"), c.Query("outcome"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
