package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketpay/config"
	"marketpay/internal/auth"
	"marketpay/internal/domain"
	"marketpay/internal/middleware"
	"marketpay/internal/models"
	"marketpay/internal/repository"
	"marketpay/internal/service"
	"marketpay/internal/testutil"
	"marketpay/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

type HandlerSuite struct {
	suite.Suite
	db     *gorm.DB
	cfg    *config.Config
	engine *gin.Engine
}

func TestHandlerSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.Require().NoError(RegisterValidators())
	s.db = testutil.NewDB(s.T())
	s.cfg = &config.Config{
		Server:  config.ServerConfig{APIBaseURL: "http://api.test/api/v1", FrontendBaseURL: "http://shop.test"},
		JWT:     config.JWTConfig{AccessSecret: "handler-secret", AccessExpiry: time.Minute, Issuer: "marketpay"},
		Payment: config.PaymentConfig{Currency: "ETB"},
	}
	svc := service.NewPaymentService(s.db, s.cfg,
		payment.NewChapaProvider("", "https://checkout.test", "", "", time.Second),
		payment.NewTelebirrProvider("", "", "", "", time.Second),
		payment.NewSantimPayProvider("", "", "", "", time.Second),
	)
	payments := NewPaymentHandler(svc)
	orders := NewOrderHandler(svc)
	hooks := NewPaymentWebhookHandler(svc)
	admin := NewAdminHandler(repository.NewAdminRepository(s.db), repository.NewPaymentRepository(s.db), repository.NewAuditLogRepository(s.db))
	me := NewMeHandler(repository.NewUserRepository(s.db))
	authMw := middleware.AuthRequired(&s.cfg.JWT)

	r := gin.New()
	r.POST("/payments/initiate", authMw, payments.Initiate)
	r.GET("/payments/status", authMw, payments.Status)
	r.POST("/payments/verify", authMw, payments.Verify)
	r.POST("/payments/callback/:method", hooks.Callback)
	r.POST("/payments/webhook/chapa", hooks.Chapa)
	r.POST("/orders/:id/cancel", authMw, orders.Cancel)
	r.POST("/merchant/orders/:id/ready", authMw, middleware.RequireRole(domain.RoleMerchant), orders.MarkReady)
	r.POST("/merchant/orders/:id/complete", authMw, middleware.RequireRole(domain.RoleMerchant, domain.RoleAdmin), orders.Complete)
	r.PUT("/me/fcm-token", authMw, me.RegisterFCMToken)
	r.GET("/admin/payments", authMw, middleware.RequireRole(domain.RoleAdmin), admin.ListPayments)
	r.GET("/admin/payments/:id/audit", authMw, middleware.RequireRole(domain.RoleAdmin), admin.PaymentAudit)
	r.GET("/admin/audit-logs", authMw, middleware.RequireRole(domain.RoleAdmin), admin.ListAuditLogs)
	s.engine = r
}

func (s *HandlerSuite) do(method, path string, body interface{}, userID uint, role string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		tok, err := auth.GenerateAccessToken(&s.cfg.JWT, userID, "", role)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestInitiateAndStatus() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)

	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "chapa"}, 1, domain.RoleCustomer)
	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	s.True(gjson.Get(body, "success").Bool())
	paymentID := gjson.Get(body, "paymentId").String()
	s.Equal(paymentID, gjson.Get(body, "tx_ref").String())
	s.Equal("https://checkout.test/mock/"+paymentID, gjson.Get(body, "checkout_url").String())

	w = s.do(http.MethodGet, "/payments/status?orderId="+o.ID, nil, 1, domain.RoleCustomer)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.OrderStatusPending, gjson.Get(w.Body.String(), "orderStatus").String())
	s.Equal(domain.PaymentStatusProcessing, gjson.Get(w.Body.String(), "payment.status").String())

	w = s.do(http.MethodGet, "/payments/status?orderId="+o.ID, nil, 2, domain.RoleCustomer)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestInitiateValidation() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)

	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "paypal"}, 1, domain.RoleCustomer)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(gjson.Get(w.Body.String(), "error").String(), "unsupported payment method")

	w = s.do(http.MethodPost, "/payments/initiate", gin.H{"method": "chapa"}, 1, domain.RoleCustomer)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "chapa"}, 0, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestInitiateConflicts() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", o.ID).Update("status", domain.OrderStatusCancelled).Error)

	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "TELEBIRR"}, 1, domain.RoleCustomer)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *HandlerSuite) TestWebhookAlwaysAcknowledges() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)
	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "chapa"}, 1, domain.RoleCustomer)
	paymentID := gjson.Get(w.Body.String(), "paymentId").String()

	for _, raw := range [][]byte{
		[]byte("garbage"),
		[]byte(`{"tx_ref":"unknown","status":"success"}`),
		[]byte(`{"tx_ref":"` + paymentID + `","status":"success","reference":"R1"}`),
		[]byte(`{"tx_ref":"` + paymentID + `","status":"success","reference":"R1"}`),
	} {
		w = s.do(http.MethodPost, "/payments/webhook/chapa", raw, 0, "")
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"received":true}`, w.Body.String())
	}

	w = s.do(http.MethodGet, "/payments/status?orderId="+o.ID, nil, 1, domain.RoleCustomer)
	s.Equal(domain.OrderStatusPaid, gjson.Get(w.Body.String(), "orderStatus").String())
	s.Equal(domain.PaymentStatusCompleted, gjson.Get(w.Body.String(), "payment.status").String())
}

func (s *HandlerSuite) TestCallbackAndMerchantFlow() {
	o := testutil.SeedShopOrder(s.T(), s.db, 1, 9, "80")
	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "santimpay"}, 1, domain.RoleCustomer)
	s.Require().Equal(http.StatusOK, w.Code)
	ref := gjson.Get(w.Body.String(), "referenceId").String()
	s.NotEmpty(gjson.Get(w.Body.String(), "paymentUrl").String())

	w = s.do(http.MethodPost, "/payments/callback/santimpay", gin.H{"referenceId": ref, "status": "COMPLETED", "txnId": "SP-1"}, 0, "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"received":true}`, w.Body.String())

	w = s.do(http.MethodPost, "/merchant/orders/"+o.ID+"/ready", nil, 1, domain.RoleCustomer)
	s.Equal(http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/merchant/orders/"+o.ID+"/complete", nil, 9, domain.RoleMerchant)
	s.Equal(http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, "/merchant/orders/"+o.ID+"/ready", nil, 9, domain.RoleMerchant)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.OrderStatusReadyForPickup, gjson.Get(w.Body.String(), "order.status").String())
	w = s.do(http.MethodPost, "/merchant/orders/"+o.ID+"/complete", nil, 9, domain.RoleMerchant)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.OrderStatusCompleted, gjson.Get(w.Body.String(), "order.status").String())
	s.Equal("SP-1", gjson.Get(w.Body.String(), "order.payment_ref").String())
}

func (s *HandlerSuite) TestVerifyAndCancel() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)
	w := s.do(http.MethodPost, "/payments/verify", gin.H{"orderId": o.ID}, 1, domain.RoleCustomer)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/orders/"+o.ID+"/cancel", nil, 2, domain.RoleCustomer)
	s.Equal(http.StatusNotFound, w.Code)
	w = s.do(http.MethodPost, "/orders/"+o.ID+"/cancel", nil, 1, domain.RoleCustomer)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.OrderStatusCancelled, gjson.Get(w.Body.String(), "order.status").String())
	w = s.do(http.MethodPost, "/orders/"+o.ID+"/cancel", nil, 1, domain.RoleCustomer)
	s.Equal(http.StatusConflict, w.Code)

	other := testutil.SeedTicketOrder(s.T(), s.db, 1, "200", 1)
	s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": other.ID, "method": "chapa"}, 1, domain.RoleCustomer)
	w = s.do(http.MethodPost, "/payments/verify", gin.H{"orderId": other.ID}, 1, domain.RoleCustomer)
	s.Equal(http.StatusOK, w.Code)
	s.True(gjson.Get(w.Body.String(), "verified").Bool())
	s.Equal(domain.OrderStatusPaid, gjson.Get(w.Body.String(), "order.status").String())
}

func (s *HandlerSuite) TestAdminAuditTrail() {
	o := testutil.SeedTicketOrder(s.T(), s.db, 1, "500", 1)
	w := s.do(http.MethodPost, "/payments/initiate", gin.H{"orderId": o.ID, "method": "chapa"}, 1, domain.RoleCustomer)
	paymentID := gjson.Get(w.Body.String(), "paymentId").String()
	for i := 0; i < 2; i++ {
		s.do(http.MethodPost, "/payments/webhook/chapa", []byte(`{"tx_ref":"`+paymentID+`","status":"success"}`), 0, "")
	}
	s.do(http.MethodPost, "/payments/webhook/chapa", []byte(`{"tx_ref":"nope","status":"success"}`), 0, "")

	w = s.do(http.MethodGet, "/admin/payments/"+paymentID+"/audit", nil, 1, domain.RoleCustomer)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/admin/payments/"+paymentID+"/audit", nil, 99, domain.RoleAdmin)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.PaymentStatusCompleted, gjson.Get(w.Body.String(), "payment.status").String())
	s.EqualValues(2, gjson.Get(w.Body.String(), "audit.#").Int())

	w = s.do(http.MethodGet, "/admin/audit-logs?outcome="+domain.OutcomeUnknownReference, nil, 99, domain.RoleAdmin)
	s.Equal(http.StatusOK, w.Code)
	s.EqualValues(1, gjson.Get(w.Body.String(), "total").Int())

	w = s.do(http.MethodGet, "/admin/payments?status=completed", nil, 99, domain.RoleAdmin)
	s.EqualValues(1, gjson.Get(w.Body.String(), "total").Int())

	w = s.do(http.MethodGet, "/admin/payments/missing/audit", nil, 99, domain.RoleAdmin)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestRegisterFCMToken() {
	testutil.SeedUser(s.T(), s.db, 5, domain.RoleCustomer)

	w := s.do(http.MethodPut, "/me/fcm-token", gin.H{"token": "device-1"}, 5, domain.RoleCustomer)
	s.Equal(http.StatusOK, w.Code)
	var u models.User
	s.Require().NoError(s.db.First(&u, 5).Error)
	s.Equal("device-1", u.FCMToken)

	w = s.do(http.MethodPut, "/me/fcm-token", gin.H{}, 5, domain.RoleCustomer)
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPut, "/me/fcm-token", gin.H{"token": "x"}, 6, domain.RoleCustomer)
	s.Equal(http.StatusNotFound, w.Code)
}
