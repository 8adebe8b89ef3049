package router

import (
	"log"

	"marketpay/config"
	"marketpay/internal/domain"
	"marketpay/internal/handler"
	"marketpay/internal/middleware"
	"marketpay/internal/repository"
	"marketpay/internal/service"
	"marketpay/internal/ws"
	"marketpay/pkg/payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, limiter middleware.Limiter) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		log.Fatalf("validators: %v", err)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	cc := cors.DefaultConfig()
	cc.AllowOrigins = []string{cfg.Server.FrontendBaseURL}
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")
	cc.AllowCredentials = true
	r.Use(cors.New(cc))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Providers
	timeout := cfg.Payment.ProviderTimeout
	chapa := payment.NewChapaProvider(cfg.Payment.Chapa.BaseURL, cfg.Payment.Chapa.CheckoutBaseURL, cfg.Payment.Chapa.SecretKey, cfg.Payment.Chapa.WebhookSecret, timeout)
	telebirr := payment.NewTelebirrProvider(cfg.Payment.Telebirr.BaseURL, cfg.Payment.Telebirr.AppID, cfg.Payment.Telebirr.AppKey, cfg.Payment.Telebirr.MerchantCode, timeout)
	santimpay := payment.NewSantimPayProvider(cfg.Payment.SantimPay.BaseURL, cfg.Payment.SantimPay.TokenURL, cfg.Payment.SantimPay.ClientID, cfg.Payment.SantimPay.ClientSecret, timeout)

	// Services
	orderHub := ws.NewHub()
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Printf("[FCM] Push notifications disabled: failed to init (check service account file)")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc)
	paymentSvc := service.NewPaymentService(db, cfg, chapa, telebirr, santimpay, orderHub, notifSvc)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	orderHandler := handler.NewOrderHandler(paymentSvc)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(paymentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	meHandler := handler.NewMeHandler(userRepo)
	adminHandler := handler.NewAdminHandler(adminRepo, paymentRepo, auditRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	// provider notifications are never rate limited
	limited := middleware.RateLimit(limiter)

	api := r.Group("/api/v1")
	{
		payments := api.Group("/payments")
		{
			payments.POST("/initiate", limited, authMw, paymentHandler.Initiate)
			payments.GET("/status", limited, authMw, paymentHandler.Status)
			payments.POST("/verify", limited, authMw, paymentHandler.Verify)
			payments.POST("/callback/:method", paymentWebhookHandler.Callback)
			payments.POST("/webhook/chapa", paymentWebhookHandler.Chapa)
		}
		api.POST("/orders/:id/cancel", limited, authMw, orderHandler.Cancel)

		merchant := api.Group("/merchant")
		merchant.Use(limited, authMw)
		{
			merchant.POST("/orders/:id/ready", middleware.RequireRole(domain.RoleMerchant), orderHandler.MarkReady)
			merchant.POST("/orders/:id/complete", middleware.RequireRole(domain.RoleMerchant, domain.RoleAdmin), orderHandler.Complete)
		}

		me := api.Group("/me")
		me.Use(limited, authMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.PUT("/fcm-token", meHandler.RegisterFCMToken)
		}

		admin := api.Group("/admin")
		admin.Use(limited, authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/payments", adminHandler.ListPayments)
			admin.GET("/payments/:id/audit", adminHandler.PaymentAudit)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
		}
	}

	r.GET("/ws/orders", limited, ws.UpgradeOrdersWS(&cfg.JWT, orderHub))

	return r
}
