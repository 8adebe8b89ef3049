package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"marketpay/config"
	"marketpay/internal/domain"
	"marketpay/internal/models"
	"marketpay/internal/repository"
	"marketpay/pkg/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChapaGateway is the hosted-checkout provider: webhooks are signed and
// the status of a tx_ref can be polled.
type ChapaGateway interface {
	payment.Provider
	payment.WebhookVerifier
	payment.StatusChecker
	SignsWebhooks() bool
}

// CallbackGateway is a provider that reports outcomes through the callback URL.
type CallbackGateway interface {
	payment.Provider
	payment.CallbackVerifier
}

// PaymentService drives orders through payment initiation and reconciliation.
// It is the only writer of Order.Status and Payment.Status.
type PaymentService struct {
	db        *gorm.DB
	cfg       *config.Config
	orders    *repository.OrderRepository
	payments  *repository.PaymentRepository
	audits    *repository.AuditLogRepository
	users     *repository.UserRepository
	chapa     ChapaGateway
	providers map[string]payment.Provider
	callbacks map[string]payment.CallbackVerifier
	listeners []SettlementListener
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, chapa ChapaGateway, telebirr, santimpay CallbackGateway, listeners ...SettlementListener) *PaymentService {
	return &PaymentService{
		db:       db,
		cfg:      cfg,
		orders:   repository.NewOrderRepository(db),
		payments: repository.NewPaymentRepository(db),
		audits:   repository.NewAuditLogRepository(db),
		users:    repository.NewUserRepository(db),
		chapa:    chapa,
		providers: map[string]payment.Provider{
			domain.MethodChapa:     chapa,
			domain.MethodTelebirr:  telebirr,
			domain.MethodSantimPay: santimpay,
		},
		callbacks: map[string]payment.CallbackVerifier{
			domain.MethodTelebirr:  telebirr,
			domain.MethodSantimPay: santimpay,
		},
		listeners: listeners,
	}
}

// InitiateResult is the initiation response. Provider-specific fields are set
// according to the method.
type InitiateResult struct {
	Success   bool            `json:"success"`
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Error     string          `json:"error,omitempty"`

	CheckoutURL string            `json:"checkout_url,omitempty"`
	TxRef       string            `json:"tx_ref,omitempty"`
	PaymentURL  string            `json:"paymentUrl,omitempty"`
	OutTradeNo  string            `json:"outTradeNo,omitempty"`
	FormData    map[string]string `json:"formData,omitempty"`
	ReferenceID string            `json:"referenceId,omitempty"`
}

// Initiate starts (or restarts) payment of a pending order with the given method.
// Precondition failures are returned before anything is written. A provider that
// declines returns Success=false and leaves the payment PENDING for a retry.
func (s *PaymentService) Initiate(ctx context.Context, userID uint, orderID, method string) (*InitiateResult, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !domain.IsSupportedMethod(method) {
		return nil, ErrUnsupportedMethod
	}
	order, err := s.orders.GetForUser(orderID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	if order.Payment != nil && order.Payment.Status == domain.PaymentStatusCompleted {
		return nil, ErrAlreadyPaid
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}

	var p *models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a Cancel or settlement may have committed since the checks above
		locked, err := s.orders.WithTx(tx).GetForUpdate(order.ID)
		if err != nil {
			return err
		}
		switch locked.Status {
		case domain.OrderStatusPending:
		case domain.OrderStatusPaid:
			return ErrAlreadyPaid
		default:
			return ErrOrderNotPayable
		}
		payments := s.payments.WithTx(tx)
		stored, created, err := payments.CreateOrGet(&models.Payment{
			ID:       uuid.NewString(),
			OrderID:  order.ID,
			Amount:   order.Total,
			Currency: order.Currency,
			Method:   method,
			Status:   domain.PaymentStatusPending,
		})
		if err != nil {
			return err
		}
		if !created {
			if stored.Status == domain.PaymentStatusCompleted {
				return ErrAlreadyPaid
			}
			if _, err := payments.ResetForRetry(stored.ID, method); err != nil {
				return err
			}
			if stored, err = payments.GetByID(stored.ID); err != nil {
				return err
			}
			if stored.Status == domain.PaymentStatusCompleted {
				return ErrAlreadyPaid
			}
		}
		p = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &InitiateResult{
		PaymentID: p.ID,
		OrderID:   order.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    method,
	}
	req := payment.PaymentRequest{
		PaymentID:   p.ID,
		OrderID:     order.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: BuildDescription(order),
		CallbackURL: s.cfg.CallbackURL(method),
		ReturnURL:   s.cfg.ReturnURL(order.ID),
	}
	if method == domain.MethodChapa {
		req.CallbackURL = s.cfg.WebhookURL()
	}
	if u, err := s.users.GetByID(userID); err == nil {
		req.Email = u.Email
	}
	resp, err := s.providers[method].InitiatePayment(ctx, req)
	if err != nil {
		log.Printf("[PAYMENT] initiate %s payment=%s failed: %v", method, p.ID, err)
		result.Error = ErrProviderUnavailable.Error()
		return result, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !resp.Success || resp.Reference == "" {
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = "payment provider returned no reference"
		}
		log.Printf("[PAYMENT] initiate %s payment=%s declined: %s", method, p.ID, result.Error)
		return result, nil
	}
	ok, err := s.payments.MarkProcessing(p.ID, resp.Reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Printf("[PAYMENT] payment %s left PENDING before reference %s was stored", p.ID, resp.Reference)
	}

	result.Success = true
	switch method {
	case domain.MethodChapa:
		result.CheckoutURL = resp.RedirectURL
		result.TxRef = resp.Reference
	case domain.MethodTelebirr:
		result.PaymentURL = resp.RedirectURL
		result.OutTradeNo = resp.Reference
		result.FormData = resp.FormFields
	case domain.MethodSantimPay:
		result.PaymentURL = resp.RedirectURL
		result.ReferenceID = resp.Reference
	}
	return result, nil
}

// ReconcileCallback handles an asynchronous provider callback for Telebirr or SantimPay.
// It never returns an error for bad notifications; those are audited and reported as
// Success=false. Replays of an already-terminal payment report Success=true.
func (s *PaymentService) ReconcileCallback(ctx context.Context, method string, body []byte, meta RequestMeta) (*ReconcileResult, error) {
	method = strings.ToUpper(method)
	action := domain.AuditPaymentCallback
	adapter, ok := s.callbacks[method]
	if !ok {
		return s.reject(action, method, domain.OutcomeMalformed, body, meta), nil
	}
	n, err := adapter.ParseCallback(body)
	if err != nil {
		log.Printf("[PAYMENT] %s callback parse error: %v", method, err)
		return s.reject(action, method, domain.OutcomeMalformed, body, meta), nil
	}
	if !adapter.VerifyCallback(ctx, n) {
		return s.reject(action, n.Reference, domain.OutcomeSignatureInvalid, body, meta), nil
	}
	p, err := s.payments.GetByProviderRef(n.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.reject(action, n.Reference, domain.OutcomeUnknownReference, body, meta), nil
		}
		return nil, err
	}
	if p.Method != method {
		return s.reject(action, p.ID, domain.OutcomeMethodMismatch, body, meta), nil
	}
	orderRef := n.ProviderTxnID
	if orderRef == "" {
		orderRef = n.Reference
	}
	return s.settle(ctx, settlement{
		payment:       p,
		success:       n.Success,
		orderRef:      orderRef,
		paymentMethod: method,
		raw:           body,
		action:        action,
		meta:          meta,
	})
}

// ReconcileWebhook handles a Chapa webhook. A present signature must verify; an
// absent one (or no configured secret) is accepted and audited as unsigned.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, body []byte, signature string, meta RequestMeta) (*ReconcileResult, error) {
	action := domain.AuditPaymentWebhook
	var outcome string
	switch {
	case signature != "" && s.chapa.SignsWebhooks():
		if !s.chapa.VerifyWebhook(signature, body) {
			return s.reject(action, "", domain.OutcomeSignatureInvalid, body, meta), nil
		}
	default:
		log.Printf("[WEBHOOK] chapa webhook without verifiable signature from %s; accepting as unsigned", meta.IP)
		outcome = domain.OutcomeUnsigned
	}
	w, err := payment.ParseChapaWebhook(body)
	if err != nil {
		log.Printf("[WEBHOOK] chapa parse error: %v", err)
		return s.reject(action, "", domain.OutcomeMalformed, body, meta), nil
	}
	p, err := s.payments.GetByID(w.TxRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.reject(action, w.TxRef, domain.OutcomeUnknownReference, body, meta), nil
		}
		return nil, err
	}
	if p.Method != domain.MethodChapa {
		return s.reject(action, p.ID, domain.OutcomeMethodMismatch, body, meta), nil
	}
	in := settlement{
		payment:       p,
		success:       w.Succeeded(),
		orderRef:      w.TxRef,
		paymentMethod: payment.NormalizeChapaMethod(w.PaymentMethod),
		raw:           body,
		action:        action,
		outcome:       outcome,
		meta:          meta,
	}
	if w.Reference != "" {
		ref := w.Reference
		in.providerRef = &ref
		in.orderRef = ref
	}
	return s.settle(ctx, in)
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	Verified bool          `json:"verified"`
	Status   string        `json:"status"`
	Order    *models.Order `json:"order"`
}

// Verify polls the provider for the order's payment and applies a reported success.
// Providers that cannot be polled return the persisted state.
func (s *PaymentService) Verify(ctx context.Context, userID uint, orderID string, meta RequestMeta) (*VerifyResult, error) {
	order, err := s.orders.GetForUser(orderID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	p := order.Payment
	if p == nil {
		return nil, ErrNotFound
	}
	if !domain.IsTerminalPayment(p.Status) {
		if checker, ok := s.providers[p.Method].(payment.StatusChecker); ok {
			res, err := checker.CheckStatus(ctx, p.ID)
			if err != nil {
				log.Printf("[PAYMENT] verify payment=%s: %v", p.ID, err)
				return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
			}
			if res.Success {
				in := settlement{
					payment:       p,
					success:       true,
					orderRef:      p.ID,
					paymentMethod: payment.NormalizeChapaMethod(res.PaymentMethod),
					raw:           res.Raw,
					action:        domain.AuditPaymentVerify,
					meta:          meta,
				}
				if res.Reference != "" {
					ref := res.Reference
					in.providerRef = &ref
					in.orderRef = ref
				}
				if _, err := s.settle(ctx, in); err != nil {
					return nil, err
				}
			}
			if order, err = s.orders.GetForUser(orderID, userID); err != nil {
				return nil, notFound(err)
			}
			p = order.Payment
		}
	}
	return &VerifyResult{
		Verified: p.Status == domain.PaymentStatusCompleted,
		Status:   p.Status,
		Order:    order,
	}, nil
}

// PaymentView is the payment summary embedded in StatusView.
type PaymentView struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	Status string          `json:"status"`
}

type StatusView struct {
	OrderID     string       `json:"orderId"`
	OrderStatus string       `json:"orderStatus"`
	Payment     *PaymentView `json:"payment"`
}

// GetStatus is a read-only view of an order and its payment.
func (s *PaymentService) GetStatus(ctx context.Context, userID uint, orderID string) (*StatusView, error) {
	order, err := s.orders.GetForUser(orderID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	view := &StatusView{OrderID: order.ID, OrderStatus: order.Status}
	if p := order.Payment; p != nil {
		view.Payment = &PaymentView{ID: p.ID, Amount: p.Amount, Method: p.Method, Status: p.Status}
	}
	return view, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
