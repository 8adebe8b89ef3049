package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketpay/internal/domain"
	"marketpay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementEvent describes a reconciliation that changed a payment.
type SettlementEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        uint            `json:"user_id"`
	MerchantID    *uint           `json:"merchant_id,omitempty"`
	PaymentID     string          `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	OrderStatus   string          `json:"order_status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentRef    string          `json:"payment_ref,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SettledAt     time.Time       `json:"settled_at"`
}

// SettlementListener is notified after a settlement transaction has committed.
type SettlementListener interface {
	OnSettled(ev SettlementEvent)
}

// RequestMeta carries the caller details recorded in the audit log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ReconcileResult is returned by the reconciliation entry points. Success is false
// only when the notification was rejected without touching any state.
type ReconcileResult struct {
	Success   bool   `json:"success"`
	Outcome   string `json:"outcome"`
	PaymentID string `json:"payment_id,omitempty"`
	// Err is ErrVerificationFailed when the notification failed its authenticity check.
	Err error `json:"-"`
}

type settlement struct {
	payment       *models.Payment
	success       bool
	providerRef   *string // replaces Payment.ProviderRef when set
	orderRef      string  // stamped on the order on success
	paymentMethod string  // stamped on the order on success
	raw           []byte
	action        string
	outcome       string // recorded instead of "applied"/"replay" when set
	meta          RequestMeta
}

// settle applies a terminal payment status and, on success, moves the order to PAID,
// all in one transaction. The payment update is a compare-and-set on its status, so
// concurrent or replayed reconciliations apply at most once.
func (s *PaymentService) settle(ctx context.Context, in settlement) (*ReconcileResult, error) {
	var event *SettlementEvent
	result := &ReconcileResult{Success: true, PaymentID: in.payment.ID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := s.payments.WithTx(tx)
		orders := s.orders.WithTx(tx)
		audits := s.audits.WithTx(tx)

		to := domain.PaymentStatusFailed
		if in.success {
			to = domain.PaymentStatusCompleted
		}
		applied, err := payments.Transition(in.payment.ID, to, in.providerRef, providerJSON(in.raw))
		if err != nil {
			return err
		}
		if !applied {
			result.Outcome = domain.OutcomeReplay
			return audits.Create(s.auditEntry(in, in.outcomeOr(domain.OutcomeReplay), "replay"))
		}
		result.Outcome = domain.OutcomeApplied

		order, err := orders.GetByID(in.payment.OrderID)
		if err != nil {
			return err
		}
		if in.success {
			paid, err := orders.MarkPaid(order.ID, in.paymentMethod, in.orderRef)
			if err != nil {
				return err
			}
			if paid {
				order.Status = domain.OrderStatusPaid
				if err := orders.ActivateTickets(order.ID); err != nil {
					return err
				}
			} else {
				log.Printf("[PAYMENT] payment %s completed for order %s in status %s; refund required", in.payment.ID, order.ID, order.Status)
				late := s.auditEntry(in, domain.OutcomeApplied, "order_status="+order.Status)
				late.Action = domain.AuditPaymentAfterCancel
				if err := audits.Create(late); err != nil {
					return err
				}
			}
		}
		if err := audits.Create(s.auditEntry(in, in.outcomeOr(domain.OutcomeApplied), "applied "+to)); err != nil {
			return err
		}
		event = &SettlementEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			MerchantID:    order.MerchantID,
			PaymentID:     in.payment.ID,
			PaymentStatus: to,
			OrderStatus:   order.Status,
			PaymentMethod: in.paymentMethod,
			PaymentRef:    in.orderRef,
			Amount:        in.payment.Amount,
			Currency:      in.payment.Currency,
			SettledAt:     time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settle payment %s: %w", in.payment.ID, err)
	}
	if event != nil {
		log.Printf("[PAYMENT] %s payment=%s order=%s -> %s/%s", in.action, event.PaymentID, event.OrderID, event.PaymentStatus, event.OrderStatus)
		for _, l := range s.listeners {
			l.OnSettled(*event)
		}
	}
	return result, nil
}

func (in settlement) outcomeOr(def string) string {
	if in.outcome != "" {
		return in.outcome
	}
	return def
}

func (s *PaymentService) auditEntry(in settlement, outcome, detail string) *models.AuditLog {
	return &models.AuditLog{
		Action:      in.action,
		Resource:    "payment",
		ResourceID:  in.payment.ID,
		Outcome:     outcome,
		PayloadHash: payloadHash(in.raw),
		IP:          in.meta.IP,
		UserAgent:   in.meta.UserAgent,
		Metadata:    detail,
	}
}

// reject records a notification that was refused before any state was read or written.
func (s *PaymentService) reject(action, resourceID, outcome string, raw []byte, meta RequestMeta) *ReconcileResult {
	var rejectErr error
	if outcome == domain.OutcomeSignatureInvalid {
		rejectErr = ErrVerificationFailed
	}
	if rejectErr != nil {
		log.Printf("[PAYMENT] SECURITY %s rejected: %v resource=%s ip=%s", action, rejectErr, resourceID, meta.IP)
	} else {
		log.Printf("[PAYMENT] %s rejected: %s resource=%s ip=%s", action, outcome, resourceID, meta.IP)
	}
	err := s.audits.Create(&models.AuditLog{
		Action:      action,
		Resource:    "payment",
		ResourceID:  resourceID,
		Outcome:     outcome,
		PayloadHash: payloadHash(raw),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	})
	if err != nil {
		log.Printf("[PAYMENT] audit write failed: %v", err)
	}
	return &ReconcileResult{Success: false, Outcome: outcome, Err: rejectErr}
}

func payloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// providerJSON stores non-JSON payloads as a JSON string so the column stays valid JSON.
func providerJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	b, _ := json.Marshal(string(raw))
	return b
}
