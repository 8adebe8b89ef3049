package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleMerchant = "MERCHANT"
	RoleAdmin    = "ADMIN"
)

const (
	OrderStatusPending        = "PENDING"
	OrderStatusPaid           = "PAID"
	OrderStatusReadyForPickup = "READY_FOR_PICKUP"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusCompleted  = "COMPLETED"
	PaymentStatusFailed     = "FAILED"
)

const (
	MethodChapa     = "CHAPA"
	MethodTelebirr  = "TELEBIRR"
	MethodSantimPay = "SANTIMPAY"
)

const (
	TicketStatusReserved = "RESERVED"
	TicketStatusActive   = "ACTIVE"
)

// Audit actions and outcomes for reconciliation events.
const (
	AuditPaymentCallback    = "payment_callback"
	AuditPaymentWebhook     = "payment_webhook"
	AuditPaymentVerify      = "payment_verify"
	AuditPaymentAfterCancel = "payment_after_cancel"

	OutcomeApplied          = "applied"
	OutcomeReplay           = "replay"
	OutcomeSignatureInvalid = "signature_invalid"
	OutcomeUnsigned         = "unsigned"
	OutcomeUnknownReference = "unknown_reference"
	OutcomeMalformed        = "malformed"
	OutcomeMethodMismatch   = "method_mismatch"
)

// Methods lists every supported payment method.
var Methods = []string{MethodChapa, MethodTelebirr, MethodSantimPay}

func IsSupportedMethod(m string) bool {
	for _, s := range Methods {
		if s == m {
			return true
		}
	}
	return false
}

// IsTerminalPayment reports whether a payment status can no longer change.
func IsTerminalPayment(status string) bool {
	return status == PaymentStatusCompleted || status == PaymentStatusFailed
}

// IsTerminalOrder reports whether an order status can no longer change.
func IsTerminalOrder(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}
