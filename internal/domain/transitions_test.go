package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		shop bool
		want bool
	}{
		{"pending to paid", OrderStatusPending, OrderStatusPaid, false, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true, true},
		{"ticket paid to completed", OrderStatusPaid, OrderStatusCompleted, false, true},
		{"shop paid to completed skips pickup", OrderStatusPaid, OrderStatusCompleted, true, false},
		{"shop paid to ready", OrderStatusPaid, OrderStatusReadyForPickup, true, true},
		{"ticket paid to ready", OrderStatusPaid, OrderStatusReadyForPickup, false, false},
		{"shop ready to completed", OrderStatusReadyForPickup, OrderStatusCompleted, true, true},
		{"paid back to pending", OrderStatusPaid, OrderStatusPending, false, false},
		{"completed is final", OrderStatusCompleted, OrderStatusCancelled, false, false},
		{"cancelled is final", OrderStatusCancelled, OrderStatusPaid, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionOrder(tt.from, tt.to, tt.shop))
		})
	}
}

func TestMethodsAndTerminality(t *testing.T) {
	assert.True(t, IsSupportedMethod(MethodChapa))
	assert.True(t, IsSupportedMethod(MethodSantimPay))
	assert.False(t, IsSupportedMethod("chapa"))
	assert.False(t, IsSupportedMethod("PAYPAL"))

	assert.True(t, IsTerminalPayment(PaymentStatusCompleted))
	assert.True(t, IsTerminalPayment(PaymentStatusFailed))
	assert.False(t, IsTerminalPayment(PaymentStatusProcessing))
	assert.True(t, IsTerminalOrder(OrderStatusCancelled))
	assert.False(t, IsTerminalOrder(OrderStatusReadyForPickup))
}
