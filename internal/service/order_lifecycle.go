package service

import (
	"context"
	"log"
	"time"

	"marketpay/internal/domain"
	"marketpay/internal/models"

	"gorm.io/gorm"
)

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID uint
	Role   string
}

// Cancel abandons a pending order on behalf of its owner. A payment that later
// completes for a cancelled order is recorded but does not revive the order.
func (s *PaymentService) Cancel(ctx context.Context, userID uint, orderID string) (*models.Order, error) {
	order, err := s.orders.GetForUser(orderID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.transition(ctx, order, domain.OrderStatusCancelled, nil)
}

// MarkReadyForPickup is called by the merchant once a paid shop order can be collected.
func (s *PaymentService) MarkReadyForPickup(ctx context.Context, merchantID uint, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, notFound(err)
	}
	if !order.IsShop() || *order.MerchantID != merchantID {
		return nil, ErrNotFound
	}
	return s.transition(ctx, order, domain.OrderStatusReadyForPickup, nil)
}

// Complete closes an order. Shop orders are completed after pickup by their merchant
// or an admin and become eligible for payout; ticket orders are completed by an admin.
func (s *PaymentService) Complete(ctx context.Context, actor Actor, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		return nil, notFound(err)
	}
	isAdmin := actor.Role == domain.RoleAdmin
	if order.IsShop() {
		if !isAdmin && *order.MerchantID != actor.UserID {
			return nil, ErrNotFound
		}
		now := time.Now()
		return s.transition(ctx, order, domain.OrderStatusCompleted, map[string]interface{}{"settled_at": now})
	}
	if !isAdmin {
		return nil, ErrNotFound
	}
	return s.transition(ctx, order, domain.OrderStatusCompleted, nil)
}

func (s *PaymentService) transition(ctx context.Context, order *models.Order, to string, extra map[string]interface{}) (*models.Order, error) {
	if !domain.CanTransitionOrder(order.Status, to, order.IsShop()) {
		return nil, ErrInvalidTransition
	}
	var updated *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		ok, err := orders.TransitionStatus(order.ID, order.Status, to, extra)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		updated, err = orders.GetByID(order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[PAYMENT] order %s %s -> %s", order.ID, order.Status, to)
	return updated, nil
}
