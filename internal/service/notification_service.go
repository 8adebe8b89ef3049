package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"marketpay/internal/domain"
	"marketpay/internal/models"
	"marketpay/internal/repository"
)

const pushTimeout = 10 * time.Second

type pusher interface {
	SendToUser(ctx context.Context, fcmToken string, notifType, title, body string, data map[string]interface{}) error
}

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	push     pusher
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService) *NotificationService {
	s := &NotificationService{repo: repo, userRepo: userRepo}
	if fcm != nil {
		s.push = fcm
	}
	return s
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(userID, notifType, title, body, data)
	return nil
}

// sendPush delivers in the background so settlement callers are not held up by FCM.
func (s *NotificationService) sendPush(userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.push == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	go func(token string) {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := s.push.SendToUser(ctx, token, notifType, title, body, data); err != nil {
			log.Printf("[FCM] push %s to user %d failed: %v", notifType, userID, err)
		}
	}(u.FCMToken)
}

// OnSettled tells the buyer how their payment ended and, for shop orders, tells the merchant
// that an order is waiting to be prepared.
func (s *NotificationService) OnSettled(ev SettlementEvent) {
	data := map[string]interface{}{
		"order_id":   ev.OrderID,
		"payment_id": ev.PaymentID,
		"amount":     ev.Amount.StringFixed(2),
		"currency":   ev.Currency,
	}
	var err error
	switch {
	case ev.PaymentStatus == domain.PaymentStatusFailed:
		err = s.Notify(ev.UserID, "PAYMENT_FAILED", "Payment failed", "Your payment did not go through. You can try again.", data)
	case ev.OrderStatus == domain.OrderStatusPaid:
		err = s.Notify(ev.UserID, "PAYMENT_CONFIRMED", "Payment confirmed", "Your payment of "+ev.Amount.StringFixed(2)+" "+ev.Currency+" was successful.", data)
		if err == nil && ev.MerchantID != nil {
			err = s.Notify(*ev.MerchantID, "NEW_ORDER", "New paid order", "Order "+ev.OrderID+" is paid and ready to prepare.", data)
		}
	default:
		// completed after the order left PENDING; support handles the refund
		return
	}
	if err != nil {
		log.Printf("[FCM] settlement notification for order %s failed: %v", ev.OrderID, err)
	}
}
