package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is created PENDING by the checkout collaborator; only the payment
// service changes its status afterwards. Orders are never deleted.
type Order struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	UserID           uint            `gorm:"not null;index" json:"user_id"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency         string          `gorm:"size:3;not null;default:'ETB'" json:"currency"`
	Status           string          `gorm:"size:20;not null;index" json:"status"`
	MerchantID       *uint           `gorm:"index" json:"merchant_id,omitempty"`
	PickupLocationID *uint           `json:"pickup_location_id,omitempty"`
	SettledAt        *time.Time      `json:"settled_at,omitempty"`
	PaymentMethod    *string         `gorm:"size:30" json:"payment_method,omitempty"`
	PaymentRef       *string         `gorm:"size:255" json:"payment_ref,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Tickets []Ticket    `gorm:"foreignKey:OrderID" json:"tickets,omitempty"`
	Items   []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Payment *Payment    `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsShop reports whether the order is a shop purchase (as opposed to tickets).
func (o *Order) IsShop() bool {
	return o.MerchantID != nil
}

// OrderItem is one shop line item.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"size:36;not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
