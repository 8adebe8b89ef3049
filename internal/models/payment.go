package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment is the single payment attempt record for an order. OrderID is unique;
// a retry after FAILED reuses the same row.
type Payment struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID      string          `gorm:"size:36;not null;uniqueIndex" json:"order_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency     string          `gorm:"size:3;not null;default:'ETB'" json:"currency"`
	Method       string          `gorm:"size:20;not null" json:"method"`
	Status       string          `gorm:"size:20;not null;index" json:"status"` // PENDING, PROCESSING, COMPLETED, FAILED
	ProviderRef  *string         `gorm:"size:255;index" json:"provider_ref"`
	ProviderData datatypes.JSON  `json:"-"` // last raw provider payload, audit only
	CompletedAt  *time.Time      `json:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
