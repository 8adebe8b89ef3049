package models

import "time"

// TicketType is catalog data owned elsewhere; only Sold is touched here, at settlement.
type TicketType struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventTitle string    `gorm:"size:255;not null" json:"event_title"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	Sold       int       `gorm:"not null;default:0" json:"sold"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (TicketType) TableName() string {
	return "ticket_types"
}

type Ticket struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID      string    `gorm:"size:36;not null;index" json:"order_id"`
	TicketTypeID uint      `gorm:"not null;index" json:"ticket_type_id"`
	EventTitle   string    `gorm:"size:255;not null" json:"event_title"`
	Status       string    `gorm:"size:20;not null;default:'RESERVED'" json:"status"` // RESERVED, ACTIVE
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}
