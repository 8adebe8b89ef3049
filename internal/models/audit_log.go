package models

import "time"

type AuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	Action      string    `gorm:"size:100;not null;index" json:"action"`
	Resource    string    `gorm:"size:100;index" json:"resource"`
	ResourceID  string    `gorm:"size:100;index" json:"resource_id"`
	Outcome     string    `gorm:"size:50;index" json:"outcome"`
	PayloadHash string    `gorm:"size:64" json:"payload_hash"`
	IP          string    `gorm:"size:45" json:"ip"`
	UserAgent   string    `gorm:"size:512" json:"user_agent"`
	Metadata    string    `gorm:"type:text" json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
