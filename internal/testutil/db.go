// Package testutil provides an in-memory database and order fixtures for tests.
package testutil

import (
	"testing"

	"marketpay/internal/database"
	"marketpay/internal/domain"
	"marketpay/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every goroutine on the same in-memory database and serialises writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// SeedUser inserts a user with the given role.
func SeedUser(t testing.TB, db *gorm.DB, id uint, role string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: uuid.NewString()[:8] + "@example.com", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedTicketOrder creates a pending ticket order for userID with n reserved tickets
// of a fresh ticket type.
func SeedTicketOrder(t testing.TB, db *gorm.DB, userID uint, total string, n int) *models.Order {
	t.Helper()
	tt := &models.TicketType{EventTitle: "Jazz Night", Name: "General", Quantity: 100}
	require.NoError(t, db.Create(tt).Error)
	o := &models.Order{
		ID:       uuid.NewString(),
		UserID:   userID,
		Total:    decimal.RequireFromString(total),
		Currency: "ETB",
		Status:   domain.OrderStatusPending,
	}
	require.NoError(t, db.Create(o).Error)
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.Ticket{
			ID:           uuid.NewString(),
			OrderID:      o.ID,
			TicketTypeID: tt.ID,
			EventTitle:   tt.EventTitle,
			Status:       domain.TicketStatusReserved,
		}).Error)
	}
	return o
}

// SeedShopOrder creates a pending shop order sold by merchantID.
func SeedShopOrder(t testing.TB, db *gorm.DB, userID, merchantID uint, total string) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Total:      decimal.RequireFromString(total),
		Currency:   "ETB",
		Status:     domain.OrderStatusPending,
		MerchantID: &merchantID,
	}
	require.NoError(t, db.Create(o).Error)
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID:   o.ID,
		ProductID: 1,
		Name:      "Coffee Beans",
		Quantity:  1,
		UnitPrice: o.Total,
	}).Error)
	return o
}
