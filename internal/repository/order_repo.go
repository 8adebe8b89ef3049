package repository

import (
	"marketpay/internal/domain"
	"marketpay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id string) (*models.Order, error) {
	var o models.Order
	err := r.preloaded().Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUser returns the order only when it belongs to userID.
func (r *OrderRepository) GetForUser(id string, userID uint) (*models.Order, error) {
	var o models.Order
	err := r.preloaded().Where("id = ? AND user_id = ?", id, userID).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate reads the bare order row with a row lock held until the transaction ends.
func (r *OrderRepository) GetForUpdate(id string) (*models.Order, error) {
	var o models.Order
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) preloaded() *gorm.DB {
	return r.db.Preload("Tickets").Preload("Items").Preload("Payment")
}

// TransitionStatus is a compare-and-set on the status column.
func (r *OrderRepository) TransitionStatus(id, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *OrderRepository) MarkPaid(id, method, ref string) (bool, error) {
	return r.TransitionStatus(id, domain.OrderStatusPending, domain.OrderStatusPaid, map[string]interface{}{
		"payment_method": method,
		"payment_ref":    ref,
	})
}

// ActivateTickets turns reserved tickets into valid ones and bumps the sold counters.
func (r *OrderRepository) ActivateTickets(orderID string) error {
	var counts []struct {
		TicketTypeID uint
		N            int
	}
	err := r.db.Model(&models.Ticket{}).
		Select("ticket_type_id, COUNT(*) AS n").
		Where("order_id = ? AND status = ?", orderID, domain.TicketStatusReserved).
		Group("ticket_type_id").
		Scan(&counts).Error
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}
	err = r.db.Model(&models.Ticket{}).
		Where("order_id = ? AND status = ?", orderID, domain.TicketStatusReserved).
		Update("status", domain.TicketStatusActive).Error
	if err != nil {
		return err
	}
	for _, c := range counts {
		err := r.db.Model(&models.TicketType{}).
			Where("id = ?", c.TicketTypeID).
			UpdateColumn("sold", gorm.Expr("sold + ?", c.N)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
