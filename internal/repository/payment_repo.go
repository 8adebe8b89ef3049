package repository

import (
	"time"

	"marketpay/internal/domain"
	"marketpay/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

// CreateOrGet inserts p unless a payment already exists for its order, and returns the
// stored row. created is false when an existing row was returned.
func (r *PaymentRepository) CreateOrGet(p *models.Payment) (stored *models.Payment, created bool, err error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	stored, err = r.GetByOrderID(p.OrderID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == p.ID, nil
}

func (r *PaymentRepository) GetByID(id string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByProviderRef(ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("provider_ref = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) CountByOrderID(orderID string) (int64, error) {
	var n int64
	err := r.db.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}

// ResetForRetry starts a fresh attempt on an existing row. Completed payments are never reset.
func (r *PaymentRepository) ResetForRetry(id, method string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, domain.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"method":       method,
			"status":       domain.PaymentStatusPending,
			"provider_ref": nil,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkProcessing records the provider reference once initiation was acknowledged.
func (r *PaymentRepository) MarkProcessing(id, providerRef string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       domain.PaymentStatusProcessing,
			"provider_ref": providerRef,
		})
	return res.RowsAffected == 1, res.Error
}

// Transition moves a non-terminal payment to a terminal status. It is a compare-and-set:
// false means another writer already made the payment terminal.
func (r *PaymentRepository) Transition(id, to string, providerRef *string, raw []byte) (bool, error) {
	updates := map[string]interface{}{
		"status":        to,
		"provider_data": datatypes.JSON(raw),
	}
	if providerRef != nil && *providerRef != "" {
		updates["provider_ref"] = *providerRef
	}
	if to == domain.PaymentStatusCompleted {
		updates["completed_at"] = time.Now()
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentStatusPending, domain.PaymentStatusProcessing}).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
