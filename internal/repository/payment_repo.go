package repository

import (
	"context"

	"schoolbills/internal/model"

	"gorm.io/gorm"
)

// PaymentRepository 缴费流水，只有追加和查询，没有修改
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.BillPayment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}

// ListByBillID 分页查询某账单的流水，最新的在前
func (r *PaymentRepository) ListByBillID(ctx context.Context, billID string, page, pageSize int) ([]*model.BillPayment, int64, error) {
	var payments []*model.BillPayment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BillPayment{}).Where("bill_id = ?", billID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error

	return payments, total, err
}

// DeleteByBillID 只在删除账单时随账单一起删除
func (r *PaymentRepository) DeleteByBillID(ctx context.Context, tx *gorm.DB, billID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("bill_id = ?", billID).Delete(&model.BillPayment{}).Error
}
