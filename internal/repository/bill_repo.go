package repository

import (
	"context"
	"errors"
	"fmt"

	"schoolbills/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBillNotFound = errors.New("账单不存在")
)

// 列表排序方式
const (
	OrderByCreatedDesc = "created_desc"
	OrderBySerialAsc   = "serial_asc"
)

// ListFilter 列表查询条件，AcademicYear 为空表示全部学年
type ListFilter struct {
	AcademicYear string
	OrderBy      string
}

// 序号按数值排序：先比长度再比字典序，"1000" 排在 "999" 后面
const serialDescOrder = "LENGTH(sn) DESC, sn DESC"
const serialAscOrder = "LENGTH(sn) ASC, sn ASC"

type BillRepository struct {
	db          *gorm.DB
	paymentRepo *PaymentRepository
	outboxRepo  *OutboxRepository
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{
		db:          db,
		paymentRepo: NewPaymentRepository(db),
		outboxRepo:  NewOutboxRepository(db),
	}
}

func preloadPayments(db *gorm.DB) *gorm.DB {
	return db.Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	})
}

func (r *BillRepository) GetByID(ctx context.Context, id string) (*model.Bill, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *BillRepository) getByID(ctx context.Context, db *gorm.DB, id string) (*model.Bill, error) {
	var bill model.Bill
	err := preloadPayments(db.WithContext(ctx)).Where("id = ?", id).First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// GetByNaturalKey 按 (姓名, 学校, 学年) 查找，有重复时取最早创建的一条
func (r *BillRepository) GetByNaturalKey(ctx context.Context, key model.NaturalKey) (*model.Bill, error) {
	var bill model.Bill
	err := preloadPayments(r.db.WithContext(ctx)).
		Where("name = ? AND school = ? AND academic_year = ?", key.StudentName, key.SchoolName, key.AcademicYear).
		Order("created_at ASC").
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// LastSerial 当前最大序号，没有任何账单时返回空串
func (r *BillRepository) LastSerial(ctx context.Context) (string, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).
		Select("sn").
		Order(serialDescOrder).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return bill.Serial, nil
}

// Create 创建账单
// 账单、首笔缴费流水、缴费事件消息在同一个事务里写入
func (r *BillRepository) Create(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(bill).Error; err != nil {
			return fmt.Errorf("创建账单失败: %w", err)
		}

		bill.Payments = nil
		if payment != nil {
			payment.BillID = bill.ID
			if err := r.paymentRepo.Create(ctx, tx, payment); err != nil {
				return fmt.Errorf("写入缴费流水失败: %w", err)
			}
			bill.Payments = []model.BillPayment{*payment}
		}

		if msg != nil {
			if err := r.outboxRepo.Create(ctx, tx, msg); err != nil {
				return fmt.Errorf("写入事件消息失败: %w", err)
			}
		}
		return nil
	})
}

// Update 按ID覆盖可编辑字段，序号和已有流水不动；payment 非空时追加一条流水
// 返回更新后的账单
func (r *BillRepository) Update(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) (*model.Bill, error) {
	var updated *model.Bill
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Bill{ID: bill.ID}).
			Select(model.EditableColumns()).
			Updates(bill)
		if result.Error != nil {
			return fmt.Errorf("更新账单失败: %w", result.Error)
		}

		if payment != nil {
			payment.BillID = bill.ID
			if err := r.paymentRepo.Create(ctx, tx, payment); err != nil {
				return fmt.Errorf("写入缴费流水失败: %w", err)
			}
		}

		if msg != nil {
			if err := r.outboxRepo.Create(ctx, tx, msg); err != nil {
				return fmt.Errorf("写入事件消息失败: %w", err)
			}
		}

		// MySQL 在值未变化时 RowsAffected 可能为 0，以重新读取的结果为准
		reloaded, err := r.getByID(ctx, tx, bill.ID)
		if err != nil {
			return err
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 删除账单及其全部流水
func (r *BillRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.paymentRepo.DeleteByBillID(ctx, tx, id); err != nil {
			return fmt.Errorf("删除缴费流水失败: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&model.Bill{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBillNotFound
		}
		return nil
	})
}

func (r *BillRepository) List(ctx context.Context, filter ListFilter) ([]*model.Bill, error) {
	var bills []*model.Bill

	query := preloadPayments(r.db.WithContext(ctx))
	if filter.AcademicYear != "" {
		query = query.Where("academic_year = ?", filter.AcademicYear)
	}

	switch filter.OrderBy {
	case OrderBySerialAsc:
		query = query.Order(serialAscOrder)
	default:
		query = query.Order("created_at DESC").Order("id DESC")
	}

	err := query.Find(&bills).Error
	return bills, err
}

// UpdateAssist 写入资助字段迁移结果
// 只写 Guard 一列，且 amtPaid 与资助字段必须仍是读取时的原始值，返回是否真正写入
func (r *BillRepository) UpdateAssist(ctx context.Context, m *model.AssistMigration) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Bill{}).
		Where("id = ?", m.BillID)
	for _, f := range model.MigrationGuardFields() {
		want, ok := m.Expected[f.Column]
		if !ok {
			continue
		}
		if want == "" {
			query = query.Where(fmt.Sprintf("(%s = '' OR %s IS NULL)", f.Column, f.Column))
		} else {
			query = query.Where(fmt.Sprintf("%s = ?", f.Column), want)
		}
	}

	result := query.Update(m.Guard.Column, m.Value)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindLegacyCandidates 按ID游标分页查找疑似旧数据：amtPaid 非零且资助字段全为空或 0
// 只是粗筛，是否真正需要迁移由调用方判断
func (r *BillRepository) FindLegacyCandidates(ctx context.Context, afterID string, limit int) ([]*model.Bill, error) {
	var bills []*model.Bill

	query := r.db.WithContext(ctx).
		Where("amt_paid NOT IN ?", []string{"", "0"})
	for _, f := range model.AllAssistFields() {
		query = query.Where(fmt.Sprintf("(%s IN ? OR %s IS NULL)", f.Column, f.Column), []string{"", "0"})
	}
	if afterID != "" {
		query = query.Where("id > ?", afterID)
	}

	err := query.Order("id ASC").Limit(limit).Find(&bills).Error
	return bills, err
}

func (r *BillRepository) ListPayments(ctx context.Context, billID string, page, pageSize int) ([]*model.BillPayment, int64, error) {
	return r.paymentRepo.ListByBillID(ctx, billID, page, pageSize)
}
