package service

import (
	"context"
	"errors"

	"schoolbills/internal/model"
	"schoolbills/internal/repository"
)

var (
	ErrEmptyBatch    = errors.New("提交的账单为空")
	ErrInvalidBillID = errors.New("账单ID格式不合法")
)

// BillStore 账单存储
// repository.BillRepository（gorm）和 repository.MemoryBillStore 都实现了这个接口
type BillStore interface {
	GetByID(ctx context.Context, id string) (*model.Bill, error)
	GetByNaturalKey(ctx context.Context, key model.NaturalKey) (*model.Bill, error)
	LastSerial(ctx context.Context) (string, error)
	Create(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) error
	Update(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) (*model.Bill, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.ListFilter) ([]*model.Bill, error)
	UpdateAssist(ctx context.Context, m *model.AssistMigration) (bool, error)
	FindLegacyCandidates(ctx context.Context, afterID string, limit int) ([]*model.Bill, error)
	ListPayments(ctx context.Context, billID string, page, pageSize int) ([]*model.BillPayment, int64, error)
}

var (
	_ BillStore = (*repository.BillRepository)(nil)
	_ BillStore = (*repository.MemoryBillStore)(nil)
)

// ListCache 列表缓存，见 cache.BillListCache
type ListCache interface {
	Get(ctx context.Context, academicYear string) ([]*model.Bill, bool, error)
	Set(ctx context.Context, academicYear string, bills []*model.Bill) error
	Invalidate(ctx context.Context, academicYears ...string) error
}

// MigrationQueue 资助字段迁移的异步队列，见 job.AssistMigrator
type MigrationQueue interface {
	Enqueue(m *model.AssistMigration) bool
}
