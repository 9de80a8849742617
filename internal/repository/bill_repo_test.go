package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"schoolbills/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "bills.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Bill{}, &model.BillPayment{}, &model.OutboxMessage{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newPayment(no string, amount int64) *model.BillPayment {
	return &model.BillPayment{PaymentNo: no, Amount: decimal.NewFromInt(amount), Date: time.Now()}
}

func TestBillRepositoryCreateWritesLedgerAndOutbox(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBillRepository(db)

	b := newBill("Ada", "2025/2026", "001")
	b.AmountPaid = "500"
	msg := &model.OutboxMessage{
		MessageKey:  "MSG1",
		EventType:   model.EventPaymentRecorded,
		Topic:       "bill_payment_recorded",
		Payload:     "{}",
		Status:      model.OutboxStatusPending,
		AggregateID: "x",
	}
	require.NoError(t, repo.Create(ctx, b, newPayment("PMT1", 500), msg))
	assert.Len(t, b.ID, 24)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "001", got.Serial)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, b.ID, got.Payments[0].BillID)
	assert.Equal(t, "500", got.Payments[0].Amount.String())

	outbox := NewOutboxRepository(db)
	pending, err := outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "MSG1", pending[0].MessageKey)

	_, err = repo.GetByID(ctx, model.NewBillID())
	assert.ErrorIs(t, err, ErrBillNotFound)
}

func TestBillRepositoryUpdateKeepsSerialAndAppendsLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t))

	b := newBill("Ada", "2025/2026", "001")
	require.NoError(t, repo.Create(ctx, b, newPayment("PMT1", 100), nil))

	next := b.Clone()
	next.Serial = "999"
	next.SchoolName = "St. John"
	next.AmountPaid = "250"
	next.Payments = nil
	updated, err := repo.Update(ctx, next, newPayment("PMT2", 150), nil)
	require.NoError(t, err)

	assert.Equal(t, "001", updated.Serial)
	assert.Equal(t, "St. John", updated.SchoolName)
	assert.Equal(t, "250", updated.AmountPaid)
	require.Len(t, updated.Payments, 2)
	assert.Equal(t, "PMT1", updated.Payments[0].PaymentNo)
	assert.Equal(t, "PMT2", updated.Payments[1].PaymentNo)

	page, total, err := repo.ListPayments(ctx, b.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, "PMT2", page[0].PaymentNo)
}

func TestBillRepositoryLastSerialIsNumeric(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t))

	last, err := repo.LastSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", last)

	for i, sn := range []string{"999", "1000", "005"} {
		require.NoError(t, repo.Create(ctx, newBill(sn, "2025", sn), nil, nil), i)
	}
	last, err = repo.LastSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", last)

	bills, err := repo.List(ctx, ListFilter{AcademicYear: "2025", OrderBy: OrderBySerialAsc})
	require.NoError(t, err)
	require.Len(t, bills, 3)
	assert.Equal(t, "005", bills[0].Serial)
	assert.Equal(t, "999", bills[1].Serial)
	assert.Equal(t, "1000", bills[2].Serial)

	none, err := repo.List(ctx, ListFilter{AcademicYear: "2030"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBillRepositoryGetByNaturalKey(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t))

	b := newBill("Ada", "2025/2026", "001")
	require.NoError(t, repo.Create(ctx, b, nil, nil))

	got, err := repo.GetByNaturalKey(ctx, b.NaturalKey())
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = repo.GetByNaturalKey(ctx, model.NaturalKey{StudentName: "Ada", SchoolName: "St. Mary", AcademicYear: "2024"})
	assert.ErrorIs(t, err, ErrBillNotFound)
}

func TestBillRepositoryUpdateAssistWritesGuardOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t))

	b := newBill("Ada", "2025", "001")
	b.AmountPaid = "300"
	b.AssistPrimary1stTerm = "0.00"
	require.NoError(t, repo.Create(ctx, b, nil, nil))

	candidates, err := repo.FindLegacyCandidates(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates, "0.00 不在粗筛条件里，由读取路径处理")

	guard, _ := model.LookupField("assistPrimary1stTerm")
	m := model.NewAssistMigration(b, guard, "300")

	applied, err := repo.UpdateAssist(ctx, m)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", got.AssistPrimary1stTerm)
	assert.Equal(t, b.AssistPrimary2ndTerm, got.AssistPrimary2ndTerm)

	applied, err = repo.UpdateAssist(ctx, m)
	require.NoError(t, err)
	assert.False(t, applied, "已迁移的账单不会再写")
}

func TestBillRepositoryUpdateAssistSkipsConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t))

	b := newBill("Ada", "2025", "001")
	b.AmountPaid = "300"
	require.NoError(t, repo.Create(ctx, b, nil, nil))

	candidates, err := repo.FindLegacyCandidates(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	guard, _ := model.LookupField("assistPrimary1stTerm")
	m := model.NewAssistMigration(candidates[0], guard, "300")

	edited := b.Clone()
	edited.AssistPrimary3rdTerm = "120"
	_, err = repo.Update(ctx, edited, nil, nil)
	require.NoError(t, err)

	applied, err := repo.UpdateAssist(ctx, m)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", got.AssistPrimary1stTerm)
	assert.Equal(t, "120", got.AssistPrimary3rdTerm)
}

func TestBillRepositoryDeleteRemovesLedger(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBillRepository(db)

	b := newBill("Ada", "2025", "001")
	require.NoError(t, repo.Create(ctx, b, newPayment("PMT1", 100), nil))

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, err := repo.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrBillNotFound)

	var count int64
	require.NoError(t, db.Model(&model.BillPayment{}).Where("bill_id = ?", b.ID).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, b.ID), ErrBillNotFound)
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	outbox := NewOutboxRepository(newTestDB(t))

	for _, key := range []string{"M1", "M2"} {
		require.NoError(t, outbox.Create(ctx, nil, &model.OutboxMessage{
			MessageKey:  key,
			EventType:   model.EventPaymentRecorded,
			AggregateID: "a",
			Topic:       "t",
			Payload:     "{}",
			Status:      model.OutboxStatusPending,
		}))
	}

	pending, err := outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, outbox.MarkAsSent(ctx, pending[0].ID))
	require.NoError(t, outbox.IncrementRetryCount(ctx, pending[1].ID))
	require.NoError(t, outbox.MarkAsFailed(ctx, pending[1].ID))

	pending, err = outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
