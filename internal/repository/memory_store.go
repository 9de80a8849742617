package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"schoolbills/internal/model"
)

// MemoryBillStore 内存版账单存储
// 与 BillRepository 行为一致，用于测试和 database.driver=memory 的本地运行
type MemoryBillStore struct {
	mu         sync.RWMutex
	bills      map[string]*memoryBill
	seq        int64
	paymentSeq int64
	outbox     []*model.OutboxMessage
	outboxSeq  int64
}

type memoryBill struct {
	bill *model.Bill
	seq  int64 // 插入顺序，创建时间相同时用于排序
}

func NewMemoryBillStore() *MemoryBillStore {
	return &MemoryBillStore{bills: make(map[string]*memoryBill)}
}

func (s *MemoryBillStore) GetByID(ctx context.Context, id string) (*model.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.bills[id]
	if !ok {
		return nil, ErrBillNotFound
	}
	return e.bill.Clone(), nil
}

func (s *MemoryBillStore) GetByNaturalKey(ctx context.Context, key model.NaturalKey) (*model.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *memoryBill
	for _, e := range s.bills {
		if e.bill.NaturalKey() != key {
			continue
		}
		if found == nil || e.seq < found.seq {
			found = e
		}
	}
	if found == nil {
		return nil, ErrBillNotFound
	}
	return found.bill.Clone(), nil
}

func (s *MemoryBillStore) LastSerial(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := ""
	for _, e := range s.bills {
		if serialLess(last, e.bill.Serial) {
			last = e.bill.Serial
		}
	}
	return last, nil
}

func (s *MemoryBillStore) Create(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.ID == "" {
		bill.ID = model.NewBillID()
	}
	now := time.Now()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	bill.Payments = nil
	if payment != nil {
		s.appendPayment(bill, payment, now)
	}
	if msg != nil {
		s.appendOutbox(msg, now)
	}

	s.seq++
	s.bills[bill.ID] = &memoryBill{bill: bill.Clone(), seq: s.seq}
	return nil
}

func (s *MemoryBillStore) Update(ctx context.Context, bill *model.Bill, payment *model.BillPayment, msg *model.OutboxMessage) (*model.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.bills[bill.ID]
	if !ok {
		return nil, ErrBillNotFound
	}

	// 序号、创建时间、已有流水以存储中的为准
	next := bill.Clone()
	next.Serial = e.bill.Serial
	next.CreatedAt = e.bill.CreatedAt
	next.Payments = e.bill.Clone().Payments
	next.UpdatedAt = time.Now()

	if payment != nil {
		s.appendPayment(next, payment, next.UpdatedAt)
	}
	if msg != nil {
		s.appendOutbox(msg, next.UpdatedAt)
	}

	e.bill = next
	return next.Clone(), nil
}

func (s *MemoryBillStore) appendPayment(bill *model.Bill, payment *model.BillPayment, now time.Time) {
	s.paymentSeq++
	payment.ID = s.paymentSeq
	payment.BillID = bill.ID
	payment.CreatedAt = now
	bill.Payments = append(bill.Payments, *payment)
}

func (s *MemoryBillStore) appendOutbox(msg *model.OutboxMessage, now time.Time) {
	s.outboxSeq++
	msg.ID = s.outboxSeq
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now
	cp := *msg
	s.outbox = append(s.outbox, &cp)
}

func (s *MemoryBillStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[id]; !ok {
		return ErrBillNotFound
	}
	delete(s.bills, id)
	return nil
}

func (s *MemoryBillStore) List(ctx context.Context, filter ListFilter) ([]*model.Bill, error) {
	s.mu.RLock()
	entries := make([]*memoryBill, 0, len(s.bills))
	for _, e := range s.bills {
		if filter.AcademicYear != "" && e.bill.AcademicYear != filter.AcademicYear {
			continue
		}
		entries = append(entries, e)
	}
	bills := make([]*model.Bill, 0, len(entries))

	switch filter.OrderBy {
	case OrderBySerialAsc:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i].bill.Serial, entries[j].bill.Serial
			if a != b {
				return serialLess(a, b)
			}
			return entries[i].seq < entries[j].seq
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i].bill.CreatedAt, entries[j].bill.CreatedAt
			if !a.Equal(b) {
				return a.After(b)
			}
			return entries[i].seq > entries[j].seq
		})
	}
	for _, e := range entries {
		bills = append(bills, e.bill.Clone())
	}
	s.mu.RUnlock()

	return bills, nil
}

func (s *MemoryBillStore) UpdateAssist(ctx context.Context, m *model.AssistMigration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.bills[m.BillID]
	if !ok {
		return false, nil
	}
	if !m.Matches(e.bill) {
		return false, nil
	}

	next := e.bill.Clone()
	m.Guard.Set(next, m.Value)
	next.UpdatedAt = time.Now()
	e.bill = next
	return true, nil
}

func (s *MemoryBillStore) FindLegacyCandidates(ctx context.Context, afterID string, limit int) ([]*model.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bills []*model.Bill
	for _, e := range s.bills {
		if e.bill.ID <= afterID || !isLegacyCandidate(e.bill) {
			continue
		}
		bills = append(bills, e.bill.Clone())
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].ID < bills[j].ID })
	if limit > 0 && len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func isLegacyCandidate(b *model.Bill) bool {
	if b.AmountPaid == "" || b.AmountPaid == "0" {
		return false
	}
	for _, f := range model.AllAssistFields() {
		if v := f.Get(b); v != "" && v != "0" {
			return false
		}
	}
	return true
}

func (s *MemoryBillStore) ListPayments(ctx context.Context, billID string, page, pageSize int) ([]*model.BillPayment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.bills[billID]
	if !ok {
		return []*model.BillPayment{}, 0, nil
	}

	all := e.bill.Payments
	total := int64(len(all))
	payments := make([]*model.BillPayment, 0)

	if page < 1 || pageSize < 1 || page-1 > len(all)/pageSize {
		return payments, total, nil
	}

	// 最新的在前
	start := (page - 1) * pageSize
	for i := len(all) - 1 - start; i >= 0 && len(payments) < pageSize; i-- {
		p := all[i]
		payments = append(payments, &p)
	}
	return payments, total, nil
}

// ============================================================================
// 事件消息（供 OutboxSender 使用）
// ============================================================================

func (s *MemoryBillStore) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []*model.OutboxMessage
	for _, m := range s.outbox {
		if m.Status != model.OutboxStatusPending {
			continue
		}
		cp := *m
		messages = append(messages, &cp)
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *MemoryBillStore) MarkAsSent(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) { m.Status = model.OutboxStatusSent })
}

func (s *MemoryBillStore) IncrementRetryCount(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) { m.RetryCount++ })
}

func (s *MemoryBillStore) MarkAsFailed(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) { m.Status = model.OutboxStatusFailed })
}

func (s *MemoryBillStore) updateOutbox(id int64, fn func(*model.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.outbox {
		if m.ID == id {
			fn(m)
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

// OutboxMessages 当前全部事件消息的快照
func (s *MemoryBillStore) OutboxMessages() []model.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.OutboxMessage, 0, len(s.outbox))
	for _, m := range s.outbox {
		out = append(out, *m)
	}
	return out
}

// serialLess 按数值比较两个序号字符串
func serialLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
