package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"schoolbills/internal/config"
	"schoolbills/internal/infrastructure/lock"
	"schoolbills/internal/model"
	"schoolbills/internal/repository"
	"schoolbills/pkg/idgen"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BatchLocker 批量保存期间持有的锁，返回释放函数
type BatchLocker func(ctx context.Context) (release func(), err error)

// RedisBatchLocker 基于 Redis 的批量保存锁，保证并发批次不会分到相同的序号
func RedisBatchLocker(client *redis.Client, ttl time.Duration, log *logrus.Logger) BatchLocker {
	const retryInterval = 100 * time.Millisecond
	maxRetries := int(ttl / retryInterval)
	if maxRetries < 1 {
		maxRetries = 1
	}

	return func(ctx context.Context) (func(), error) {
		owner := lockOwner(ctx)
		l := lock.NewBatchSaveLock(client, owner, ttl)
		if err := l.Lock(ctx, retryInterval, maxRetries); err != nil {
			return nil, err
		}
		return func() {
			if err := l.Unlock(context.Background()); err != nil {
				log.WithError(err).WithField("owner", owner).Warn("释放批量保存锁失败")
			}
		}, nil
	}
}

type Option func(*BillService)

func WithListCache(c ListCache) Option {
	return func(s *BillService) { s.cache = c }
}

func WithMigrationQueue(q MigrationQueue) Option {
	return func(s *BillService) { s.migrator = q }
}

func WithBatchLocker(l BatchLocker) Option {
	return func(s *BillService) { s.locker = l }
}

// BillService 账单业务
type BillService struct {
	store    BillStore
	resolver *IdentityResolver
	cfg      *config.Config
	log      *logrus.Logger
	cache    ListCache
	migrator MigrationQueue
	locker   BatchLocker
	now      func() time.Time
}

func NewBillService(store BillStore, cfg *config.Config, log *logrus.Logger, opts ...Option) *BillService {
	s := &BillService{
		store:    store,
		resolver: NewIdentityResolver(store),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// 批量保存
// ============================================================================

// RowError 单行保存失败
type RowError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// BatchResult 批量保存结果
type BatchResult struct {
	Total  int
	Saved  []*model.Bill
	Errors []RowError
	// Records 保存后按序号排列的该学年全部账单
	Records []*model.Bill
}

func (r *BatchResult) AllSucceeded() bool {
	return len(r.Errors) == 0
}

func (r *BatchResult) AllFailed() bool {
	return len(r.Saved) == 0
}

func (r *BatchResult) Message() string {
	if r.AllSucceeded() {
		return "账单保存成功"
	}
	return fmt.Sprintf("已保存 %d/%d 条账单", len(r.Saved), r.Total)
}

func (r *BatchResult) Warnings() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	warnings := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		warnings = append(warnings, fmt.Sprintf("保存 \"%s\" 失败: %s", e.Name, e.Error))
	}
	return warnings
}

type rowOutcome struct {
	bill     *model.Bill
	prevYear string
	err      error
}

// SaveBatch 批量新建或更新账单
//
// 每一行独立处理，某一行失败不影响其他行。只有整个批次无法处理时
// （空批次、拿不到锁、读不到最大序号、刷新列表失败）才返回 error。
func (s *BillService) SaveBatch(ctx context.Context, rows []*BillRow) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}

	if s.locker != nil {
		release, err := s.locker(ctx)
		if err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer release()
	}

	lastSerial, err := s.store.LastSerial(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询最大序号失败: %w", err)
	}
	alloc := NewSerialAllocator(lastSerial)

	s.log.WithFields(logrus.Fields{
		"request_id":  RequestIDFrom(ctx),
		"rows":        len(rows),
		"last_serial": lastSerial,
	}).Info("开始批量保存账单")

	outcomes := make([]rowOutcome, len(rows))
	var g errgroup.Group
	g.SetLimit(s.cfg.Business.BatchConcurrency)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			outcomes[i] = s.saveRow(ctx, i, row, alloc)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Total: len(rows)}
	years := make([]string, 0, len(rows))
	for i, o := range outcomes {
		if o.err != nil {
			s.log.WithFields(logrus.Fields{
				"index": i,
				"name":  rows[i].StudentName(),
			}).WithError(o.err).Warn("账单保存失败")
			result.Errors = append(result.Errors, RowError{
				Index: i,
				Name:  rows[i].StudentName(),
				Error: o.err.Error(),
			})
			continue
		}
		result.Saved = append(result.Saved, o.bill)
		years = append(years, o.bill.AcademicYear, o.prevYear)
	}

	s.invalidate(ctx, years...)

	records, err := s.store.List(ctx, repository.ListFilter{
		AcademicYear: rows[0].AcademicYear(),
		OrderBy:      repository.OrderBySerialAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("刷新账单列表失败: %w", err)
	}
	result.Records = records

	s.log.WithFields(logrus.Fields{
		"total":  result.Total,
		"saved":  len(result.Saved),
		"failed": len(result.Errors),
	}).Info("批量保存完成")
	return result, nil
}

func (s *BillService) saveRow(ctx context.Context, index int, row *BillRow, alloc *SerialAllocator) rowOutcome {
	prev, err := s.resolver.Resolve(ctx, row)
	if err != nil {
		return rowOutcome{err: err}
	}

	now := s.now()
	if prev != nil {
		next := prev.Clone()
		row.ApplyTo(next)
		next.Payments = nil

		event := DetectPayment(prev, next)
		if event.IsPayment {
			next.PaymentDate = &now
		}
		if err := next.Validate(); err != nil {
			return rowOutcome{err: fmt.Errorf("账单校验失败: %w", err)}
		}

		payment, msg, err := s.buildPayment(next, event, now)
		if err != nil {
			return rowOutcome{err: err}
		}
		updated, err := s.store.Update(ctx, next, payment, msg)
		if err != nil {
			return rowOutcome{err: err}
		}
		return rowOutcome{bill: updated, prevYear: prev.AcademicYear}
	}

	next := row.NewBill()
	next.ID = model.NewBillID()
	next.Serial = alloc.Allocate(index)

	event := DetectPayment(nil, next)
	if event.IsPayment {
		next.PaymentDate = &now
	}
	if err := next.Validate(); err != nil {
		return rowOutcome{err: fmt.Errorf("账单校验失败: %w", err)}
	}

	payment, msg, err := s.buildPayment(next, event, now)
	if err != nil {
		return rowOutcome{err: err}
	}
	if err := s.store.Create(ctx, next, payment, msg); err != nil {
		return rowOutcome{err: err}
	}
	return rowOutcome{bill: next}
}

// buildPayment 需要记流水时生成流水和缴费事件消息
// 消息队列未启用时不写事件消息
func (s *BillService) buildPayment(bill *model.Bill, event PaymentEvent, now time.Time) (*model.BillPayment, *model.OutboxMessage, error) {
	if !event.HasLedgerEntry() {
		return nil, nil, nil
	}

	payment := &model.BillPayment{
		PaymentNo: idgen.GeneratePaymentNo(),
		BillID:    bill.ID,
		Amount:    event.Amount,
		Period:    event.Period,
		Date:      now,
	}

	if s.cfg.MQ.Driver == config.MQDriverNone {
		return payment, nil, nil
	}

	payload, err := json.Marshal(model.PaymentRecordedPayload{
		PaymentNo:    payment.PaymentNo,
		BillID:       bill.ID,
		Serial:       bill.Serial,
		StudentName:  bill.StudentName,
		SchoolName:   bill.SchoolName,
		AcademicYear: bill.AcademicYear,
		SchoolType:   string(bill.SchoolType),
		Amount:       payment.Amount.String(),
		Period:       payment.Period,
		AmountPaid:   bill.AmountPaid,
		PaidAt:       now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("序列化缴费事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey:  idgen.GenerateMessageKey(),
		EventType:   model.EventPaymentRecorded,
		AggregateID: bill.ID,
		Topic:       s.cfg.MQ.Topic.PaymentRecorded,
		Payload:     string(payload),
		Status:      model.OutboxStatusPending,
	}
	return payment, msg, nil
}

// ============================================================================
// 列表与单条操作
// ============================================================================

// List 列出账单（按创建时间倒序），读取时规范化资助字段
// 旧数据的迁移异步写回，不阻塞本次读取
func (s *BillService) List(ctx context.Context, academicYear string) ([]*model.Bill, error) {
	if s.cache != nil {
		bills, hit, err := s.cache.Get(ctx, academicYear)
		if err != nil {
			s.log.WithError(err).WithField("academic_year", academicYear).Warn("读取列表缓存失败")
		} else if hit {
			return bills, nil
		}
	}

	bills, err := s.store.List(ctx, repository.ListFilter{
		AcademicYear: academicYear,
		OrderBy:      repository.OrderByCreatedDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("查询账单列表失败: %w", err)
	}

	out := make([]*model.Bill, 0, len(bills))
	for _, b := range bills {
		out = append(out, s.normalize(b))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, academicYear, out); err != nil {
			s.log.WithError(err).WithField("academic_year", academicYear).Warn("写入列表缓存失败")
		}
	}
	return out, nil
}

func (s *BillService) normalize(b *model.Bill) *model.Bill {
	out, m := NormalizeAssist(b)
	if m != nil {
		s.dispatchMigration(m)
	}
	return out
}

// dispatchMigration 交给迁移队列；没有队列时起一个 goroutine 直接写
func (s *BillService) dispatchMigration(m *model.AssistMigration) {
	if s.migrator != nil {
		if !s.migrator.Enqueue(m) {
			s.log.WithField("bill_id", m.BillID).Debug("迁移队列已满，本次跳过")
		}
		return
	}

	go func() {
		if _, err := s.store.UpdateAssist(context.Background(), m); err != nil {
			s.log.WithError(err).WithField("bill_id", m.BillID).Warn("资助字段迁移写入失败")
		}
	}()
}

func (s *BillService) Get(ctx context.Context, id string) (*model.Bill, error) {
	id, ok := normalizeBillID(id)
	if !ok {
		return nil, ErrInvalidBillID
	}
	bill, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.normalize(bill), nil
}

// Patch 只修改提交的字段，不分配序号，不记流水
func (s *BillService) Patch(ctx context.Context, id string, row *BillRow) (*model.Bill, error) {
	id, ok := normalizeBillID(id)
	if !ok {
		return nil, ErrInvalidBillID
	}
	prev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := prev.Clone()
	row.ApplyTo(next)
	next.Payments = nil
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("账单校验失败: %w", err)
	}

	updated, err := s.store.Update(ctx, next, nil, nil)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, prev.AcademicYear, updated.AcademicYear)
	return updated, nil
}

func (s *BillService) Delete(ctx context.Context, id string) error {
	id, ok := normalizeBillID(id)
	if !ok {
		return ErrInvalidBillID
	}
	prev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"bill_id": id,
		"sn":      prev.Serial,
		"name":    prev.StudentName,
	}).Info("账单已删除")
	s.invalidate(ctx, prev.AcademicYear)
	return nil
}

// PaymentPage 缴费流水分页
type PaymentPage struct {
	Items    []*model.BillPayment `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// 保证 (page-1)*pageSize 不溢出
	maxPage = math.MaxInt32 / maxPageSize
)

// Payments 某账单的缴费流水，最新的在前
func (s *BillService) Payments(ctx context.Context, id string, page, pageSize int) (*PaymentPage, error) {
	id, ok := normalizeBillID(id)
	if !ok {
		return nil, ErrInvalidBillID
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, total, err := s.store.ListPayments(ctx, id, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("查询缴费流水失败: %w", err)
	}
	return &PaymentPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *BillService) invalidate(ctx context.Context, years ...string) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]bool, len(years))
	uniq := make([]string, 0, len(years))
	for _, y := range years {
		if y == "" || seen[y] {
			continue
		}
		seen[y] = true
		uniq = append(uniq, y)
	}
	if err := s.cache.Invalidate(ctx, uniq...); err != nil {
		s.log.WithError(err).WithField("academic_years", uniq).Warn("失效列表缓存失败")
	}
}

// IsNotFound 账单不存在或ID不合法
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrBillNotFound) || errors.Is(err, ErrInvalidBillID)
}

// IsValidationError 字段校验失败
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
