package job

import (
	"context"
	"sync"

	"schoolbills/internal/model"

	"github.com/sirupsen/logrus"
)

// AssistWriter 写入资助字段迁移
type AssistWriter interface {
	UpdateAssist(ctx context.Context, m *model.AssistMigration) (bool, error)
}

// AssistMigrator 读取列表时发现的旧数据迁移在这里异步写回
//
// Enqueue 不阻塞：队列满时直接丢弃，下次读取会重新发现。
// 同一账单在写回之前重复入队只保留一个。
type AssistMigrator struct {
	writer  AssistWriter
	log     *logrus.Logger
	queue   chan *model.AssistMigration
	pending sync.Map
	stopCh  chan struct{}
}

func NewAssistMigrator(writer AssistWriter, queueSize int, log *logrus.Logger) *AssistMigrator {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &AssistMigrator{
		writer: writer,
		log:    log,
		queue:  make(chan *model.AssistMigration, queueSize),
		stopCh: make(chan struct{}),
	}
}

func (m *AssistMigrator) Enqueue(task *model.AssistMigration) bool {
	if _, loaded := m.pending.LoadOrStore(task.BillID, struct{}{}); loaded {
		return true
	}

	select {
	case m.queue <- task:
		return true
	default:
		m.pending.Delete(task.BillID)
		return false
	}
}

func (m *AssistMigrator) Start(ctx context.Context) {
	m.log.Info("[AssistMigrator] 资助字段迁移任务启动")

	for {
		select {
		case <-ctx.Done():
			m.log.Info("[AssistMigrator] 收到停止信号，任务退出")
			return
		case <-m.stopCh:
			m.log.Info("[AssistMigrator] 任务停止")
			return
		case task := <-m.queue:
			m.apply(ctx, task)
		}
	}
}

func (m *AssistMigrator) Stop() {
	close(m.stopCh)
}

func (m *AssistMigrator) apply(ctx context.Context, task *model.AssistMigration) {
	defer m.pending.Delete(task.BillID)

	fields := logrus.Fields{
		"bill_id": task.BillID,
		"slot":    task.Guard.Key,
	}

	applied, err := m.writer.UpdateAssist(ctx, task)
	if err != nil {
		m.log.WithFields(fields).WithError(err).Warn("[AssistMigrator] 资助字段迁移写入失败")
		return
	}
	if applied {
		m.log.WithFields(fields).Info("[AssistMigrator] 旧账单已迁移")
	}
}
