package job

import (
	"context"
	"time"

	"schoolbills/internal/config"
	"schoolbills/internal/infrastructure/mq"
	"schoolbills/internal/model"

	"github.com/sirupsen/logrus"
)

// OutboxStore 待投递事件消息的存取
// repository.OutboxRepository 与 repository.MemoryBillStore 都实现了它
type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkAsSent(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// OutboxSender 把缴费事件投递到消息队列
// 失败时累加重试次数，超过 business.max_retry_count 标记为失败
type OutboxSender struct {
	outbox    OutboxStore
	publisher mq.Publisher
	cfg       *config.Config
	log       *logrus.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOutboxSender(outbox OutboxStore, publisher mq.Publisher, cfg *config.Config, log *logrus.Logger) *OutboxSender {
	return &OutboxSender{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		stopCh:    make(chan struct{}),
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outbox.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("[OutboxSender] 查询消息失败")
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	fields := logrus.Fields{
		"id":    msg.ID,
		"topic": msg.Topic,
		"key":   msg.MessageKey,
	}

	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		if updateErr := s.outbox.MarkAsSent(ctx, msg.ID); updateErr != nil {
			s.log.WithFields(fields).WithError(updateErr).Error("[OutboxSender] 更新消息状态失败")
		} else {
			s.log.WithFields(fields).Debug("[OutboxSender] 消息发送成功")
		}
		return
	}

	s.log.WithFields(fields).WithError(err).Warn("[OutboxSender] 消息发送失败")

	if err := s.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.WithFields(fields).WithError(err).Error("[OutboxSender] 增加重试次数失败")
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.WithFields(fields).WithError(err).Error("[OutboxSender] 标记消息失败状态失败")
		} else {
			s.log.WithFields(fields).Error("[OutboxSender] 消息超过最大重试次数，标记为失败")
		}
	}
}
