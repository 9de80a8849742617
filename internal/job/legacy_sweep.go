package job

import (
	"context"
	"time"

	"schoolbills/internal/config"
	"schoolbills/internal/model"
	"schoolbills/internal/service"

	"github.com/sirupsen/logrus"
)

// LegacyStore 旧数据扫描所需的存储能力
type LegacyStore interface {
	AssistWriter
	FindLegacyCandidates(ctx context.Context, afterID string, limit int) ([]*model.Bill, error)
}

// LegacySweepJob 定期扫描库里还没迁移过的旧账单
// 读取列表时的迁移只覆盖被读到的账单，这里补齐长期没人读的那部分
type LegacySweepJob struct {
	store     LegacyStore
	log       *logrus.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewLegacySweepJob(store LegacyStore, cfg *config.Config, log *logrus.Logger) *LegacySweepJob {
	batchSize := cfg.Business.LegacySweepBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	interval := cfg.Business.LegacySweepInterval()
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &LegacySweepJob{
		store:     store,
		log:       log,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: batchSize,
	}
}

// WithBatchSize 覆盖每页大小（命令行工具使用）
func (j *LegacySweepJob) WithBatchSize(n int) *LegacySweepJob {
	if n > 0 {
		j.batchSize = n
	}
	return j
}

func (j *LegacySweepJob) Start(ctx context.Context) {
	j.log.Info("[LegacySweepJob] 旧账单扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("[LegacySweepJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("[LegacySweepJob] 任务停止")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.log.WithError(err).Error("[LegacySweepJob] 扫描失败")
			}
		}
	}
}

func (j *LegacySweepJob) Stop() {
	close(j.stopCh)
}

// RunOnce 按ID游标扫描全部候选账单，返回实际迁移的条数
func (j *LegacySweepJob) RunOnce(ctx context.Context) (int, error) {
	migrated := 0
	cursor := ""

	for {
		bills, err := j.store.FindLegacyCandidates(ctx, cursor, j.batchSize)
		if err != nil {
			return migrated, err
		}
		if len(bills) == 0 {
			break
		}

		for _, b := range bills {
			_, m := service.NormalizeAssist(b)
			if m == nil {
				continue
			}
			applied, err := j.store.UpdateAssist(ctx, m)
			if err != nil {
				j.log.WithError(err).WithField("bill_id", b.ID).Warn("[LegacySweepJob] 迁移失败")
				continue
			}
			if applied {
				migrated++
			}
		}

		cursor = bills[len(bills)-1].ID
		if len(bills) < j.batchSize {
			break
		}
	}

	if migrated > 0 {
		j.log.WithField("migrated", migrated).Info("[LegacySweepJob] 本次迁移旧账单")
	}
	return migrated, nil
}
