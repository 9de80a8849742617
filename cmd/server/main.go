package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"schoolbills/internal/config"
	"schoolbills/internal/handler"
	"schoolbills/internal/infrastructure/cache"
	"schoolbills/internal/infrastructure/database"
	"schoolbills/internal/infrastructure/mq"
	"schoolbills/internal/job"
	"schoolbills/internal/logger"
	"schoolbills/internal/repository"
	"schoolbills/internal/service"
	"schoolbills/pkg/idgen"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "schoolbills",
		Short:        "学费账单服务",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "配置文件路径（也可用 BILLS_CONFIG 指定）")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("BILLS_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

// stores 按数据库驱动选出的各类存储
type stores struct {
	bills  service.BillStore
	outbox job.OutboxStore
	legacy job.LegacyStore
}

func openStores(cfg *config.Config, log *logrus.Logger) (*stores, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("使用内存存储，重启后数据丢失")
		mem := repository.NewMemoryBillStore()
		return &stores{bills: mem, outbox: mem, legacy: mem}, nil
	}

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	repo := repository.NewBillRepository(db)
	return &stores{bills: repo, outbox: repository.NewOutboxRepository(db), legacy: repo}, nil
}

func run(configPath string) error {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		return err
	}

	st, err := openStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("初始化存储失败")
		return err
	}
	defer database.Close()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []service.Option

	// Redis 可选：列表缓存 + 批量保存锁
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis, log)
		if err != nil {
			log.WithError(err).Error("连接 Redis 失败")
			return err
		}
		defer rdb.Close()

		opts = append(opts,
			service.WithListCache(cache.NewBillListCache(rdb, cfg.Redis.ListCacheTTL())),
			service.WithBatchLocker(service.RedisBatchLocker(rdb, cfg.Business.BatchLockTTL(), log)),
		)
	}

	// 启动后台任务
	migrator := job.NewAssistMigrator(st.bills, cfg.Business.MigrationQueueSize, log)
	go migrator.Start(ctx)
	opts = append(opts, service.WithMigrationQueue(migrator))

	sweep := job.NewLegacySweepJob(st.legacy, cfg, log)
	go sweep.Start(ctx)

	publisher, err := mq.NewPublisher(&cfg.MQ, log)
	if err != nil {
		log.WithError(err).Error("初始化消息队列失败")
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		sender := job.NewOutboxSender(st.outbox, publisher, cfg, log)
		go sender.Start(ctx)
	}

	svc := service.NewBillService(st.bills, cfg, log, opts...)

	// 设置路由
	router := handler.SetupRouter(handler.NewHandler(svc), log, cfg.Server.Mode)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.WithError(err).Error("服务启动失败")
		return err
	}

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("服务关闭异常")
	}

	log.Info("服务已关闭")
	return nil
}
