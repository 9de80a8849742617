package main

import (
	"context"
	"fmt"
	"os"

	"schoolbills/internal/config"
	"schoolbills/internal/infrastructure/database"
	"schoolbills/internal/job"
	"schoolbills/internal/logger"
	"schoolbills/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "billctl",
		Short:        "学费账单运维工具",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "配置文件路径")

	root.AddCommand(migrateCmd(), backfillCmd())

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

func connect() (*config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Database.Driver == config.DriverMemory {
		return nil, nil, nil, fmt.Errorf("内存存储不支持运维命令，请配置 mysql 或 postgres")
	}
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := connect()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			log.Info("表结构已更新")
			return nil
		},
	}
}

func backfillCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "backfill-assist",
		Short: "把旧账单的 amtPaid 迁移到资助字段",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := connect()
			if err != nil {
				return err
			}
			defer database.Close()

			sweep := job.NewLegacySweepJob(repository.NewBillRepository(db), cfg, log).WithBatchSize(batch)
			migrated, err := sweep.RunOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已迁移 %d 条旧账单\n", migrated)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "每页扫描条数，0 表示使用配置 business.legacy_sweep_batch_size")
	return cmd
}
