package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"schoolbills/internal/config"
	"schoolbills/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ============================================================================
// 进程级数据库连接
// ============================================================================
//
// 连接池在进程内只建立一次，之后所有请求复用：
//   - 启动时由 main 调用 Connect，也可以在第一次使用时懒加载
//   - 多个 goroutine 同时第一次调用 Connect 时，只有一个真正去建连接（singleflight），
//     其余等待同一个结果；建连失败不缓存，下次调用重新尝试
//   - Close 关闭并清空缓存，主要给测试和命令行工具使用
//
// ============================================================================

var ErrUnsupportedDriver = errors.New("不支持的数据库驱动")

var (
	mu    sync.RWMutex
	db    *gorm.DB
	group singleflight.Group
)

// Connect 返回共享连接，首次调用时建立
func Connect(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	mu.RLock()
	conn := db
	mu.RUnlock()
	if conn != nil {
		return conn, nil
	}

	v, err, _ := group.Do("db", func() (interface{}, error) {
		mu.RLock()
		existing := db
		mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		conn, err := open(cfg, log)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		db = conn
		mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB), nil
}

// Close 关闭共享连接
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&model.Bill{},
		&model.BillPayment{},
		&model.OutboxMessage{},
	)
}

func open(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 DB 失败: %w", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"host":   cfg.Host,
		"db":     cfg.Database,
	}).Info("数据库连接成功")
	return conn, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Database,
		)
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Database,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}
