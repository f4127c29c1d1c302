package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/rkscollector/rkscollector/internal/config"
	"github.com/rkscollector/rkscollector/internal/model"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

var db *gorm.DB

// Open 打开 SQLite 并迁移表结构，使用 modernc.org/sqlite 纯 Go 驱动
func Open(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		SkipDefaultTransaction: true,
	}

	dsn := path + "?_pragma=busy_timeout(15000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	g, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接，保证 PRAGMA 生效并避免写锁争用
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	if err := g.AutoMigrate(&model.OperationRun{}, &model.CommandRun{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return g, nil
}

// InitSQLite 初始化全局数据库
func InitSQLite(cfg config.DatabaseConfig) error {
	g, err := Open(cfg.Path)
	if err != nil {
		return err
	}
	db = g
	logger.Infof("SQLite database initialized at %s", cfg.Path)
	return nil
}

// GetDB 获取数据库实例，未初始化时为 nil
func GetDB() *gorm.DB {
	return db
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// WithRetry 并发锁错误时短暂重试
func WithRetry(ctx context.Context, g *gorm.DB, fn func(*gorm.DB) error, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	sleep := 50 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(g.WithContext(ctx))
		if err == nil || !IsBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleep):
		}
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func Health() error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
