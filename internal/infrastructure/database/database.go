// Package database 開啟 sqlite 連線並執行資料表遷移。
package database

import (
	"context"
	"fmt"
	"time"

	"meal-planner/internal/infrastructure/config"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database gorm 連線包裝
type Database struct {
	db *gorm.DB
}

// Open 開啟資料庫；Path 為空時使用記憶體資料庫
func Open(cfg config.DatabaseConfig) (*Database, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	level := logger.Silent
	if cfg.LogQueries {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// sqlite 單一寫入者；記憶體資料庫也只能存在於單一連線
	sqlDB.SetMaxOpenConns(1)

	common.LogInfo("database opened", zap.String("path", path))
	return &Database{db: db}, nil
}

// AutoMigrate 遷移資料表
func (d *Database) AutoMigrate(models ...interface{}) error {
	if err := d.db.AutoMigrate(models...); err != nil {
		common.LogError("auto migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	common.LogInfo("database migrated", zap.Int("tables", len(models)))
	return nil
}

// DB 取得 gorm 連線
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Ping 健康檢查
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 關閉連線
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
