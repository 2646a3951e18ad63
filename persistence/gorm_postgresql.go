// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/werewolfroom/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormReplayEvent{}, &models.GormRoomSnapshot{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveReplayEvents(ctx context.Context, events []models.ReplayEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]models.GormReplayEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, models.NewGormReplayEvent(ev))
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, 100).Error
	})
}

func (p *GormPostgreSQL) LoadReplayEvents(ctx context.Context, roomID string, afterVersion uint64) ([]models.ReplayEvent, error) {
	var rows []models.GormReplayEvent
	err := p.db.WithContext(ctx).
		Where("room_id = ? AND version > ?", roomID, afterVersion).
		Order("version, seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]models.ReplayEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.Model())
	}
	return events, nil
}

func (p *GormPostgreSQL) SaveRoomSnapshot(ctx context.Context, snap models.RoomSnapshot) error {
	row := models.GormRoomSnapshot{
		RoomID:    snap.RoomID,
		Version:   snap.Version,
		Phase:     snap.Phase,
		Data:      models.JSONText(snap.Data),
		UpdatedAt: snap.UpdatedAt,
	}
	// 旧版本不能覆盖新版本
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "phase", "data", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "room_snapshots.version <= excluded.version"},
		}},
	}).Create(&row).Error
}

func (p *GormPostgreSQL) LoadRoomSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	var row models.GormRoomSnapshot
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoomSnapshot{}, ErrRecordNotFound
		}
		return models.RoomSnapshot{}, err
	}
	return models.RoomSnapshot{
		RoomID:    row.RoomID,
		Version:   row.Version,
		Phase:     row.Phase,
		Data:      []byte(row.Data),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
