// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	sqlStore
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS replay_events (
        id VARCHAR(36) PRIMARY KEY,
        room_id VARCHAR(255) NOT NULL,
        version BIGINT NOT NULL,
        seq BIGINT NOT NULL,
        round INTEGER NOT NULL,
        phase VARCHAR(32) NOT NULL,
        kind VARCHAR(32) NOT NULL,
        payload JSONB NOT NULL,
        at BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS room_snapshots (
        room_id VARCHAR(255) PRIMARY KEY,
        version BIGINT NOT NULL,
        phase VARCHAR(32) NOT NULL,
        data JSONB NOT NULL,
        updated_at BIGINT NOT NULL
    )`,
	// 创建索引以提高查询性能
	`CREATE INDEX IF NOT EXISTS idx_replay_room_version ON replay_events(room_id, version, seq)`,
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrate(ctx, db, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{sqlStore{db: db}}, nil
}
