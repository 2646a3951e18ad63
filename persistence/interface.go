// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/werewolfroom/models"
)

// Database 回放与快照存储接口
type Database interface {
	// SaveReplayEvents 批量写入，已存在的事件 ID 被忽略
	SaveReplayEvents(ctx context.Context, events []models.ReplayEvent) error
	// LoadReplayEvents returns roomID's events with Version > afterVersion,
	// ordered by (Version, Seq).
	LoadReplayEvents(ctx context.Context, roomID string, afterVersion uint64) ([]models.ReplayEvent, error)
	// SaveRoomSnapshot keeps the newest snapshot per room; an older version
	// never overwrites a newer one.
	SaveRoomSnapshot(ctx context.Context, snap models.RoomSnapshot) error
	LoadRoomSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
