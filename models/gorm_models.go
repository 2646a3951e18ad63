// models/gorm_models.go
package models

import (
	"time"
)

// GormReplayEvent 回放事件表
type GormReplayEvent struct {
	ID        string `gorm:"primaryKey;size:36"`
	RoomID    string `gorm:"index:idx_replay_room_version,priority:1;not null"`
	Version   uint64 `gorm:"index:idx_replay_room_version,priority:2;not null"`
	Seq       int64  `gorm:"not null"`
	Round     int    `gorm:"not null"`
	Phase     string `gorm:"size:32;not null"`
	Kind      string `gorm:"size:32;not null"`
	Payload   string `gorm:"type:jsonb"`
	At        time.Time
	CreatedAt time.Time
}

func (GormReplayEvent) TableName() string { return "replay_events" }

// GormRoomSnapshot 房间快照表，每个房间一行
type GormRoomSnapshot struct {
	RoomID    string `gorm:"primaryKey;size:255"`
	Version   uint64 `gorm:"not null"`
	Phase     string `gorm:"size:32;not null"`
	Data      string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (GormRoomSnapshot) TableName() string { return "room_snapshots" }

func (e GormReplayEvent) Model() ReplayEvent {
	return ReplayEvent{
		ID:      e.ID,
		RoomID:  e.RoomID,
		Version: e.Version,
		Seq:     e.Seq,
		Round:   e.Round,
		Phase:   e.Phase,
		Kind:    e.Kind,
		Payload: []byte(e.Payload),
		At:      e.At,
	}
}

func NewGormReplayEvent(e ReplayEvent) GormReplayEvent {
	return GormReplayEvent{
		ID:      e.ID,
		RoomID:  e.RoomID,
		Version: e.Version,
		Seq:     e.Seq,
		Round:   e.Round,
		Phase:   e.Phase,
		Kind:    e.Kind,
		Payload: JSONText(e.Payload),
		At:      e.At,
	}
}

// JSONText 空载荷存为 JSON null，jsonb 列不接受空串
func JSONText(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
