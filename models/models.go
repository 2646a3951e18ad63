// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// ReplayEvent 持久化的回放事件，按 (Version, Seq) 排序
type ReplayEvent struct {
	ID      string          `json:"id"`
	RoomID  string          `json:"room_id"`
	Version uint64          `json:"version"`
	Seq     int64           `json:"seq"`
	Round   int             `json:"round"`
	Phase   string          `json:"phase"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// RoomSnapshot 房间最近一次的公开快照
type RoomSnapshot struct {
	RoomID    string          `json:"room_id"`
	Version   uint64          `json:"version"`
	Phase     string          `json:"phase"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Replay 一个房间的完整回放
type Replay struct {
	RoomID   string        `json:"room_id"`
	Snapshot *RoomSnapshot `json:"snapshot,omitempty"`
	Events   []ReplayEvent `json:"events"`
	Rounds   int           `json:"rounds"`
	Deaths   []string      `json:"deaths"`
}
