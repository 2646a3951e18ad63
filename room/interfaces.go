package room

import (
	"time"

	"github.com/wfunc/werewolfroom/state"
)

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// ReplayEvent 一次状态变更的回放记录
type ReplayEvent struct {
	RoomID  string      `json:"room_id"`
	Version uint64      `json:"version"`
	Round   int         `json:"round"`
	Phase   state.Phase `json:"phase"`
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// 回放事件类型
const (
	EventPhase   = "phase"
	EventAction  = "action"
	EventVote    = "vote"
	EventDeath   = "death"
	EventSheriff = "sheriff"
	EventSpeaker = "speaker"
	EventHost    = "host"
	EventJoin    = "join"
)

// Recorder receives replay events after the room lock is released.
type Recorder interface {
	Record(ev ReplayEvent)
}

// TurnClock owns speaking-turn deadlines. StartTurn arms the timer for the
// speaker and returns its deadline (zero when no deadline applies). It is
// called with the room lock held, so implementations must not call back into
// the engine synchronously.
type TurnClock interface {
	StartTurn(roomID, speakerID string) time.Time
	StopTurn(roomID string)
}

// Stats counts applied and ignored commands.
type Stats interface {
	CommandApplied(command string)
	CommandIgnored(command, reason string)
}

type nopRecorder struct{}

func (nopRecorder) Record(ReplayEvent) {}

type nopClock struct{}

func (nopClock) StartTurn(string, string) time.Time { return time.Time{} }
func (nopClock) StopTurn(string)                    {}

type nopStats struct{}

func (nopStats) CommandApplied(string)         {}
func (nopStats) CommandIgnored(string, string) {}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom(string, uint16, []byte) error { return nil }
