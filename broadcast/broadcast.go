// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/werewolfroom/logger"
	"github.com/wfunc/werewolfroom/session"
)

var (
	// ErrNoListeners 房间内没有已绑定的会话
	ErrNoListeners = errors.New("no sessions bound to room")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	SendToPlayer(roomID, playerID string, msgID uint16, data []byte) error
}

// 基于会话的房间广播器，实现 room.Broadcaster
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager}
}

// BroadcastToRoom sends to every session bound to roomID. A failing session
// does not stop delivery to the rest.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	sessions := b.sessionManager.ByRoom(roomID)
	if len(sessions) == 0 {
		return ErrNoListeners
	}
	b.send(sessions, msgID, data)
	return nil
}

func (b *RoomBroadcaster) SendToPlayer(roomID, playerID string, msgID uint16, data []byte) error {
	sessions := b.sessionManager.ByPlayer(roomID, playerID)
	if len(sessions) == 0 {
		return ErrNoListeners
	}
	b.send(sessions, msgID, data)
	return nil
}

func (b *RoomBroadcaster) send(sessions []*session.Session, msgID uint16, data []byte) {
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 连接由读循环负责清理
			logger.Log.Debugw("send failed", "session", s.ID, "msg", msgID, "error", err)
		}
	}
}
