package room

import (
	"sync"
)

// Manager 管理所有房间引擎，房间之间没有共享状态
type Manager struct {
	rooms       map[string]*Engine
	broadcaster Broadcaster
	cfg         Config
	mutex       sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器，cfg 应用于其创建的每个房间
func NewRoomManager(broadcaster Broadcaster, cfg Config) *Manager {
	return &Manager{
		rooms:       make(map[string]*Engine),
		broadcaster: broadcaster,
		cfg:         cfg,
	}
}

// CreateRoom returns the existing engine for id, or creates one hosted by
// hostID. The second result reports whether a room was created.
func (m *Manager) CreateRoom(id, hostID string) (*Engine, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if engine, exists := m.rooms[id]; exists {
		return engine, false
	}
	engine := NewEngine(id, hostID, m.broadcaster, m.cfg)
	m.rooms[id] = engine
	return engine, true
}

// RemoveRoom 从管理器中移除一个房间并停止其发言计时
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	engine, exists := m.rooms[id]
	delete(m.rooms, id)
	m.mutex.Unlock()

	if exists && m.cfg.Clock != nil {
		m.cfg.Clock.StopTurn(engine.ID())
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Engine, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	engine, exists := m.rooms[id]
	return engine, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// IDs returns the ids of all managed rooms.
func (m *Manager) IDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}
