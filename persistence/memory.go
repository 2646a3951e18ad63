package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/werewolfroom/models"
)

// Memory 进程内存储，用于测试和 driver=memory
type Memory struct {
	mutex     sync.RWMutex
	events    map[string][]models.ReplayEvent
	seen      map[string]struct{}
	snapshots map[string]models.RoomSnapshot
}

func NewMemory() *Memory {
	return &Memory{
		events:    make(map[string][]models.ReplayEvent),
		seen:      make(map[string]struct{}),
		snapshots: make(map[string]models.RoomSnapshot),
	}
}

func (m *Memory) SaveReplayEvents(ctx context.Context, events []models.ReplayEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, ev := range events {
		if _, dup := m.seen[ev.ID]; dup {
			continue
		}
		m.seen[ev.ID] = struct{}{}
		m.events[ev.RoomID] = append(m.events[ev.RoomID], ev)
	}
	return nil
}

func (m *Memory) LoadReplayEvents(ctx context.Context, roomID string, afterVersion uint64) ([]models.ReplayEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []models.ReplayEvent
	for _, ev := range m.events[roomID] {
		if ev.Version > afterVersion {
			result = append(result, ev)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Version != result[j].Version {
			return result[i].Version < result[j].Version
		}
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

func (m *Memory) SaveRoomSnapshot(ctx context.Context, snap models.RoomSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if prev, ok := m.snapshots[snap.RoomID]; ok && prev.Version > snap.Version {
		return nil
	}
	m.snapshots[snap.RoomID] = snap
	return nil
}

func (m *Memory) LoadRoomSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.RoomSnapshot{}, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap, ok := m.snapshots[roomID]
	if !ok {
		return models.RoomSnapshot{}, ErrRecordNotFound
	}
	return snap, nil
}

func (m *Memory) Close() error { return nil }
