// services/replay_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/werewolfroom/models"
	"github.com/wfunc/werewolfroom/persistence"
	"github.com/wfunc/werewolfroom/room"
)

var ErrRoomNotRecorded = errors.New("no replay recorded for room")

type ReplayService struct {
	db persistence.Database
}

func NewReplayService(db persistence.Database) *ReplayService {
	return &ReplayService{db: db}
}

// GetReplay 组装房间回放: 全部事件 + 最新快照 + 汇总
func (s *ReplayService) GetReplay(ctx context.Context, roomID string) (*models.Replay, error) {
	events, err := s.db.LoadReplayEvents(ctx, roomID, 0)
	if err != nil {
		return nil, fmt.Errorf("load replay events: %w", err)
	}

	replay := &models.Replay{RoomID: roomID, Events: events}

	snap, err := s.db.LoadRoomSnapshot(ctx, roomID)
	switch {
	case err == nil:
		replay.Snapshot = &snap
	case errors.Is(err, persistence.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load room snapshot: %w", err)
	}

	if len(events) == 0 && replay.Snapshot == nil {
		return nil, ErrRoomNotRecorded
	}

	for _, ev := range events {
		if ev.Round > replay.Rounds {
			replay.Rounds = ev.Round
		}
		if ev.Kind != room.EventDeath {
			continue
		}
		var death struct {
			PlayerID string `json:"playerId"`
		}
		if err := json.Unmarshal(ev.Payload, &death); err == nil && death.PlayerID != "" {
			replay.Deaths = append(replay.Deaths, death.PlayerID)
		}
	}
	return replay, nil
}
