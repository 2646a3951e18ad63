package replay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wfunc/werewolfroom/persistence"
	"github.com/wfunc/werewolfroom/room"
	"github.com/wfunc/werewolfroom/state"
)

func TestRecorder_PersistsEngineEvents(t *testing.T) {
	db := persistence.NewMemory()
	var manager *room.Manager
	rec := NewRecorder(db, 16,
		WithBatch(4, 10*time.Millisecond),
		WithSnapshots(func(roomID string) (room.Snapshot, bool) {
			engine, ok := manager.GetRoom(roomID)
			if !ok {
				return room.Snapshot{}, false
			}
			return engine.Snapshot(), true
		}),
	)

	manager = room.NewRoomManager(nil, room.Config{Recorder: rec})
	engine, _ := manager.CreateRoom("r1", "host")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	engine.AddPlayer(room.Player{ID: "p1", Name: "Alice", Position: 1})
	engine.AddPlayer(room.Player{ID: "p2", Name: "Bob", Position: 2, IsAI: true})
	engine.StartGame()
	engine.AdvancePhase(state.PhaseDayDiscuss)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	events, err := db.LoadReplayEvents(context.Background(), "r1", 0)
	if err != nil {
		t.Fatalf("LoadReplayEvents: %v", err)
	}
	if len(events) < 4 {
		t.Fatalf("Expected at least 4 events, got %d", len(events))
	}
	if events[0].Kind != room.EventJoin || events[0].Version != 1 {
		t.Errorf("Expected the first event to be the version 1 join, got %s v%d", events[0].Kind, events[0].Version)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Version < events[i-1].Version {
			t.Fatalf("Events out of order at %d", i)
		}
	}

	var sawPhase bool
	for _, ev := range events {
		if ev.Kind == room.EventPhase && ev.Phase == string(state.PhaseNight) {
			sawPhase = true
			var payload map[string]interface{}
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload["to"] != string(state.PhaseNight) {
				t.Errorf("Unexpected phase payload %v", payload)
			}
		}
	}
	if !sawPhase {
		t.Error("Expected a NIGHT phase event")
	}

	snap, err := db.LoadRoomSnapshot(context.Background(), "r1")
	if err != nil {
		t.Fatalf("LoadRoomSnapshot: %v", err)
	}
	if snap.Phase != string(state.PhaseDayDiscuss) || snap.Version != engine.Snapshot().Version {
		t.Errorf("Expected the latest DAY_DISCUSS snapshot, got %s v%d", snap.Phase, snap.Version)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	var drops int
	rec := NewRecorder(persistence.NewMemory(), 1, WithDropHook(func() { drops++ }))

	rec.Record(room.ReplayEvent{RoomID: "r1", Version: 1})
	rec.Record(room.ReplayEvent{RoomID: "r1", Version: 2})
	rec.Record(room.ReplayEvent{RoomID: "r1", Version: 3})

	if rec.Dropped() != 2 || drops != 2 {
		t.Errorf("Expected 2 drops, got %d (hook %d)", rec.Dropped(), drops)
	}
}

func TestRecorder_DrainOnShutdown(t *testing.T) {
	db := persistence.NewMemory()
	rec := NewRecorder(db, 8, WithBatch(100, time.Hour))

	for v := uint64(1); v <= 3; v++ {
		rec.Record(room.ReplayEvent{RoomID: "r1", Version: v, Kind: room.EventVote, Phase: state.PhaseDayVote})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	events, _ := db.LoadReplayEvents(context.Background(), "r1", 0)
	if len(events) != 3 {
		t.Errorf("Expected queued events to be drained, got %d", len(events))
	}
}
