package room

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/werewolfroom/state"
)

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	mu       sync.Mutex
	messages []sentMessage
}

type sentMessage struct {
	roomID string
	msgID  uint16
	data   []byte
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{roomID: roomID, msgID: msgID, data: data})
	return nil
}

func (m *MockBroadcaster) count(msgID uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.msgID == msgID {
			n++
		}
	}
	return n
}

func (m *MockBroadcaster) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *MockBroadcaster) last(msgID uint16) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].msgID == msgID {
			return m.messages[i].data
		}
	}
	return nil
}

// fakeClock records turn clock calls and hands out a fixed deadline.
type fakeClock struct {
	deadline time.Time
	started  []string
	stopped  int
}

func (c *fakeClock) StartTurn(roomID, speakerID string) time.Time {
	c.started = append(c.started, speakerID)
	return c.deadline
}

func (c *fakeClock) StopTurn(roomID string) {
	c.stopped++
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []ReplayEvent
}

func (r *fakeRecorder) Record(ev ReplayEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fakeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeStats struct {
	applied map[string]int
	ignored map[string]string
}

func newFakeStats() *fakeStats {
	return &fakeStats{applied: map[string]int{}, ignored: map[string]string{}}
}

func (s *fakeStats) CommandApplied(command string) { s.applied[command]++ }
func (s *fakeStats) CommandIgnored(command, reason string) {
	s.ignored[command] = reason
}

const testHost = "host"

// newTestEngine builds an engine with four seated players: p1..p4 at
// positions 1..4, p2 and p4 AI-controlled.
func newTestEngine(t *testing.T) (*Engine, *MockBroadcaster) {
	t.Helper()
	b := &MockBroadcaster{}
	e := NewEngine("room1", testHost, b, Config{})
	e.AddPlayer(Player{ID: "p1", Name: "Alice", Position: 1})
	e.AddPlayer(Player{ID: "p2", Name: "Bot-2", Position: 2, IsAI: true})
	e.AddPlayer(Player{ID: "p3", Name: "Carol", Position: 3})
	e.AddPlayer(Player{ID: "p4", Name: "Bot-4", Position: 4, IsAI: true})
	if len(e.room.Players) != 4 {
		t.Fatalf("Setup failed: expected 4 players, got %d", len(e.room.Players))
	}
	return e, b
}

// forcePhase puts the engine into phase with no side effects.
func forcePhase(e *Engine, phase state.Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Force(phase)
	e.room.Phase = phase
}

func cloneRoom(e *Engine) *Room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.clone()
}

func assertUnchanged(t *testing.T, before *Room, e *Engine, what string) {
	t.Helper()
	if after := cloneRoom(e); !reflect.DeepEqual(before, after) {
		t.Errorf("%s should leave the room unchanged\nbefore: %+v\nafter:  %+v", what, before, after)
	}
}

func TestNewEngine_Initial(t *testing.T) {
	e := NewEngine("r", testHost, nil, Config{})
	snap := e.Snapshot()

	if snap.Phase != state.PhaseWaiting {
		t.Errorf("Expected WAITING, got %s", snap.Phase)
	}
	if snap.SpeakerIndex != -1 || snap.SpeakerID != "" {
		t.Errorf("Expected unset speaker, got index %d id %q", snap.SpeakerIndex, snap.SpeakerID)
	}
	if snap.Round != 1 {
		t.Errorf("Expected round 1, got %d", snap.Round)
	}
}

func TestEngine_AddPlayer(t *testing.T) {
	e, _ := newTestEngine(t)

	// duplicate id and duplicate position are ignored
	e.AddPlayer(Player{ID: "p1", Name: "Again", Position: 9})
	e.AddPlayer(Player{ID: "p9", Name: "Clash", Position: 2})
	e.AddPlayer(Player{ID: "p0", Name: "Zero", Position: 0})

	if n := len(e.Snapshot().Players); n != 4 {
		t.Fatalf("Expected 4 players after rejected joins, got %d", n)
	}

	e.StartGame()
	e.AddPlayer(Player{ID: "p5", Name: "Late", Position: 5})
	if n := len(e.Snapshot().Players); n != 4 {
		t.Errorf("Joining after the game started should be ignored, got %d players", n)
	}

	for _, p := range e.Snapshot().Players {
		if !p.IsAlive {
			t.Errorf("Player %s should start alive", p.ID)
		}
	}
}

func TestEngine_StartGameIdempotent(t *testing.T) {
	e, b := newTestEngine(t)

	e.StartGame()
	if e.Phase() != state.PhaseNight {
		t.Fatalf("Expected NIGHT after StartGame, got %s", e.Phase())
	}
	before := cloneRoom(e)
	sent := b.total()

	e.StartGame()

	assertUnchanged(t, before, e, "second StartGame")
	if b.total() != sent {
		t.Error("Second StartGame should not broadcast")
	}
}

func TestEngine_PhaseGuards(t *testing.T) {
	ops := []struct {
		name  string
		legal state.Phase
		run   func(e *Engine)
	}{
		{"start_game", state.PhaseWaiting, func(e *Engine) { e.StartGame() }},
		{"add_player", state.PhaseWaiting, func(e *Engine) { e.AddPlayer(Player{ID: "p9", Position: 9}) }},
		{"night_action", state.PhaseNight, func(e *Engine) {
			e.SubmitNightAction(NightAction{PlayerID: "p1", Kind: "kill", TargetID: "p3"})
		}},
		{"vote", state.PhaseDayVote, func(e *Engine) { e.SubmitVote("p1", "p3") }},
		{"hunter_shoot", state.PhaseHunterShoot, func(e *Engine) { e.SubmitHunterShoot("p4", "p3") }},
		{"badge_transfer", state.PhaseBadgeTransfer, func(e *Engine) { e.SubmitBadgeTransfer("p1", "p2") }},
		{"speech_end", state.PhaseDayDiscuss, func(e *Engine) { e.HandleSpeechEnd("p1") }},
		{"host_force_skip", state.PhaseDayDiscuss, func(e *Engine) { e.HostForceSkip(testHost) }},
	}

	for _, op := range ops {
		for _, phase := range state.Phases {
			if phase == op.legal {
				continue
			}
			t.Run(op.name+"/"+phase.String(), func(t *testing.T) {
				e, b := newTestEngine(t)
				e.mu.Lock()
				e.room.SheriffID = "p1"
				e.room.SpeakerOrder = []string{"p1", "p2", "p3", "p4"}
				e.room.SpeakerIndex = 0
				e.room.SpeakerID = "p1"
				e.mu.Unlock()
				forcePhase(e, phase)

				before := cloneRoom(e)
				sent := b.total()

				op.run(e)

				assertUnchanged(t, before, e, op.name+" in "+phase.String())
				if b.total() != sent {
					t.Errorf("%s in %s should not broadcast", op.name, phase)
				}
			})
		}
	}
}

func TestEngine_AdvancePhase(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()

	e.SubmitNightAction(NightAction{PlayerID: "p1", Kind: "kill", TargetID: "p3"})

	// NIGHT -> DAY_VOTE is not an edge
	e.AdvancePhase(state.PhaseDayVote)
	if e.Phase() != state.PhaseNight {
		t.Fatalf("Illegal AdvancePhase should be ignored, got %s", e.Phase())
	}

	e.AdvancePhase(state.PhaseDayDiscuss)
	snap := e.Snapshot()
	if snap.Phase != state.PhaseDayDiscuss {
		t.Fatalf("Expected DAY_DISCUSS, got %s", snap.Phase)
	}
	if !reflect.DeepEqual(snap.SpeakerOrder, []string{"p1", "p2", "p3", "p4"}) {
		t.Errorf("Unexpected speaker order %v", snap.SpeakerOrder)
	}
	if snap.SpeakerIndex != 0 || snap.SpeakerID != "p1" {
		t.Errorf("Expected p1 at index 0, got %q at %d", snap.SpeakerID, snap.SpeakerIndex)
	}

	for _, id := range snap.SpeakerOrder {
		e.HandleSpeechEnd(id)
	}
	if e.Phase() != state.PhaseDayVote {
		t.Fatalf("Expected DAY_VOTE after rotation, got %s", e.Phase())
	}

	snap = e.Snapshot()
	if snap.SpeakerIndex != -1 || snap.SpeakerID != "" {
		t.Errorf("A finished rotation should leave no speaker, got %q at %d", snap.SpeakerID, snap.SpeakerIndex)
	}

	e.SubmitVote("p1", "p3")
	e.AdvancePhase(state.PhaseNight)

	snap = e.Snapshot()
	if snap.Round != 2 {
		t.Errorf("Expected round 2 after the second night starts, got %d", snap.Round)
	}
	if snap.NightActionCount != 0 {
		t.Errorf("Night actions should reset, got %d", snap.NightActionCount)
	}
	for _, p := range snap.Players {
		if p.HasActedNight {
			t.Errorf("Player %s should not be marked as acted in a new night", p.ID)
		}
	}
	// 投票只在进入 DAY_VOTE 时清空
	if len(snap.Votes) != 1 {
		t.Errorf("Votes are kept until the next DAY_VOTE, got %d", len(snap.Votes))
	}

	e.AdvancePhase(state.PhaseDayDiscuss)
	for _, id := range e.Snapshot().SpeakerOrder {
		e.HandleSpeechEnd(id)
	}
	snap = e.Snapshot()
	if snap.Phase != state.PhaseDayVote {
		t.Fatalf("Expected DAY_VOTE after the second rotation, got %s", snap.Phase)
	}
	if len(snap.Votes) != 0 {
		t.Errorf("Votes should reset when DAY_VOTE starts, got %d", len(snap.Votes))
	}
	for _, p := range snap.Players {
		if p.HasVoted {
			t.Errorf("Player %s should not be marked as voted in a new vote", p.ID)
		}
	}
}

func TestEngine_EndGameClearsSpeaker(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()
	e.AdvancePhase(state.PhaseDayDiscuss)
	e.HandleSpeechEnd("p1")

	e.EndGame("wolf")

	snap := e.Snapshot()
	if snap.SpeakerIndex != -1 || snap.SpeakerID != "" {
		t.Errorf("GAME_OVER should leave no speaker, got %q at %d", snap.SpeakerID, snap.SpeakerIndex)
	}
}

func TestEngine_DiscussionWithNobodyAliveFallsThrough(t *testing.T) {
	e := NewEngine("r", testHost, nil, Config{})
	e.AddPlayer(Player{ID: "p1", Position: 1})
	e.StartGame()
	e.Eliminate("p1", CauseKilled)

	e.AdvancePhase(state.PhaseDayDiscuss)

	if e.Phase() != state.PhaseDayVote {
		t.Errorf("An empty speaker order should fall through to DAY_VOTE, got %s", e.Phase())
	}
}

func TestEngine_EndGameIsTerminal(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()

	e.EndGame("villager")
	snap := e.Snapshot()
	if snap.Phase != state.PhaseGameOver || snap.Winner != "villager" {
		t.Fatalf("Expected GAME_OVER won by villager, got %s/%s", snap.Phase, snap.Winner)
	}

	before := cloneRoom(e)
	e.StartGame()
	e.AdvancePhase(state.PhaseNight)
	e.DebugRestoreToDayDiscuss("")
	e.Eliminate("p1", CauseKilled)
	e.EndGame("werewolf")
	assertUnchanged(t, before, e, "operations after GAME_OVER")
}

func TestEngine_Eliminate(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Eliminate("p1", CauseKilled)
	if !e.Snapshot().Players[0].IsAlive {
		t.Fatal("Eliminate in WAITING should be ignored")
	}

	e.StartGame()
	e.Eliminate("p1", CauseKilled)
	e.Eliminate("ghost", CauseKilled)

	p1 := e.Snapshot().Players[0]
	if p1.IsAlive || p1.DeathCause != CauseKilled {
		t.Errorf("Expected p1 killed, got %+v", p1)
	}
	if n := len(e.Snapshot().Players); n != 4 {
		t.Errorf("Eliminated players keep their seat, got %d players", n)
	}
}

func TestEngine_VersionOnlyMovesOnChange(t *testing.T) {
	e, _ := newTestEngine(t)
	v := e.Snapshot().Version

	e.SubmitVote("p1", "p2")
	if e.Snapshot().Version != v {
		t.Error("Ignored command should not bump the version")
	}

	e.StartGame()
	if e.Snapshot().Version != v+1 {
		t.Errorf("Expected version %d, got %d", v+1, e.Snapshot().Version)
	}
}

func TestEngine_NotifiesAfterUnlock(t *testing.T) {
	var e *Engine
	done := make(chan struct{}, 8)
	b := broadcasterFunc(func(roomID string, msgID uint16, data []byte) error {
		// would deadlock if the room lock were still held
		_ = e.Snapshot()
		done <- struct{}{}
		return nil
	})
	e = NewEngine("r", testHost, b, Config{})

	finished := make(chan struct{})
	go func() {
		e.AddPlayer(Player{ID: "p1", Position: 1})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcaster was invoked while the room lock was held")
	}
	if len(done) == 0 {
		t.Error("Expected at least one broadcast")
	}
}

type broadcasterFunc func(roomID string, msgID uint16, data []byte) error

func (f broadcasterFunc) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	return f(roomID, msgID, data)
}

func TestEngine_RecordsReplayEvents(t *testing.T) {
	rec := &fakeRecorder{}
	stats := newFakeStats()
	e := NewEngine("r", testHost, nil, Config{Recorder: rec, Stats: stats})
	e.AddPlayer(Player{ID: "p1", Position: 1})
	e.AddPlayer(Player{ID: "p2", Position: 2})
	e.StartGame()
	e.SubmitNightAction(NightAction{PlayerID: "p1", Kind: "kill", TargetID: "p2"})
	e.SubmitVote("p1", "p2") // wrong phase

	want := []string{EventJoin, EventJoin, EventPhase, EventAction}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected replay kinds %v, got %v", want, got)
	}
	if stats.applied["night_action"] != 1 {
		t.Errorf("Expected one applied night action, got %d", stats.applied["night_action"])
	}
	if stats.ignored["vote"] != reasonWrongPhase {
		t.Errorf("Expected vote ignored for wrong phase, got %q", stats.ignored["vote"])
	}
}
