package room

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/werewolfroom/knowledge"
	"github.com/wfunc/werewolfroom/logger"
	"github.com/wfunc/werewolfroom/network"
	"github.com/wfunc/werewolfroom/state"
)

// 命令被忽略的原因，只用于日志与指标
const (
	reasonWrongPhase    = "wrong_phase"
	reasonNotHost       = "not_host"
	reasonNotSheriff    = "not_sheriff"
	reasonNotSpeaker    = "not_speaker"
	reasonUnknownPlayer = "unknown_player"
	reasonBadTarget     = "bad_target"
	reasonPaused        = "paused"
	reasonNoChange      = "no_change"
)

// Config 引擎的可选协作者，nil 字段使用空实现
type Config struct {
	Recorder          Recorder
	Clock             TurnClock
	Stats             Stats
	KnowledgeCapacity int
}

// SpeakerChange is broadcast whenever a new speaker takes the floor.
// Deadline is the turn clock's value in unix milliseconds, nil when the
// clock has none.
type SpeakerChange struct {
	SpeakerID  string `json:"speakerId"`
	Deadline   *int64 `json:"deadline"`
	OrderIndex int    `json:"orderIndex"`
	OrderTotal int    `json:"orderTotal"`
}

// HostEvent 暂停/恢复通知
type HostEvent struct {
	By string `json:"by"`
}

// ForcedSkip 主持人强制跳过发言
type ForcedSkip struct {
	SkippedID string `json:"skippedId"`
	By        string `json:"by"`
}

type outbound struct {
	msgID   uint16
	payload interface{}
}

// Engine is the phase engine of one room. Every exported operation runs
// under the room lock and is a silent no-op when illegal in the current
// phase, issued by the wrong actor or aimed at an invalid target.
// Notifications are queued while the lock is held and delivered after it is
// released.
type Engine struct {
	mu          sync.Mutex
	room        *Room
	machine     *state.Machine
	broadcaster Broadcaster
	recorder    Recorder
	clock       TurnClock
	stats       Stats

	outbox []outbound
	events []ReplayEvent
}

// NewEngine 创建房间引擎，初始阶段为 WAITING
func NewEngine(id, hostID string, broadcaster Broadcaster, cfg Config) *Engine {
	e := &Engine{
		room:        newRoom(id, hostID, cfg.KnowledgeCapacity),
		machine:     state.NewWerewolfMachine(),
		broadcaster: broadcaster,
		recorder:    cfg.Recorder,
		clock:       cfg.Clock,
		stats:       cfg.Stats,
	}
	if e.broadcaster == nil {
		e.broadcaster = nopBroadcaster{}
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.clock == nil {
		e.clock = nopClock{}
	}
	if e.stats == nil {
		e.stats = nopStats{}
	}
	for _, p := range state.Phases {
		phase := p
		e.machine.OnEnter(phase, func(from state.Phase) { e.enterPhase(from, phase) })
	}
	return e
}

func (e *Engine) ID() string {
	return e.room.ID
}

// do runs fn under the room lock. fn returns "" when the command took effect
// or the reason it was ignored.
func (e *Engine) do(command string, fn func() string) {
	e.mu.Lock()
	reason := fn()
	if reason == "" {
		e.room.Version++
		e.emit(network.MsgTypeRoomState, e.room.snapshot())
	} else {
		// 被忽略的命令不能留下任何通知
		e.outbox = e.outbox[:0]
		e.events = e.events[:0]
	}
	outbox, events := e.outbox, e.events
	e.outbox, e.events = nil, nil
	roomID := e.room.ID
	e.mu.Unlock()

	if reason != "" {
		logger.Log.Debugw("command ignored", "room", roomID, "command", command, "reason", reason)
		e.stats.CommandIgnored(command, reason)
		return
	}
	e.stats.CommandApplied(command)
	e.dispatch(roomID, outbox, events)
}

func (e *Engine) dispatch(roomID string, outbox []outbound, events []ReplayEvent) {
	for _, msg := range outbox {
		data, err := json.Marshal(msg.payload)
		if err != nil {
			logger.Log.Errorw("marshal notification", "room", roomID, "msg", msg.msgID, "error", err)
			continue
		}
		if err := e.broadcaster.BroadcastToRoom(roomID, msg.msgID, data); err != nil {
			logger.Log.Warnw("broadcast failed", "room", roomID, "msg", msg.msgID, "error", err)
		}
	}
	for _, ev := range events {
		e.recorder.Record(ev)
	}
}

func (e *Engine) emit(msgID uint16, payload interface{}) {
	e.outbox = append(e.outbox, outbound{msgID: msgID, payload: payload})
}

func (e *Engine) record(kind string, payload interface{}) {
	e.events = append(e.events, ReplayEvent{
		RoomID:  e.room.ID,
		Version: e.room.Version + 1,
		Round:   e.room.Round,
		Phase:   e.room.Phase,
		Kind:    kind,
		Payload: payload,
		At:      time.Now(),
	})
}

// pushPublic writes e to the ledger of every AI player.
func (e *Engine) pushPublic(entry knowledge.Entry) {
	for _, id := range e.room.agents() {
		e.room.Knowledge.Push(id, entry)
	}
}

func (e *Engine) entry(kind knowledge.Kind) knowledge.Entry {
	return knowledge.Entry{Round: e.room.Round, Phase: e.room.Phase.String(), Kind: kind}
}

// enterPhase runs for every transition taken through the machine.
func (e *Engine) enterPhase(from, to state.Phase) {
	e.room.Phase = to
	if to != state.PhaseDayDiscuss {
		e.clearSpeaker()
	}

	switch to {
	case state.PhaseNight:
		if from != state.PhaseWaiting {
			e.room.Round++
		}
		e.room.NightActions = nil
		for i := range e.room.Players {
			e.room.Players[i].HasActedNight = false
		}
	case state.PhaseDayVote:
		e.room.Votes = nil
		for i := range e.room.Players {
			e.room.Players[i].HasVoted = false
		}
	}

	e.announcePhase(from, to)

	if to == state.PhaseDayDiscuss {
		e.startDiscussion()
	}
}

func (e *Engine) announcePhase(from, to state.Phase) {
	entry := e.entry(knowledge.KindPhaseChange)
	entry.Text = to.String()
	e.pushPublic(entry)
	e.record(EventPhase, map[string]interface{}{"from": from, "to": to, "round": e.room.Round})
}

// StartGame moves WAITING to NIGHT. Repeated calls are ignored.
func (e *Engine) StartGame() {
	e.do("start_game", func() string {
		if e.room.Phase != state.PhaseWaiting {
			return reasonWrongPhase
		}
		e.machine.Transition(state.PhaseNight)
		return ""
	})
}

// AddPlayer seats a player while the room is still WAITING. Ids and
// positions must be unique and positions positive.
func (e *Engine) AddPlayer(p Player) {
	e.do("add_player", func() string {
		if e.room.Phase != state.PhaseWaiting {
			return reasonWrongPhase
		}
		if p.ID == "" || p.Position <= 0 || e.room.player(p.ID) != nil {
			return reasonBadTarget
		}
		for _, other := range e.room.Players {
			if other.Position == p.Position {
				return reasonBadTarget
			}
		}
		p.IsAlive = true
		p.HasActedNight, p.HasVoted, p.DeathCause = false, false, ""
		e.room.Players = append(e.room.Players, p)
		sort.SliceStable(e.room.Players, func(i, j int) bool {
			return e.room.Players[i].Position < e.room.Players[j].Position
		})
		if p.IsAI {
			e.room.Knowledge.Ensure(p.ID)
		}
		e.record(EventJoin, p)
		return ""
	})
}

// AdvancePhase is the hook for script logic to move the game along the
// transition table. Illegal edges are ignored.
func (e *Engine) AdvancePhase(to state.Phase) {
	e.do("advance_phase", func() string {
		if e.machine.Transition(to) != nil {
			return reasonWrongPhase
		}
		return ""
	})
}

// EndGame records the winner and moves to GAME_OVER.
func (e *Engine) EndGame(winner string) {
	e.do("end_game", func() string {
		if !e.machine.CanTransition(state.PhaseGameOver) {
			return reasonWrongPhase
		}
		e.room.Winner = winner
		e.machine.Transition(state.PhaseGameOver)
		return ""
	})
}

// Eliminate marks a living player dead. Every AI player learns of the death.
func (e *Engine) Eliminate(playerID, cause string) {
	e.do("eliminate", func() string {
		if e.room.Phase == state.PhaseWaiting || e.room.Phase.Terminal() {
			return reasonWrongPhase
		}
		p := e.room.player(playerID)
		if p == nil || !p.IsAlive {
			return reasonBadTarget
		}
		e.kill(p, cause)
		if cause == CauseVoted {
			entry := e.entry(knowledge.KindVoteEliminate)
			entry.TargetID, entry.TargetName = p.ID, p.Name
			e.pushPublic(entry)
		}
		return ""
	})
}

func (e *Engine) kill(p *Player, cause string) {
	p.IsAlive = false
	p.DeathCause = cause
	entry := e.entry(knowledge.KindDeath)
	entry.TargetID, entry.TargetName, entry.Result = p.ID, p.Name, cause
	e.pushPublic(entry)
	e.record(EventDeath, map[string]string{"playerId": p.ID, "cause": cause})
}

// AppointSheriff hands the badge to a living player, e.g. after an election
// run by script logic.
func (e *Engine) AppointSheriff(playerID string) {
	e.do("appoint_sheriff", func() string {
		if e.room.Phase.Terminal() {
			return reasonWrongPhase
		}
		p := e.room.player(playerID)
		if p == nil || !p.IsAlive || e.room.SheriffID == playerID {
			return reasonBadTarget
		}
		e.setSheriff(playerID)
		return ""
	})
}

func (e *Engine) setSheriff(playerID string) {
	from := e.room.SheriffID
	e.room.SheriffID = playerID
	entry := e.entry(knowledge.KindSheriffChange)
	entry.TargetID, entry.TargetName = playerID, e.room.playerName(playerID)
	e.pushPublic(entry)
	e.record(EventSheriff, map[string]string{"from": from, "to": playerID})
}

// Inform writes a private entry to one agent's ledger, e.g. a seer result.
func (e *Engine) Inform(agentID string, entry knowledge.Entry) {
	e.InformMany([]string{agentID}, entry)
}

// InformMany writes the same private entry to each listed agent, e.g. the
// werewolf team's kill target. Round and phase default to the current ones.
func (e *Engine) InformMany(agentIDs []string, entry knowledge.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry.Round == 0 {
		entry.Round = e.room.Round
	}
	if entry.Phase == "" {
		entry.Phase = e.room.Phase.String()
	}
	for _, id := range agentIDs {
		if id == "" {
			continue
		}
		e.room.Knowledge.Push(id, entry)
	}
}

// DebugRestoreToDayDiscuss forces the room back into DAY_DISCUSS with a
// speaker order rebuilt from the living players. The current speaker is
// speakerID when it is in the new order, otherwise the first entry. Only a
// finished game is out of reach.
func (e *Engine) DebugRestoreToDayDiscuss(speakerID string) {
	e.do("debug_restore", func() string {
		return e.restoreToDayDiscuss(speakerID)
	})
}

func (e *Engine) restoreToDayDiscuss(speakerID string) string {
	if e.room.Phase.Terminal() {
		return reasonWrongPhase
	}
	from := e.room.Phase
	e.clearSpeaker()
	e.machine.Force(state.PhaseDayDiscuss)
	e.room.Phase = state.PhaseDayDiscuss
	e.announcePhase(from, state.PhaseDayDiscuss)

	e.room.SpeakerOrder = e.computeSpeakerOrder()
	index := 0
	for i, id := range e.room.SpeakerOrder {
		if id == speakerID {
			index = i
			break
		}
	}
	if len(e.room.SpeakerOrder) == 0 {
		e.room.SpeakerIndex = -1
		return ""
	}
	e.seatSpeaker(index)
	return ""
}

// Snapshot returns the broadcastable view of the room.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.snapshot()
}

// Knowledge returns agentID's ledger, oldest first.
func (e *Engine) Knowledge(agentID string) []knowledge.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Knowledge.Entries(agentID)
}

func (e *Engine) Phase() state.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Phase
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Paused
}
