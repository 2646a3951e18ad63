package state

import (
	"errors"
)

// Phase 房间当前的合法动作阶段
type Phase string

const (
	PhaseWaiting       Phase = "WAITING"
	PhaseNight         Phase = "NIGHT"
	PhaseDayDiscuss    Phase = "DAY_DISCUSS"
	PhaseDayVote       Phase = "DAY_VOTE"
	PhaseHunterShoot   Phase = "HUNTER_SHOOT"
	PhaseBadgeTransfer Phase = "BADGE_TRANSFER"
	PhaseGameOver      Phase = "GAME_OVER"
)

// Phases lists every phase in declaration order.
var Phases = []Phase{
	PhaseWaiting,
	PhaseNight,
	PhaseDayDiscuss,
	PhaseDayVote,
	PhaseHunterShoot,
	PhaseBadgeTransfer,
	PhaseGameOver,
}

func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// EnterHook 进入某个阶段时调用，参数为来源阶段
type EnterHook func(from Phase)

// Machine 阶段状态机。不加锁，由持有它的房间引擎串行访问。
type Machine struct {
	current     Phase
	transitions map[Phase]map[Phase]func() bool // fromState -> toState -> condition
	hooks       map[Phase][]EnterHook
}

func NewMachine(initial Phase) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Phase]map[Phase]func() bool),
		hooks:       make(map[Phase][]EnterHook),
	}
}

// NewWerewolfMachine builds the standard werewolf transition table starting
// in WAITING.
func NewWerewolfMachine() *Machine {
	m := NewMachine(PhaseWaiting)
	edges := map[Phase][]Phase{
		PhaseWaiting:       {PhaseNight},
		PhaseNight:         {PhaseDayDiscuss, PhaseHunterShoot, PhaseBadgeTransfer, PhaseGameOver},
		PhaseDayDiscuss:    {PhaseDayVote, PhaseGameOver},
		PhaseDayVote:       {PhaseNight, PhaseHunterShoot, PhaseBadgeTransfer, PhaseGameOver},
		PhaseHunterShoot:   {PhaseNight, PhaseDayDiscuss, PhaseBadgeTransfer, PhaseGameOver},
		PhaseBadgeTransfer: {PhaseNight, PhaseDayDiscuss, PhaseHunterShoot, PhaseGameOver},
	}
	for from, tos := range edges {
		for _, to := range tos {
			m.AddTransition(from, to, nil)
		}
	}
	return m
}

// AddTransition registers from -> to. A nil condition always allows it.
func (m *Machine) AddTransition(from, to Phase, condition func() bool) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Phase]func() bool)
	}
	m.transitions[from][to] = condition
}

// OnEnter 注册进入 phase 时的回调，按注册顺序执行
func (m *Machine) OnEnter(phase Phase, hook EnterHook) {
	m.hooks[phase] = append(m.hooks[phase], hook)
}

func (m *Machine) Current() Phase {
	return m.current
}

// CanTransition reports whether Transition(to) would succeed.
func (m *Machine) CanTransition(to Phase) bool {
	conditions, exists := m.transitions[m.current]
	if !exists {
		return false
	}
	condition, exists := conditions[to]
	if !exists {
		return false
	}
	return condition == nil || condition()
}

// Transition moves along a registered edge and runs the enter hooks of the
// new phase.
func (m *Machine) Transition(to Phase) error {
	if !m.CanTransition(to) {
		return ErrTransitionNotAllowed
	}
	m.enter(to)
	return nil
}

// Force sets the phase without consulting the transition table. Used only by
// recovery paths; enter hooks are not run.
func (m *Machine) Force(to Phase) {
	m.current = to
}

func (m *Machine) enter(to Phase) {
	from := m.current
	m.current = to
	for _, hook := range m.hooks[to] {
		hook(from)
	}
}
