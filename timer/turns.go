package timer

import (
	"sync"
	"time"
)

// ExpireFunc is told which speaker's turn ran out in which room.
type ExpireFunc func(roomID, speakerID string)

type turn struct {
	token     uint64
	timerID   int64
	speakerID string
}

// TurnScheduler keeps at most one speaking-turn timer per room. It
// implements room.TurnClock.
type TurnScheduler struct {
	timers   *TimerManager
	duration time.Duration
	onExpire ExpireFunc

	mu    sync.Mutex
	seq   uint64
	turns map[string]turn
}

// NewTurnScheduler 创建发言计时器，duration <= 0 时不设截止时间
func NewTurnScheduler(timers *TimerManager, duration time.Duration) *TurnScheduler {
	return &TurnScheduler{
		timers:   timers,
		duration: duration,
		turns:    make(map[string]turn),
	}
}

// OnExpire sets the handler. It must be set before the first turn starts.
func (s *TurnScheduler) OnExpire(fn ExpireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// StartTurn replaces the room's running timer and returns the new deadline.
func (s *TurnScheduler) StartTurn(roomID, speakerID string) time.Time {
	if s.duration <= 0 {
		s.StopTurn(roomID)
		return time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.turns[roomID]; ok {
		s.timers.RemoveTimer(prev.timerID)
	}

	// token 在定时器创建前分配，回调只比较它
	s.seq++
	token := s.seq
	deadline := time.Now().Add(s.duration)
	id := s.timers.AddTimer(s.duration, 0, func() { s.fire(roomID, token) })
	s.turns[roomID] = turn{token: token, timerID: id, speakerID: speakerID}
	return deadline
}

func (s *TurnScheduler) StopTurn(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.turns[roomID]; ok {
		s.timers.RemoveTimer(prev.timerID)
		delete(s.turns, roomID)
	}
}

// Active reports the speaker whose turn is running in roomID.
func (s *TurnScheduler) Active(roomID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turns[roomID]
	return t.speakerID, ok
}

func (s *TurnScheduler) fire(roomID string, token uint64) {
	s.mu.Lock()
	t, ok := s.turns[roomID]
	if !ok || t.token != token {
		s.mu.Unlock()
		return
	}
	delete(s.turns, roomID)
	handler := s.onExpire
	s.mu.Unlock()

	if handler != nil {
		handler(roomID, t.speakerID)
	}
}
