package room

import (
	"sort"

	"github.com/wfunc/werewolfroom/network"
	"github.com/wfunc/werewolfroom/state"
)

// computeSpeakerOrder lists living players by ascending seat position.
func (e *Engine) computeSpeakerOrder() []string {
	alive := make([]Player, 0, len(e.room.Players))
	for _, p := range e.room.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	sort.SliceStable(alive, func(i, j int) bool { return alive[i].Position < alive[j].Position })

	order := make([]string, len(alive))
	for i, p := range alive {
		order[i] = p.ID
	}
	return order
}

// startDiscussion fixes the order for the whole discussion and seats the
// first speaker. An empty order falls straight through to DAY_VOTE.
func (e *Engine) startDiscussion() {
	e.room.SpeakerOrder = e.computeSpeakerOrder()
	if len(e.room.SpeakerOrder) == 0 {
		e.room.SpeakerIndex = -1
		e.machine.Transition(state.PhaseDayVote)
		return
	}
	e.seatSpeaker(0)
}

func (e *Engine) seatSpeaker(index int) {
	e.room.SpeakerIndex = index
	e.room.SpeakerID = e.room.SpeakerOrder[index]
	e.armTurn()
	e.record(EventSpeaker, map[string]interface{}{"speakerId": e.room.SpeakerID, "orderIndex": index})
}

// armTurn starts the turn clock for the current speaker and announces it.
// A paused room announces the speaker without arming the clock.
func (e *Engine) armTurn() {
	change := SpeakerChange{
		SpeakerID:  e.room.SpeakerID,
		OrderIndex: e.room.SpeakerIndex,
		OrderTotal: len(e.room.SpeakerOrder),
	}
	if !e.room.Paused {
		if deadline := e.clock.StartTurn(e.room.ID, e.room.SpeakerID); !deadline.IsZero() {
			ms := deadline.UnixMilli()
			change.Deadline = &ms
		}
	}
	e.emit(network.MsgTypeSpeakerChange, change)
}

// clearSpeaker ends the rotation; index -1 means no discussion is running.
func (e *Engine) clearSpeaker() {
	e.room.SpeakerIndex = -1
	if e.room.SpeakerID == "" {
		return
	}
	e.room.SpeakerID = ""
	e.clock.StopTurn(e.room.ID)
}

// nextSpeaker moves to the next slot of the fixed order, or ends the
// discussion when the order is exhausted. Players who died mid-round keep
// their slot.
func (e *Engine) nextSpeaker() {
	next := e.room.SpeakerIndex + 1
	if next >= len(e.room.SpeakerOrder) {
		e.clearSpeaker()
		e.machine.Transition(state.PhaseDayVote)
		return
	}
	e.seatSpeaker(next)
}

// canAdvance reports why the rotation may not move, or "".
func (e *Engine) canAdvance() string {
	if e.room.Phase != state.PhaseDayDiscuss || e.room.SpeakerID == "" {
		return reasonWrongPhase
	}
	return ""
}

// HandleSpeechEnd advances the rotation when playerID is the current
// speaker. Stale or duplicate signals are ignored.
func (e *Engine) HandleSpeechEnd(playerID string) {
	e.do("speech_end", func() string {
		if reason := e.canAdvance(); reason != "" {
			return reason
		}
		if playerID != e.room.SpeakerID {
			return reasonNotSpeaker
		}
		e.nextSpeaker()
		return ""
	})
}

// ExpireSpeaker is called by the turn clock when speakerID's time is up.
// It never fires while the room is paused.
func (e *Engine) ExpireSpeaker(speakerID string) {
	e.do("speaker_timeout", func() string {
		if reason := e.canAdvance(); reason != "" {
			return reason
		}
		if e.room.Paused {
			return reasonPaused
		}
		if speakerID != e.room.SpeakerID {
			return reasonNotSpeaker
		}
		e.nextSpeaker()
		return ""
	})
}
