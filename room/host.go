package room

import (
	"github.com/wfunc/werewolfroom/network"
	"github.com/wfunc/werewolfroom/state"
)

// isHost is the whole authorization model: one privileged id per room.
func (e *Engine) isHost(id string) bool {
	return id != "" && id == e.room.HostID
}

// HostPauseGame suspends automatic timers. Allowed in any phase.
func (e *Engine) HostPauseGame(hostID string) {
	e.do("host_pause", func() string {
		if !e.isHost(hostID) {
			return reasonNotHost
		}
		if e.room.Paused {
			return reasonNoChange
		}
		e.room.Paused = true
		e.clock.StopTurn(e.room.ID)
		e.emit(network.MsgTypeGamePaused, HostEvent{By: hostID})
		e.record(EventHost, map[string]string{"action": "pause", "by": hostID})
		return ""
	})
}

// HostResumeGame lifts the pause and re-arms the current speaker's turn.
func (e *Engine) HostResumeGame(hostID string) {
	e.do("host_resume", func() string {
		if !e.isHost(hostID) {
			return reasonNotHost
		}
		if !e.room.Paused {
			return reasonNoChange
		}
		e.room.Paused = false
		e.emit(network.MsgTypeGameResumed, HostEvent{By: hostID})
		if e.room.Phase == state.PhaseDayDiscuss && e.room.SpeakerID != "" {
			e.armTurn()
		}
		e.record(EventHost, map[string]string{"action": "resume", "by": hostID})
		return ""
	})
}

// HostForceSkip ends the current speaker's turn immediately, paused or not.
func (e *Engine) HostForceSkip(hostID string) {
	e.do("host_force_skip", func() string {
		if !e.isHost(hostID) {
			return reasonNotHost
		}
		if reason := e.canAdvance(); reason != "" {
			return reason
		}
		skipped := e.room.SpeakerID
		e.emit(network.MsgTypeHostForcedSkip, ForcedSkip{SkippedID: skipped, By: hostID})
		e.record(EventHost, map[string]string{"action": "force_skip", "by": hostID, "skipped": skipped})
		e.nextSpeaker()
		return ""
	})
}

// HostDebugRestore is DebugRestoreToDayDiscuss gated on the host id.
func (e *Engine) HostDebugRestore(hostID, speakerID string) {
	e.do("host_debug_restore", func() string {
		if !e.isHost(hostID) {
			return reasonNotHost
		}
		e.record(EventHost, map[string]string{"action": "debug_restore", "by": hostID})
		return e.restoreToDayDiscuss(speakerID)
	})
}
