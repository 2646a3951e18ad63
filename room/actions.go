package room

import (
	"github.com/wfunc/werewolfroom/knowledge"
	"github.com/wfunc/werewolfroom/state"
)

// SubmitNightAction stores a living player's night action, replacing any
// earlier one from the same player. Only the actor's own ledger records it.
func (e *Engine) SubmitNightAction(action NightAction) {
	e.do("night_action", func() string {
		if e.room.Phase != state.PhaseNight {
			return reasonWrongPhase
		}
		actor := e.room.player(action.PlayerID)
		if actor == nil || !actor.IsAlive {
			return reasonUnknownPlayer
		}
		if action.TargetID != "" && e.room.player(action.TargetID) == nil {
			return reasonBadTarget
		}

		kept := e.room.NightActions[:0:0]
		for _, a := range e.room.NightActions {
			if a.PlayerID != action.PlayerID {
				kept = append(kept, a)
			}
		}
		e.room.NightActions = append(kept, action)
		actor.HasActedNight = true

		if actor.IsAI {
			entry := e.entry(knowledge.KindNightAction)
			entry.TargetID, entry.TargetName, entry.Text = action.TargetID, e.room.playerName(action.TargetID), action.Kind
			e.room.Knowledge.Push(actor.ID, entry)
		}
		e.record(EventAction, action)
		return ""
	})
}

// SubmitVote records voterID's vote. An empty target withdraws the voter's
// previous vote instead of recording an abstention.
func (e *Engine) SubmitVote(voterID, targetID string) {
	e.do("vote", func() string {
		if e.room.Phase != state.PhaseDayVote {
			return reasonWrongPhase
		}
		voter := e.room.player(voterID)
		if voter == nil || !voter.IsAlive {
			return reasonUnknownPlayer
		}
		var target *Player
		if targetID != "" {
			target = e.room.player(targetID)
			if target == nil || !target.IsAlive {
				return reasonBadTarget
			}
		}

		kept := e.room.Votes[:0:0]
		for _, v := range e.room.Votes {
			if v.VoterID != voterID {
				kept = append(kept, v)
			}
		}
		if target != nil {
			kept = append(kept, Vote{VoterID: voterID, TargetID: targetID})
		}
		e.room.Votes = kept
		voter.HasVoted = true

		entry := e.entry(knowledge.KindVoteCast)
		if target == nil {
			entry.Kind = knowledge.KindVoteWithdrawn
			entry.Text = voter.Name
		} else {
			entry.TargetID, entry.TargetName = target.ID, target.Name
			entry.Text = voter.Name + " -> " + target.Name
		}
		e.pushPublic(entry)
		e.record(EventVote, Vote{VoterID: voterID, TargetID: targetID})
		return ""
	})
}

// SubmitHunterShoot eliminates a living target. The next phase is left to
// script logic.
func (e *Engine) SubmitHunterShoot(playerID, targetID string) {
	e.do("hunter_shoot", func() string {
		if e.room.Phase != state.PhaseHunterShoot {
			return reasonWrongPhase
		}
		target := e.room.player(targetID)
		if target == nil || !target.IsAlive {
			return reasonBadTarget
		}

		entry := e.entry(knowledge.KindHunterShot)
		entry.TargetID, entry.TargetName = target.ID, target.Name
		entry.Text = e.room.playerName(playerID)
		e.pushPublic(entry)
		e.kill(target, CauseShot)
		return ""
	})
}

// SubmitBadgeTransfer lets the current sheriff hand the badge to a living
// player. An empty target tears the badge up.
func (e *Engine) SubmitBadgeTransfer(playerID, targetID string) {
	e.do("badge_transfer", func() string {
		if e.room.Phase != state.PhaseBadgeTransfer {
			return reasonWrongPhase
		}
		if playerID == "" || e.room.SheriffID != playerID {
			return reasonNotSheriff
		}
		if targetID != "" {
			target := e.room.player(targetID)
			if target == nil || !target.IsAlive {
				return reasonBadTarget
			}
		}
		e.setSheriff(targetID)
		return ""
	})
}

// NightReadiness counts eligible players that have acted this night. A nil
// eligible selects the living players.
func (e *Engine) NightReadiness(eligible func(Player) bool) (acted, total int) {
	return e.readiness(eligible, func(p Player) bool { return p.HasActedNight })
}

// VoteReadiness counts eligible players that have voted this round.
func (e *Engine) VoteReadiness(eligible func(Player) bool) (voted, total int) {
	return e.readiness(eligible, func(p Player) bool { return p.HasVoted })
}

func (e *Engine) readiness(eligible, done func(Player) bool) (int, int) {
	if eligible == nil {
		eligible = func(p Player) bool { return p.IsAlive }
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	count, total := 0, 0
	for _, p := range e.room.Players {
		if !eligible(p) {
			continue
		}
		total++
		if done(p) {
			count++
		}
	}
	return count, total
}

// Tally returns the number of votes per target.
func (e *Engine) Tally() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	tally := make(map[string]int)
	for _, v := range e.room.Votes {
		tally[v.TargetID]++
	}
	return tally
}
