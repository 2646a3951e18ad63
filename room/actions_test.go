package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/wfunc/werewolfroom/knowledge"
	"github.com/wfunc/werewolfroom/state"
)

func TestSubmitNightAction_LastWriteWins(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()

	e.SubmitNightAction(NightAction{PlayerID: "p2", Kind: "kill", TargetID: "p1"})
	e.SubmitNightAction(NightAction{PlayerID: "p2", Kind: "kill", TargetID: "p3"})

	e.mu.Lock()
	actions := append([]NightAction(nil), e.room.NightActions...)
	e.mu.Unlock()

	if len(actions) != 1 {
		t.Fatalf("Expected exactly one action for p2, got %d", len(actions))
	}
	if actions[0].TargetID != "p3" {
		t.Errorf("Expected the second payload to win, got target %s", actions[0].TargetID)
	}

	acted, total := e.NightReadiness(nil)
	if acted != 1 || total != 4 {
		t.Errorf("Expected readiness 1/4, got %d/%d", acted, total)
	}
}

func TestSubmitNightAction_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()
	e.Eliminate("p3", CauseKilled)
	before := cloneRoom(e)

	e.SubmitNightAction(NightAction{PlayerID: "ghost", Kind: "check", TargetID: "p1"})
	e.SubmitNightAction(NightAction{PlayerID: "p3", Kind: "check", TargetID: "p1"})
	e.SubmitNightAction(NightAction{PlayerID: "p1", Kind: "check", TargetID: "nobody"})

	assertUnchanged(t, before, e, "invalid night actions")

	// no target is a legal payload, e.g. a witch passing
	e.SubmitNightAction(NightAction{PlayerID: "p1", Kind: "pass"})
	if acted, _ := e.NightReadiness(nil); acted != 1 {
		t.Errorf("Expected the targetless action to count, got %d acted", acted)
	}
}

func TestSubmitNightAction_OnlyActorLearns(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()

	e.SubmitNightAction(NightAction{PlayerID: "p2", Kind: "check", TargetID: "p3"})

	var own []knowledge.Entry
	for _, entry := range e.Knowledge("p2") {
		if entry.Kind == knowledge.KindNightAction {
			own = append(own, entry)
		}
	}
	if len(own) != 1 || own[0].TargetID != "p3" || own[0].Text != "check" {
		t.Fatalf("Actor should record its own action, got %+v", own)
	}

	for _, entry := range e.Knowledge("p4") {
		if entry.Kind == knowledge.KindNightAction {
			t.Errorf("Another agent must not learn p2's night action: %+v", entry)
		}
	}
}

func TestSubmitVote_Withdrawal(t *testing.T) {
	e, _ := newTestEngine(t)
	forcePhase(e, state.PhaseDayVote)

	e.SubmitVote("p1", "p3")
	e.SubmitVote("p1", "")

	snap := e.Snapshot()
	if len(snap.Votes) != 0 {
		t.Fatalf("Withdrawal should remove the vote entirely, got %+v", snap.Votes)
	}
	if !snap.Players[0].HasVoted {
		t.Error("Withdrawing still marks the voter as having voted")
	}
}

func TestSubmitVote_LastWriteWinsAndTally(t *testing.T) {
	e, _ := newTestEngine(t)
	forcePhase(e, state.PhaseDayVote)

	e.SubmitVote("p1", "p3")
	e.SubmitVote("p1", "p4")
	e.SubmitVote("p2", "p4")
	e.SubmitVote("p3", "ghost")

	snap := e.Snapshot()
	if len(snap.Votes) != 2 {
		t.Fatalf("Expected two votes, got %+v", snap.Votes)
	}

	tally := e.Tally()
	if tally["p4"] != 2 || tally["p3"] != 0 {
		t.Errorf("Unexpected tally %v", tally)
	}

	voted, total := e.VoteReadiness(nil)
	if voted != 2 || total != 4 {
		t.Errorf("Expected vote readiness 2/4, got %d/%d", voted, total)
	}

	humans := func(p Player) bool { return p.IsAlive && !p.IsAI }
	voted, total = e.VoteReadiness(humans)
	if voted != 1 || total != 2 {
		t.Errorf("Expected human vote readiness 1/2, got %d/%d", voted, total)
	}
}

func TestSubmitVote_PublicToAgents(t *testing.T) {
	e, _ := newTestEngine(t)
	forcePhase(e, state.PhaseDayVote)

	e.SubmitVote("p1", "p3")

	for _, agent := range []string{"p2", "p4"} {
		entries := e.Knowledge(agent)
		last := entries[len(entries)-1]
		if last.Kind != knowledge.KindVoteCast || last.TargetID != "p3" || last.Text != "Alice -> Carol" {
			t.Errorf("Agent %s should see the public vote, got %+v", agent, last)
		}
	}
	if got := e.Knowledge("p1"); len(got) != 0 {
		t.Errorf("Human players have no ledger entries, got %+v", got)
	}
}

func TestSubmitVote_Concurrent(t *testing.T) {
	e, _ := newTestEngine(t)
	forcePhase(e, state.PhaseDayVote)

	voters := []string{"p1", "p2", "p3", "p4"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, v := range voters {
			wg.Add(1)
			go func(voter string, i int) {
				defer wg.Done()
				target := voters[i%len(voters)]
				e.SubmitVote(voter, target)
			}(v, i)
		}
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, v := range e.Snapshot().Votes {
		if seen[v.VoterID] {
			t.Fatalf("Voter %s has more than one vote", v.VoterID)
		}
		seen[v.VoterID] = true
	}
	if len(seen) != len(voters) {
		t.Errorf("Expected one vote per voter, got %d", len(seen))
	}
}

func TestSubmitHunterShoot(t *testing.T) {
	e, _ := newTestEngine(t)
	forcePhase(e, state.PhaseHunterShoot)

	e.SubmitHunterShoot("p4", "p1")
	snap := e.Snapshot()
	if snap.Players[0].IsAlive {
		t.Fatal("Hunter shot should eliminate p1")
	}
	if snap.Phase != state.PhaseHunterShoot {
		t.Errorf("Hunter shot must not change the phase, got %s", snap.Phase)
	}

	before := cloneRoom(e)
	e.SubmitHunterShoot("p4", "p1")
	e.SubmitHunterShoot("p4", "ghost")
	assertUnchanged(t, before, e, "shooting a dead or missing target")
}

func TestSubmitBadgeTransfer(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()
	e.AppointSheriff("p1")
	forcePhase(e, state.PhaseBadgeTransfer)

	before := cloneRoom(e)
	e.SubmitBadgeTransfer("p2", "p3")
	assertUnchanged(t, before, e, "badge transfer by a non-sheriff")

	e.SubmitBadgeTransfer("p1", "p3")
	if got := e.Snapshot().SheriffID; got != "p3" {
		t.Fatalf("Expected sheriff p3, got %s", got)
	}

	// the old sheriff can no longer move the badge
	e.SubmitBadgeTransfer("p1", "p2")
	if got := e.Snapshot().SheriffID; got != "p3" {
		t.Errorf("Expected sheriff to stay p3, got %s", got)
	}

	e.SubmitBadgeTransfer("p3", "")
	if got := e.Snapshot().SheriffID; got != "" {
		t.Errorf("Empty target should tear up the badge, got %s", got)
	}
}

func TestEliminate_PublicDeath(t *testing.T) {
	e, _ := newTestEngine(t)
	e.StartGame()

	e.Eliminate("p3", CauseVoted)

	entries := e.Knowledge("p2")
	var kinds []knowledge.Kind
	for _, entry := range entries {
		kinds = append(kinds, entry.Kind)
	}
	want := fmt.Sprint([]knowledge.Kind{knowledge.KindPhaseChange, knowledge.KindDeath, knowledge.KindVoteEliminate})
	if fmt.Sprint(kinds) != want {
		t.Errorf("Expected %s, got %v", want, kinds)
	}
}
