// room/room.go
package room

import (
	"github.com/wfunc/werewolfroom/knowledge"
	"github.com/wfunc/werewolfroom/state"
)

// 死因
const (
	CauseKilled   = "killed"
	CausePoisoned = "poisoned"
	CauseVoted    = "voted"
	CauseShot     = "shot"
)

// Player 房间中的参与者。出局后保留身份，只把 IsAlive 置为 false。
type Player struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Position      int    `json:"position"`
	IsAI          bool   `json:"isAI"`
	IsAlive       bool   `json:"is_alive"`
	HasActedNight bool   `json:"hasActedNight"`
	HasVoted      bool   `json:"hasVoted"`
	DeathCause    string `json:"deathCause,omitempty"`
}

// NightAction is a private night submission. At most one per player.
type NightAction struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind"`
	TargetID string `json:"targetId,omitempty"`
}

// Vote is keyed on VoterID; TargetID is never empty.
type Vote struct {
	VoterID  string `json:"voterId"`
	TargetID string `json:"targetId"`
}

// Room 是一局游戏全部可变状态的聚合，只能通过 Engine 修改
type Room struct {
	ID           string
	HostID       string
	Phase        state.Phase
	Round        int
	Players      []Player
	NightActions []NightAction
	Votes        []Vote
	SpeakerOrder []string
	SpeakerIndex int
	SpeakerID    string
	SheriffID    string
	Paused       bool
	Winner       string
	Version      uint64
	Knowledge    *knowledge.Book
}

func newRoom(id, hostID string, knowledgeCapacity int) *Room {
	return &Room{
		ID:           id,
		HostID:       hostID,
		Phase:        state.PhaseWaiting,
		Round:        1,
		SpeakerIndex: -1,
		Knowledge:    knowledge.NewBook(knowledgeCapacity),
	}
}

// Snapshot is the broadcastable view of a room. It never carries knowledge
// ledgers or night-action targets.
type Snapshot struct {
	ID               string      `json:"id"`
	HostID           string      `json:"hostId"`
	Phase            state.Phase `json:"phase"`
	Round            int         `json:"round"`
	Version          uint64      `json:"version"`
	Players          []Player    `json:"players"`
	Votes            []Vote      `json:"votes"`
	NightActionCount int         `json:"nightActionCount"`
	SpeakerOrder     []string    `json:"currentSpeakerOrder"`
	SpeakerIndex     int         `json:"currentSpeakerIndex"`
	SpeakerID        string      `json:"currentSpeakerId"`
	SheriffID        string      `json:"sheriffId"`
	Paused           bool        `json:"isPaused"`
	Winner           string      `json:"winner,omitempty"`
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:               r.ID,
		HostID:           r.HostID,
		Phase:            r.Phase,
		Round:            r.Round,
		Version:          r.Version,
		Players:          append([]Player{}, r.Players...),
		Votes:            append([]Vote{}, r.Votes...),
		NightActionCount: len(r.NightActions),
		SpeakerOrder:     append([]string{}, r.SpeakerOrder...),
		SpeakerIndex:     r.SpeakerIndex,
		SpeakerID:        r.SpeakerID,
		SheriffID:        r.SheriffID,
		Paused:           r.Paused,
		Winner:           r.Winner,
	}
}

// clone returns a deep copy including private state.
func (r *Room) clone() *Room {
	c := *r
	c.Players = append([]Player(nil), r.Players...)
	c.NightActions = append([]NightAction(nil), r.NightActions...)
	c.Votes = append([]Vote(nil), r.Votes...)
	c.SpeakerOrder = append([]string(nil), r.SpeakerOrder...)
	c.Knowledge = r.Knowledge.Clone()
	return &c
}

func (r *Room) player(id string) *Player {
	if id == "" {
		return nil
	}
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) playerName(id string) string {
	if p := r.player(id); p != nil {
		return p.Name
	}
	return ""
}

// agents returns the ids of AI-controlled players, in seating order of
// insertion.
func (r *Room) agents() []string {
	var ids []string
	for _, p := range r.Players {
		if p.IsAI {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
