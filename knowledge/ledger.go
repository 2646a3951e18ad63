// Package knowledge holds the private, per-agent event logs handed to AI
// players. Every agent gets its own bounded ledger; entries are partitioned
// when they are written, never filtered when they are read.
package knowledge

// DefaultCapacity 每个 agent 最多保留的条目数
const DefaultCapacity = 50

// Kind 知识事件类型
type Kind string

const (
	KindSeerCheck        Kind = "seer_check"
	KindWitchSave        Kind = "witch_save"
	KindWitchPoison      Kind = "witch_poison"
	KindGuardProtect     Kind = "guard_protect"
	KindWerewolfTeamKill Kind = "werewolf_team_kill"
	KindPeaceNight       Kind = "peace_night"
	KindDeath            Kind = "death"
	KindVoteCast         Kind = "vote_cast"
	KindVoteWithdrawn    Kind = "vote_withdrawn"
	KindVoteEliminate    Kind = "vote_eliminate"
	KindNightAction      Kind = "night_action"
	KindPhaseChange      Kind = "phase_change"
	KindSheriffChange    Kind = "sheriff_change"
	KindHunterShot       Kind = "hunter_shot"
	KindNote             Kind = "note"
)

// Entry is one observed event. Entries are never mutated after insertion.
type Entry struct {
	Round      int    `json:"round"`
	Phase      string `json:"phase"`
	Kind       Kind   `json:"type"`
	TargetID   string `json:"targetId,omitempty"`
	TargetName string `json:"targetName,omitempty"`
	Result     string `json:"result,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Ledger is a FIFO log that evicts its oldest entries beyond capacity.
type Ledger struct {
	entries  []Entry
	capacity int
}

// NewLedger creates an empty ledger. A non-positive capacity falls back to
// DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity}
}

// Append 追加一条记录，超出容量时丢弃最旧的记录
func (l *Ledger) Append(e Entry) {
	l.entries = append(l.entries, e)
	if over := len(l.entries) - l.capacity; over > 0 {
		// 复制到新切片，避免底层数组无限增长
		kept := make([]Entry, l.capacity)
		copy(kept, l.entries[over:])
		l.entries = kept
	}
}

// Entries returns a copy of the ledger, oldest first.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

func (l *Ledger) clone() *Ledger {
	return &Ledger{entries: l.Entries(), capacity: l.capacity}
}
