package knowledge

import "sort"

// Book maps agent ids to their independent ledgers. It is not safe for
// concurrent use; the owning room engine serializes access.
type Book struct {
	ledgers  map[string]*Ledger
	capacity int
}

// NewBook 创建知识库，capacity 为每个 agent 的容量
func NewBook(capacity int) *Book {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Book{
		ledgers:  make(map[string]*Ledger),
		capacity: capacity,
	}
}

// Ensure returns the agent's ledger, creating an empty one on first access.
func (b *Book) Ensure(agentID string) *Ledger {
	l, ok := b.ledgers[agentID]
	if !ok {
		l = NewLedger(b.capacity)
		b.ledgers[agentID] = l
	}
	return l
}

// Push appends e to agentID's ledger only.
func (b *Book) Push(agentID string, e Entry) {
	b.Ensure(agentID).Append(e)
}

// Entries 返回 agent 的记录副本，未知 agent 返回空切片
func (b *Book) Entries(agentID string) []Entry {
	l, ok := b.ledgers[agentID]
	if !ok {
		return []Entry{}
	}
	return l.Entries()
}

// Agents returns the ids of every agent with a ledger, sorted.
func (b *Book) Agents() []string {
	ids := make([]string, 0, len(b.ledgers))
	for id := range b.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Book) Capacity() int {
	return b.capacity
}

// Clone returns a deep copy.
func (b *Book) Clone() *Book {
	c := &Book{
		ledgers:  make(map[string]*Ledger, len(b.ledgers)),
		capacity: b.capacity,
	}
	for id, l := range b.ledgers {
		c.ledgers[id] = l.clone()
	}
	return c
}
