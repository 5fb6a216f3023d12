package session

// RepeatEntry is one queued item and how many times it was queued.
type RepeatEntry struct {
	ItemID      string
	RepeatCount int
}

// RepeatQueue holds the items to revisit after the primary pass, in the
// order they were first queued. An item appears at most once.
type RepeatQueue struct {
	entries []RepeatEntry
	index   map[string]int
}

// NewRepeatQueue creates an empty queue.
func NewRepeatQueue() *RepeatQueue {
	return &RepeatQueue{index: make(map[string]int)}
}

// Add queues itemID, or bumps its count if already queued. It reports
// whether the item was newly added.
func (q *RepeatQueue) Add(itemID string) bool {
	if i, ok := q.index[itemID]; ok {
		q.entries[i].RepeatCount++
		return false
	}
	q.index[itemID] = len(q.entries)
	q.entries = append(q.entries, RepeatEntry{ItemID: itemID, RepeatCount: 1})
	return true
}

// Contains reports whether itemID is queued.
func (q *RepeatQueue) Contains(itemID string) bool {
	_, ok := q.index[itemID]
	return ok
}

// Len returns the number of distinct queued items.
func (q *RepeatQueue) Len() int { return len(q.entries) }

// Entries returns a copy of the queue in order.
func (q *RepeatQueue) Entries() []RepeatEntry {
	out := make([]RepeatEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// ItemIDs returns the queued item IDs in order.
func (q *RepeatQueue) ItemIDs() []string {
	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.ItemID
	}
	return out
}
