package logic

// Table is the arena of channels owned by the aggregator. Channels are
// addressed by their index; Get never reallocates, so pointers stay valid.
type Table struct {
	channels []Channel
}

// NewTable allocates n disabled channels with the given names.
// Missing names are left empty.
func NewTable(n int, names ...string) *Table {
	t := &Table{channels: make([]Channel, n)}
	for i := range t.channels {
		if i < len(names) {
			t.channels[i].Name = names[i]
		}
	}
	return t
}

// Len returns the number of channels.
func (t *Table) Len() int {
	return len(t.channels)
}

// Get returns the channel with the given id, or nil when out of range.
func (t *Table) Get(id ID) *Channel {
	if id < 0 || int(id) >= len(t.channels) {
		return nil
	}
	return &t.channels[id]
}

// Each calls fn for every channel in id order.
func (t *Table) Each(fn func(ID, *Channel)) {
	for i := range t.channels {
		fn(ID(i), &t.channels[i])
	}
}

// ClearAll clears latches and counters of every channel.
func (t *Table) ClearAll() {
	for i := range t.channels {
		t.channels[i].Clear()
	}
}

// DisableAll disables every channel; configuration re-enables the used ones.
func (t *Table) DisableAll() {
	for i := range t.channels {
		t.channels[i].Enabled = false
	}
}
