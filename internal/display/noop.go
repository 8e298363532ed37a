package display

import "sync"

// Noop discards updates but remembers the last one, for headless runs and
// tests.
type Noop struct {
	mu    sync.Mutex
	count int
	last  Update
}

// Render records u.
func (n *Noop) Render(u Update) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	n.last = u
}

// Count returns the number of renders.
func (n *Noop) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

// Last returns the most recent update.
func (n *Noop) Last() Update {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
