package display

import (
	"sync"
)

// Async delivers updates to a slow renderer on its own goroutine.
// It holds at most one pending update: Render never blocks, and a newer
// update replaces one the renderer has not picked up yet.
type Async struct {
	next Renderer

	mu      sync.Mutex
	pending *Update
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAsync starts delivering to next. Call Close to stop.
func NewAsync(next Renderer) *Async {
	a := &Async{
		next: next,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

// Render queues u, replacing any undelivered update.
func (a *Async) Render(u Update) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = &u
	select {
	case a.wake <- struct{}{}:
	default:
	}
	a.mu.Unlock()
}

// Close delivers the pending update, if any, and stops the goroutine.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.wake)
	a.mu.Unlock()

	<-a.done
	return nil
}

func (a *Async) loop() {
	defer close(a.done)
	for range a.wake {
		a.deliver()
	}
	a.deliver()
}

func (a *Async) deliver() {
	a.mu.Lock()
	u := a.pending
	a.pending = nil
	a.mu.Unlock()

	if u != nil {
		a.next.Render(*u)
	}
}
