package session

import "sync"

// notifier delivers state changes in enqueue order without holding the
// session lock. A callback that triggers another transition only enqueues;
// the goroutine already draining delivers it afterwards.
type notifier struct {
	mu       sync.Mutex
	queue    []StateChange
	draining bool
	fn       func(StateChange)
}

func (n *notifier) enqueue(ch StateChange) {
	if n.fn == nil {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, ch)
	n.mu.Unlock()
}

func (n *notifier) drain() {
	if n.fn == nil {
		return
	}
	n.mu.Lock()
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true
	for len(n.queue) > 0 {
		next := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()
		n.fn(next)
		n.mu.Lock()
	}
	n.draining = false
	n.mu.Unlock()
}
