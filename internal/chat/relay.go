package chat

import "sync"

// Relay is the mailbox between the hub and one connection's relay flow.
// Push never blocks and the queue has no bound, so a slow reader delays its
// shouts but never loses them. Pushes only fail after Close.
type Relay struct {
	mu     sync.Mutex
	queue  []RelayMessage
	closed bool
	ready  chan struct{}
}

func NewRelay() *Relay {
	return &Relay{ready: make(chan struct{}, 1)}
}

// Push queues msg. It reports false once the relay has been closed.
func (r *Relay) Push(msg RelayMessage) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.ready <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a message is queued and removes it. Only the relay flow
// calls Next.
func (r *Relay) Next() RelayMessage {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			msg := r.queue[0]
			r.queue[0] = RelayMessage{}
			r.queue = r.queue[1:]
			if len(r.queue) == 0 {
				r.queue = nil
			}
			r.mu.Unlock()
			return msg
		}
		r.mu.Unlock()
		<-r.ready
	}
}

// Close refuses further pushes and drops anything still queued, returning how
// many messages were dropped.
func (r *Relay) Close() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	n := len(r.queue)
	r.queue = nil
	return n
}
