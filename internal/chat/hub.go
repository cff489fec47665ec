package chat

import (
	"log/slog"
	"sync"
	"time"
)

// Hub is the single owner of the set of connected clients. Joins and shouts
// are serialized through one events channel, so every shout reaches exactly
// the clients whose join was processed before it.
type Hub struct {
	events   chan Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events: make(chan Event, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Join registers relay to receive every shout processed from now on.
func (h *Hub) Join(relay *Relay) error {
	return h.submit(Event{Type: EventJoin, Relay: relay})
}

// Shout asks the hub to relay statement, attributed to nick, to every
// registered client.
func (h *Hub) Shout(nick, statement string) error {
	return h.submit(Event{Type: EventShout, Nick: nick, Statement: statement})
}

func (h *Hub) submit(ev Event) error {
	select {
	case <-h.stopCh:
		return ErrHubStopped
	default:
	}

	select {
	case h.events <- ev:
		return nil
	case <-h.stopCh:
		return ErrHubStopped
	}
}

// Stop signals the Run loop to exit. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Wait blocks until the Run loop has completely finished.
func (h *Hub) Wait() {
	<-h.doneCh
}

func (h *Hub) Run() {
	defer close(h.doneCh)
	// Single-writer ownership: this slice is only accessed in this goroutine.
	// Entries are never removed; a disconnected client's relay stays
	// registered and pushes to it are dropped once it is closed.
	var clients []*Relay

	for {
		select {
		case ev := <-h.events:
			start := time.Now()

			switch ev.Type {
			case EventJoin:
				if ev.Relay == nil {
					h.logger.Warn("ignoring join without relay")
					continue
				}
				clients = append(clients, ev.Relay)
				RegisteredClients.Set(float64(len(clients)))
			case EventShout:
				h.fanOut(clients, ev)
			}

			EventsTotal.WithLabelValues(ev.Type.String()).Inc()
			EventProcessingDuration.WithLabelValues(ev.Type.String()).Observe(time.Since(start).Seconds())
		case <-h.stopCh:
			h.logger.Info("hub stopped", "registered", len(clients))
			return
		}
	}
}

func (h *Hub) fanOut(clients []*Relay, ev Event) {
	msg := RelayMessage{Kind: RelayShout, Nick: ev.Nick, Statement: ev.Statement}
	for _, c := range clients {
		if !c.Push(msg) {
			RelayDropped.Inc()
		}
	}
}
