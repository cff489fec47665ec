package chat

import (
	"io"
	"sync"

	"github.com/andy6609/chattalk-server/internal/plaintalk"
)

// Writer is the outbound side of one connection. It is shared by the reply
// path and the relay flow; both hold its mutex for a whole message so frames
// never interleave on the wire.
type Writer struct {
	mu  sync.Mutex
	gen *plaintalk.Generator
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{gen: plaintalk.NewGenerator(w)}
}

// Send writes one message and flushes it.
func (w *Writer) Send(fields ...string) error {
	return w.Batch(func(g *plaintalk.Generator) error {
		return g.WriteStrings(fields...)
	})
}

// Batch runs fn with the writer locked and flushes once fn succeeds, so a
// multi-message reply reaches the peer as one uninterrupted sequence.
func (w *Writer) Batch(fn func(g *plaintalk.Generator) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := fn(w.gen); err != nil {
		return err
	}
	return w.gen.Flush()
}
