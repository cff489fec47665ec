package chat

import (
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/andy6609/chattalk-server/internal/plaintalk"
)

// ConnOptions tunes one connection.
type ConnOptions struct {
	MaxFieldSize int
	Logger       *slog.Logger
}

// ServeConn runs one client connection to completion. It joins the hub, then
// runs the dispatcher over rw next to a relay flow that writes hub shouts to
// the same stream. When the dispatcher stops, the relay flow is told to
// terminate and both are waited for. The dispatcher's error is returned.
//
// ServeConn does not close rw.
func ServeConn(rw io.ReadWriter, hub HubClient, auth Authenticator, opts ConnOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parser := plaintalk.NewParser(rw, opts.MaxFieldSize)
	out := NewWriter(rw)

	relay := NewRelay()
	if err := hub.Join(relay); err != nil {
		return fmt.Errorf("join hub: %w", err)
	}

	d := NewDispatcher(out, hub, auth, logger)

	var g errgroup.Group
	g.Go(func() error {
		relayShouts(out, relay, logger)
		return nil
	})
	g.Go(func() error {
		err := d.Serve(parser)
		relay.Push(RelayMessage{Kind: RelayTerminate})
		return err
	})
	return g.Wait()
}

// relayShouts drains relay until it sees RelayTerminate, then closes it so
// the hub stops queueing for this connection. After a write error it keeps
// draining without writing so the terminate message is always received.
func relayShouts(out *Writer, relay *Relay, logger *slog.Logger) {
	defer func() {
		if n := relay.Close(); n > 0 {
			logger.Debug("relay closed with queued shouts", "dropped", n)
		}
	}()

	failed := false
	for {
		msg := relay.Next()
		switch msg.Kind {
		case RelayTerminate:
			return
		case RelayShout:
			if failed {
				continue
			}
			if err := out.Send("*", "shout", msg.Nick, msg.Statement); err != nil {
				logger.Warn("relay write failed", "error", err)
				failed = true
			}
		}
	}
}
