package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/andy6609/chattalk-server/internal/plaintalk"
)

// ProtocolName is the protocol acknowledged by "protocol".
const ProtocolName = "chattalk"

// authUnix is the only auth method the dispatcher knows about.
const authUnix = "unix"

const (
	usageBasicStructure = "Invalid format. Basic structure of all messages is: " +
		"<message-ID> <command> [command arguments...] (try `0 help`)"
	usageHelp     = "Usage: <msg-id> help"
	usageJoin     = "Usage: <msg-id> join <channel-name>"
	usageNick     = "Usage: <msg-id> nick <new-nick>"
	usageShout    = "Usage: <msg-id> shout <statement>"
	usageAuth     = "Usage: <msg-id> auth <auth-method> ..."
	usageAuthUnix = "Usage: <msg-id> auth unix"

	helpText = "Available commands:\n" +
		"<msgid> protocol {<feature> ...}    Protocol negotiation (not implemented)\n" +
		"<msgid> join <channel>              Join (not implemented)\n" +
		"<msgid> nick <new nick>             Set your nick to <new nick>\n" +
		"<msgid> shout <statement>           Shout a statement to all connected clients\n" +
		"<msgid> auth unix                   Set your nick to your local user name (Unix socket only)"
)

// usageError marks a malformed command. It is answered with an
// invalid-command reply and never ends the connection.
type usageError struct {
	usage string
}

func (e usageError) Error() string { return e.usage }

type commandFunc func(d *Dispatcher, id string, m *plaintalk.Message) error

var commands = map[string]commandFunc{
	"auth":     (*Dispatcher).cmdAuth,
	"help":     (*Dispatcher).cmdHelp,
	"join":     (*Dispatcher).cmdJoin,
	"nick":     (*Dispatcher).cmdNick,
	"protocol": (*Dispatcher).cmdProtocol,
	"shout":    (*Dispatcher).cmdShout,
}

// Dispatcher interprets the message stream of one connection. Each message is
// an independent request; the only state carried between them is the nick.
type Dispatcher struct {
	nick   string
	out    *Writer
	hub    HubClient
	auth   Authenticator
	logger *slog.Logger
}

func NewDispatcher(out *Writer, hub HubClient, auth Authenticator, logger *slog.Logger) *Dispatcher {
	if auth == nil {
		auth = NoAuth{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		out:    out,
		hub:    hub,
		auth:   auth,
		logger: logger,
	}
}

// Nick returns the current nick of the session.
func (d *Dispatcher) Nick() string {
	return d.nick
}

// Serve handles messages until the stream ends, the peer sends the empty
// end-of-session message, or a codec or hub error occurs. Only the latter is
// returned as an error.
func (d *Dispatcher) Serve(p *plaintalk.Parser) error {
	for {
		msg, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		id, err := msg.ReadString()
		if errors.Is(err, plaintalk.ErrEndOfMessage) {
			panic("plaintalk parser yielded a message with zero fields")
		}
		if err != nil {
			return fmt.Errorf("read message id: %w", err)
		}

		if id == "" && msg.AtEnd() {
			return nil
		}

		if err := d.handle(id, msg); err != nil {
			var ue usageError
			if !errors.As(err, &ue) {
				return err
			}
			if err := d.out.Send(id, "error", "invalid-command", ue.usage); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
			if err := msg.Discard(); err != nil {
				return fmt.Errorf("discard message: %w", err)
			}
		}
	}
}

func (d *Dispatcher) handle(id string, m *plaintalk.Message) error {
	command, err := expectField(m, usageBasicStructure)
	if err != nil {
		return err
	}

	cmd, ok := commands[command]
	if !ok {
		CommandsTotal.WithLabelValues("unknown").Inc()
		if err := m.Discard(); err != nil {
			return err
		}
		return d.out.Send(id, "error", "invalid-command", "unknown command: "+command)
	}

	CommandsTotal.WithLabelValues(command).Inc()
	return cmd(d, id, m)
}

func (d *Dispatcher) cmdHelp(id string, m *plaintalk.Message) error {
	if err := expectEnd(m, usageHelp); err != nil {
		return err
	}
	return d.out.Batch(func(g *plaintalk.Generator) error {
		if err := g.WriteStrings("*", "note", helpText); err != nil {
			return err
		}
		return g.WriteStrings(id, "ok")
	})
}

func (d *Dispatcher) cmdProtocol(id string, m *plaintalk.Message) error {
	if err := m.Discard(); err != nil {
		return err
	}
	return d.out.Batch(func(g *plaintalk.Generator) error {
		if err := g.WriteStrings("*", "note", "'protocol' currently has no effect"); err != nil {
			return err
		}
		return g.WriteStrings(id, "ok", ProtocolName)
	})
}

func (d *Dispatcher) cmdJoin(id string, m *plaintalk.Message) error {
	channel, err := expectField(m, usageJoin)
	if err != nil {
		return err
	}
	if err := expectEnd(m, usageJoin); err != nil {
		return err
	}

	return d.out.Batch(func(g *plaintalk.Generator) error {
		if err := g.WriteStrings("*", "note", "'join' currently has no effect"); err != nil {
			return err
		}
		if err := g.WriteStrings("*", "join", d.nick, channel); err != nil {
			return err
		}
		return g.WriteStrings(id, "ok")
	})
}

func (d *Dispatcher) cmdNick(id string, m *plaintalk.Message) error {
	newNick, err := expectField(m, usageNick)
	if err != nil {
		return err
	}
	if err := expectEnd(m, usageNick); err != nil {
		return err
	}

	return d.out.Batch(func(g *plaintalk.Generator) error {
		// The announcement carries the old nick, so it goes out first.
		if err := g.WriteStrings("*", "nick", d.nick, newNick); err != nil {
			return err
		}
		d.nick = newNick
		return g.WriteStrings(id, "ok")
	})
}

func (d *Dispatcher) cmdShout(id string, m *plaintalk.Message) error {
	statement, err := expectField(m, usageShout)
	if err != nil {
		return err
	}
	if err := expectEnd(m, usageShout); err != nil {
		return err
	}

	// Holding the writer while submitting puts our "ok" ahead of our own
	// relayed copy of the shout.
	return d.out.Batch(func(g *plaintalk.Generator) error {
		if err := d.hub.Shout(d.nick, statement); err != nil {
			return fmt.Errorf("submit shout: %w", err)
		}
		return g.WriteStrings(id, "ok")
	})
}

func (d *Dispatcher) cmdAuth(id string, m *plaintalk.Message) error {
	method, err := expectField(m, usageAuth)
	if err != nil {
		return err
	}

	if method != authUnix || !d.auth.Supports(method) {
		if err := m.Discard(); err != nil {
			return err
		}
		return d.out.Send(id, "error", "unknown-method", "unknown authentication method: "+method)
	}

	if err := expectEnd(m, usageAuthUnix); err != nil {
		return err
	}

	identity, err := d.auth.Authenticate(method)
	if err != nil {
		d.logger.Info("unix authentication failed", "error", err)
		return d.out.Send(id, "error", "auth-failed", "Unix authentication failed")
	}

	return d.out.Batch(func(g *plaintalk.Generator) error {
		d.nick = identity
		return g.WriteStrings(id, "ok", identity)
	})
}

// expectField reads the next field, turning a missing one into usage.
func expectField(m *plaintalk.Message, usage string) (string, error) {
	field, err := m.ReadString()
	if errors.Is(err, plaintalk.ErrEndOfMessage) {
		return "", usageError{usage: usage}
	}
	return field, err
}

func expectEnd(m *plaintalk.Message, usage string) error {
	if !m.AtEnd() {
		return usageError{usage: usage}
	}
	return nil
}
