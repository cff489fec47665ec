package chat

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andy6609/chattalk-server/internal/plaintalk"
)

// parseMessages decodes every complete message in s.
func parseMessages(t *testing.T, s string) [][]string {
	t.Helper()

	p := plaintalk.NewParser(strings.NewReader(s), 0)
	var messages [][]string
	for {
		msg, err := p.Next()
		if errors.Is(err, io.EOF) {
			return messages
		}
		require.NoError(t, err)
		messages = append(messages, readFields(t, msg))
	}
}

func readFields(t *testing.T, msg *plaintalk.Message) []string {
	t.Helper()

	fields := []string{}
	for {
		f, err := msg.ReadString()
		if errors.Is(err, plaintalk.ErrEndOfMessage) {
			return fields
		}
		require.NoError(t, err)
		fields = append(fields, f)
	}
}

type fakeHub struct {
	shouts []RelayMessage
	joins  int
	err    error
}

func (f *fakeHub) Join(*Relay) error {
	if f.err != nil {
		return f.err
	}
	f.joins++
	return nil
}

func (f *fakeHub) Shout(nick, statement string) error {
	if f.err != nil {
		return f.err
	}
	f.shouts = append(f.shouts, RelayMessage{Kind: RelayShout, Nick: nick, Statement: statement})
	return nil
}

type fakeAuth struct {
	identity string
	err      error
}

func (fakeAuth) Supports(method string) bool { return method == "unix" }

func (a fakeAuth) Authenticate(string) (string, error) {
	return a.identity, a.err
}

// permissiveAuth claims every method.
type permissiveAuth struct{}

func (permissiveAuth) Supports(string) bool { return true }

func (permissiveAuth) Authenticate(string) (string, error) { return "mallory", nil }
