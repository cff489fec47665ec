package chat

import "errors"

// EventType identifies what a hub Event asks for.
type EventType int

const (
	EventJoin EventType = iota
	EventShout
)

func (t EventType) String() string {
	switch t {
	case EventJoin:
		return "join"
	case EventShout:
		return "shout"
	default:
		return "unknown"
	}
}

// Event is submitted to the Hub. Join events carry Relay, shout events carry
// Nick and Statement.
type Event struct {
	Type      EventType
	Relay     *Relay
	Nick      string
	Statement string
}

// RelayKind identifies a message on a connection's relay.
type RelayKind int

const (
	RelayShout RelayKind = iota
	// RelayTerminate is pushed by a connection to its own relay to stop the
	// relay flow.
	RelayTerminate
)

// RelayMessage travels from the Hub to one connection's relay flow.
type RelayMessage struct {
	Kind      RelayKind
	Nick      string
	Statement string
}

// HubClient is the part of the Hub a connection talks to.
type HubClient interface {
	Join(relay *Relay) error
	Shout(nick, statement string) error
}

// Authenticator is the per-transport auth capability behind "auth".
type Authenticator interface {
	// Supports reports whether the connection can attempt method.
	Supports(method string) bool
	// Authenticate attempts method and returns the verified identity.
	Authenticate(method string) (string, error)
}

// NoAuth is the Authenticator of transports without credentials.
type NoAuth struct{}

func (NoAuth) Supports(string) bool { return false }

func (NoAuth) Authenticate(method string) (string, error) {
	return "", errors.New("chat: authentication method " + method + " not supported")
}

// ErrHubStopped is returned when submitting to a Hub that has been stopped.
var ErrHubStopped = errors.New("chat: hub stopped")
