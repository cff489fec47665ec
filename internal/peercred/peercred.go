// Package peercred identifies the local user on the other end of a Unix
// domain socket and uses that identity for "auth unix".
package peercred

import (
	"errors"
	"net"
	"os/user"
	"strconv"
)

// Method is the auth method name served by Authenticator.
const Method = "unix"

// ErrUnsupported is returned where the platform cannot report peer credentials.
var ErrUnsupported = errors.New("peercred: peer credentials not supported on this platform")

// Username resolves a user id to a login name.
func Username(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// RemoteName names the peer for logging: its login name when it resolves,
// the numeric uid otherwise, "unknown" when no credentials are available.
func RemoteName(conn *net.UnixConn) string {
	uid, err := UID(conn)
	if err != nil {
		return "unknown"
	}
	if name, err := Username(uid); err == nil {
		return name
	}
	return strconv.FormatUint(uint64(uid), 10)
}

// Authenticator serves "auth unix" from the peer credentials of one connection.
type Authenticator struct {
	conn   *net.UnixConn
	lookup func(uint32) (string, error)
}

// NewAuthenticator returns an Authenticator for conn.
func NewAuthenticator(conn *net.UnixConn) *Authenticator {
	return &Authenticator{conn: conn, lookup: Username}
}

// Supports reports whether method is "unix".
func (a *Authenticator) Supports(method string) bool {
	return method == Method
}

// Authenticate returns the login name of the connected peer.
func (a *Authenticator) Authenticate(method string) (string, error) {
	if method != Method {
		return "", errors.New("peercred: unsupported method " + method)
	}
	uid, err := UID(a.conn)
	if err != nil {
		return "", err
	}
	return a.lookup(uid)
}
