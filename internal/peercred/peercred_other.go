//go:build !linux

package peercred

import "net"

// UID is only implemented on Linux.
func UID(conn *net.UnixConn) (uint32, error) {
	return 0, ErrUnsupported
}
