//go:build !linux

package channel

import "net"

// PeerPID is not supported on this platform and always returns 0.
func PeerPID(net.Conn) uint32 {
	return 0
}
