//go:build linux

package channel

import (
	"net"

	"golang.org/x/sys/unix"
)

// PeerPID returns the process ID of the peer on the other end of a Unix
// socket, or 0 if it cannot be determined.
func PeerPID(conn net.Conn) uint32 {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0
	}

	var (
		cred    *unix.Ucred
		credErr error
	)
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil || cred == nil {
		return 0
	}
	return uint32(cred.Pid)
}
