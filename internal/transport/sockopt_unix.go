//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func socketControl(cfg Config) func(network, address string, c syscall.RawConn) error {
	if !cfg.NoDelay && !cfg.KeepAlive {
		return nil
	}

	return func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if cfg.NoDelay {
				if opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); opErr != nil {
					return
				}
			}
			if cfg.KeepAlive {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
