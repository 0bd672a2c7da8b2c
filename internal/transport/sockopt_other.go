//go:build !unix

package transport

import "syscall"

// Non-unix platforms keep the runtime defaults.
func socketControl(Config) func(network, address string, c syscall.RawConn) error {
	return nil
}
