// Package layer defines the contracts shared by the transport, TLS and
// WebSocket layers.
//
// Every layer is driven without blocking the caller:
//   - Handshakes return a Result that is Complete, Failed, or Incomplete with
//     a Pending handle to resume on a later tick.
//   - Steady-state sockets return ErrWouldBlock instead of waiting for I/O.
package layer
