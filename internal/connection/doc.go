// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Opens outbound secure WebSocket connections (wss) without blocking
//   - Drives each connection through TCP, TLS, WebSocket handshake and steady state
//   - Is advanced only by the caller's Poll loop, one step per connection per call
//   - Reports progress as an ordered stream of Connected/Message/Error/Closed events
//   - Sends keepalive pings on idle connections and closes silent ones
//
// A Manager is not safe for concurrent use; all calls must come from the
// goroutine that owns the poll loop.
package connection
