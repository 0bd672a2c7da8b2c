package connection

import (
	"net"

	"github.com/rickgao/wspoll/internal/layer"
)

// Phase is a connection's position in the handshake progression.
type Phase uint8

const (
	PhaseConnecting Phase = iota
	PhaseTLSHandshaking
	PhaseTLSReady
	PhaseWSHandshaking
	PhaseReady
	PhaseClosed
)

var phaseNames = [...]string{
	PhaseConnecting:     "connecting",
	PhaseTLSHandshaking: "tls_handshaking",
	PhaseTLSReady:       "tls_ready",
	PhaseWSHandshaking:  "ws_handshaking",
	PhaseReady:          "ready",
	PhaseClosed:         "closed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// state is the per-phase data of a connection. Each variant carries
// exactly what is needed to take the next step.
type state interface {
	phase() Phase
}

type (
	// connecting holds the raw transport before TLS starts.
	connecting struct{ conn net.Conn }

	// tlsHandshaking holds a TLS handshake that would have blocked.
	tlsHandshaking struct{ pending layer.Pending[net.Conn] }

	// tlsReady holds the encrypted stream before the opening handshake.
	tlsReady struct{ conn net.Conn }

	// wsHandshaking holds an opening handshake that would have blocked.
	wsHandshaking struct{ pending layer.Pending[layer.Socket] }

	// ready holds the established WebSocket.
	ready struct{ sock layer.Socket }

	closed struct{}
)

func (connecting) phase() Phase     { return PhaseConnecting }
func (tlsHandshaking) phase() Phase { return PhaseTLSHandshaking }
func (tlsReady) phase() Phase       { return PhaseTLSReady }
func (wsHandshaking) phase() Phase  { return PhaseWSHandshaking }
func (ready) phase() Phase          { return PhaseReady }
func (closed) phase() Phase         { return PhaseClosed }
