// Package wscodec performs WebSocket opening handshakes and frame exchange
// over an already encrypted connection, without blocking the caller.
//
// Wire handling is delegated to gorilla/websocket. Its blocking calls run on
// per-socket goroutines: the handshake on a layer.Async, reads on a read
// pump feeding a bounded frame queue, writes on a write pump fed by a
// bounded slot. Socket methods only ever poll those queues.
package wscodec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/wspoll/internal/layer"
)

// Errors
var (
	ErrConnUsed = errors.New("wscodec: connection already used for a handshake")
)

// Config configures the codec.
type Config struct {
	ReadBufferSize  int           // gorilla read buffer size in bytes
	WriteBufferSize int           // gorilla write buffer size in bytes
	FrameQueue      int           // Frames buffered between the read pump and Read
	WriteQueue      int           // Frames accepted by Write before it reports ErrWouldBlock
	WriteTimeout    time.Duration // Write deadline for each frame
	Header          http.Header   // Extra request headers for the opening handshake
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		FrameQueue:      64,
		WriteQueue:      1,
		WriteTimeout:    5 * time.Second,
	}
}

// Codec starts client opening handshakes.
type Codec struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Codec.
func New(cfg Config, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameQueue < 1 {
		cfg.FrameQueue = 1
	}
	if cfg.WriteQueue < 1 {
		cfg.WriteQueue = 1
	}
	return &Codec{cfg: cfg, logger: logger}
}

// Start begins the opening handshake for u over conn, which must already be
// encrypted when u uses the wss scheme.
func (c *Codec) Start(conn net.Conn, u *url.URL) layer.Result[layer.Socket] {
	used := false
	reuse := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if used {
			return nil, ErrConnUsed
		}
		used = true
		return conn, nil
	}

	// NetDialTLSContext tells gorilla the TLS handshake is already done.
	dialer := websocket.Dialer{
		NetDialContext:    reuse,
		NetDialTLSContext: reuse,
		ReadBufferSize:    c.cfg.ReadBufferSize,
		WriteBufferSize:   c.cfg.WriteBufferSize,
	}
	target := u.String()

	hs := layer.Go(func() (layer.Socket, error) {
		ws, resp, err := dialer.Dial(target, c.cfg.Header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
			}
			return nil, err
		}

		c.logger.Debug("websocket handshake complete",
			"url", target,
			"subprotocol", ws.Subprotocol(),
		)
		return newSocket(ws, c.cfg, c.logger), nil
	})

	return (&handshake{async: hs}).Resume()
}

// handshake is the Pending of an opening handshake. Closing it before it
// completes tears down the socket the handshake produces, if any.
type handshake struct {
	async *layer.Async[layer.Socket]
}

func (h *handshake) Resume() layer.Result[layer.Socket] {
	res := h.async.Resume()
	if res.Status == layer.StatusIncomplete {
		res.Pending = h
	}
	return res
}

// Close abandons the handshake. It does not block.
func (h *handshake) Close() error {
	h.async.Abandon(func(s layer.Socket) {
		s.Close()
	})
	return nil
}
