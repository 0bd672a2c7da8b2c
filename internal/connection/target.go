package connection

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

const defaultWSSPort = 443

// Target is the parsed destination of a connection.
type Target struct {
	Host string   // Host name or IP, used for SNI
	Port int      // Explicit port, or 443
	Path string   // Request path, "/" when empty
	URL  *url.URL // Full URL used for the opening handshake
}

// HostPort returns "host:port" for the transport.
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget resolves uri into a Target. Only the wss scheme is accepted.
func ParseTarget(uri string) (Target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}

	if u.Scheme != "wss" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("%w: missing host", ErrInvalidURI)
	}

	port := defaultWSSPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("%w: bad port %q", ErrInvalidURI, p)
		}
	}

	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""

	return Target{
		Host: host,
		Port: port,
		Path: u.Path,
		URL:  u,
	}, nil
}
