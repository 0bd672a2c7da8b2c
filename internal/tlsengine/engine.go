// Package tlsengine runs client TLS handshakes without blocking the caller.
//
// The handshake itself is performed by crypto/tls on a dedicated goroutine;
// Start and Resume only observe its progress.
package tlsengine

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/rickgao/wspoll/internal/layer"
)

// Errors
var (
	ErrNoCertsFound = errors.New("tlsengine: no certificates found in PEM data")
)

// Config configures the TLS engine.
type Config struct {
	InsecureSkipVerify bool   // Accept any certificate and host name
	CAFile             string // Extra PEM roots added to the system pool
	ServerName         string // Overrides the SNI name derived from the target
	MinVersion         uint16 // tls.VersionTLS12 when zero
}

// Engine starts TLS client handshakes over raw connections.
type Engine struct {
	base   *tls.Config
	logger *slog.Logger
}

// New creates an Engine. It fails if CAFile cannot be loaded.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	minVersion := cfg.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	base := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ServerName:         cfg.ServerName,
		MinVersion:         minVersion,
	}

	if cfg.CAFile != "" {
		pool, err := loadRoots(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		base.RootCAs = pool
	}

	if cfg.InsecureSkipVerify {
		logger.Warn("tls certificate verification disabled")
	}

	return &Engine{base: base, logger: logger}, nil
}

// Start begins a handshake on conn. The result is usually Incomplete; the
// returned Pending reports completion on a later Resume.
func (e *Engine) Start(conn net.Conn, serverName string) layer.Result[net.Conn] {
	cfg := e.base.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	tc := tls.Client(conn, cfg)
	hs := layer.Go(func() (net.Conn, error) {
		if err := tc.Handshake(); err != nil {
			return nil, err
		}
		state := tc.ConnectionState()
		e.logger.Debug("tls handshake complete",
			"server_name", cfg.ServerName,
			"version", tls.VersionName(state.Version),
			"cipher", tls.CipherSuiteName(state.CipherSuite),
		)
		return tc, nil
	})

	return hs.Resume()
}

// loadRoots returns the system pool extended with the certificates in path.
func loadRoots(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsengine: read ca file %s: %w", path, err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	if err := addPEM(pool, data); err != nil {
		return nil, err
	}
	return pool, nil
}

func addPEM(pool *x509.CertPool, pemData []byte) error {
	var added int
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsengine: parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}

	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}
