// Command wspoll keeps a set of secure WebSocket connections open from a
// single poll loop, logs what they receive, and periodically sends a test
// payload to every connection that is ready.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wspoll/internal/config"
	"github.com/rickgao/wspoll/internal/connection"
	"github.com/rickgao/wspoll/internal/metrics"
	"github.com/rickgao/wspoll/internal/tlsengine"
	"github.com/rickgao/wspoll/internal/transport"
	"github.com/rickgao/wspoll/internal/version"
	"github.com/rickgao/wspoll/internal/wscodec"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wspoll:", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "wspoll",
		Usage:   "Multiplex secure WebSocket connections from a single poll loop",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"WSPOLL_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "wss:// URI to connect to (repeatable, added to config targets)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level: debug, info, warn, error",
				EnvVars: []string{"WSPOLL_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "Skip TLS certificate verification",
			},
		},
		Action: run,
	}
}

// loadConfig reads the config file, if any, and layers command-line flags
// on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Targets = append(cfg.Targets, c.StringSlice("target")...)
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if c.Bool("insecure") {
		cfg.TLS.InsecureSkipVerify = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("no targets: set targets in the config file or pass --target")
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting wspoll",
		"version", version.Version,
		"commit", version.Commit,
		"targets", len(cfg.Targets),
	)

	mgr, collector, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	for _, target := range cfg.Targets {
		if _, err := mgr.Connect(target); err != nil {
			logger.Error("failed to connect", "target", target, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := newPollLoop(mgr, cfg.Poll, cfg.Send, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg.Metrics.Path, collector, loop),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("wspoll stopped")
	return err
}

// newManager builds the connection manager and the layers it drives.
func newManager(cfg *config.Config, logger *slog.Logger) (*connection.Manager, *metrics.Collector, error) {
	tcp := transport.NewTCPFactory(transport.Config{
		DialTimeout: cfg.Transport.DialTimeout,
		NoDelay:     *cfg.Transport.NoDelay,
		KeepAlive:   *cfg.Transport.KeepAlive,
	}, logger)

	engine, err := tlsengine.New(tlsengine.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		CAFile:             cfg.TLS.CAFile,
		ServerName:         cfg.TLS.ServerName,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("tls engine: %w", err)
	}

	wsCfg := wscodec.DefaultConfig()
	wsCfg.ReadBufferSize = cfg.WebSocket.ReadBufferSize
	wsCfg.WriteBufferSize = cfg.WebSocket.WriteBufferSize
	wsCfg.FrameQueue = cfg.WebSocket.FrameQueue
	wsCfg.WriteTimeout = cfg.WebSocket.WriteTimeout
	codec := wscodec.New(wsCfg, logger)

	collector := metrics.New()

	mgr, err := connection.NewManager(connection.Config{
		PingInterval:     cfg.Manager.PingInterval,
		Timeout:          cfg.Manager.Timeout,
		HandshakeTimeout: *cfg.Manager.HandshakeTimeout,
	}, connection.Deps{
		Transport: tcp,
		TLS:       engine,
		WS:        codec,
	}, logger, connection.WithMetrics(collector))
	if err != nil {
		return nil, nil, err
	}

	return mgr, collector, nil
}
