package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cvsouth/i2p-go/control"
	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/ntcp"
	"github.com/cvsouth/i2p-go/ntcp2"
	"github.com/cvsouth/i2p-go/reputation"
	"github.com/cvsouth/i2p-go/routerconfig"
	"github.com/cvsouth/i2p-go/transport"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := "/etc/i2p-go/router.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	logger, logFile := setupLogging()
	defer func() { _ = logFile.Close() }()

	fmt.Printf("=== i2p-go router %s ===\n", Version)
	fmt.Println()

	cfg, err := routerconfig.Load(configPath)
	if err != nil {
		logger.Warn("could not load router config, using defaults", "path", configPath, "err", err)
		cfg = routerconfig.Default()
	}

	own, err := data.LoadOrCreateRouterSecretKeys(cfg.IdentityPath)
	if err != nil {
		fmt.Printf("failed to load router identity: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Router identity: %s\n", own.Identity.Hash())

	var rep reputation.Store
	if store, err := reputation.Open(cfg.Reputation.DSN); err != nil {
		logger.Warn("reputation store unavailable, running without a ban list", "err", err)
	} else {
		rep = store
	}

	dispatcher, err := buildDispatcher(cfg, own, rep, logger)
	if err != nil {
		fmt.Printf("failed to build transport dispatcher: %v\n", err)
		os.Exit(1)
	}

	ctrl, err := control.New(control.Config{
		Listen:    cfg.Control.Listen,
		JWTSecret: cfg.Control.JWTSecret,
		Username:  cfg.Control.Username,
		Password:  cfg.Control.Password,
	}, dispatcher, rep, logger)
	if err != nil {
		fmt.Printf("failed to build control API: %v\n", err)
		os.Exit(1)
	}
	go func() {
		if err := ctrl.Run(); err != nil {
			logger.Error("control API stopped", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	next, stopTransport, err := dispatcher.Start(ctx)
	if err != nil {
		fmt.Printf("failed to start transport dispatcher: %v\n", err)
		os.Exit(1)
	}

	go watchInbound(next, ctrl, cfg.MaxClockSkew, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Ready.")
	for _, addr := range dispatcher.Addresses() {
		fmt.Printf("  %s listening\n", addr.Transport)
	}

	<-sigCh
	fmt.Println("\nShutting down...")
	stopTransport()
	cancel()
}

func buildDispatcher(cfg *routerconfig.Config, own data.RouterSecretKeys, rep reputation.Store, logger *slog.Logger) (*transport.Manager, error) {
	t1addr, err := net.ResolveTCPAddr("tcp", cfg.NTCP.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolve ntcp listen address: %w", err)
	}
	t1 := ntcp.NewManager(t1addr, own, logger)

	t2addr, err := net.ResolveTCPAddr("tcp", cfg.NTCP2.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolve ntcp2 listen address: %w", err)
	}
	t2, err := ntcp2.NewManager(t2addr, cfg.NTCP2.KeyfilePath, logger)
	if err != nil {
		return nil, fmt.Errorf("build ntcp2 manager: %w", err)
	}

	return transport.NewManager(t1, t2, rep, logger), nil
}

// watchInbound drains the dispatcher's fairly-multiplexed inbound
// stream, publishing a session-established event to the control API for
// each new peer. T1 sessions additionally carry a handshake clock-skew
// estimate; a skew beyond maxSkew is published as its own observability
// event, without affecting the already-established session.
func watchInbound(next func() (*transport.PeerSession, bool), ctrl *control.Controller, maxSkew time.Duration, logger *slog.Logger) {
	for {
		p, ok := next()
		if !ok {
			return
		}
		switch {
		case p.T1 != nil:
			hash := p.T1.Peer.Hash()
			logger.Info("inbound session established", "transport", "NTCP", "peer", hash)
			ctrl.Publish(control.Event{Type: "established", Transport: "NTCP", PeerHash: hash.String()})

			skew := p.T1.Session.Skew()
			if time.Duration(abs32(skew))*time.Second > maxSkew {
				logger.Warn("handshake clock skew exceeds bound", "peer", hash, "skew_seconds", skew)
				ctrl.Publish(control.Event{Type: "rtt_skew", Transport: "NTCP", PeerHash: hash.String(), Seconds: abs32(skew)})
			}
		case p.T2 != nil:
			logger.Info("inbound session established", "transport", "NTCP2", "peer", p.T2.PeerHash)
			ctrl.Publish(control.Event{Type: "established", Transport: "NTCP2", PeerHash: p.T2.PeerHash.String()})
		}
	}
}

func abs32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}
	return uint32(v)
}

func setupLogging() (*slog.Logger, *os.File) {
	logFile, err := os.OpenFile("i2p-router-debug.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log file: %v\n", err)
		os.Exit(1)
	}
	fileHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})
	stdoutHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(&multiHandler{handlers: []slog.Handler{fileHandler, stdoutHandler}})
	return logger, logFile
}

// multiHandler fans out slog records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
