// Package control exposes the router's admin/observability HTTP API: a
// JWT-protected REST surface over live sessions and the ban list, plus
// a WebSocket event stream for session lifecycle and RTT-skew samples.
package control

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/netutil"

	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/reputation"
	"github.com/cvsouth/i2p-go/transport"
)

// maxConns bounds concurrent admin API connections via
// netutil.LimitListener.
const maxConns = 128

// SessionSource reports the dispatcher's currently live sessions; the
// transport.Manager satisfies this directly.
type SessionSource interface {
	Sessions() []transport.SessionInfo
	Addresses() []data.RouterAddress
}

// Config carries the control API's own settings.
type Config struct {
	Listen    string
	JWTSecret string
	Username  string
	Password  string
}

// Controller is the admin HTTP/WebSocket server.
type Controller struct {
	cfg        Config
	jwtSecret  []byte
	passHash   string
	sessions   SessionSource
	reputation reputation.Store
	logger     *slog.Logger

	router *gin.Engine
	events *eventHub
}

// New builds a Controller. sessions and rep may be nil in tests that
// only exercise auth/ban routes.
func New(cfg Config, sessions SessionSource, rep reputation.Store, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	passHash, err := hashPassword(cfg.Password)
	if err != nil {
		return nil, err
	}

	ctrl := &Controller{
		cfg:        cfg,
		jwtSecret:  []byte(cfg.JWTSecret),
		passHash:   passHash,
		sessions:   sessions,
		reputation: rep,
		logger:     logger,
		events:     newEventHub(logger),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	ctrl.router = router
	ctrl.setupRoutes(router)
	return ctrl, nil
}

// Publish broadcasts ev to every connected /api/v1/events subscriber.
func (ctrl *Controller) Publish(ev Event) {
	ctrl.events.broadcast(ev)
}

// Run starts the HTTP server, bounding concurrent connections via
// netutil.LimitListener.
func (ctrl *Controller) Run() error {
	l, err := net.Listen("tcp", ctrl.cfg.Listen)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", ctrl.cfg.Listen, err)
	}
	l = netutil.LimitListener(l, maxConns)
	ctrl.logger.Info("control API listening", "addr", l.Addr().String())
	return ctrl.router.RunListener(l)
}

func (ctrl *Controller) setupRoutes(r *gin.Engine) {
	r.POST("/api/v1/auth/login", ctrl.handleLogin)
	r.GET("/api/v1/events", ctrl.handleEvents)

	api := r.Group("/api/v1")
	api.Use(authMiddleware(ctrl.jwtSecret))
	{
		api.GET("/sessions", ctrl.handleListSessions)
		api.GET("/addresses", ctrl.handleListAddresses)
		api.GET("/bans", ctrl.handleListBans)
		api.POST("/bans", ctrl.handleCreateBan)
		api.DELETE("/bans/:hash", ctrl.handleDeleteBan)
	}
}

// Event is one session-lifecycle or observability sample streamed over
// /api/v1/events.
type Event struct {
	Type      string    `json:"type"` // established, closed, handshake_failure, rtt_skew
	PeerHash  string    `json:"peer_hash"`
	Transport string    `json:"transport,omitempty"`
	Cost      int       `json:"cost,omitempty"`
	Seconds   uint32    `json:"seconds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
