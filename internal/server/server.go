// Package server exposes the Glic host over HTTP: a WebSocket endpoint web
// clients connect to, plus health, metrics and panel control routes.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/glicbridge/internal/auth"
	"github.com/danmuck/glicbridge/internal/browser"
	"github.com/danmuck/glicbridge/internal/config"
	"github.com/danmuck/glicbridge/internal/glic"
	"github.com/danmuck/glicbridge/internal/observability"
	"github.com/danmuck/glicbridge/internal/wsbridge"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNilBackend = errors.New("server: nil backend")

const (
	defaultBootstrapInterval = 250 * time.Millisecond
	defaultNotifyTimeout     = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
	notifyParallelism        = 8
)

type Options struct {
	Config  config.HostConfig
	Backend *browser.Backend
	// Validator guards the WebSocket endpoint. Nil derives one from
	// Config.AuthToken.
	Validator auth.Validator
	// BootstrapInterval spaces bootstrap re-sends until the client
	// initializes.
	BootstrapInterval time.Duration
	NotifyTimeout     time.Duration
}

// Server owns one host per connected web client.
type Server struct {
	cfg               config.HostConfig
	backend           *browser.Backend
	validator         auth.Validator
	upgrader          *wsbridge.Upgrader
	bootstrapInterval time.Duration
	notifyTimeout     time.Duration
	router            *gin.Engine
	started           time.Time

	mu      sync.Mutex
	clients map[string]*clientSession
	closed  bool
}

type clientSession struct {
	conn      *wsbridge.Conn
	host      *glic.Host
	connected time.Time
}

// ClientInfo describes one connected web client.
type ClientInfo struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Connected   time.Time `json:"connected"`
	Initialized bool      `json:"initialized"`
	Pending     int       `json:"pending"`
}

func New(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, ErrNilBackend
	}
	if err := config.ValidateHostConfig(opts.Config); err != nil {
		return nil, err
	}
	wsCfg, err := opts.Config.TransportOptions()
	if err != nil {
		return nil, err
	}
	upgrader, err := wsbridge.NewUpgrader(opts.Config.HostOrigin, opts.Config.ClientOrigins, wsCfg)
	if err != nil {
		return nil, err
	}
	validator := opts.Validator
	if validator == nil {
		validator = auth.AllowAll
		if opts.Config.AuthToken != "" {
			validator = auth.StaticToken{Token: opts.Config.AuthToken}
		}
	}
	if opts.BootstrapInterval <= 0 {
		opts.BootstrapInterval = defaultBootstrapInterval
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(opts.Config.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins:           opts.Config.ClientOrigins,
		AllowBrowserExtensions: true,
		AllowMethods:           []string{"GET", "POST"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:                 12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:               opts.Config,
		backend:           opts.Backend,
		validator:         validator,
		upgrader:          upgrader,
		bootstrapInterval: opts.BootstrapInterval,
		notifyTimeout:     opts.NotifyTimeout,
		router:            r,
		started:           time.Now(),
		clients:           make(map[string]*clientSession),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down and disconnects every
// web client.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("host", s.cfg.Name).Str("addr", ln.Addr().String()).Msg("glichost listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close disconnects every web client and refuses new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*clientSession, 0, len(s.clients))
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.Unlock()
	for _, cs := range sessions {
		_ = cs.conn.Close()
	}
}

func (s *Server) Clients() []ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ClientInfo, 0, len(s.clients))
	for id, cs := range s.clients {
		out = append(out, ClientInfo{
			ID:          id,
			Origin:      cs.host.ClientOrigin(),
			Connected:   cs.connected,
			Initialized: isClosed(cs.host.Initialized()),
			Pending:     len(cs.host.Pending()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NotifyResult counts the outcome of a panel broadcast.
type NotifyResult struct {
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

// NotifyPanelOpened marks the panel open and tells every initialized web
// client.
func (s *Server) NotifyPanelOpened(ctx context.Context, dockedToWindowID *string) NotifyResult {
	s.backend.SetPanelOpen(true)
	return s.broadcast(ctx, "notify_panel_opened", func(ctx context.Context, h *glic.Host) error {
		return h.NotifyPanelOpened(ctx, dockedToWindowID)
	})
}

func (s *Server) NotifyPanelClosed(ctx context.Context) NotifyResult {
	s.backend.SetPanelOpen(false)
	return s.broadcast(ctx, "notify_panel_closed", func(ctx context.Context, h *glic.Host) error {
		return h.NotifyPanelClosed(ctx)
	})
}

func (s *Server) broadcast(ctx context.Context, op string, fn func(context.Context, *glic.Host) error) NotifyResult {
	var notified, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(notifyParallelism)
	for _, h := range s.initializedHosts() {
		h := h
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
			defer cancel()
			if err := fn(callCtx, h); err != nil {
				failed.Add(1)
				log.Warn().Str("host", s.cfg.Name).Str("op", op).Str("client_origin", h.ClientOrigin()).Err(err).Msg("panel notification failed")
				return nil
			}
			notified.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return NotifyResult{Notified: int(notified.Load()), Failed: int(failed.Load())}
}

func (s *Server) initializedHosts() []*glic.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*glic.Host, 0, len(s.clients))
	for _, cs := range s.clients {
		if isClosed(cs.host.Initialized()) {
			out = append(out, cs.host)
		}
	}
	return out
}

// accept binds a host to a freshly upgraded connection and keeps sending
// the bootstrap message until the web client initializes.
func (s *Server) accept(conn *wsbridge.Conn) {
	host, err := glic.NewHost(glic.HostConfig{
		Name:         s.cfg.Name,
		ClientOrigin: conn.RemoteOrigin(),
		Client:       conn,
		Events:       conn,
		Backend:      s.backend,
	})
	if err != nil {
		log.Error().Str("conn", conn.ID()).Err(err).Msg("glic host setup failed")
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		host.Destroy()
		_ = conn.Close()
		return
	}
	s.clients[conn.ID()] = &clientSession{conn: conn, host: host, connected: time.Now()}
	s.mu.Unlock()

	log.Info().Str("conn", conn.ID()).Str("client_origin", conn.RemoteOrigin()).Msg("web client connected")
	go s.bootstrap(conn, host)
	go func() {
		<-conn.Done()
		host.Destroy()
		s.mu.Lock()
		delete(s.clients, conn.ID())
		s.mu.Unlock()
		log.Info().Str("conn", conn.ID()).Err(conn.Err()).Msg("web client disconnected")
	}()
}

func (s *Server) bootstrap(conn *wsbridge.Conn, host *glic.Host) {
	ticker := time.NewTicker(s.bootstrapInterval)
	defer ticker.Stop()
	for {
		if err := host.SendBootstrap(); err != nil {
			log.Warn().Str("conn", conn.ID()).Err(err).Msg("bootstrap send failed")
		}
		select {
		case <-host.Initialized():
			return
		case <-conn.Done():
			return
		case <-ticker.C:
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
