package wsbridge

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Upgrader accepts web-client connections on the host side.
type Upgrader struct {
	localOrigin string
	allowed     map[string]struct{}
	cfg         Config
	upgrader    websocket.Upgrader
}

// NewUpgrader accepts connections whose Origin header is in allowedOrigins.
// Delivered events carry that header value as their origin.
func NewUpgrader(localOrigin string, allowedOrigins []string, cfg Config) (*Upgrader, error) {
	if localOrigin == "" {
		return nil, fmt.Errorf("%w: empty local origin", ErrOriginNotAllowed)
	}
	if len(allowedOrigins) == 0 {
		return nil, ErrNoAllowedOrigins
	}
	u := &Upgrader{
		localOrigin: localOrigin,
		allowed:     make(map[string]struct{}, len(allowedOrigins)),
		cfg:         cfg.WithDefaults(),
	}
	for _, origin := range allowedOrigins {
		if origin == "" || origin == "*" {
			return nil, fmt.Errorf("%w: %q", ErrOriginNotAllowed, origin)
		}
		u.allowed[origin] = struct{}{}
	}
	u.upgrader = websocket.Upgrader{
		HandshakeTimeout: u.cfg.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			return u.Allowed(r.Header.Get("Origin"))
		},
	}
	return u, nil
}

func (u *Upgrader) Allowed(origin string) bool {
	_, ok := u.allowed[origin]
	return ok
}

// Upgrade completes the WebSocket handshake. On failure a response has
// already been written.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws, SideServer, u.localOrigin, r.Header.Get("Origin"), u.cfg), nil
}

// DialOptions describe the web-client end of a connection.
type DialOptions struct {
	// LocalOrigin is sent as the Origin header and must be allowed by the
	// host.
	LocalOrigin string
	// RemoteOrigin is stamped on events from the host.
	RemoteOrigin string
	Header       http.Header
	Config       Config
}

// Dial connects to a host, retrying with backoff until it succeeds, the
// attempt budget is spent, or ctx ends.
func Dial(ctx context.Context, url string, opts DialOptions) (*Conn, error) {
	cfg := opts.Config.WithDefaults()
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Origin", opts.LocalOrigin)
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; ; attempt++ {
		ws, resp, err := dialer.DialContext(ctx, url, header)
		if err == nil {
			return newConn(ws, SideClient, opts.LocalOrigin, opts.RemoteOrigin, cfg), nil
		}
		lastErr = err
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("wsbridge: dial %s: %s: %w", url, resp.Status, err)
		}
		if cfg.MaxDialAttempts > 0 && attempt >= cfg.MaxDialAttempts {
			return nil, fmt.Errorf("%w after %d: %v", ErrDialExhausted, attempt, lastErr)
		}

		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Debug().
			Str("url", url).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("wsbridge: dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
