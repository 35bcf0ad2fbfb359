// Package wsbridge serves the command channel over WebSocket for web
// front-ends. Frames are the same JSON requests and responses as the IPC
// socket, one per text message.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1broseidon/deskhost/internal/ipc"
)

const (
	DefaultListen = "127.0.0.1:4317"
	DefaultPath   = "/invoke"

	// maxMessageBytes bounds one request frame; file contents travel inline.
	maxMessageBytes = 64 << 20
	writeTimeout    = 10 * time.Second
)

// Options configures the bridge.
type Options struct {
	Listen string
	Path   string
	// AllowedOrigins lists browser origins allowed to connect, such as
	// "http://localhost" (any port) or "http://localhost:5173". "*" allows
	// all. Requests without an Origin header skip this check.
	AllowedOrigins []string
	// Token, when set, must be presented by every client as a bearer token
	// or the "token" query parameter. Empty allows anonymous clients.
	Token  string
	Logger *slog.Logger
}

// Server accepts WebSocket connections and dispatches their requests.
type Server struct {
	opts       Options
	dispatcher ipc.Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	tokenHash  []byte

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a bridge server. It does not listen until Start.
func New(dispatcher ipc.Dispatcher, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		dispatcher: dispatcher,
		logger:     logger.With("component", "wsbridge"),
		ctx:        ctx,
		cancel:     cancel,
	}
	if opts.Token != "" {
		s.tokenHash = hashToken(opts.Token)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 64 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler serving the bridge path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.serveWS)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Listen, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("bridge listening", "addr", ln.Addr().String(), "path", s.opts.Path)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge stopped", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and closes the listener. Hijacked
// WebSocket connections are closed by their own read loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("unauthorized connection", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"))
		http.Error(w, "missing or invalid token", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"), "err", err)
		return
	}
	s.logger.Debug("client connected", "remote", r.RemoteAddr)
	s.handleConn(conn)
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	var (
		writeMu  sync.Mutex
		inflight sync.WaitGroup
	)
	send := func(resp *ipc.Response) {
		data, err := resp.Marshal()
		if err != nil {
			s.logger.Error("marshal response", "err", err)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("write failed", "err", err)
		}
	}

	stop := context.AfterFunc(s.ctx, func() {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read failed", "err", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			send(ipc.NewErrorResponse("Invalid request: expected a text frame"))
			continue
		}

		var req ipc.Request
		if err := json.Unmarshal(data, &req); err != nil {
			send(ipc.NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
			continue
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			send(ipc.Handle(s.ctx, s.dispatcher, &req))
		}()
	}
	inflight.Wait()
}

// checkOrigin allows non-browser clients (no Origin header) and origins on
// the allow list.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(origin, s.opts.AllowedOrigins)
}

func originAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" {
			return true
		}
		au, err := url.Parse(a)
		if err != nil || !strings.EqualFold(au.Scheme, u.Scheme) {
			continue
		}
		if au.Port() == "" {
			if strings.EqualFold(au.Hostname(), u.Hostname()) {
				return true
			}
			continue
		}
		if strings.EqualFold(au.Host, u.Host) {
			return true
		}
	}
	return false
}
