package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/andy6609/chattalk-server/internal/config"
	"github.com/andy6609/chattalk-server/internal/peercred"
	"github.com/andy6609/chattalk-server/internal/wsconn"
)

const (
	transportTCP       = "tcp"
	transportUnix      = "unix"
	transportWebSocket = "websocket"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	hub    *Hub

	tcp      net.Listener
	unix     net.Listener
	ws       net.Listener
	httpSrv  *http.Server
	upgrader websocket.Upgrader
	group    errgroup.Group
	started  bool
}

func NewServer(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		hub:    NewHub(cfg.HubBuffer, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Start opens every configured listener and starts the hub. It returns once
// the listeners are bound; connections are served in the background.
func (s *Server) Start() error {
	if s.cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
		}
		s.tcp = ln
	}

	if s.cfg.UnixPath != "" {
		if err := os.Remove(s.cfg.UnixPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.closeListeners()
			return fmt.Errorf("remove stale socket %s: %w", s.cfg.UnixPath, err)
		}
		ln, err := net.Listen("unix", s.cfg.UnixPath)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen unix %s: %w", s.cfg.UnixPath, err)
		}
		s.unix = ln
	}

	if s.cfg.WebSocketAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.WebSocketAddr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen websocket %s: %w", s.cfg.WebSocketAddr, err)
		}
		s.ws = ln
	}

	s.started = true
	go s.hub.Run()

	if s.tcp != nil {
		ln := s.tcp
		s.group.Go(func() error { return s.acceptLoop(ln, transportTCP) })
		s.logger.Info("listening", "transport", transportTCP, "addr", ln.Addr().String())
	}
	if s.unix != nil {
		ln := s.unix
		s.group.Go(func() error { return s.acceptLoop(ln, transportUnix) })
		s.logger.Info("listening", "transport", transportUnix, "addr", ln.Addr().String())
	}
	if s.ws != nil {
		mux := http.NewServeMux()
		mux.HandleFunc("/chat", s.serveWebSocket)
		s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		ln := s.ws
		s.group.Go(func() error {
			if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve websocket: %w", err)
			}
			return nil
		})
		s.logger.Info("listening", "transport", transportWebSocket, "addr", ln.Addr().String())
	}

	s.logger.Info("server started")
	return nil
}

// Stop closes the listeners, waits for the accept loops and stops the hub.
// Open connections are not drained; their hub submissions fail from now on.
// Stop is safe to call on a server that never started.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	s.closeListeners()
	if err := s.group.Wait(); err != nil {
		s.logger.Error("listener failed", "error", err)
	}

	s.hub.Stop()
	if s.started {
		s.hub.Wait()
	}

	if s.unix != nil {
		if err := os.Remove(s.cfg.UnixPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove socket file", "path", s.cfg.UnixPath, "error", err)
		}
	}

	s.logger.Info("shutdown complete")
}

// TCPAddr returns the bound TCP address, or "" when TCP is disabled.
func (s *Server) TCPAddr() string {
	return addrOf(s.tcp)
}

// WebSocketAddr returns the bound WebSocket address, or "" when disabled.
func (s *Server) WebSocketAddr() string {
	return addrOf(s.ws)
}

func addrOf(ln net.Listener) string {
	if ln == nil {
		return ""
	}
	return ln.Addr().String()
}

func (s *Server) closeListeners() {
	for _, ln := range []net.Listener{s.tcp, s.unix, s.ws} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

func (s *Server) acceptLoop(ln net.Listener, transport string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			AcceptErrors.WithLabelValues(transport).Inc()
			s.logger.Warn("failed connection attempt", "transport", transport, "error", err)
			time.Sleep(b.NextBackOff())
			continue
		}
		b.Reset()

		go s.handleConn(conn, transport)
	}
}

func (s *Server) handleConn(conn net.Conn, transport string) {
	var (
		auth   Authenticator = NoAuth{}
		remote string
	)
	if uc, ok := conn.(*net.UnixConn); ok {
		auth = peercred.NewAuthenticator(uc)
		remote = peercred.RemoteName(uc)
	} else {
		remote = conn.RemoteAddr().String()
	}

	s.serveConn(conn, transport, auth, remote)
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := wsconn.New(ws)
	s.serveConn(conn, transportWebSocket, NoAuth{}, conn.RemoteAddr())
}

func (s *Server) serveConn(conn io.ReadWriteCloser, transport string, auth Authenticator, remote string) {
	defer func() {
		_ = conn.Close()
	}()

	logger := s.logger.With("conn_id", uuid.NewString(), "transport", transport, "remote", remote)
	logger.Info("client connected")

	ConnectedClients.Inc()
	defer ConnectedClients.Dec()

	err := ServeConn(conn, s.hub, auth, ConnOptions{
		MaxFieldSize: s.cfg.MaxFieldSize,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("connection terminated with error", "error", err)
		return
	}
	logger.Info("connection closed")
}
