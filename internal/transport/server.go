// Package transport implements the blocking listener and per-connection
// request handling: one goroutine per accepted connection, optional TLS
// with handshake-time credential selection, and keep-alive request loops.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/albertbausili/velox/internal/creds"
	"github.com/albertbausili/velox/internal/h1"
)

// Config holds transport configuration.
type Config struct {
	Addr             string
	Logger           *log.Logger
	TLS              *creds.Store // nil serves cleartext
	MaxConnections   int          // 0 means unlimited
	IdleTimeout      time.Duration
	DisableKeepAlive bool
}

// Server accepts connections and dispatches each to its own goroutine. A
// fault in one connection's handling never affects the accept loop or any
// other connection.
type Server struct {
	processor h1.Processor
	logger    *log.Logger

	addr             string
	tlsStore         *creds.Store
	maxConns         int
	idleTimeout      time.Duration
	disableKeepAlive bool

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server dispatching requests to processor.
func NewServer(processor h1.Processor, config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		processor:        processor,
		logger:           config.Logger,
		addr:             config.Addr,
		tlsStore:         config.TLS,
		maxConns:         config.MaxConnections,
		idleTimeout:      config.IdleTimeout,
		disableKeepAlive: config.DisableKeepAlive,
		ctx:              ctx,
		cancel:           cancel,
		conns:            make(map[net.Conn]struct{}),
	}
}

// Start binds the configured address and serves in a background goroutine.
// It returns once the listener is bound, so Addr is immediately valid.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if serveErr := s.Serve(ln); serveErr != nil {
			s.logger.Printf("Serve error: %v", serveErr)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Start/Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the accept loop on ln until the listener is closed. The loop
// performs no blocking work besides the accept call itself.
func (s *Server) Serve(ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	if s.tlsStore != nil {
		ln = tls.NewListener(ln, s.tlsStore.TLSConfig())
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	if s.tlsStore != nil {
		s.logger.Printf("Serving TLS on %s", ln.Addr())
	} else {
		s.logger.Printf("Serving on %s", ln.Addr())
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		c := newConnection(conn, s.processor, s.logger, connOptions{
			idleTimeout:      s.idleTimeout,
			disableKeepAlive: s.disableKeepAlive,
		})

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			c.serve(s.ctx)
		}()
	}
}

// Stop closes the listener and all live connections, then waits for
// handlers to finish or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
