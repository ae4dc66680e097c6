package velox

import (
	"context"
	"fmt"
	"net"

	"github.com/albertbausili/velox/internal/creds"
	"github.com/albertbausili/velox/internal/date"
	"github.com/albertbausili/velox/internal/eventloop"
	"github.com/albertbausili/velox/internal/h1"
	"github.com/albertbausili/velox/internal/transport"
)

// Server represents a server instance.
type Server struct {
	config    Config
	handler   Handler
	blocking  *transport.Server
	eventloop *eventloop.Server
	stopDate  func()
}

// New creates a new Server with the provided configuration.
func New(config Config) *Server {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return &Server{config: config}
}

// NewWithDefaults creates a new Server with default configuration.
func NewWithDefaults() *Server {
	return New(DefaultConfig())
}

// Handler sets the request handler and returns the server for chaining.
func (s *Server) Handler(handler Handler) *Server {
	s.handler = handler
	return s
}

// ListenAndServe sets the handler and starts the server.
func (s *Server) ListenAndServe(handler Handler) error {
	s.handler = handler
	return s.Start()
}

// Start begins accepting connections. It returns once the listener is up.
func (s *Server) Start() error {
	if s.handler == nil {
		return fmt.Errorf("handler not set")
	}

	processor := &handlerAdapter{handler: s.handler}
	s.stopDate = date.StartTicker()

	switch s.config.Engine {
	case EngineEventLoop:
		s.eventloop = eventloop.NewServer(processor, eventloop.Config{
			Addr:             s.config.Addr,
			Multicore:        s.config.Multicore,
			NumEventLoop:     s.config.NumEventLoop,
			ReusePort:        s.config.ReusePort,
			Logger:           s.config.Logger,
			MaxConnections:   uint32(s.config.MaxConnections),
			DisableKeepAlive: s.config.DisableKeepAlive,
		})
		return s.eventloop.Start()
	default:
		var store *creds.Store
		if s.config.TLS.Enabled {
			var err error
			store, err = buildStore(s.config.TLS)
			if err != nil {
				return err
			}
		}
		s.blocking = transport.NewServer(processor, transport.Config{
			Addr:             s.config.Addr,
			Logger:           s.config.Logger,
			TLS:              store,
			MaxConnections:   s.config.MaxConnections,
			IdleTimeout:      s.config.IdleTimeout,
			DisableKeepAlive: s.config.DisableKeepAlive,
		})
		return s.blocking.Start()
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.stopDate != nil {
		s.stopDate()
		s.stopDate = nil
	}
	if s.blocking != nil {
		return s.blocking.Stop(ctx)
	}
	if s.eventloop != nil {
		return s.eventloop.Stop(ctx)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Start. The
// event-loop engine binds the configured address as-is, so that is what
// is reported for it.
func (s *Server) Addr() net.Addr {
	if s.blocking != nil {
		return s.blocking.Addr()
	}
	if s.eventloop != nil {
		if addr, err := net.ResolveTCPAddr("tcp", s.config.Addr); err == nil {
			return addr
		}
	}
	return nil
}

// buildStore loads the credential store from the TLS configuration.
func buildStore(cfg TLSConfig) (*creds.Store, error) {
	store, err := creds.NewStoreFromFiles(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	for host, pair := range cfg.VirtualHosts {
		if err := store.BindFiles(host, pair.CertFile, pair.KeyFile); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// handlerAdapter bridges the public Handler API onto the transport's
// processor contract.
type handlerAdapter struct {
	handler Handler
}

func (a *handlerAdapter) Process(ctx context.Context, req *h1.Request) (*h1.Response, error) {
	c := newContext(ctx, req)
	if err := a.handler.Serve(c); err != nil {
		return nil, err
	}
	return c.response(), nil
}
