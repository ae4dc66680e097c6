// Package eventloop provides a gnet-based engine for cleartext listeners.
// It runs the same parser and processor contract as the blocking transport,
// scheduled by gnet's event loops instead of one goroutine per connection.
package eventloop

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/albertbausili/velox/internal/h1"
)

// Config defines the event-loop engine options.
type Config struct {
	Addr             string
	Multicore        bool
	NumEventLoop     int
	ReusePort        bool
	Logger           *log.Logger
	MaxConnections   uint32
	DisableKeepAlive bool
}

// Server implements gnet.EventHandler.
type Server struct {
	gnet.BuiltinEventEngine

	processor        h1.Processor
	ctx              context.Context
	cancel           context.CancelFunc
	logger           *log.Logger
	addr             string
	multicore        bool
	numEventLoop     int
	reusePort        bool
	maxConnections   uint32
	disableKeepAlive bool
	activeConns      uint32
	engine           gnet.Engine
	engineStarted    bool
}

// NewServer creates a new event-loop server.
func NewServer(processor h1.Processor, config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		processor:        processor,
		ctx:              ctx,
		cancel:           cancel,
		logger:           config.Logger,
		addr:             config.Addr,
		multicore:        config.Multicore,
		numEventLoop:     config.NumEventLoop,
		reusePort:        config.ReusePort,
		maxConnections:   config.MaxConnections,
		disableKeepAlive: config.DisableKeepAlive,
	}
}

// Start starts the engine. gnet.Run blocks, so it runs in a goroutine.
func (s *Server) Start() error {
	options := []gnet.Option{
		gnet.WithMulticore(s.multicore),
		gnet.WithReusePort(s.reusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithTCPKeepAlive(time.Minute * 30),
		gnet.WithLogger(silentGnetLogger{}),
	}
	if s.numEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.numEventLoop))
	}

	s.logger.Printf("Serving on %s (event loop, multicore: %v)", s.addr, s.multicore)

	go func() {
		_ = gnet.Run(s, "tcp://"+s.addr, options...)
	}()

	return nil
}

// Stop gracefully stops the engine.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.engineStarted {
		stopCtx, stopCancel := context.WithTimeout(ctx, 2*time.Second)
		defer stopCancel()
		if err := s.engine.Stop(stopCtx); err != nil {
			s.logger.Printf("Error stopping gnet engine: %v", err)
			return err
		}
	}
	return nil
}

// OnBoot is called when the engine is ready to accept connections.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.engineStarted = true
	return gnet.None
}

// OnShutdown is called when the engine is shutting down.
func (s *Server) OnShutdown(_ gnet.Engine) {
	s.engineStarted = false
}

// OnOpen is called when a new connection is opened.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if s.maxConnections > 0 {
		current := atomic.LoadUint32(&s.activeConns)
		if current >= s.maxConnections {
			s.logger.Printf("Connection rejected from %s: too many connections (%d/%d)",
				c.RemoteAddr(), current, s.maxConnections)
			resp := h1.TextResponse(503, "Service Unavailable")
			resp.Finalize(false)
			return resp.Encode(), gnet.Close
		}
	}
	atomic.AddUint32(&s.activeConns, 1)

	c.SetContext(newConnection(s.ctx, c, s.processor, s.logger, s.disableKeepAlive))
	return nil, gnet.None
}

// OnClose is called when a connection is closed.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	// Rejected connections never got a context and never counted; only
	// admitted ones decrement, or the counter underflows.
	if _, ok := c.Context().(*connection); ok {
		atomic.AddUint32(&s.activeConns, ^uint32(0))
	}
	if err != nil {
		s.logger.Printf("Connection from %s closed: %v", c.RemoteAddr(), err)
	}
	return gnet.None
}

// OnTraffic is called when data arrives on a connection.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*connection)
	if !ok {
		return gnet.Close
	}

	buf, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	if len(buf) == 0 {
		return gnet.None
	}

	if err := conn.handleData(buf); err != nil {
		if err != errCloseRequested {
			s.logger.Printf("Error handling data from %s: %v", c.RemoteAddr(), err)
		}
		// Responses, including the final one, go out through AsyncWrite;
		// the close is chained to the write completion in the connection.
		return gnet.None
	}
	return gnet.None
}

// silentGnetLogger discards gnet's internal logging.
type silentGnetLogger struct{}

func (silentGnetLogger) Debugf(_ string, _ ...any) {}
func (silentGnetLogger) Infof(_ string, _ ...any)  {}
func (silentGnetLogger) Warnf(_ string, _ ...any)  {}
func (silentGnetLogger) Errorf(_ string, _ ...any) {}
func (silentGnetLogger) Fatalf(_ string, _ ...any) {}
