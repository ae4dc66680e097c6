package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/albertbausili/velox/internal/h1"
)

// connOptions carries per-connection behavior derived from server config.
type connOptions struct {
	idleTimeout      time.Duration
	disableKeepAlive bool
}

// connection owns one accepted connection for its whole lifetime. It is
// never shared: one goroutine reads, processes, and writes, a full response
// going out before the next request is read.
type connection struct {
	conn      net.Conn
	reader    *h1.MessageReader
	processor h1.Processor
	logger    *log.Logger
	id        string
	opts      connOptions
}

func newConnection(conn net.Conn, processor h1.Processor, logger *log.Logger, opts connOptions) *connection {
	return &connection{
		conn:      conn,
		reader:    h1.NewMessageReader(conn),
		processor: processor,
		logger:    logger,
		id:        uuid.NewString(),
		opts:      opts,
	}
}

// serve runs the request loop until the connection closes: read a message,
// process it, write the full response, then loop or close per the
// persistence directive.
func (c *connection) serve(ctx context.Context) {
	defer func() { _ = c.conn.Close() }()

	if tc, ok := c.conn.(*tls.Conn); ok {
		// The deadline must cover the handshake too, or a client that
		// dials and never handshakes holds this goroutine until Stop.
		if c.opts.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout))
		}
		if err := tc.HandshakeContext(ctx); err != nil {
			c.logger.Printf("[%s] TLS handshake with %s failed: %v", c.id, c.conn.RemoteAddr(), err)
			return
		}
	}

	for {
		if c.opts.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout))
		}

		req, err := c.reader.ReadRequest()
		if err != nil && !errors.Is(err, h1.ErrMalformedHeader) {
			c.reportReadFailure(err)
			return
		}

		var resp *h1.Response
		if errors.Is(err, h1.ErrMalformedHeader) {
			// Framed but unparsable: answer in-band, keep framing.
			c.logger.Printf("[%s] malformed request from %s: %v", c.id, c.conn.RemoteAddr(), err)
			resp = h1.TextResponse(400, "Bad Request")
		} else {
			resp = c.process(ctx, req)
		}

		keepAlive := req.KeepAlive && !c.opts.disableKeepAlive
		resp.Finalize(keepAlive)
		if _, werr := c.conn.Write(resp.Encode()); werr != nil {
			c.logger.Printf("[%s] write to %s failed: %v", c.id, c.conn.RemoteAddr(), werr)
			return
		}
		if !keepAlive {
			return
		}
	}
}

// reportReadFailure logs read-side terminations. A clean disconnect before
// any byte of a new message is normal and stays silent. Invalid framing
// gets a best-effort 400 before closing, since the byte stream cannot be
// resynchronized.
func (c *connection) reportReadFailure(err error) {
	switch {
	case err == io.EOF:
		// Clean disconnect between messages.
	case errors.Is(err, h1.ErrMalformedRequestLine), errors.Is(err, h1.ErrInvalidContentLength):
		c.logger.Printf("[%s] unrecoverable request from %s: %v", c.id, c.conn.RemoteAddr(), err)
		resp := h1.TextResponse(400, "Bad Request")
		resp.Finalize(false)
		_, _ = c.conn.Write(resp.Encode())
	default:
		var incomplete *h1.IncompleteError
		if errors.As(err, &incomplete) {
			c.logger.Printf("[%s] truncated request from %s: %v", c.id, c.conn.RemoteAddr(), err)
			return
		}
		c.logger.Printf("[%s] read from %s failed: %v", c.id, c.conn.RemoteAddr(), err)
	}
}

// process invokes the processor, converting every failure mode (error, nil
// response, panic) into a well-formed 500 so nothing reaches the transport
// as a raw fault.
func (c *connection) process(ctx context.Context, req *h1.Request) (resp *h1.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("[%s] processor panic: %v", c.id, r)
			resp = h1.TextResponse(500, "Internal Server Error")
		}
	}()

	resp, err := c.processor.Process(ctx, req)
	if err != nil {
		c.logger.Printf("[%s] processor error: %v", c.id, err)
		return h1.TextResponse(500, "Internal Server Error")
	}
	if resp == nil {
		return h1.TextResponse(500, "Internal Server Error")
	}
	return resp
}
