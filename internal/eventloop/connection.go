package eventloop

import (
	"bytes"
	"context"
	"errors"
	"log"

	"github.com/panjf2000/gnet/v2"

	"github.com/albertbausili/velox/internal/h1"
)

// errCloseRequested signals a persistence directive of "close" back to the
// event handler; it is not a fault.
var errCloseRequested = errors.New("eventloop: connection close requested")

// connection holds per-connection parse state between OnTraffic calls.
type connection struct {
	conn             gnet.Conn
	parser           h1.Parser
	buffer           bytes.Buffer
	processor        h1.Processor
	logger           *log.Logger
	ctx              context.Context
	req              h1.Request
	disableKeepAlive bool
	closing          bool
}

func newConnection(ctx context.Context, c gnet.Conn, processor h1.Processor, logger *log.Logger, disableKeepAlive bool) *connection {
	return &connection{
		conn:             c,
		processor:        processor,
		logger:           logger,
		ctx:              ctx,
		disableKeepAlive: disableKeepAlive,
	}
}

// handleData appends incoming bytes and handles every complete request in
// the buffer. Incomplete messages simply wait for the next OnTraffic call.
func (c *connection) handleData(data []byte) error {
	if c.closing {
		return errCloseRequested
	}
	c.buffer.Write(data)

	for c.buffer.Len() > 0 {
		c.parser.Reset(c.buffer.Bytes())
		c.req.Reset()
		consumed, err := c.parser.ParseRequest(&c.req)
		if err != nil && consumed == 0 {
			// Framing is unrecoverable; answer and close.
			c.logger.Printf("Parse error from %s: %v", c.conn.RemoteAddr(), err)
			c.write(h1.TextResponse(400, "Bad Request"), false)
			return errCloseRequested
		}
		if consumed == 0 {
			return nil
		}

		need := int(c.req.ContentLength)
		if c.buffer.Len()-consumed < need {
			// Wait for the rest of the body.
			return nil
		}

		c.buffer.Next(consumed)
		if need > 0 {
			body := make([]byte, need)
			_, _ = c.buffer.Read(body)
			c.req.Body = body
		}

		var resp *h1.Response
		if err != nil {
			// Framed but malformed; errors.Is(err, h1.ErrMalformedHeader).
			c.logger.Printf("Malformed request from %s: %v", c.conn.RemoteAddr(), err)
			resp = h1.TextResponse(400, "Bad Request")
		} else {
			resp = c.process(&c.req)
		}

		keepAlive := c.req.KeepAlive && !c.disableKeepAlive
		c.write(resp, keepAlive)
		if !keepAlive {
			return errCloseRequested
		}
	}
	return nil
}

// process mirrors the blocking transport's failure conversion.
func (c *connection) process(req *h1.Request) (resp *h1.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("Processor panic: %v", r)
			resp = h1.TextResponse(500, "Internal Server Error")
		}
	}()

	resp, err := c.processor.Process(c.ctx, req)
	if err != nil {
		c.logger.Printf("Processor error: %v", err)
		return h1.TextResponse(500, "Internal Server Error")
	}
	if resp == nil {
		return h1.TextResponse(500, "Internal Server Error")
	}
	return resp
}

// write queues the full response on the event loop. When the connection is
// not kept alive the close is chained to write completion so the peer
// receives all bytes first.
func (c *connection) write(resp *h1.Response, keepAlive bool) {
	resp.Finalize(keepAlive)
	buf := resp.Encode()
	if keepAlive {
		_ = c.conn.AsyncWrite(buf, nil)
		return
	}
	c.closing = true
	_ = c.conn.AsyncWrite(buf, func(conn gnet.Conn, _ error) error {
		_ = conn.Close()
		return nil
	})
}
