// Package h1 implements the velox wire protocol: a request line, ASCII
// header lines terminated by a blank line, and an optional body of exactly
// Content-Length bytes.
package h1

import "context"

// Supported protocol versions. VLX/1.1 connections default to keep-alive,
// VLX/1.0 connections default to close; an explicit Connection header
// overrides either.
const (
	Proto10 = "VLX/1.0"
	Proto11 = "VLX/1.1"
)

const crlf = "\r\n"

// Request is one decoded request message.
type Request struct {
	Method  string
	Target  string
	Proto   string
	Headers Headers
	Body    []byte

	// Derived during parsing.
	Host          string
	ContentLength int64
	KeepAlive     bool
}

// Reset clears the request fields for reuse.
func (r *Request) Reset() {
	r.Method = ""
	r.Target = ""
	r.Proto = ""
	r.Headers.Reset()
	r.Body = nil
	r.Host = ""
	r.ContentLength = 0
	r.KeepAlive = false
}

// Encode serializes the request: request line, headers in insertion order,
// blank line, body verbatim. A correct Content-Length header for the body
// is the caller's obligation; Encode never recomputes it.
func (r *Request) Encode() []byte {
	n := len(r.Method) + 1 + len(r.Target) + 1 + len(r.Proto) + 2 + 2 + len(r.Body)
	for _, e := range r.Headers.All() {
		n += len(e[0]) + 2 + len(e[1]) + 2
	}
	buf := make([]byte, 0, n)
	buf = append(buf, r.Method...)
	buf = append(buf, ' ')
	buf = append(buf, r.Target...)
	buf = append(buf, ' ')
	buf = append(buf, r.Proto...)
	buf = append(buf, crlf...)
	for _, e := range r.Headers.All() {
		buf = append(buf, e[0]...)
		buf = append(buf, ": "...)
		buf = append(buf, e[1]...)
		buf = append(buf, crlf...)
	}
	buf = append(buf, crlf...)
	buf = append(buf, r.Body...)
	return buf
}

// Processor consumes one request and produces one response. It is invoked
// once per request, strictly in arrival order on each connection, and must
// not block indefinitely. Failures are converted by the transport into
// well-formed error responses; they never reach the peer as raw faults.
type Processor interface {
	Process(ctx context.Context, req *Request) (*Response, error)
}

// ProcessorFunc adapts an ordinary function to the Processor interface.
type ProcessorFunc func(ctx context.Context, req *Request) (*Response, error)

// Process calls f(ctx, req).
func (f ProcessorFunc) Process(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
