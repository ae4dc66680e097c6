package h1

import (
	"strconv"

	"github.com/albertbausili/velox/internal/date"
)

// Response is one response message.
type Response struct {
	Status  int
	Headers Headers
	Body    []byte
}

// NewResponse creates a response with the given status code.
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// TextResponse creates a plain-text response with Content-Length set.
func TextResponse(status int, text string) *Response {
	resp := NewResponse(status)
	resp.Headers.Set("content-type", "text/plain; charset=utf-8")
	resp.Headers.Set("content-length", strconv.Itoa(len(text)))
	resp.Body = []byte(text)
	return resp
}

// Encode serializes the response: status line, headers in insertion order,
// blank line, body verbatim. As with Request.Encode, a correct
// Content-Length for the body is the caller's obligation.
func (r *Response) Encode() []byte {
	text := StatusText(r.Status)
	n := len(Proto11) + 1 + 3 + 1 + len(text) + 2 + 2 + len(r.Body)
	for _, e := range r.Headers.All() {
		n += len(e[0]) + 2 + len(e[1]) + 2
	}
	buf := make([]byte, 0, n)
	buf = append(buf, Proto11...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(r.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, text...)
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

// Finalize stamps the transport-owned headers before a response is written:
// date, the connection directive, and content-length when a body is present
// and the header is missing. A caller-supplied content-length is never
// overwritten.
func (r *Response) Finalize(keepAlive bool) {
	if len(r.Body) > 0 && !r.Headers.Has("content-length") {
		r.Headers.Set("content-length", strconv.Itoa(len(r.Body)))
	}
	r.Headers.Set("date", date.Now())
	if keepAlive {
		r.Headers.Set("connection", "keep-alive")
	} else {
		r.Headers.Set("connection", "close")
	}
}

// StatusText returns the reason phrase for common status codes.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
