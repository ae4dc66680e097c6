package velox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/albertbausili/velox/internal/h1"
)

// Context represents one request-response exchange.
type Context struct {
	ctx     context.Context
	req     *h1.Request
	status  int
	headers h1.Headers
	body    bytes.Buffer
	values  map[string]interface{}
}

func newContext(ctx context.Context, req *h1.Request) *Context {
	return &Context{ctx: ctx, req: req}
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.req.Method
}

// Path returns the request target.
func (c *Context) Path() string {
	return c.req.Target
}

// Proto returns the request protocol version.
func (c *Context) Proto() string {
	return c.req.Proto
}

// Host returns the value of the request's host header.
func (c *Context) Host() string {
	return c.req.Host
}

// Header returns the value of a request header, "" if absent.
func (c *Context) Header(name string) string {
	return c.req.Headers.Get(name)
}

// RequestHeaders returns all request headers in arrival order.
func (c *Context) RequestHeaders() [][2]string {
	return c.req.Headers.All()
}

// Body returns the request body.
func (c *Context) Body() []byte {
	return c.req.Body
}

// SetStatus sets the response status code.
func (c *Context) SetStatus(code int) {
	c.status = code
}

// Status returns the response status code set so far (200 if none).
func (c *Context) Status() int {
	if c.status == 0 {
		return 200
	}
	return c.status
}

// SetHeader sets a response header.
func (c *Context) SetHeader(name, value string) {
	c.headers.Set(name, value)
}

// Write appends data to the response body.
func (c *Context) Write(data []byte) (int, error) {
	return c.body.Write(data)
}

// WriteString appends a string to the response body.
func (c *Context) WriteString(s string) (int, error) {
	return c.body.WriteString(s)
}

// String sends a plain-text response with the given status code.
func (c *Context) String(status int, format string, values ...interface{}) error {
	c.status = status
	c.headers.Set("content-type", "text/plain; charset=utf-8")
	if len(values) > 0 {
		_, err := fmt.Fprintf(&c.body, format, values...)
		return err
	}
	_, err := c.body.WriteString(format)
	return err
}

// Bytes sends raw data with the given status code and content type.
func (c *Context) Bytes(status int, contentType string, data []byte) error {
	c.status = status
	c.headers.Set("content-type", contentType)
	_, err := c.body.Write(data)
	return err
}

// JSON sends a JSON response with the given status code.
func (c *Context) JSON(status int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Bytes(status, "application/json", data)
}

// NoContent sends a response without a body.
func (c *Context) NoContent(status int) error {
	c.status = status
	return nil
}

// Error sends a plain-text error response.
func (c *Context) Error(status int, message string) error {
	return c.String(status, message)
}

// Set stores a value in the per-request bag (for middleware).
func (c *Context) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{}, 4)
	}
	c.values[key] = value
}

// Get retrieves a value from the per-request bag.
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// WithContext replaces the underlying context.Context (for middleware that
// attaches values or deadlines).
func (c *Context) WithContext(ctx context.Context) {
	c.ctx = ctx
}

// ResponseSize returns the number of body bytes written so far.
func (c *Context) ResponseSize() int {
	return c.body.Len()
}

// response assembles the final message. Content-Length is set here from the
// actual body, so handlers never have to compute it.
func (c *Context) response() *h1.Response {
	resp := h1.NewResponse(c.Status())
	resp.Headers = c.headers
	if c.body.Len() > 0 {
		resp.Body = c.body.Bytes()
		resp.Headers.Set("content-length", strconv.Itoa(c.body.Len()))
	}
	return resp
}
