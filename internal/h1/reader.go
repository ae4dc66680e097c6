package h1

import (
	"errors"
	"io"
)

// MessageReader decodes request messages from a byte stream. The transport
// gives no guarantees about message boundaries per read, so the reader
// accumulates bytes across arbitrarily small reads and re-parses until a
// complete message is framed. Leftover bytes after a message are retained
// for the next request on a kept-alive connection.
type MessageReader struct {
	src    io.Reader
	buf    []byte
	parser Parser
	req    Request
}

// NewMessageReader creates a reader decoding from src.
func NewMessageReader(src io.Reader) *MessageReader {
	return &MessageReader{src: src}
}

// ReadRequest blocks until one complete message is decoded.
//
// It returns io.EOF when the peer shuts down cleanly before any byte of a
// new message has arrived, and *IncompleteError when the stream ends
// mid-message. A request is returned together with a non-nil error only
// for ErrMalformedHeader, where the message is framed but carries an
// unparsable header line.
//
// The returned request is reused by the next ReadRequest call.
func (r *MessageReader) ReadRequest() (*Request, error) {
	for {
		if len(r.buf) > 0 {
			r.parser.Reset(r.buf)
			r.req.Reset()
			consumed, err := r.parser.ParseRequest(&r.req)
			if err != nil && consumed == 0 {
				return nil, err
			}
			if consumed > 0 {
				return r.readBody(consumed, err)
			}
		}
		if err := r.fill(); err != nil {
			if err == io.EOF {
				if len(r.buf) == 0 {
					return nil, io.EOF
				}
				return nil, &IncompleteError{BytesConsumed: len(r.buf)}
			}
			return nil, err
		}
	}
}

// readBody reads exactly the declared Content-Length bytes after the header
// block, however many reads that takes. hdrErr carries a pending
// ErrMalformedHeader for a message that is framed but not clean.
func (r *MessageReader) readBody(consumed int, hdrErr error) (*Request, error) {
	need := int(r.req.ContentLength)
	for len(r.buf)-consumed < need {
		if err := r.fill(); err != nil {
			if err == io.EOF {
				return nil, &IncompleteError{BytesConsumed: len(r.buf)}
			}
			return nil, err
		}
	}
	if need > 0 {
		body := make([]byte, need)
		copy(body, r.buf[consumed:consumed+need])
		r.req.Body = body
	}
	r.advance(consumed + need)
	return &r.req, hdrErr
}

// fill performs one read from the stream and appends what arrived.
func (r *MessageReader) fill() error {
	var tmp [4096]byte
	n, err := r.src.Read(tmp[:])
	if n > 0 {
		r.buf = append(r.buf, tmp[:n]...)
		return nil
	}
	if err != nil {
		return err
	}
	return errors.New("h1: read returned no data and no error")
}

// advance drops n consumed bytes, keeping any leftover for the next message.
func (r *MessageReader) advance(n int) {
	if n >= len(r.buf) {
		r.buf = r.buf[:0]
		return
	}
	rest := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:rest]
}
