package h1

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRequestLine reports a request line that does not have the
	// METHOD SP TARGET SP VERSION shape, or an unsupported protocol version.
	// Framing cannot be recovered after this error.
	ErrMalformedRequestLine = errors.New("h1: malformed request line")

	// ErrMalformedHeader reports a header line that cannot be split into a
	// name and a value. The message is still framed: parsing continues to
	// the blank line and a valid Content-Length is honored, so the caller
	// can answer with a client error without tearing the connection down.
	ErrMalformedHeader = errors.New("h1: malformed header line")

	// ErrInvalidContentLength reports a Content-Length value that is not a
	// non-negative integer. The body cannot be framed after this error.
	ErrInvalidContentLength = errors.New("h1: invalid content-length")
)

// IncompleteError reports a stream that ended before a complete message was
// read. BytesConsumed distinguishes a clean disconnect between messages
// (zero) from a truncated message (non-zero).
type IncompleteError struct {
	BytesConsumed int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("h1: stream ended after %d bytes of an incomplete message", e.BytesConsumed)
}
