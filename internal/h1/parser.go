package h1

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Parser provides incremental request parsing from an accumulating buffer.
// A return of consumed == 0 with a nil error means more data is needed;
// callers re-Reset with the grown buffer and parse again.
type Parser struct {
	buf []byte
	pos int
}

// Reset points the parser at new buffer data.
func (p *Parser) Reset(buf []byte) {
	p.buf = buf
	p.pos = 0
}

// ParseRequest parses the request line and headers, up to and including the
// blank line. It returns the number of bytes consumed.
//
// A malformed header line does not abort framing: parsing continues to the
// blank line and the error returned alongside a non-zero consumed count
// wraps ErrMalformedHeader. Request-line and Content-Length errors abort
// framing and return consumed == 0.
func (p *Parser) ParseRequest(req *Request) (int, error) {
	complete, err := p.parseRequestLine(req)
	if err != nil {
		return 0, err
	}
	if !complete {
		return 0, nil
	}

	req.ContentLength = 0
	req.KeepAlive = req.Proto == Proto11

	complete, err = p.parseHeaders(req)
	if err != nil && !complete {
		return 0, err
	}
	if !complete {
		return 0, nil
	}
	return p.pos, err
}

// parseRequestLine parses METHOD SP TARGET SP VERSION CRLF, advancing p.pos.
// Returns complete=false if the line terminator has not arrived yet.
func (p *Parser) parseRequestLine(req *Request) (bool, error) {
	lineEnd := bytes.Index(p.buf[p.pos:], []byte(crlf))
	if lineEnd == -1 {
		return false, nil
	}
	line := p.buf[p.pos : p.pos+lineEnd]
	p.pos += lineEnd + 2

	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false, fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}
	req.Method = string(parts[0])
	req.Target = string(parts[1])
	req.Proto = string(parts[2])
	if req.Proto != Proto10 && req.Proto != Proto11 {
		return false, fmt.Errorf("%w: unsupported version %q", ErrMalformedRequestLine, req.Proto)
	}
	return true, nil
}

// parseHeaders parses header lines until the blank line, advancing p.pos.
// complete=true means the blank line was reached; the returned error, if
// any, is then a client error for an individual line, not a framing error.
func (p *Parser) parseHeaders(req *Request) (bool, error) {
	var lineErr error
	for {
		lineEnd := bytes.Index(p.buf[p.pos:], []byte(crlf))
		if lineEnd == -1 {
			return false, nil
		}
		line := p.buf[p.pos : p.pos+lineEnd]
		p.pos += lineEnd + 2
		if len(line) == 0 {
			return true, lineErr
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			if lineErr == nil {
				lineErr = fmt.Errorf("%w: %q", ErrMalformedHeader, line)
			}
			continue
		}
		name := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		value := string(bytes.TrimSpace(line[colon+1:]))
		req.Headers.Add(name, value)

		switch name {
		case "host":
			req.Host = value
		case "content-length":
			cl, err := strconv.ParseInt(value, 10, 64)
			if err != nil || cl < 0 {
				return false, fmt.Errorf("%w: %q", ErrInvalidContentLength, value)
			}
			req.ContentLength = cl
		case "connection":
			if containsFold(value, "close") {
				req.KeepAlive = false
			} else if containsFold(value, "keep-alive") {
				req.KeepAlive = true
			}
		}
	}
}

// containsFold reports whether s contains sub under ASCII case-insensitive
// comparison.
func containsFold(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	n, m := len(s), len(sub)
	for i := 0; i <= n-m; i++ {
		match := true
		for j := 0; j < m; j++ {
			cs, ct := s[i+j], sub[j]
			if 'A' <= cs && cs <= 'Z' {
				cs |= 0x20
			}
			if 'A' <= ct && ct <= 'Z' {
				ct |= 0x20
			}
			if cs != ct {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
