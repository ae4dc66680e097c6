package integration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albertbausili/velox/pkg/velox"
)

// TestBasicRequest tests a full request-response cycle over a raw socket.
func TestBasicRequest(t *testing.T) {
	router := velox.NewRouter()
	router.GET("/test", func(ctx *velox.Context) error {
		return ctx.JSON(200, map[string]string{"status": "ok"})
	})

	config := velox.DefaultConfig()
	config.Addr = getTestPort()
	server := velox.New(config)

	if err := server.ListenAndServe(router); err != nil {
		t.Fatalf("ListenAndServe() error = %v", err)
	}
	defer server.Stop(context.Background())
	if err := waitForServer(config.Addr, 2*time.Second); err != nil {
		t.Fatalf("Server error: %v", err)
	}

	resp := sendRequest(t, config.Addr, "GET /test VLX/1.1\r\nconnection: close\r\n\r\n")

	if resp.status != 200 {
		t.Errorf("Expected status 200, got %d", resp.status)
	}
	if !strings.Contains(resp.body, `"status":"ok"`) {
		t.Errorf("Expected JSON body, got %q", resp.body)
	}
	if resp.headers["content-type"] != "application/json" {
		t.Errorf("Expected json content type, got %q", resp.headers["content-type"])
	}
}

// TestKeepAlivePersistence tests that one connection carries many requests.
func TestKeepAlivePersistence(t *testing.T) {
	router := velox.NewRouter()
	router.GET("/ping", func(ctx *velox.Context) error {
		return ctx.String(200, "pong")
	})

	config := velox.DefaultConfig()
	config.Addr = getTestPort()
	server := velox.New(config)

	if err := server.ListenAndServe(router); err != nil {
		t.Fatalf("ListenAndServe() error = %v", err)
	}
	defer server.Stop(context.Background())
	if err := waitForServer(config.Addr, 2*time.Second); err != nil {
		t.Fatalf("Server error: %v", err)
	}

	conn, err := net.Dial("tcp", "127.0.0.1"+config.Addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	for i := 0; i < 5; i++ {
		fmt.Fprintf(conn, "GET /ping VLX/1.1\r\n\r\n")
		resp := readRawResponse(t, br)
		if resp.status != 200 || resp.body != "pong" {
			t.Fatalf("Request %d: expected 200 pong, got %d %q", i, resp.status, resp.body)
		}
		if resp.headers["connection"] != "keep-alive" {
			t.Fatalf("Request %d: expected keep-alive, got %q", i, resp.headers["connection"])
		}
	}
}

// TestPostWithBody tests body framing through the full stack.
func TestPostWithBody(t *testing.T) {
	router := velox.NewRouter()
	router.POST("/upload", func(ctx *velox.Context) error {
		return ctx.String(200, "got %d bytes", len(ctx.Body()))
	})

	config := velox.DefaultConfig()
	config.Addr = getTestPort()
	server := velox.New(config)

	if err := server.ListenAndServe(router); err != nil {
		t.Fatalf("ListenAndServe() error = %v", err)
	}
	defer server.Stop(context.Background())
	if err := waitForServer(config.Addr, 2*time.Second); err != nil {
		t.Fatalf("Server error: %v", err)
	}

	resp := sendRequest(t, config.Addr,
		"POST /upload VLX/1.1\r\ncontent-length: 9\r\nconnection: close\r\n\r\nhellodata")

	if resp.status != 200 {
		t.Errorf("Expected 200, got %d", resp.status)
	}
	if resp.body != "got 9 bytes" {
		t.Errorf("Expected body echo, got %q", resp.body)
	}
}

// TestEventLoopEngine runs the same round trip on the event-loop engine.
func TestEventLoopEngine(t *testing.T) {
	router := velox.NewRouter()
	router.GET("/loop", func(ctx *velox.Context) error {
		return ctx.String(200, "from the loop")
	})

	config := velox.DefaultConfig()
	config.Addr = getTestPort()
	config.Engine = velox.EngineEventLoop
	server := velox.New(config)

	if err := server.ListenAndServe(router); err != nil {
		t.Fatalf("ListenAndServe() error = %v", err)
	}
	defer server.Stop(context.Background())
	if err := waitForServer(config.Addr, 2*time.Second); err != nil {
		t.Fatalf("Server error: %v", err)
	}

	resp := sendRequest(t, config.Addr, "GET /loop VLX/1.1\r\nconnection: close\r\n\r\n")
	if resp.status != 200 || resp.body != "from the loop" {
		t.Errorf("Expected 200 from the loop, got %d %q", resp.status, resp.body)
	}
}

// Helper functions

var testPortCounter uint32

func getTestPort() string {
	// Atomic counter keeps ports unique across parallel tests.
	port := 23000 + atomic.AddUint32(&testPortCounter, 1)
	return fmt.Sprintf(":%d", port)
}

func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", "127.0.0.1"+addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server %s not ready", addr)
}

type rawResponse struct {
	status  int
	headers map[string]string
	body    string
}

func sendRequest(t *testing.T, addr, raw string) rawResponse {
	t.Helper()
	conn, err := net.Dial("tcp", "127.0.0.1"+addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return readRawResponse(t, bufio.NewReader(conn))
}

// sendRequestQuiet is the goroutine-safe variant: failures come back as a
// zero-status response instead of t.Fatal.
func sendRequestQuiet(addr, raw string) rawResponse {
	conn, err := net.Dial("tcp", "127.0.0.1"+addr)
	if err != nil {
		return rawResponse{}
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(raw)); err != nil {
		return rawResponse{}
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(conn)

	statusLine, err := br.ReadString('\n')
	if err != nil {
		return rawResponse{}
	}
	parts := strings.SplitN(strings.TrimRight(statusLine, "\r\n"), " ", 3)
	if len(parts) < 2 {
		return rawResponse{}
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return rawResponse{}
	}

	headers := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return rawResponse{}
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	var body string
	if cl := headers["content-length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return rawResponse{}
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return rawResponse{}
		}
		body = string(buf)
	}
	return rawResponse{status: status, headers: headers, body: body}
}

func readRawResponse(t *testing.T, br *bufio.Reader) rawResponse {
	t.Helper()

	statusLine, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	parts := strings.SplitN(strings.TrimRight(statusLine, "\r\n"), " ", 3)
	if len(parts) < 2 {
		t.Fatalf("unexpected status line %q", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		t.Fatalf("unexpected status code in %q", statusLine)
	}

	headers := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read header line: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	var body string
	if cl := headers["content-length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil {
			t.Fatalf("bad content-length %q", cl)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			t.Fatalf("read body: %v", err)
		}
		body = string(buf)
	}
	return rawResponse{status: status, headers: headers, body: body}
}
