package kitserv

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

// e2eHarness drives a real Client.Process() loop over a genuine non-blocking
// socketpair, exercising the full READ->SERVE->PREPARE_RESPONSE->SEND state
// machine exactly as the worker loop in server.go would.
type e2eHarness struct {
	t    *testing.T
	c    *Client
	peer int
}

func newE2EHarness(t *testing.T, ctx *RequestContext, api *APITree) *e2eHarness {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}
	c := newClient(ctx, api)
	c.bind(fds[0], "127.0.0.1:1")
	return &e2eHarness{t: t, c: c, peer: fds[1]}
}

// send writes raw request bytes from the peer side and drives Process()
// until it either suspends (needs more input) or reaches a terminal state.
func (h *e2eHarness) send(raw string) (closeConn bool) {
	h.t.Helper()
	if _, err := unix.Write(h.peer, []byte(raw)); err != nil {
		h.t.Fatalf("write: %v", err)
	}
	closeConn, err := h.c.Process()
	if err != nil {
		h.t.Fatalf("Process: %v", err)
	}
	return closeConn
}

// readAvailable drains whatever the server has already written to the peer
// side. Process() only returns after fully flushing a response or hitting
// WOULDBLOCK, so by the time send() returns, everything sent so far already
// sits in the socketpair's kernel buffer — no need to wait for more.
func (h *e2eHarness) readAvailable() string {
	h.t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(h.peer, buf)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			h.t.Fatalf("read: %v", err)
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return string(out)
}

func staticRoot(t *testing.T) *RequestContext {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "HELLO\n")
	writeTestFile(t, dir, "index.html", "INDEX\n")
	return &RequestContext{Root: dir, RootFallback: "index.html"}
}

// Scenario 1: root fallback.
func TestE2ERootFallback(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	closeConn := h.send("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	if closeConn {
		t.Fatal("a successful HTTP/1.1 response must keep the connection open")
	}
	resp := h.readAvailable()
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("response = %q, want 200 OK status line", resp)
	}
	if !strings.Contains(resp, "Content-Type: text/html\r\n") {
		t.Errorf("response = %q, missing Content-Type", resp)
	}
	if !strings.Contains(resp, "Content-Length: 6\r\n") {
		t.Errorf("response = %q, want Content-Length: 6", resp)
	}
	if !strings.HasSuffix(resp, "INDEX\n") {
		t.Errorf("response = %q, want body INDEX\\n", resp)
	}
}

// Scenario 2: explicit A-B range.
func TestE2ERangeAB(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	h.send("GET /a.txt HTTP/1.1\r\nRange: bytes=1-3\r\n\r\n")
	resp := h.readAvailable()
	if !strings.HasPrefix(resp, "HTTP/1.1 206 Partial Content\r\n") {
		t.Fatalf("response = %q, want 206", resp)
	}
	if !strings.Contains(resp, "Content-Range: bytes 1-3/6\r\n") {
		t.Errorf("response = %q, missing Content-Range", resp)
	}
	if !strings.Contains(resp, "Content-Length: 3\r\n") {
		t.Errorf("response = %q, want Content-Length: 3", resp)
	}
	if !strings.HasSuffix(resp, "ELL") {
		t.Errorf("response = %q, want body ELL", resp)
	}
}

// Scenario 3: suffix range.
func TestE2ERangeSuffix(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	h.send("GET /a.txt HTTP/1.1\r\nRange: bytes=-2\r\n\r\n")
	resp := h.readAvailable()
	if !strings.Contains(resp, "Content-Range: bytes 4-5/6\r\n") {
		t.Errorf("response = %q, missing Content-Range", resp)
	}
	if !strings.HasSuffix(resp, "O\n") {
		t.Errorf("response = %q, want body O\\n", resp)
	}
}

// Scenario 4: range past EOF.
func TestE2ERangePastEOF(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	h.send("GET /a.txt HTTP/1.1\r\nRange: bytes=99-\r\n\r\n")
	resp := h.readAvailable()
	if !strings.HasPrefix(resp, "HTTP/1.1 416 Range Not Satisfiable\r\n") {
		t.Fatalf("response = %q, want 416", resp)
	}
	if !strings.Contains(resp, "Content-Range: */6\r\n") {
		t.Errorf("response = %q, missing Content-Range */6", resp)
	}
}

// Scenario 5: path traversal.
func TestE2EPathTraversal(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	h.send("GET /../etc/passwd HTTP/1.1\r\n\r\n")
	resp := h.readAvailable()
	if !strings.HasPrefix(resp, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("response = %q, want 400", resp)
	}
	if !strings.HasSuffix(resp, "Bad request.") {
		t.Errorf("response = %q, want canonical 400 body", resp)
	}
}

// Scenario 6: no matching API endpoint.
func TestE2ENoMatchingAPIEndpoint(t *testing.T) {
	api := &APITree{
		Entries: []APIEntry{
			{Prefix: "health", Methods: MethodGET, Handler: noopHandler, FinishesPath: true},
		},
	}
	h := newE2EHarness(t, staticRoot(t), api)
	h.send("POST /nope HTTP/1.1\r\nContent-Length: 0\r\n\r\n")
	resp := h.readAvailable()
	if !strings.HasPrefix(resp, "HTTP/1.1 405 Method Not Allowed\r\n") {
		t.Fatalf("response = %q, want 405", resp)
	}
	if !strings.Contains(resp, "Allow: GET, HEAD\r\n") {
		t.Errorf("response = %q, want Allow: GET, HEAD", resp)
	}
	if !strings.HasSuffix(resp, "Method not allowed.") {
		t.Errorf("response = %q, want canonical 405 body", resp)
	}
}

// Scenario 7: two pipelined requests arrive in one write; the state machine
// loops internally from DONE back to READ without returning to the worker,
// so a single Process() call drives both transactions and emits both
// responses back to back. The connection closes only after the second
// response because it is HTTP/1.0.
func TestE2EPipelinedRequestsSecondIsHTTP10(t *testing.T) {
	h := newE2EHarness(t, staticRoot(t), nil)
	raw := "GET /a.txt HTTP/1.1\r\n\r\nGET /a.txt HTTP/1.0\r\n\r\n"
	closeConn := h.send(raw)
	if !closeConn {
		t.Fatal("the second (HTTP/1.0) request must close the connection")
	}

	resp := h.readAvailable()
	responses := strings.Split(resp, "HTTP/1.")
	if len(responses) != 3 || responses[0] != "" {
		t.Fatalf("expected exactly two status lines back to back, got %q", resp)
	}
	first := "HTTP/1." + responses[1]
	second := "HTTP/1." + responses[2]
	if !strings.HasPrefix(first, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(first, "HELLO\n") {
		t.Fatalf("first response = %q", first)
	}
	if !strings.HasPrefix(second, "HTTP/1.0 200 OK\r\n") || !strings.HasSuffix(second, "HELLO\n") {
		t.Fatalf("second response = %q", second)
	}
}
