package kitserv

import (
	"testing"

	"golang.org/x/sys/unix"
)

func newTestClient() *Client {
	c := newClient(&RequestContext{Root: "/srv"}, nil)
	c.fd = -1 // no real socket; tests feed bytes directly into headerBuf
	return c
}

func feed(c *Client, data string) {
	n := copy(c.headerBuf.buf[c.headerBuf.n:], data)
	c.headerBuf.n += n
}

func TestParseRequestSingleRead(t *testing.T) {
	c := newTestClient()
	feed(c, "GET /foo/bar?x=1 HTTP/1.1\r\nHost: example.com\r\nRange: bytes=0-99\r\n\r\n")

	blocked, err := c.parseRequest()
	if err != nil {
		t.Fatalf("parseRequest: %v", err)
	}
	if blocked {
		t.Fatalf("parseRequest should not block on a complete, fully-buffered request")
	}
	if c.txn.method != MethodGET {
		t.Errorf("method = %v, want GET", c.txn.method)
	}
	if c.txn.path != "/foo/bar" {
		t.Errorf("path = %q, want /foo/bar", c.txn.path)
	}
	if c.txn.query != "x=1" {
		t.Errorf("query = %q, want x=1", c.txn.query)
	}
	if c.txn.versionMajor != 1 || c.txn.versionMinor != 1 {
		t.Errorf("version = %d.%d, want 1.1", c.txn.versionMajor, c.txn.versionMinor)
	}
	if !c.txn.rangeRequested || c.txn.rangeRaw != "bytes=0-99" {
		t.Errorf("range not captured: requested=%v raw=%q", c.txn.rangeRequested, c.txn.rangeRaw)
	}
	if c.txn.state != stateServe {
		t.Errorf("state = %v, want stateServe", c.txn.state)
	}
}

// TestParseRequestFragmented feeds the same request one byte at a time over
// a real non-blocking socket, simulating the worst-case non-blocking read
// pattern the parser must tolerate: every byte arrives as its own
// WOULDBLOCK-bounded read.
func TestParseRequestFragmented(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblocking: %v", err)
	}

	c := newClient(&RequestContext{Root: "/srv"}, nil)
	c.fd = fds[0]

	raw := "PUT /up HTTP/1.0\r\nContent-Length: 5\r\n\r\nhello"

	for i := 0; i < len(raw); i++ {
		if _, err := unix.Write(fds[1], []byte{raw[i]}); err != nil {
			t.Fatalf("write byte %d: %v", i, err)
		}
		blocked, err := c.parseRequest()
		if err != nil {
			t.Fatalf("parseRequest at byte %d: %v", i, err)
		}
		if !blocked && c.txn.state != stateServe {
			t.Fatalf("parseRequest returned unblocked before headers complete, at byte %d", i)
		}
		if c.txn.state == stateServe {
			break
		}
	}

	if c.txn.method != MethodPUT {
		t.Errorf("method = %v, want PUT", c.txn.method)
	}
	if c.txn.path != "/up" {
		t.Errorf("path = %q, want /up", c.txn.path)
	}
	if !c.txn.hasContentLength || c.txn.contentLength != 5 {
		t.Errorf("content-length not parsed: has=%v len=%d", c.txn.hasContentLength, c.txn.contentLength)
	}
	if c.txn.versionMajor != 1 || c.txn.versionMinor != 0 {
		t.Errorf("version = %d.%d, want 1.0", c.txn.versionMajor, c.txn.versionMinor)
	}
}

func TestParseRequestUnsupportedMethod(t *testing.T) {
	c := newTestClient()
	feed(c, "PATCH / HTTP/1.1\r\n\r\n")
	_, err := c.parseRequest()
	if err != ErrUnsupportedMethod {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestParseRequestUnsupportedVersion(t *testing.T) {
	c := newTestClient()
	feed(c, "GET / HTTP/2.0\r\n\r\n")
	_, err := c.parseRequest()
	if err != ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestParseRequestPathTraversal(t *testing.T) {
	c := newTestClient()
	feed(c, "GET /../etc/passwd HTTP/1.1\r\n\r\n")
	_, err := c.parseRequest()
	if err != ErrPathTraversal {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
}

func TestParseRequestTraversalBoundaryDoesNotFalsePositive(t *testing.T) {
	c := newTestClient()
	feed(c, "GET /foo..bar HTTP/1.1\r\n\r\n")
	_, err := c.parseRequest()
	if err != nil {
		t.Fatalf("a '..' not bounded by '/' must not be treated as traversal: %v", err)
	}
	if c.txn.path != "/foo..bar" {
		t.Errorf("path = %q, want /foo..bar", c.txn.path)
	}
}

func TestHasTraversal(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/a/../b", true},
		{"/..", true},
		{"/a/..", true},
		{"../a", true},
		{"/foo..bar", false},
		{"/a.b/c", false},
		{"/", false},
	}
	for _, c := range cases {
		if got := hasTraversal(c.path); got != c.want {
			t.Errorf("hasTraversal(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestUrlDecode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello", "hello"},
		{"a%20b", "a b"},
		{"%2Fetc%2Fpasswd", "/etc/passwd"},
	}
	for _, c := range cases {
		got, ok := urlDecode(c.in)
		if !ok || got != c.want {
			t.Errorf("urlDecode(%q) = (%q, %v), want (%q, true)", c.in, got, ok, c.want)
		}
	}
}

func TestUrlDecodeMalformed(t *testing.T) {
	if _, ok := urlDecode("%2"); ok {
		t.Error("truncated percent-escape should fail to decode")
	}
	if _, ok := urlDecode("%zz"); ok {
		t.Error("non-hex percent-escape should fail to decode")
	}
}

func TestHeaderBufferFullBeforeCompleteRequest(t *testing.T) {
	c := newTestClient()
	// Fill the header buffer with a method/path line that never terminates.
	c.headerBuf.n = len(c.headerBuf.buf)
	_, err := c.parseRequest()
	if err != ErrHeaderBufferFull {
		t.Fatalf("expected ErrHeaderBufferFull, got %v", err)
	}
}

func TestParseCookiesLazyAndCached(t *testing.T) {
	c := newTestClient()
	feed(c, "GET / HTTP/1.1\r\nCookie: a=1; b=2; c=3\r\n\r\n")
	if _, err := c.parseRequest(); err != nil {
		t.Fatalf("parseRequest: %v", err)
	}
	if c.txn.cookiesParsed {
		t.Fatal("cookies must not be parsed until first accessed")
	}
	v, ok := c.Cookie("b")
	if !ok || v != "2" {
		t.Fatalf("Cookie(b) = (%q, %v), want (2, true)", v, ok)
	}
	if !c.txn.cookiesParsed {
		t.Fatal("cookies should be marked parsed after first access")
	}
	if _, ok := c.Cookie("missing"); ok {
		t.Fatal("Cookie(missing) should report ok=false")
	}
}
