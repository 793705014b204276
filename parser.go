package kitserv

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/jmcgee01125/kitserv/internal/sockopt"
)

// parseMethod recognizes GET/PUT/HEAD/POST/DELETE. HEAD is
// returned as MethodHEAD (MethodGET|MethodHeadFlag) so method&MethodGET
// matches both.
func parseMethod(b []byte) (Method, bool) {
	switch string(b) {
	case "GET":
		return MethodGET, true
	case "PUT":
		return MethodPUT, true
	case "HEAD":
		return MethodHEAD, true
	case "POST":
		return MethodPOST, true
	case "DELETE":
		return MethodDELETE, true
	default:
		return 0, false
	}
}

// need requests one more non-blocking read into the header buffer and
// translates its three possible outcomes:
// 1. would block past valid data -> caller should suspend (blocked=true)
// 2. peer closed / non-retriable error -> ErrHangup
// 3. buffer completely full with no progress -> ErrHeaderBufferFull (431)
func (c *Client) need() (blocked bool, err error) {
	if c.headerBuf.n >= len(c.headerBuf.buf) {
		return false, ErrHeaderBufferFull
	}
	n, err := sockopt.Read(c.fd, c.headerBuf.buf[c.headerBuf.n:])
	if err == sockopt.ErrWouldBlock {
		return true, nil
	}
	if err != nil {
		return false, ErrHangup
	}
	if n == 0 {
		return false, ErrHangup
	}
	c.headerBuf.n += n
	return false, nil
}

// indexByteFrom finds b in buf starting at from, or -1.
func indexByteFrom(buf []byte, b byte, from int) int {
	if from >= len(buf) {
		return -1
	}
	i := bytes.IndexByte(buf[from:], b)
	if i < 0 {
		return -1
	}
	return from + i
}

// indexCRLFFrom finds "\r\n" in buf starting at from, or -1.
func indexCRLFFrom(buf []byte, from int) int {
	if from >= len(buf) {
		return -1
	}
	i := bytes.Index(buf[from:], []byte("\r\n"))
	if i < 0 {
		return -1
	}
	return from + i
}

// parseRequest is the resumable request-line + headers parser. It returns
// blocked=true when the caller should suspend and be re-driven on the next
// readiness event; otherwise it returns with the transaction either
// advanced to stateServe (success) or with a non-nil err identifying the
// response status to synthesize (ErrHangup means abort silently instead).
func (c *Client) parseRequest() (blocked bool, err error) {
	t := &c.txn
	for {
		filled := c.headerBuf.n
		buf := c.headerBuf.buf[:filled]

		switch t.parseState {
		case psNew:
			t.p = t.r
			t.parseState = psMethod

		case psMethod:
			idx := indexByteFrom(buf, ' ', t.r)
			if idx < 0 {
				t.r = filled
				if b, e := c.need(); b || e != nil {
					return b, e
				}
				continue
			}
			m, ok := parseMethod(buf[t.p:idx])
			if !ok {
				return false, ErrUnsupportedMethod
			}
			t.method = m
			t.r = idx + 1
			t.p = t.r
			t.parseState = psPath

		case psPath:
			idx := indexByteFrom(buf, ' ', t.r)
			if idx < 0 {
				t.r = filled
				if b, e := c.need(); b || e != nil {
					return b, e
				}
				continue
			}
			raw := string(buf[t.p:idx])
			path, query, perr := parseRequestTarget(raw)
			if perr != nil {
				return false, perr
			}
			t.path = path
			t.query = query
			t.r = idx + 1
			t.p = t.r
			t.parseState = psVersion

		case psVersion, psVersionLF:
			crIdx := indexCRLFFrom(buf, t.p)
			if crIdx < 0 {
				t.r = filled
				if b, e := c.need(); b || e != nil {
					return b, e
				}
				continue
			}
			tok := buf[t.p:crIdx]
			major, minor, ok := parseVersion(tok)
			if !ok {
				return false, ErrUnsupportedVersion
			}
			t.versionMajor, t.versionMinor = major, minor
			t.r = crIdx + 2
			t.p = t.r
			t.parseState = psHead

		case psHead, psHeadLF:
			crIdx := indexCRLFFrom(buf, t.p)
			if crIdx < 0 {
				t.r = filled
				if b, e := c.need(); b || e != nil {
					return b, e
				}
				continue
			}
			if crIdx == t.p {
				// Blank line: headers are complete.
				t.payloadPos = crIdx + 2
				t.payloadLen = filled - t.payloadPos
				t.state = stateServe
				return false, nil
			}
			if herr := c.handleHeaderLine(buf[t.p:crIdx]); herr != nil {
				return false, herr
			}
			t.p = crIdx + 2
			t.r = t.p
			// loop for next header line
		}
	}
}

// parseVersion validates the HTTP-version token.
func parseVersion(tok []byte) (major, minor int, ok bool) {
	s := string(tok)
	switch s {
	case "HTTP/1.1":
		return 1, 1, true
	case "HTTP/1.0":
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

// parseRequestTarget splits off the query string and URL-decodes both
// parts, rejecting non-printable bytes and path-traversal attempts.
func parseRequestTarget(raw string) (path, query string, err error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x20 || raw[i] >= 0x7f {
			return "", "", ErrMalformedRequest
		}
	}
	p, q := raw, ""
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		p, q = raw[:i], raw[i+1:]
	}
	decodedPath, ok := urlDecode(p)
	if !ok {
		return "", "", ErrMalformedRequest
	}
	decodedQuery, ok := urlDecode(q)
	if !ok {
		return "", "", ErrMalformedRequest
	}
	if hasTraversal(decodedPath) {
		return "", "", ErrPathTraversal
	}
	return decodedPath, decodedQuery, nil
}

// urlDecode decodes percent-hex triplets into a new string; any other byte
// passes through unchanged. A '%' not followed by two hex digits makes the
// decode fail (ok=false).
func urlDecode(s string) (string, bool) {
	if !strings.ContainsRune(s, '%') {
		return s, true
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", false
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", false
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), true
}

func hexVal(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	default:
		return 0, false
	}
}

// hasTraversal reports whether path contains a ".." segment bounded by '/'
// or start/end-of-string, matching original_source/src/http.c's
// attempted_path_traversal (a plain substring check would wrongly reject
// safe paths like "/foo..bar").
func hasTraversal(path string) bool {
	for i := 0; i+1 < len(path); i++ {
		if path[i] != '.' || path[i+1] != '.' {
			continue
		}
		leftOK := i == 0 || path[i-1] == '/'
		rightOK := i+2 == len(path) || path[i+2] == '/'
		if leftOK && rightOK {
			return true
		}
	}
	return false
}

// handleHeaderLine splits one header line at the first ':', trims leading
// whitespace from the value, and dispatches to the six recognized field
// handlers; unrecognized names are skipped silently.
func (c *Client) handleHeaderLine(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return nil // malformed line with no colon: tolerated, skipped
	}
	name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
	value := strings.TrimLeft(string(line[colon+1:]), " \t")

	t := &c.txn
	switch name {
	case "cookie":
		t.rawCookieHeader = value
		t.cookiesParsed = false
	case "range":
		t.rangeRaw = value
		t.rangeRequested = true
	case "if-modified-since":
		t.ifModifiedSinceRaw = value
	case "content-length":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return ErrMalformedRequest
		}
		t.contentLength = n
		t.hasContentLength = true
	case "content-type":
		t.contentType = value
	case "content-disposition":
		t.contentDisposition = value
	}
	return nil
}

// parseCookies lazily splits the raw Cookie header into key/value pairs on
// first access, matching original_source/src/api.c's lazy
// kitserv_http_parse_cookies, capped at maxCookies with silent overflow
// discard and a malformed segment terminating parsing for this header
// without error.
func (c *Client) parseCookies() {
	t := &c.txn
	if t.cookiesParsed {
		return
	}
	t.cookiesParsed = true
	if t.rawCookieHeader == "" {
		return
	}
	for _, part := range strings.Split(t.rawCookieHeader, ";") {
		if len(t.cookies) >= maxCookies {
			return
		}
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return // malformed segment terminates parsing
		}
		key := part[:eq]
		value := part[eq+1:]
		if key == "" {
			return
		}
		t.cookies = append(t.cookies, cookieKV{key: key, value: value})
	}
}
