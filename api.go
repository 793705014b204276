package kitserv

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmcgee01125/kitserv/internal/sockopt"
)

// Method returns the request's method bitmask.
func (c *Client) Method() Method { return c.txn.method }

// Path returns the decoded, traversal-checked request path.
func (c *Client) Path() string { return c.txn.path }

// Query returns the decoded query string (without the leading '?').
func (c *Client) Query() string { return c.txn.query }

// ContentLength returns the parsed request Content-Length, or -1 if the
// request did not carry one.
func (c *Client) ContentLength() int64 {
	if !c.txn.hasContentLength {
		return -1
	}
	return c.txn.contentLength
}

// MimeType returns the request's Content-Type header value.
func (c *Client) MimeType() string { return c.txn.contentType }

// Disposition returns the request's Content-Disposition header value.
func (c *Client) Disposition() string { return c.txn.contentDisposition }

// Cookie looks up a cookie by name, lazily splitting the raw Cookie: header
// on first access, grounded on original_source/src/api.c's
// kitserv_http_parse_cookies laziness (see parser.go's parseCookies).
func (c *Client) Cookie(name string) (string, bool) {
	c.parseCookies()
	for _, kv := range c.txn.cookies {
		if kv.key == name {
			return kv.value, true
		}
	}
	return "", false
}

// Range returns the request's parsed Range header. Because this
// accessor has no notion of the resource's total size, an absent bound is
// reported via the sentinel -1: (n, -1, true) means "byte n to the end of
// the resource" and (-1, n, true) means "the last n bytes" (a suffix
// range). Callers that know their resource size should clamp accordingly;
// the static responder does its own size-aware parsing in static.go.
func (c *Client) Range() (start, end int64, ok bool) {
	t := &c.txn
	if !t.rangeRequested {
		return 0, 0, false
	}
	const prefix = "bytes="
	if !strings.HasPrefix(t.rangeRaw, prefix) {
		return 0, 0, false
	}
	value := t.rangeRaw[len(prefix):]
	if strings.Contains(value, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	aStr, bStr := parts[0], parts[1]
	if aStr == "" && bStr == "" {
		return 0, 0, false
	}
	switch {
	case aStr == "":
		n, err := strconv.ParseInt(bStr, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		return -1, n, true
	case bStr == "":
		n, err := strconv.ParseInt(aStr, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		return n, -1, true
	default:
		a, e1 := strconv.ParseInt(aStr, 10, 64)
		b, e2 := strconv.ParseInt(bStr, 10, 64)
		if e1 != nil || e2 != nil || a < 0 || b < 0 || b < a {
			return 0, 0, false
		}
		return a, b, true
	}
}

// IfModifiedSinceDelta reports ref.Sub(parsed If-Modified-Since), and
// whether the request carried a parseable one.
func (c *Client) IfModifiedSinceDelta(ref time.Time) (time.Duration, bool) {
	if c.txn.ifModifiedSinceRaw == "" {
		return 0, false
	}
	ims, err := time.Parse(rfc1123Format, c.txn.ifModifiedSinceRaw)
	if err != nil {
		return 0, false
	}
	return ref.Sub(ims), true
}

// ReadPayload copies request-body bytes into buf, first draining whatever
// was captured in the header buffer during parsing and then issuing a
// direct non-blocking read for the remainder, grounded on api.c's payload
// accessor. Returns ErrWouldBlock (not 0, nil) when nothing is currently
// available.
func (c *Client) ReadPayload(buf []byte) (int, error) {
	t := &c.txn
	if avail := t.payloadLen - t.payloadOff; avail > 0 {
		start := t.payloadPos + t.payloadOff
		end := t.payloadPos + t.payloadLen
		n := copy(buf, c.headerBuf.bytes()[start:end])
		t.payloadOff += n
		return n, nil
	}
	n, err := sockopt.Read(c.fd, buf)
	if err == sockopt.ErrWouldBlock {
		return 0, ErrWouldBlock
	}
	return n, err
}

// WriteBody appends raw bytes to the response body buffer and selects the
// sendBody kind.
func (c *Client) WriteBody(p []byte) (int, error) {
	c.txn.sendKind = sendBody
	if err := c.body.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteBodyString is WriteBody for a string.
func (c *Client) WriteBodyString(s string) (int, error) {
	return c.WriteBody([]byte(s))
}

// WriteBodyf is WriteBody for a printf-formatted string.
func (c *Client) WriteBodyf(format string, args ...any) (int, error) {
	return c.WriteBody([]byte(fmt.Sprintf(format, args...)))
}

// HeaderAdd appends one formatted response header line.
func (c *Client) HeaderAdd(name, format string, args ...any) error {
	line := fmt.Sprintf("%s: %s\r\n", name, fmt.Sprintf(format, args...))
	if !c.txn.respHeaders.append([]byte(line)) {
		return ErrResponseHeadersFull
	}
	return nil
}

// HeaderAddContentType adds a literal Content-Type header.
func (c *Client) HeaderAddContentType(mime string) error {
	return c.HeaderAdd("Content-Type", "%s", mime)
}

// HeaderAddContentTypeGuess adds a Content-Type header guessed from path's
// extension, via mime.go's table.
func (c *Client) HeaderAddContentTypeGuess(path string) error {
	return c.HeaderAddContentType(guessMimeType(path))
}

// HeaderAddLastModified adds a Last-Modified header in the same RFC1123-ish
// format used throughout (see static.go's rfc1123Format).
func (c *Client) HeaderAddLastModified(t time.Time) error {
	return c.HeaderAdd("Last-Modified", "%s", t.UTC().Format(rfc1123Format))
}

// ResetHeaders discards any response headers accumulated so far.
func (c *Client) ResetHeaders() { c.txn.respHeaders.reset() }

// ResetBody discards any buffered response body and any registered file
// send, reverting to an empty sendBody response.
func (c *Client) ResetBody() {
	t := &c.txn
	if t.respFile != nil {
		_ = t.respFile.Close()
		t.respFile = nil
	}
	c.body.Reset(bodyBufInitialCap)
	t.bodySentOff = 0
	t.sendKind = sendBody
	t.respBodyPos = 0
	t.respBodyEnd = -1
}

// SendFile registers f as the response body, to be sent zero-copy via
// sendfile. size is the file's content length.
func (c *Client) SendFile(f *os.File, size int64) error {
	if size < 0 {
		return ErrBadRange
	}
	t := &c.txn
	if t.respFile != nil && t.respFile != f {
		_ = t.respFile.Close()
	}
	t.respFile = f
	t.sendKind = sendFile
	t.respBodyPos = 0
	t.respBodyEnd = size - 1
	return nil
}

// SendFileHeadSize reports size as the Content-Length without sending any
// body: the explicit sendHeadOnly kind.
func (c *Client) SendFileHeadSize(size int64) error {
	if size < 0 {
		return ErrBadRange
	}
	t := &c.txn
	if t.respFile != nil {
		_ = t.respFile.Close()
		t.respFile = nil
	}
	t.sendKind = sendHeadOnly
	t.respBodyPos = 0
	t.respBodyEnd = size - 1
	return nil
}

// DisableSendFile cancels any registered file send, reverting to the body
// buffer.
func (c *Client) DisableSendFile() {
	t := &c.txn
	if t.respFile != nil {
		_ = t.respFile.Close()
		t.respFile = nil
	}
	t.sendKind = sendBody
}

// SetSendRange overrides the (pos, end) window sent for the current
// sendFile/sendHeadOnly response.
func (c *Client) SetSendRange(from, to int64) error {
	if from < 0 || to < from {
		return ErrBadRange
	}
	t := &c.txn
	t.respBodyPos = from
	t.respBodyEnd = to
	t.rangeRequested = true
	return nil
}

// SetPreserveHeadersOnError controls whether PREPARE_RESPONSE's error path
// wipes the response headers.
func (c *Client) SetPreserveHeadersOnError(v bool) { c.txn.preserveHeadersOnError = v }

// SetPreserveBodyOnError controls whether PREPARE_RESPONSE's error path
// wipes the response body/file.
func (c *Client) SetPreserveBodyOnError(v bool) { c.txn.preserveBodyOnError = v }

// SetStatus completes the handler's turn: SERVE re-invokes a handler on
// every readiness event until it calls SetStatus.
func (c *Client) SetStatus(s Status) { c.txn.status = s }

// SaveState stashes v to be handed back as the state parameter on the next
// invocation of a suspended handler.
func (c *Client) SaveState(v any) { c.txn.handlerState = v }
