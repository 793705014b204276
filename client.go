package kitserv

import (
	"fmt"
	"os"

	"github.com/jmcgee01125/kitserv/internal/buffer"
)

// Fixed buffer sizes.
const (
	headerBufCap      = 4096
	respStartBufCap   = 256
	respHeadersBufCap = 4096
	bodyBufInitialCap = 4096
	maxCookies        = 50
)

// fixedBuf is a non-growing append-only byte region: request headers,
// response-start, and response-headers are all fixed-size,
// unlike the body buffer which grows (internal/buffer.Buffer).
type fixedBuf struct {
	buf []byte
	n   int
}

func newFixedBuf(capacity int) fixedBuf {
	return fixedBuf{buf: make([]byte, capacity)}
}

// append copies p onto the tail, returning false (and leaving the buffer
// unchanged) if it would overflow the fixed capacity.
func (f *fixedBuf) append(p []byte) bool {
	if f.n+len(p) > len(f.buf) {
		return false
	}
	copy(f.buf[f.n:], p)
	f.n += len(p)
	return true
}

func (f *fixedBuf) appendf(format string, args ...any) bool {
	return f.append([]byte(fmt.Sprintf(format, args...)))
}

func (f *fixedBuf) bytes() []byte { return f.buf[:f.n] }
func (f *fixedBuf) len() int      { return f.n }
func (f *fixedBuf) reset()        { f.n = 0 }

// cookieKV is one parsed Cookie: header entry.
type cookieKV struct {
	key, value string
}

// sendKind selects how the response body is sourced, the Go equivalent of
// original_source's resp_fd sign convention:
// resp_fd == 0 -> sendBody, resp_fd > 0 -> sendFile, resp_fd < 0 -> sendHeadOnly.
type sendKind int

const (
	sendBody sendKind = iota
	sendFile
	sendHeadOnly
)

// parseSubstate is the resumable parser's saved sub-state.
type parseSubstate int

const (
	psNew parseSubstate = iota
	psMethod
	psPath
	psVersion
	psVersionLF
	psHead
	psHeadLF
)

// txnState is the transaction's high-level state.
type txnState int

const (
	stateRead txnState = iota
	stateServe
	statePrepareResponse
	stateSend
	stateDone
)

// transaction holds everything reset between keep-alive iterations on one
// slot.
type transaction struct {
	state txnState

	// parser cursors/substate
	parseState parseSubstate
	p, r       int

	// parsed request fields
	method             Method
	versionMajor       int
	versionMinor       int
	path               string
	query              string
	rawCookieHeader    string
	cookiesParsed      bool
	cookies            []cookieKV
	contentType        string
	contentLength      int64
	hasContentLength   bool
	rangeRaw           string
	contentDisposition string
	ifModifiedSinceRaw string

	payloadPos int
	payloadLen int
	payloadOff int // bytes of the payload already consumed via ReadPayload

	// response fields
	status Status

	respStart   fixedBuf
	respHeaders fixedBuf

	sendKind       sendKind
	respFile       *os.File
	respBodyPos    int64
	respBodyEnd    int64
	rangeRequested bool

	preserveHeadersOnError bool
	preserveBodyOnError    bool

	// SEND cursors
	headerSentOff int   // bytes of respStart+respHeaders already written
	bodySentOff   int64 // bytes of c.body already written, for sendBody

	// API continuation
	endpoint     *APIEntry
	handlerState any
	allowFlags   Method

	alreadyErrored bool
}

func (t *transaction) reset() {
	*t = transaction{
		respStart:   newFixedBuf(respStartBufCap),
		respHeaders: newFixedBuf(respHeadersBufCap),
	}
}

// Client is one preallocated connection slot, rented from a worker's
// freelist for the lifetime of one TCP connection.
type Client struct {
	fd         int
	remoteAddr string

	headerBuf     fixedBuf
	reqHeadersLen int // bytes carried across transactions

	body *buffer.Buffer

	ctx *RequestContext
	api *APITree

	txn transaction

	// worker bookkeeping, set by server.go
	workerIdx int
	slotIdx   int
}

func newClient(ctx *RequestContext, api *APITree) *Client {
	c := &Client{
		headerBuf: newFixedBuf(headerBufCap),
		body:      buffer.New(bodyBufInitialCap),
		ctx:       ctx,
		api:       api,
	}
	c.txn.reset()
	return c
}

// bind associates a freshly-accepted connection fd with this slot, matching
// original_source/src/kitserv.c: connection_accept's fresh-state assertions.
func (c *Client) bind(fd int, remoteAddr string) {
	c.fd = fd
	c.remoteAddr = remoteAddr
	c.reqHeadersLen = 0
	c.headerBuf.reset()
	c.body.Reset(bodyBufInitialCap)
	c.txn.reset()
}

// release closes the connection fd (setting it to -1) and any open response
// file; buffers and the transaction are reset by the next bind. Grounded on kitserv.c: connection_close / http.c's close_fd_to_zero
// idempotence guarantee.
func (c *Client) release(closeFD func(int) error) error {
	var err error
	if c.fd > 0 {
		err = closeFD(c.fd)
		c.fd = -1
	}
	if c.txn.respFile != nil {
		_ = c.txn.respFile.Close()
		c.txn.respFile = nil
	}
	return err
}

// finalizeTransaction shifts any bytes read past the end of the just-served
// request to offset 0 of the header buffer, so they become the start of the
// next transaction's headers.
func (c *Client) finalizeTransaction() {
	tail := c.headerBuf.bytes()[c.txn.payloadPos+c.txn.payloadOff:]
	n := copy(c.headerBuf.buf, tail)
	c.headerBuf.n = n
	c.reqHeadersLen = n
	c.txn.reset()
}
