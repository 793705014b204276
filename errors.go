package kitserv

import "errors"

// Parser errors.
var (
	ErrHeaderBufferFull   = errors.New("kitserv: header buffer full before a complete request was parsed")
	ErrUnsupportedMethod  = errors.New("kitserv: unsupported or unrecognized HTTP method")
	ErrUnsupportedVersion = errors.New("kitserv: unsupported HTTP version")
	ErrMalformedRequest   = errors.New("kitserv: malformed request line or headers")
	ErrPathTraversal      = errors.New("kitserv: path traversal attempt")
	ErrHangup             = errors.New("kitserv: peer closed or errored before a complete request")
)

// Router errors.
var (
	ErrMethodNotAllowed = errors.New("kitserv: path matched but method did not")
)

// Static-file responder errors.
var (
	ErrForbidden          = errors.New("kitserv: forbidden path")
	ErrPathTooLong        = errors.New("kitserv: resolved path exceeds PATH_MAX")
	ErrNotFound           = errors.New("kitserv: no candidate path resolved to a regular file")
	ErrBadRange           = errors.New("kitserv: unparsable Range header")
	ErrRangeUnsatisfiable = errors.New("kitserv: range start past end of file")
)

// Public API / handler-facing errors.
var (
	// ErrWouldBlock is returned by ReadPayload when no more bytes are
	// currently available without blocking.
	ErrWouldBlock          = errors.New("kitserv: operation would block")
	ErrClosed              = errors.New("kitserv: connection closed")
	ErrResponseHeadersFull = errors.New("kitserv: response header buffer full")
)

// Server / config errors.
var (
	ErrNoRoot         = errors.New("kitserv: RequestContext.Root is required")
	ErrNoSlots        = errors.New("kitserv: NumSlots must be >= NumWorkers")
	ErrNoWorkers      = errors.New("kitserv: NumWorkers must be >= 1")
	ErrNoBindFamily   = errors.New("kitserv: at least one of BindIPv4/BindIPv6 must be set")
	ErrAlreadyErrored = errors.New("kitserv: a second error occurred while preparing an error response")
)
