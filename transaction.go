package kitserv

import "strings"

// Process drives the transaction state machine, from
// whatever state it was left in (fresh after bind, or mid-flight after a
// prior suspension) until it either needs another readiness event
// (blocked, closeConn=false) or the connection must close (closeConn=true).
// err is non-nil only for the unrecoverable double-error case or a send
// failure; ordinary HTTP error statuses are not reported as err, they are
// turned into a response.
func (c *Client) Process() (closeConn bool, err error) {
	t := &c.txn
	for {
		switch t.state {
		case stateRead:
			blocked, rerr := c.parseRequest()
			if blocked {
				return false, nil
			}
			if rerr != nil {
				if rerr == ErrHangup {
					return true, nil
				}
				t.status = statusForError(rerr)
				t.state = statePrepareResponse
				continue
			}
			// parseRequest already advanced t.state to stateServe.

		case stateServe:
			suspended, serr := c.serve()
			if suspended {
				return false, nil
			}
			if serr != nil {
				t.status = statusForError(serr)
			}
			t.state = statePrepareResponse

		case statePrepareResponse:
			if perr := c.prepareResponse(); perr != nil {
				return true, perr
			}
			t.state = stateSend

		case stateSend:
			blocked, serr := c.sendResponse()
			if blocked {
				return false, nil
			}
			if serr != nil {
				return true, serr
			}
			t.state = stateDone

		case stateDone:
			if t.status.IsError() || (t.versionMajor == 1 && t.versionMinor == 0) {
				return true, nil
			}
			c.finalizeTransaction()
			t.state = stateRead
		}
	}
}

// serve implements the SERVE state: walk the API tree once,
// latch the matched endpoint, and keep re-invoking its handler across
// suspensions until it sets a status; fall back to the static responder if
// nothing in the tree matched.
func (c *Client) serve() (suspended bool, err error) {
	t := &c.txn

	if t.endpoint == nil && c.api != nil {
		entry, allow, rerr := route(c.api, t.path, t.method)
		t.allowFlags = allow
		if rerr != nil {
			return false, rerr
		}
		if entry != nil {
			t.endpoint = entry
		}
	}

	if t.endpoint != nil {
		t.endpoint.Handler(c, t.handlerState)
		if t.status == StatusUnset {
			return true, nil
		}
		return false, nil
	}

	return false, c.serveStatic()
}

// statusForError maps an internal sentinel error to the response status it
// synthesizes.
func statusForError(err error) Status {
	switch err {
	case ErrUnsupportedMethod:
		return StatusNotImplemented
	case ErrUnsupportedVersion:
		return StatusVersionNotSupported
	case ErrMalformedRequest, ErrBadRange:
		return StatusBadRequest
	case ErrPathTraversal:
		return StatusBadRequest
	case ErrHeaderBufferFull:
		return StatusHeaderFieldsTooLarge
	case ErrMethodNotAllowed:
		return StatusMethodNotAllowed
	case ErrForbidden:
		return StatusForbidden
	case ErrPathTooLong:
		return StatusURITooLong
	case ErrNotFound:
		return StatusNotFound
	case ErrRangeUnsatisfiable:
		return StatusRangeNotSatisfiable
	default:
		return StatusInternalError
	}
}

// prepareResponse implements PREPARE_RESPONSE: synthesize the
// error response if the status is an error, then assemble the status line
// plus Content-Length/Server/terminating blank line. A fixed-buffer
// overflow re-enters the error path exactly once as a 507; a second
// overflow is unrecoverable.
func (c *Client) prepareResponse() error {
	t := &c.txn

	if t.status.IsError() {
		c.prepareErrorResponse()
	}

	length := c.responseLength()

	t.respStart.reset()
	ok := t.respStart.append([]byte(statusLine(t.versionMajor, t.versionMinor, t.status)))
	ok = t.respHeaders.appendf("Content-Length: %d\r\n", length) && ok
	ok = t.respHeaders.appendf("Server: %s\r\n", serverName) && ok
	ok = t.respHeaders.append([]byte("\r\n")) && ok

	if ok {
		return nil
	}
	if t.alreadyErrored {
		return ErrAlreadyErrored
	}
	t.alreadyErrored = true
	t.status = StatusInsufficientStorage
	return c.prepareResponse()
}

// prepareErrorResponse implements the error-path header/body synthesis.
// Preserving headers skips the reset; a 405 gets its Allow header either
// way. Preserving the body skips writing the canonical sentence. When
// neither is preserved the usual Content-Type: text/plain is added alongside
// the canonical body.
func (c *Client) prepareErrorResponse() {
	t := &c.txn

	if !t.preserveHeadersOnError {
		t.respHeaders.reset()
	}
	if t.status == StatusMethodNotAllowed {
		t.respHeaders.appendf("Allow: %s\r\n", allowHeaderValue(t.allowFlags))
	}
	if !t.preserveHeadersOnError && !t.preserveBodyOnError {
		t.respHeaders.append([]byte("Content-Type: text/plain\r\n"))
	}

	if !t.preserveBodyOnError {
		if t.respFile != nil {
			_ = t.respFile.Close()
			t.respFile = nil
		}
		t.sendKind = sendBody
		body := canonicalErrorBody(t.status, t.path)
		c.body.Reset(bodyBufInitialCap)
		_ = c.body.Append([]byte(body))
	}
}

// allowHeaderValue renders the Allow header value in the canonical order
// names, defaulting to "GET, HEAD" when nothing in the API
// tree matched the path at all.
func allowHeaderValue(m Method) string {
	if m == 0 {
		return "GET, HEAD"
	}
	var parts []string
	if m&MethodGET != 0 {
		parts = append(parts, "GET", "HEAD")
	}
	if m&MethodPUT != 0 {
		parts = append(parts, "PUT")
	}
	if m&MethodPOST != 0 {
		parts = append(parts, "POST")
	}
	if m&MethodDELETE != 0 {
		parts = append(parts, "DELETE")
	}
	return strings.Join(parts, ", ")
}

// responseLength computes the Content-Length value: the body buffer's
// length for sendBody, or the inclusive (pos, end) span for a file range or
// a HEAD sizing-only response.
func (c *Client) responseLength() int64 {
	t := &c.txn
	switch t.sendKind {
	case sendFile, sendHeadOnly:
		if t.respBodyEnd < t.respBodyPos {
			return 0
		}
		return t.respBodyEnd - t.respBodyPos + 1
	default:
		return int64(c.body.Len())
	}
}
