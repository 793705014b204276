package kitserv

import "github.com/jmcgee01125/kitserv/internal/sockopt"

// sendResponse implements SEND: write the response-start
// and response-headers buffers first, then the body by whatever sendKind
// the transaction settled on. Each phase resumes from where a prior
// WOULDBLOCK left off via the transaction's SEND cursors.
func (c *Client) sendResponse() (blocked bool, err error) {
	if blocked, err := c.sendHeaders(); blocked || err != nil {
		return blocked, err
	}

	switch c.txn.sendKind {
	case sendHeadOnly:
		return false, nil
	case sendFile:
		return c.sendFileBody()
	default:
		return c.sendBufferedBody()
	}
}

// sendHeaders writes the response-start and response-headers buffers as a
// single scatter-gather write of the two fixed-size segments.
func (c *Client) sendHeaders() (blocked bool, err error) {
	t := &c.txn
	total := t.respStart.len() + t.respHeaders.len()
	for t.headerSentOff < total {
		n, werr := sockopt.Writev(c.fd, headerSegments(t))
		if werr != nil {
			return false, werr
		}
		t.headerSentOff += int(n)
		if n == 0 {
			return true, nil
		}
	}
	return false, nil
}

// headerSegments returns the unsent suffix of respStart followed by the
// whole of respHeaders, or just the unsent suffix of respHeaders once
// respStart has been fully written.
func headerSegments(t *transaction) [][]byte {
	startLen := t.respStart.len()
	off := t.headerSentOff
	if off < startLen {
		return [][]byte{t.respStart.bytes()[off:], t.respHeaders.bytes()}
	}
	return [][]byte{t.respHeaders.bytes()[off-startLen:]}
}

// sendBufferedBody writes the owned body buffer for the sendBody kind
// (handler-written bodies and synthesized error bodies).
func (c *Client) sendBufferedBody() (blocked bool, err error) {
	t := &c.txn
	body := c.body.Bytes()[:c.body.Len()]
	for int(t.bodySentOff) < len(body) {
		n, werr := sockopt.Write(c.fd, body[t.bodySentOff:])
		if werr != nil {
			if werr == sockopt.ErrWouldBlock {
				return true, nil
			}
			return false, werr
		}
		t.bodySentOff += int64(n)
		if n == 0 {
			return true, nil
		}
	}
	return false, nil
}

// sendFileBody implements the zero-copy sendfile loop for the sendFile
// kind. respBodyPos is both the current file cursor and the SEND-phase
// resume point; sockopt.SendFile advances it in place.
func (c *Client) sendFileBody() (blocked bool, err error) {
	t := &c.txn
	for t.respBodyPos <= t.respBodyEnd {
		remaining := t.respBodyEnd - t.respBodyPos + 1
		n, serr := sockopt.SendFile(c.fd, int(t.respFile.Fd()), &t.respBodyPos, remaining)
		if serr != nil {
			if serr == sockopt.ErrWouldBlock {
				return true, nil
			}
			return false, serr
		}
		if n == 0 {
			continue // EINTR: the kernel made no progress, retry immediately
		}
	}
	_ = t.respFile.Close()
	t.respFile = nil
	return false, nil
}
