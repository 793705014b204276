package sockopt

import "errors"

// ErrWouldBlock signals that a read/write/sendfile call did not complete
// because the underlying fd would block; the caller should suspend and
// retry on the next readiness event.
var ErrWouldBlock = errors.New("sockopt: operation would block")
