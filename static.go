package kitserv

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// staticPathMax mirrors the original C's PATH_MAX check.
const staticPathMax = 4096

// rfc1123Format is the wire date format ("%a, %d %b %Y %T GMT" in strftime
// terms), expressed as a Go reference layout.
const rfc1123Format = "Mon, 02 Jan 2006 15:04:05 GMT"

// resolveStaticPath walks the root/direct, html-append, and generic-fallback
// candidate chain in order and returns the first candidate that stats as a
// regular file.
func resolveStaticPath(ctx *RequestContext, reqPath string) (string, os.FileInfo, error) {
	var candidates []string
	if reqPath == "/" && ctx.RootFallback != "" {
		candidates = append(candidates, filepath.Join(ctx.Root, ctx.RootFallback))
	} else {
		candidates = append(candidates, filepath.Join(ctx.Root, reqPath))
	}
	if ctx.UseHTMLAppendFallback {
		candidates = append(candidates, filepath.Join(ctx.Root, reqPath+".html"))
	}
	if ctx.Fallback != "" {
		candidates = append(candidates, filepath.Join(ctx.Root, ctx.Fallback))
	}

	for _, candidate := range candidates {
		if len(candidate) >= staticPathMax {
			return "", nil, ErrPathTooLong
		}
		info, err := os.Stat(candidate)
		if err != nil {
			if os.IsPermission(err) {
				return "", nil, ErrForbidden
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		return candidate, info, nil
	}
	return "", nil, ErrNotFound
}

// serveStatic implements the static-file responder.
func (c *Client) serveStatic() error {
	t := &c.txn

	if t.method&MethodGET == 0 {
		return ErrMethodNotAllowed
	}

	path, info, err := resolveStaticPath(c.ctx, t.path)
	if err != nil {
		return err
	}

	if t.rangeRequested {
		start, end, rerr := parseRangeHeader(t.rangeRaw, info.Size())
		if rerr == ErrRangeUnsatisfiable {
			t.respHeaders.appendf("Content-Range: */%d\r\n", info.Size())
			t.preserveHeadersOnError = true
			return rerr
		}
		if rerr != nil {
			return rerr
		}
		t.respBodyPos = start
		t.respBodyEnd = end
	} else {
		t.respBodyPos = 0
		t.respBodyEnd = info.Size() - 1
	}

	t.respHeaders.appendf("Content-Type: %s\r\n", guessMimeType(path))
	t.respHeaders.append([]byte("Accept-Ranges: bytes\r\n"))
	t.respHeaders.appendf("Last-Modified: %s\r\n", info.ModTime().UTC().Format(rfc1123Format))

	if t.ifModifiedSinceRaw != "" {
		if ims, perr := time.Parse(rfc1123Format, t.ifModifiedSinceRaw); perr == nil {
			if !info.ModTime().UTC().After(ims) {
				t.status = StatusNotModified
				t.method = MethodHEAD
				t.sendKind = sendHeadOnly
				t.respBodyPos = 0
				t.respBodyEnd = -1
				return nil
			}
		}
	}

	f, operr := os.Open(path)
	if operr != nil {
		if os.IsPermission(operr) {
			return ErrForbidden
		}
		return ErrNotFound
	}

	if t.method&MethodHeadFlag != 0 {
		f.Close()
		t.sendKind = sendHeadOnly
	} else {
		t.respFile = f
		t.sendKind = sendFile
	}

	if t.rangeRequested {
		t.status = StatusPartialContent
		t.respHeaders.appendf("Content-Range: bytes %d-%d/%d\r\n", t.respBodyPos, t.respBodyEnd, info.Size())
	} else {
		t.status = StatusOK
	}
	return nil
}

// parseRangeHeader parses a single "bytes=A-B"/"bytes=A-"/"bytes=-N" range,
// clamping the end to the end of the resource and rejecting multi-range and
// malformed forms.
func parseRangeHeader(raw string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(raw, prefix) {
		return 0, 0, ErrBadRange
	}
	value := raw[len(prefix):]
	if strings.Contains(value, ",") {
		return 0, 0, ErrBadRange
	}
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, ErrBadRange
	}
	aStr, bStr := parts[0], parts[1]
	if aStr == "" && bStr == "" {
		return 0, 0, ErrBadRange
	}

	switch {
	case aStr == "":
		n, perr := strconv.ParseInt(bStr, 10, 64)
		if perr != nil || n < 0 {
			return 0, 0, ErrBadRange
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1
	case bStr == "":
		n, perr := strconv.ParseInt(aStr, 10, 64)
		if perr != nil || n < 0 {
			return 0, 0, ErrBadRange
		}
		start = n
		end = size - 1
	default:
		a, perr1 := strconv.ParseInt(aStr, 10, 64)
		b, perr2 := strconv.ParseInt(bStr, 10, 64)
		if perr1 != nil || perr2 != nil || a < 0 || b < 0 {
			return 0, 0, ErrBadRange
		}
		start, end = a, b
		if end > size-1 {
			end = size - 1
		}
	}

	if start > size-1 {
		return 0, 0, ErrRangeUnsatisfiable
	}
	if end < start {
		return 0, 0, ErrBadRange
	}
	return start, end, nil
}
