package kitserv

import "strings"

// route walks the API tree. It returns the matched entry,
// or nil if nothing in the tree matches (the caller falls back to the
// static responder). If a path prefix matched but no entry's method mask
// accepted the request method, it returns ErrMethodNotAllowed together with
// the accumulated allow flags as its second result.
func route(tree *APITree, path string, method Method) (*APIEntry, Method, error) {
	if tree == nil {
		return nil, 0, nil
	}
	return walk(tree, strings.TrimLeft(path, "/"), method)
}

func walk(node *APITree, remainder string, method Method) (*APIEntry, Method, error) {
	segment, rest := splitSegment(remainder)

	var allow Method
	for i := range node.Entries {
		e := &node.Entries[i]
		if e.Prefix != segment {
			continue
		}
		if e.FinishesPath && strings.Trim(rest, "/") != "" {
			continue
		}
		allow |= e.Methods
		if e.Methods&method != 0 {
			return e, allow, nil
		}
	}
	if allow != 0 {
		return nil, allow, ErrMethodNotAllowed
	}

	for _, child := range node.Children {
		if child.Prefix == segment {
			entry, childAllow, err := walk(child, rest, method)
			if entry != nil || err != nil {
				return entry, childAllow, err
			}
			// no match in subtree: fall through to caller's static fallback
			return nil, childAllow, nil
		}
	}

	return nil, 0, nil
}

// splitSegment returns the next '/'-delimited segment and the remainder
// after it (without the separator).
func splitSegment(path string) (segment, rest string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
