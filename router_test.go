package kitserv

import "testing"

func noopHandler(c *Client, state any) { c.SetStatus(StatusOK) }

func buildTestTree() *APITree {
	return &APITree{
		Entries: []APIEntry{
			{Prefix: "health", Methods: MethodGET, Handler: noopHandler, FinishesPath: true},
		},
		Children: []*APITree{
			{
				Prefix: "items",
				Entries: []APIEntry{
					{Prefix: "", Methods: MethodGET | MethodPOST, Handler: noopHandler, FinishesPath: true},
				},
				Children: []*APITree{
					{
						Prefix: "detail",
						Entries: []APIEntry{
							{Prefix: "", Methods: MethodPUT | MethodDELETE, Handler: noopHandler, FinishesPath: true},
						},
					},
				},
			},
		},
	}
}

func TestRouteMatchesLeafEntry(t *testing.T) {
	tree := buildTestTree()
	entry, allow, err := route(tree, "/health", MethodGET)
	if err != nil || entry == nil {
		t.Fatalf("route(/health, GET) = %v, %v, %v", entry, allow, err)
	}
}

func TestRouteHeadMatchesGetOnlyEntry(t *testing.T) {
	tree := buildTestTree()
	entry, _, err := route(tree, "/health", MethodHEAD)
	if err != nil || entry == nil {
		t.Fatalf("route(/health, HEAD) should match the GET entry: %v, %v", entry, err)
	}
}

func TestRouteMethodNotAllowed(t *testing.T) {
	tree := buildTestTree()
	entry, allow, err := route(tree, "/health", MethodPOST)
	if err != ErrMethodNotAllowed {
		t.Fatalf("expected ErrMethodNotAllowed, got %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %v", entry)
	}
	if allow != MethodGET {
		t.Fatalf("expected allow=MethodGET, got %v", allow)
	}
}

func TestRouteNoMatchFallsThroughToStatic(t *testing.T) {
	tree := buildTestTree()
	entry, allow, err := route(tree, "/nonexistent", MethodGET)
	if entry != nil || err != nil || allow != 0 {
		t.Fatalf("expected a clean no-match, got %v, %v, %v", entry, allow, err)
	}
}

func TestRouteChildSegment(t *testing.T) {
	tree := buildTestTree()
	entry, _, err := route(tree, "/items", MethodGET)
	if err != nil || entry == nil {
		t.Fatalf("route(/items, GET) = %v, %v", entry, err)
	}
}

func TestRouteNestedChildSegment(t *testing.T) {
	tree := buildTestTree()
	entry, _, err := route(tree, "/items/detail", MethodPUT)
	if err != nil || entry == nil {
		t.Fatalf("route(/items/detail, PUT) = %v, %v", entry, err)
	}
}

func TestRouteFinishesPathRejectsExtraSegments(t *testing.T) {
	tree := buildTestTree()
	entry, _, err := route(tree, "/health/extra", MethodGET)
	if entry != nil || err != nil {
		t.Fatalf("a FinishesPath entry must not match with a nonempty remainder, got %v, %v", entry, err)
	}
}

func TestRouteNilTree(t *testing.T) {
	entry, allow, err := route(nil, "/anything", MethodGET)
	if entry != nil || allow != 0 || err != nil {
		t.Fatalf("route(nil, ...) should be a clean no-match, got %v, %v, %v", entry, allow, err)
	}
}

func TestSplitSegment(t *testing.T) {
	cases := []struct{ path, segment, rest string }{
		{"a/b/c", "a", "b/c"},
		{"a", "a", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		seg, rest := splitSegment(c.path)
		if seg != c.segment || rest != c.rest {
			t.Errorf("splitSegment(%q) = (%q, %q), want (%q, %q)", c.path, seg, rest, c.segment, c.rest)
		}
	}
}
