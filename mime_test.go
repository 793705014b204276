package kitserv

import "testing"

func TestGuessMimeType(t *testing.T) {
	cases := []struct{ path, want string }{
		{"/a/b/index.html", "text/html"},
		{"/a/b/style.CSS", "text/css"},
		{"/img.PNG", "image/png"},
		{"/archive.zip", "application/zip"},
		{"/no/extension/here", mimeOctetStream},
		{"/a.b.c/no.dot.dir", mimeOctetStream},
		{"/readme.md", "text/plain"},
	}
	for _, c := range cases {
		if got := guessMimeType(c.path); got != c.want {
			t.Errorf("guessMimeType(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestExtOfIgnoresDotInDirectoryComponent(t *testing.T) {
	if got := extOf("/a.b/file"); got != "" {
		t.Errorf("extOf(%q) = %q, want empty", "/a.b/file", got)
	}
	if got := extOf("/a.b/file.txt"); got != ".txt" {
		t.Errorf("extOf(%q) = %q, want .txt", "/a.b/file.txt", got)
	}
}
