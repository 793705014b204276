package kitserv

import "strings"

// mimeTable is the recognized extension set. Unlike
// original_source/src/http.c's guess_mime_type (which has a stray
// "applicaton/zip" typo), this table uses the correct
// "application/zip" spelling.
var mimeTable = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".txt":  "text/plain",
	".md":   "text/plain",
	".zip":  "application/zip",
}

const mimeOctetStream = "application/octet-stream"

// guessMimeType maps a file path's extension to a mime type, falling back
// to application/octet-stream for anything unrecognized.
func guessMimeType(path string) string {
	ext := extOf(path)
	if mt, ok := mimeTable[ext]; ok {
		return mt
	}
	return mimeOctetStream
}

// extOf returns the lowercased extension (including the leading dot) of
// path, or "" if there is none.
func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	if strings.LastIndexByte(path, '/') > i {
		return ""
	}
	return strings.ToLower(path[i:])
}
