// Package mimeutil extends the process-wide MIME registry with types
// the standard table misses and provides filename-based type guessing.
package mimeutil

import (
	"mime"
	"path/filepath"
	"strings"
)

// OctetStream is the fallback type for files whose extension is unknown.
const OctetStream = "application/octet-stream"

func init() {
	_ = mime.AddExtensionType(".svg", "image/svg+xml")
	_ = mime.AddExtensionType(".eot", "application/vnd.ms-fontobject")
	_ = mime.AddExtensionType(".ttf", "application/x-font-ttf")
	_ = mime.AddExtensionType(".woff", "application/woff")
	_ = mime.AddExtensionType(".woff2", "application/woff2")
}

// Guess returns the MIME type for a filename, falling back to
// OctetStream when the extension is not registered.
func Guess(filename string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if mimeType == "" {
		return OctetStream
	}
	return mimeType
}

// Lookup returns the MIME type for a filename and whether the extension
// was registered.
func Lookup(filename string) (string, bool) {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	return mimeType, mimeType != ""
}
