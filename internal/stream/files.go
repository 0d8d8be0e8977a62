package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/vyrodovalexey/tenantgate/internal/mimeutil"
)

// ErrResourceNotFound is returned when the requested file path does
// not exist or is not a regular file.
var ErrResourceNotFound = errors.New("stream: resource not found")

// WriteFile streams the file at path to the response. The filename
// decides the Content-Type; a trailing .gz means the file is stored
// pre-compressed, so Content-Encoding is set and the suffix stripped
// before the type lookup. The returned channel closes when streaming
// ends.
func WriteFile(ctx context.Context, w http.ResponseWriter, filename, path string, opts ...ProducerOption) (<-chan struct{}, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}

	if strings.HasSuffix(filename, ".gz") {
		w.Header().Set("Content-Encoding", "gzip")
		filename = strings.TrimSuffix(filename, ".gz")
	}

	if mimeType, ok := mimeutil.Lookup(filename); ok {
		w.Header().Set("Content-Type", mimeType)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return NewFileProducer(w, file, opts...).Start(ctx), nil
}

// ForceFileDownload streams the file at path as an attachment the
// browser must save rather than render.
func ForceFileDownload(ctx context.Context, w http.ResponseWriter, filename, path string, opts ...ProducerOption) (<-chan struct{}, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}

	w.Header().Set("X-Download-Options", "noopen")
	w.Header().Set("Content-Type", mimeutil.OctetStream)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return NewFileProducer(w, file, opts...).Start(ctx), nil
}

// Redirect answers with a permanent redirect to url.
func Redirect(w http.ResponseWriter, url string) {
	w.Header().Set("Location", url)
	w.WriteHeader(http.StatusMovedPermanently)
}

func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ErrResourceNotFound
	}
	return nil
}
