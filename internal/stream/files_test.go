package stream

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestWriteFile(t *testing.T) {
	t.Run("serves content with guessed type", func(t *testing.T) {
		path := writeTempFile(t, "logo.svg", "<svg/>")
		w := httptest.NewRecorder()

		done, err := WriteFile(context.Background(), w, "logo.svg", path)
		require.NoError(t, err)
		waitDone(t, done)

		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Equal(t, "<svg/>", w.Body.String())
	})

	t.Run("gz suffix sets encoding and is trimmed before type lookup", func(t *testing.T) {
		path := writeTempFile(t, "app.js.gz", "compressed")
		w := httptest.NewRecorder()

		done, err := WriteFile(context.Background(), w, "app.js.gz", path)
		require.NoError(t, err)
		waitDone(t, done)

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, err := WriteFile(context.Background(), w, "x.txt", filepath.Join(t.TempDir(), "absent"))
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})

	t.Run("directory is not a file", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, err := WriteFile(context.Background(), w, "dir", t.TempDir())
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})
}

func TestForceFileDownload(t *testing.T) {
	path := writeTempFile(t, "export.zip", "zipdata")
	w := httptest.NewRecorder()

	done, err := ForceFileDownload(context.Background(), w, "export.zip", path)
	require.NoError(t, err)
	waitDone(t, done)

	assert.Equal(t, "noopen", w.Header().Get("X-Download-Options"))
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="export.zip"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "zipdata", w.Body.String())
}

func TestRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	Redirect(w, "https://example.org/new")

	assert.Equal(t, 301, w.Code)
	assert.Equal(t, "https://example.org/new", w.Header().Get("Location"))
}
