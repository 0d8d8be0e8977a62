package upload

import (
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
)

var (
	// ErrFileSealed is returned when a write is attempted after the
	// file has been finalized.
	ErrFileSealed = errors.New("upload: temporary file is sealed")
)

// SecureTemporaryFile is a temporary file whose on-disk content is
// encrypted with a per-file ephemeral key. The key lives only in
// process memory, so the file is unreadable once the process exits.
//
// Writes are sequential appends. Reads decrypt from the beginning and
// may happen while the file is still open for writing, as long as the
// caller serializes them against concurrent writes.
type SecureTemporaryFile struct {
	mu sync.Mutex

	path   string
	key    []byte
	nonce  []byte
	stream *chacha20.Cipher

	file   *os.File
	size   int64
	sealed bool
}

// NewSecureTemporaryFile creates an encrypted temporary file under dir
// with a random basename and a fresh key.
func NewSecureTemporaryFile(dir string) (*SecureTemporaryFile, error) {
	key := make([]byte, chacha20.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, uuid.NewString())

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	return &SecureTemporaryFile{
		path:   path,
		key:    key,
		nonce:  nonce,
		stream: stream,
		file:   file,
	}, nil
}

// Path returns the on-disk location of the encrypted file.
func (f *SecureTemporaryFile) Path() string {
	return f.path
}

// Size returns the number of plaintext bytes written so far.
func (f *SecureTemporaryFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Sealed reports whether the file has been finalized.
func (f *SecureTemporaryFile) Sealed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sealed
}

// WriteChunk appends the reader's bytes to the file. The write lock is
// held for the whole chunk, so interleaved chunks of different requests
// never corrupt the keystream position. When seal is set the file is
// finalized after the chunk and rejects all further writes.
func (f *SecureTemporaryFile) WriteChunk(r io.Reader, seal bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sealed {
		return 0, ErrFileSealed
	}

	var written int64
	buf := make([]byte, 32*1024)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			f.stream.XORKeyStream(buf[:n], buf[:n])
			if _, werr := f.file.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			f.size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	if seal {
		f.sealed = true
		if err := f.file.Close(); err != nil {
			return written, err
		}
		f.file = nil
	}

	return written, nil
}

// Open returns a reader over the decrypted content written so far. Each
// call gets an independent keystream starting at offset zero.
func (f *SecureTemporaryFile) Open() (io.ReadCloser, error) {
	f.mu.Lock()
	key := append([]byte(nil), f.key...)
	nonce := append([]byte(nil), f.nonce...)
	f.mu.Unlock()

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}

	return &decryptReader{file: file, stream: stream}, nil
}

// Close releases the write handle and removes the file from disk.
func (f *SecureTemporaryFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.sealed = true

	return os.Remove(f.path)
}

type decryptReader struct {
	file   *os.File
	stream *chacha20.Cipher
}

func (r *decryptReader) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	if n > 0 {
		r.stream.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

func (r *decryptReader) Close() error {
	return r.file.Close()
}
