package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/mimeutil"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// Multipart form fields of the resumable upload protocol.
const (
	FieldFilename    = "flowFilename"
	FieldTotalSize   = "flowTotalSize"
	FieldIdentifier  = "flowIdentifier"
	FieldChunkNumber = "flowChunkNumber"
	FieldTotalChunks = "flowTotalChunks"
	FieldFile        = "file"
	FieldDescription = "description"
)

// maxFormMemory bounds how much of a multipart body is buffered in
// memory before spilling to disk during parsing.
const maxFormMemory = 10 << 20

const bytesPerMB = 1024 * 1024

// copyBlockSize is the block size used when copying the decrypted
// payload out to permanent storage.
const copyBlockSize = 4096

// ErrMalformedUpload is returned when a chunk request is missing or
// carries unparsable resumable-upload fields.
var ErrMalformedUpload = errors.New("upload: malformed upload request")

// FileTooBigError is returned when a chunk or the declared total
// exceeds the tenant's upload ceiling. It carries the limit so the
// client can be told what to shrink to.
type FileTooBigError struct {
	LimitMB int64
}

func (e *FileTooBigError) Error() string {
	return fmt.Sprintf("upload: file too big, limit is %d MB", e.LimitMB)
}

// UploadedFile describes one fully received chunk's view of an upload
// in progress. Body stays encrypted at rest until the handler copies
// it out with WritePlaintextToDisk.
type UploadedFile struct {
	Date        time.Time
	FlowID      string
	Name        string
	Type        string
	Size        int64
	Filename    string
	Body        *SecureTemporaryFile
	Description string
	Path        string
}

// Assembler accumulates chunked multipart uploads into encrypted
// temporary files, enforcing the per-tenant size ceiling.
type Assembler struct {
	registry *FlowRegistry
	logger   observability.Logger
	metrics  *Metrics
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the logger for the assembler.
func WithAssemblerLogger(logger observability.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAssemblerMetrics sets the metrics collector for the assembler.
func WithAssemblerMetrics(metrics *Metrics) AssemblerOption {
	return func(a *Assembler) {
		a.metrics = metrics
	}
}

// NewAssembler creates an Assembler backed by the given flow registry.
func NewAssembler(registry *FlowRegistry, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		registry: registry,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ProcessFileUpload handles one chunk of a resumable upload. Requests
// without an upload field return (nil, nil). Size ceilings are checked
// against both the chunk and the declared total before any byte is
// committed to the flow's temp file.
func (a *Assembler) ProcessFileUpload(r *http.Request, tc *config.TenantConfig) (*UploadedFile, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, nil
		}
	}

	filename := r.FormValue(FieldFilename)
	if filename == "" {
		return nil, nil
	}

	totalSize, err := strconv.ParseInt(r.FormValue(FieldTotalSize), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s", ErrMalformedUpload, FieldTotalSize)
	}

	flowID := r.FormValue(FieldIdentifier)
	if flowID == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedUpload, FieldIdentifier)
	}

	chunk, header, err := r.FormFile(FieldFile)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedUpload, FieldFile)
	}
	defer chunk.Close()

	if float64(header.Size)/bytesPerMB > float64(tc.MaxFileSize) ||
		float64(totalSize)/bytesPerMB > float64(tc.MaxFileSize) {
		a.logger.Error("file upload rejected: file too big",
			observability.Int64("tenant_id", tc.ID),
			observability.Int64("chunk_size", header.Size),
			observability.Int64("total_size", totalSize))
		if a.metrics != nil {
			a.metrics.RecordRejection(tc.ID)
		}
		return nil, &FileTooBigError{LimitMB: tc.MaxFileSize}
	}

	tmp, err := a.registry.Acquire(flowID)
	if err != nil {
		return nil, err
	}

	lastChunk := r.FormValue(FieldChunkNumber) == r.FormValue(FieldTotalChunks)

	written, err := tmp.WriteChunk(chunk, lastChunk)
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordChunk(tc.ID, written)
	}

	return &UploadedFile{
		Date:        time.Now().UTC(),
		FlowID:      flowID,
		Name:        filename,
		Type:        mimeutil.Guess(filename),
		Size:        totalSize,
		Filename:    filepath.Base(tmp.Path()),
		Body:        tmp,
		Description: r.FormValue(FieldDescription),
	}, nil
}

// Release drops the flow's registry entry and its temp file, for use
// after the assembled upload has been persisted or abandoned.
func (a *Assembler) Release(flowID string) {
	a.registry.Release(flowID)
}

// WritePlaintextToDisk decrypts the assembled upload into destination,
// copying in fixed-size blocks. The destination path is recorded on
// the descriptor whether or not the copy succeeds.
func (a *Assembler) WritePlaintextToDisk(uploaded *UploadedFile, destination string) (err error) {
	defer func() {
		uploaded.Path = destination
	}()

	a.logger.Debug("writing uploaded file",
		observability.String("destination", destination),
		observability.Int64("size", uploaded.Size))

	encrypted, err := uploaded.Body.Open()
	if err != nil {
		return err
	}
	defer encrypted.Close()

	plaintext, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := plaintext.Close(); err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, copyBlockSize)
	_, err = io.CopyBuffer(plaintext, encrypted, buf)
	return err
}
