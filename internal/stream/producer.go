// Package stream serves file content to HTTP responses through a
// block-at-a-time producer that respects transport backpressure and
// treats client disconnects as a normal teardown.
package stream

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// DefaultBlockSize is the read/write block size for file streaming.
const DefaultBlockSize = 64 * 1024

// FileProducer copies a source file to a response writer one block at
// a time, flushing after each block so a slow client throttles the
// reads. Transport errors stop production silently: the client may be
// gone and there is nobody left to tell.
type FileProducer struct {
	dst       io.Writer
	src       io.ReadCloser
	blockSize int
	logger    observability.Logger

	done chan struct{}
	once sync.Once
}

// ProducerOption configures a FileProducer.
type ProducerOption func(*FileProducer)

// WithBlockSize overrides the streaming block size.
func WithBlockSize(size int) ProducerOption {
	return func(p *FileProducer) {
		if size > 0 {
			p.blockSize = size
		}
	}
}

// WithProducerLogger sets the logger for the producer.
func WithProducerLogger(logger observability.Logger) ProducerOption {
	return func(p *FileProducer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFileProducer creates a producer that streams src into dst. The
// producer owns src and closes it on completion.
func NewFileProducer(dst io.Writer, src io.ReadCloser, opts ...ProducerOption) *FileProducer {
	p := &FileProducer{
		dst:       dst,
		src:       src,
		blockSize: DefaultBlockSize,
		logger:    observability.NopLogger(),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start begins producing in a new goroutine and returns a channel that
// is closed exactly once when production ends, whether by exhaustion,
// transport error or context cancellation.
func (p *FileProducer) Start(ctx context.Context) <-chan struct{} {
	go p.produce(ctx)
	return p.done
}

// Done returns the completion channel without starting production.
func (p *FileProducer) Done() <-chan struct{} {
	return p.done
}

func (p *FileProducer) produce(ctx context.Context) {
	defer p.stop()

	flusher, _ := p.dst.(http.Flusher)
	buf := make([]byte, p.blockSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := p.src.Read(buf)
		if n > 0 {
			if _, werr := p.dst.Write(buf[:n]); werr != nil {
				p.logger.Debug("streaming stopped by transport error",
					observability.Error(werr))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// stop closes the source and resolves the completion channel. Safe to
// reach from every exit path, it fires exactly once.
func (p *FileProducer) stop() {
	p.once.Do(func() {
		_ = p.src.Close()
		close(p.done)
	})
}
