package stream

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	writes  atomic.Int64
	bytes   atomic.Int64
	failAt  int64
	content bytes.Buffer
}

func (s *countingSink) Write(p []byte) (int, error) {
	n := s.writes.Add(1)
	if s.failAt > 0 && n >= s.failAt {
		return 0, errors.New("connection reset by peer")
	}
	s.bytes.Add(int64(len(p)))
	s.content.Write(p)
	return len(p), nil
}

type closeTrackingReader struct {
	io.Reader
	closed atomic.Bool
}

func (r *closeTrackingReader) Close() error {
	r.closed.Store(true)
	return nil
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not complete")
	}
}

func TestFileProducer_BlockCountAndSingleCompletion(t *testing.T) {
	const size = 10 << 20
	const block = 64 * 1024

	payload := make([]byte, size)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	sink := &countingSink{}
	src := &closeTrackingReader{Reader: bytes.NewReader(payload)}

	p := NewFileProducer(sink, src, WithBlockSize(block))
	done := p.Start(context.Background())
	waitDone(t, done)

	expectedWrites := int64((size + block - 1) / block)
	assert.Equal(t, expectedWrites, sink.writes.Load())
	assert.Equal(t, int64(size), sink.bytes.Load())
	assert.Equal(t, payload, sink.content.Bytes())
	assert.True(t, src.closed.Load())

	// Completion resolves exactly once: the channel is closed and a
	// second stop is a no-op.
	p.stop()
	select {
	case <-p.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestFileProducer_TransportErrorSwallowed(t *testing.T) {
	payload := make([]byte, 1<<20)
	sink := &countingSink{failAt: 3}
	src := &closeTrackingReader{Reader: bytes.NewReader(payload)}

	done := NewFileProducer(sink, src, WithBlockSize(64*1024)).Start(context.Background())
	waitDone(t, done)

	assert.Equal(t, int64(3), sink.writes.Load())
	assert.True(t, src.closed.Load())
}

func TestFileProducer_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &countingSink{}
	src := &closeTrackingReader{Reader: bytes.NewReader(make([]byte, 1<<20))}

	done := NewFileProducer(sink, src).Start(ctx)
	waitDone(t, done)

	assert.Zero(t, sink.writes.Load())
	assert.True(t, src.closed.Load())
}

func TestFileProducer_EmptySource(t *testing.T) {
	sink := &countingSink{}
	src := &closeTrackingReader{Reader: bytes.NewReader(nil)}

	done := NewFileProducer(sink, src).Start(context.Background())
	waitDone(t, done)

	assert.Zero(t, sink.writes.Load())
}
