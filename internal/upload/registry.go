package upload

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// FlowRegistry tracks the in-progress upload flows of the process,
// keyed by the client-supplied flow identifier. Flows that receive no
// chunk within the TTL are swept and their temp files removed.
type FlowRegistry struct {
	mu    sync.Mutex
	flows map[string]*flowEntry

	dir    string
	ttl    time.Duration
	logger observability.Logger
}

type flowEntry struct {
	file     *SecureTemporaryFile
	lastSeen time.Time
}

// FlowRegistryOption configures a FlowRegistry.
type FlowRegistryOption func(*FlowRegistry)

// WithFlowRegistryLogger sets the logger for the registry.
func WithFlowRegistryLogger(logger observability.Logger) FlowRegistryOption {
	return func(r *FlowRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewFlowRegistry creates a registry writing temp files under dir.
func NewFlowRegistry(dir string, ttl time.Duration, opts ...FlowRegistryOption) *FlowRegistry {
	r := &FlowRegistry{
		flows:  make(map[string]*flowEntry),
		dir:    dir,
		ttl:    ttl,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Acquire returns the temp file for a flow id, creating it on the
// first chunk of the flow.
func (r *FlowRegistry) Acquire(flowID string) (*SecureTemporaryFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.flows[flowID]; ok {
		entry.lastSeen = time.Now()
		return entry.file, nil
	}

	file, err := NewSecureTemporaryFile(r.dir)
	if err != nil {
		return nil, err
	}

	r.flows[flowID] = &flowEntry{file: file, lastSeen: time.Now()}

	r.logger.Debug("upload flow created",
		observability.String("flow_id", flowID),
		observability.String("path", file.Path()))

	return file, nil
}

// Release removes a flow and deletes its temp file. Safe to call for
// unknown ids.
func (r *FlowRegistry) Release(flowID string) {
	r.mu.Lock()
	entry, ok := r.flows[flowID]
	delete(r.flows, flowID)
	r.mu.Unlock()

	if ok {
		_ = entry.file.Close()
	}
}

// Sweep evicts flows idle longer than the TTL and returns how many
// were removed.
func (r *FlowRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*flowEntry
	for id, entry := range r.flows {
		if now.Sub(entry.lastSeen) > r.ttl {
			expired = append(expired, entry)
			delete(r.flows, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range expired {
		_ = entry.file.Close()
	}

	if len(expired) > 0 {
		r.logger.Info("swept stale upload flows",
			observability.Int("count", len(expired)))
	}

	return len(expired)
}

// Len returns the number of active flows.
func (r *FlowRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Close removes every flow and its temp file.
func (r *FlowRegistry) Close() {
	r.mu.Lock()
	entries := make([]*flowEntry, 0, len(r.flows))
	for _, entry := range r.flows {
		entries = append(entries, entry)
	}
	r.flows = make(map[string]*flowEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		_ = entry.file.Close()
	}
}
