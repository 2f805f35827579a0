// Package metrics provides per-reader metrics collection.
//
// The Collector accumulates counters while one chunk stream is read. It is
// a leaf package with no internal dependencies: chunk tags and error kinds
// arrive as strings. Policy decision counters are absorbed from
// policy.Stats when a stream ends rather than recorded live, avoiding
// double-counting when a policy backs several readers.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream lifecycle
	StreamsStarted   int64
	StreamsCompleted int64
	StreamsFailed    int64
	StreamsCanceled  int64

	// Decoding
	ChunksDecoded int64
	BytesDecoded  int64
	DecodedByTag  map[string]int64
	DecodeErrors  int64
	ErrorsByKind  map[string]int64
	ChunksSkipped int64
	BytesSkipped  int64

	// Policy (absorbed from policy.Stats at stream end)
	PolicyFailures int64
	PolicySkipped  int64
	PolicyAborted  int64
	SkippedByTag   map[string]int64

	// IPC
	IPCFramesEncoded int64
	IPCFramesDecoded int64
	IPCDecodeErrors  int64

	// Dimensions (informational, set at construction)
	Policy   string
	Source   string
	ReaderID string
}

// Collector accumulates metrics for a chunk stream.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	streamsStarted   int64
	streamsCompleted int64
	streamsFailed    int64
	streamsCanceled  int64

	chunksDecoded int64
	bytesDecoded  int64
	decodedByTag  map[string]int64
	decodeErrors  int64
	errorsByKind  map[string]int64
	chunksSkipped int64
	bytesSkipped  int64

	// Per-reader policy decisions
	policyFailures int64
	policySkipped  int64
	policyAborted  int64
	skippedByTag   map[string]int64

	ipcFramesEncoded int64
	ipcFramesDecoded int64
	ipcDecodeErrors  int64

	policy   string
	source   string
	readerID string
}

// NewCollector creates a Collector with dimension labels.
// readerID is optional.
func NewCollector(policy, source, readerID string) *Collector {
	return &Collector{
		decodedByTag: make(map[string]int64),
		errorsByKind: make(map[string]int64),
		skippedByTag: make(map[string]int64),
		policy:       policy,
		source:       source,
		readerID:     readerID,
	}
}

// --- Stream lifecycle ---

// IncStreamStarted records the first read of a stream.
func (c *Collector) IncStreamStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsStarted++
	c.mu.Unlock()
}

// IncStreamCompleted records a stream that ended on a chunk boundary.
func (c *Collector) IncStreamCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsCompleted++
	c.mu.Unlock()
}

// IncStreamFailed records a stream aborted by a decode failure.
func (c *Collector) IncStreamFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsFailed++
	c.mu.Unlock()
}

// IncStreamCanceled records a stream stopped by its context.
func (c *Collector) IncStreamCanceled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsCanceled++
	c.mu.Unlock()
}

// --- Decoding ---

// RecordDecoded records one decoded chunk and its declared size.
func (c *Collector) RecordDecoded(tag string, size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksDecoded++
	c.bytesDecoded += size
	c.decodedByTag[tag]++
	c.mu.Unlock()
}

// RecordError records one decode failure by error kind.
func (c *Collector) RecordError(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.errorsByKind[kind]++
	c.mu.Unlock()
}

// RecordSkipped records one chunk stepped over by its declared size.
func (c *Collector) RecordSkipped(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSkipped++
	c.bytesSkipped += size
	c.mu.Unlock()
}

// --- IPC ---

// IncIPCFramesEncoded records a chunk frame written.
func (c *Collector) IncIPCFramesEncoded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcFramesEncoded++
	c.mu.Unlock()
}

// IncIPCFramesDecoded records a chunk frame read.
func (c *Collector) IncIPCFramesDecoded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcFramesDecoded++
	c.mu.Unlock()
}

// IncIPCDecodeErrors records an IPC frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcDecodeErrors++
	c.mu.Unlock()
}

// --- Policy ---

// RecordPolicyDecision records the final action taken on one failed chunk.
// tag is the chunk's tag name and only counts toward SkippedByTag when
// the chunk was skipped.
func (c *Collector) RecordPolicyDecision(skipped bool, tag string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.policyFailures++
	if skipped {
		c.policySkipped++
		c.skippedByTag[tag]++
	} else {
		c.policyAborted++
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StreamsStarted:   c.streamsStarted,
		StreamsCompleted: c.streamsCompleted,
		StreamsFailed:    c.streamsFailed,
		StreamsCanceled:  c.streamsCanceled,

		ChunksDecoded: c.chunksDecoded,
		BytesDecoded:  c.bytesDecoded,
		DecodedByTag:  copyCounts(c.decodedByTag),
		DecodeErrors:  c.decodeErrors,
		ErrorsByKind:  copyCounts(c.errorsByKind),
		ChunksSkipped: c.chunksSkipped,
		BytesSkipped:  c.bytesSkipped,

		PolicyFailures: c.policyFailures,
		PolicySkipped:  c.policySkipped,
		PolicyAborted:  c.policyAborted,
		SkippedByTag:   copyCounts(c.skippedByTag),

		IPCFramesEncoded: c.ipcFramesEncoded,
		IPCFramesDecoded: c.ipcFramesDecoded,
		IPCDecodeErrors:  c.ipcDecodeErrors,

		Policy:   c.policy,
		Source:   c.source,
		ReaderID: c.readerID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
