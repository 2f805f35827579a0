// Package policy decides what a chunk stream does when one chunk fails to
// decode: abort the stream or skip the chunk by its declared size.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/asechunk/chunk"
)

// Action is a policy decision.
type Action int

const (
	// ActionAbort stops the stream and returns the failure.
	ActionAbort Action = iota
	// ActionSkip resumes at offset+size of the failed chunk.
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionAbort:
		return "abort"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Names of the built-in policies.
const (
	NameStrict  = "strict"
	NameLenient = "lenient"
)

// Failure describes one chunk that failed to decode.
type Failure struct {
	// Offset is the stream position of the chunk's first byte.
	Offset int64
	// Err is the decode error; normally a *chunk.Error.
	Err error
}

// Kind returns the chunk error kind, if Err carries one.
func (f Failure) Kind() (chunk.ErrorKind, bool) {
	return chunk.KindOf(f.Err)
}

// Tag returns the failed chunk's tag, zero if it was never read.
func (f Failure) Tag() chunk.Tag {
	var ce *chunk.Error
	if errors.As(f.Err, &ce) {
		return ce.Tag
	}
	return 0
}

// Size returns the declared size of the failed chunk, if it was read.
func (f Failure) Size() (uint32, bool) {
	return chunk.DeclaredSize(f.Err)
}

// Policy decides the fate of failed chunks.
//
// Implementations must be safe for concurrent use; one policy may back
// several readers.
type Policy interface {
	// Name returns the policy's configuration name.
	Name() string

	// OnFailure returns the action for f. ActionSkip is only valid when
	// f carries a declared size; readers treat it as ActionAbort otherwise.
	OnFailure(f Failure) Action

	// Stats returns an atomic snapshot of the policy's counters.
	Stats() Stats
}

// Stats represents policy decision counters.
type Stats struct {
	// TotalFailures is the number of failures seen.
	TotalFailures int64
	// Skipped is the number of chunks skipped.
	Skipped int64
	// SkippedBytes is the sum of declared sizes of skipped chunks.
	SkippedBytes int64
	// SkippedByTag maps chunk tags to skip counts.
	SkippedByTag map[chunk.Tag]int64
	// Aborted is the number of failures that stopped a stream.
	Aborted int64
}

// New returns the built-in policy registered under name.
func New(name string) (Policy, error) {
	switch name {
	case "", NameStrict:
		return NewStrictPolicy(), nil
	case NameLenient:
		return NewLenientPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want %q or %q)", name, NameStrict, NameLenient)
	}
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record decisions; the recorder does
// not infer any.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			SkippedByTag: make(map[chunk.Tag]int64),
		},
	}
}

func (r *statsRecorder) recordAbort() {
	r.mu.Lock()
	r.stats.TotalFailures++
	r.stats.Aborted++
	r.mu.Unlock()
}

func (r *statsRecorder) recordSkip(tag chunk.Tag, size uint32) {
	r.mu.Lock()
	r.stats.TotalFailures++
	r.stats.Skipped++
	r.stats.SkippedBytes += int64(size)
	r.stats.SkippedByTag[tag]++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.SkippedByTag = make(map[chunk.Tag]int64, len(r.stats.SkippedByTag))
	for k, v := range r.stats.SkippedByTag {
		s.SkippedByTag[k] = v
	}
	return s
}
