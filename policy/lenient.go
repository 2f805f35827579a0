package policy

import "github.com/justapithecus/asechunk/chunk"

// skippableKinds are the failures after which the stream is still aligned
// once the reader seeks past the declared size.
var skippableKinds = map[chunk.ErrorKind]bool{
	chunk.ErrorUnknownChunkType: true,
	chunk.ErrorMalformed:        true,
	chunk.ErrorSizeMismatch:     true,
}

// IsSkippable reports whether f can be skipped without losing alignment.
//
// Stream read failures are never skippable: the source is gone or
// truncated. Too-large chunks are never skippable either; their size is
// the suspect field.
func IsSkippable(f Failure) bool {
	kind, ok := f.Kind()
	if !ok || !skippableKinds[kind] {
		return false
	}
	size, ok := f.Size()
	return ok && size >= chunk.HeaderSize
}

// LenientPolicy skips chunks it can step over and aborts on the rest.
type LenientPolicy struct {
	stats *statsRecorder
}

// NewLenientPolicy creates a new lenient policy.
func NewLenientPolicy() *LenientPolicy {
	return &LenientPolicy{stats: newStatsRecorder()}
}

// Name implements Policy.
func (p *LenientPolicy) Name() string { return NameLenient }

// OnFailure returns ActionSkip for skippable failures.
func (p *LenientPolicy) OnFailure(f Failure) Action {
	if !IsSkippable(f) {
		p.stats.recordAbort()
		return ActionAbort
	}
	size, _ := f.Size()
	p.stats.recordSkip(f.Tag(), size)
	return ActionSkip
}

// Stats returns policy statistics.
func (p *LenientPolicy) Stats() Stats {
	return p.stats.snapshot()
}
