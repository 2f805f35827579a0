package policy

// StrictPolicy aborts on every failure.
//
// This is the core decoder's own contract: a chunk either decodes
// completely or the stream stops.
type StrictPolicy struct {
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy.
func NewStrictPolicy() *StrictPolicy {
	return &StrictPolicy{stats: newStatsRecorder()}
}

// Name implements Policy.
func (p *StrictPolicy) Name() string { return NameStrict }

// OnFailure always returns ActionAbort.
func (p *StrictPolicy) OnFailure(_ Failure) Action {
	p.stats.recordAbort()
	return ActionAbort
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}
