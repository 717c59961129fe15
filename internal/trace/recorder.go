package trace

import "sync"

// Sink receives the events of one run.
//
// The pipeline records from three places: the staleness filter and the
// output writer run on the caller's goroutine, while compile results arrive
// from the batch workers, concurrently once Concurrency > 1. A Sink must
// therefore be safe for concurrent use, and it must never fail the build.
type Sink interface {
	Record(event TraceEvent)
}

// SafeRecord forwards event to s. A nil sink is ignored and a panicking
// sink is recovered, so tracing never changes the outcome of a run.
func SafeRecord(s Sink, event TraceEvent) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder collects a run's events in memory and tallies them per kind.
//
// Compile workers finish in any order, so arrival order carries no meaning;
// Trace returns the events canonicalized.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
	counts map[EventKind]int
}

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[EventKind]int)}
}

func (r *Recorder) Record(event TraceEvent) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.counts == nil {
		r.counts = make(map[EventKind]int)
	}
	r.counts[event.Kind]++
}

// Count returns how many events of kind have been recorded.
func (r *Recorder) Count(kind EventKind) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Trace returns the canonical trace of everything recorded so far for the
// run rooted at searchRoot. The recorder keeps collecting afterwards.
func (r *Recorder) Trace(searchRoot string) ExecutionTrace {
	tr := ExecutionTrace{Root: searchRoot}
	if r != nil {
		r.mu.Lock()
		tr.Events = append([]TraceEvent(nil), r.events...)
		r.mu.Unlock()
	}
	tr.Canonicalize()
	return tr
}
