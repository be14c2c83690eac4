package thing

import (
	"sync"

	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
)

// QueuedRequest is one inbox entry: a parsed request plus the invocation
// gate/verdict pair the Listener started for it (nil when the request
// declared no invocation deadline) and the endpoint to reply on.
type QueuedRequest struct {
	Request *frame.Request
	Origin  endpoint.Endpoint

	// InvocationGate, when non-nil, is signaled by the Dispatcher the moment
	// it begins processing this entry, racing the invocation-timer
	// supervisor's deadline.
	InvocationGate chan struct{}
	// InvocationVerdict receives the supervisor's one decision: true if the
	// deadline passed before InvocationGate was signaled. The Dispatcher
	// reads exactly one value after signaling InvocationGate.
	InvocationVerdict chan bool
}

// Record is the broker-owned runtime state for one attached Thing: the
// inbox Listeners enqueue into, the inbox-signal the Dispatcher waits on,
// and the in-process endpoint pair tunneling requests to the Executor.
type Record struct {
	ID    string
	Thing Thing

	// DispatcherEndpoint is the client side of the Dispatcher-to-Executor
	// tunnel, held and used exclusively by the Dispatcher.
	DispatcherEndpoint endpoint.Endpoint
	// ExecutorEndpoint is the server side of the same tunnel, held and used
	// exclusively by the Executor.
	ExecutorEndpoint endpoint.Endpoint

	mu     sync.Mutex
	inbox  []*QueuedRequest
	signal chan struct{}
}

// NewRecord creates a Record for t, wiring its Dispatcher/Executor tunnel.
func NewRecord(id string, t Thing) *Record {
	dispatcherSide, executorSide := endpoint.NewInprocPair(id+"-dispatcher", id+"-executor")
	return &Record{
		ID:                 id,
		Thing:              t,
		DispatcherEndpoint: dispatcherSide,
		ExecutorEndpoint:   executorSide,
		signal:             make(chan struct{}, 1),
	}
}

// Enqueue appends q to the inbox and signals the Dispatcher. Safe for
// concurrent use by multiple Listeners (multi-producer, single-consumer).
func (r *Record) Enqueue(q *QueuedRequest) {
	r.mu.Lock()
	r.inbox = append(r.inbox, q)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Signal returns the one-shot wake channel the Dispatcher selects on.
func (r *Record) Signal() <-chan struct{} {
	return r.signal
}

// Drain removes and returns the entire inbox in FIFO order, or nil if empty.
func (r *Record) Drain() []*QueuedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inbox) == 0 {
		return nil
	}
	drained := r.inbox
	r.inbox = nil
	return drained
}

// Close releases the Record's tunnel endpoints.
func (r *Record) Close() error {
	r.DispatcherEndpoint.Close()
	return r.ExecutorEndpoint.Close()
}
