package broker

import (
	"log"
	"time"

	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
)

// Dispatcher drains one Thing's inbox, tunnels each request to its
// Executor, and forwards the reply back to the originating Endpoint. It
// runs a select-over-(channel, time.After) loop, generalized into a
// two-phase invocation/execution gate-versus-timer race so a request can be
// dropped for missing its invocation deadline or have its late reply
// discarded for missing its execution deadline.
//
// Dispatcher serializes forwarding to its Executor: there is exactly one
// outstanding request between Dispatcher and Executor at any time, since
// process blocks on the Executor's reply before draining the next entry.
type Dispatcher struct {
	rec   *thing.Record
	debug bool
	stop  chan struct{}
}

// NewDispatcher returns a Dispatcher owning rec's inbox.
func NewDispatcher(rec *thing.Record, debug bool) *Dispatcher {
	return &Dispatcher{rec: rec, debug: debug, stop: make(chan struct{})}
}

// Stop signals Run to return at its next suspension point. Safe to call
// once; calling it twice panics on the double close, matching the
// single-owner (Supervisor) contract the rest of the package assumes.
func (d *Dispatcher) Stop() {
	close(d.stop)
}

// Run drains the inbox whenever signaled, until Stop is called. Intended
// to run in its own goroutine, one per attached Thing.
func (d *Dispatcher) Run() {
	for {
		select {
		case <-d.stop:
			return
		case <-d.rec.Signal():
		}

		for _, q := range d.rec.Drain() {
			select {
			case <-d.stop:
				return
			default:
			}
			d.process(q)
		}
	}
}

// process carries one queued request through the invocation-gate check,
// the forward to the Executor, the execution-gate check, and the reply.
func (d *Dispatcher) process(q *thing.QueuedRequest) {
	req := q.Request

	if q.InvocationGate != nil {
		signalGate(q.InvocationGate)
		if expired := <-q.InvocationVerdict; expired {
			return // timer already emitted TIMEOUT("invocation"); drop silently
		}
	}

	originalAddr := req.SenderAddr
	parts, err := req.Build()
	if err != nil {
		if d.debug {
			log.Printf("broker: dispatcher %s: build request failed: %v", d.rec.ID, err)
		}
		return
	}
	parts[0] = []byte(req.ThingID) // route to Executor by thing-id, not client addr

	if err := d.rec.DispatcherEndpoint.SendMultipart(parts); err != nil {
		if d.debug {
			log.Printf("broker: dispatcher %s: forward to executor failed: %v", d.rec.ID, err)
		}
		return
	}

	var execGate chan struct{}
	var execVerdict chan bool
	if req.ServerExecCtx.ExecutionTimeout != nil {
		execGate, execVerdict = newGatePair()
		deadline := time.Now().Add(*req.ServerExecCtx.ExecutionTimeout)
		go runTimeoutSupervisor(execGate, execVerdict, deadline, "execution", q.Origin, originalAddr, req.MsgID)
	}

	replyParts, err := d.rec.DispatcherEndpoint.RecvMultipart()
	if err != nil {
		if d.debug {
			log.Printf("broker: dispatcher %s: recv from executor failed: %v", d.rec.ID, err)
		}
		return
	}

	if execGate != nil {
		signalGate(execGate)
		if expired := <-execVerdict; expired {
			return // timer already emitted TIMEOUT("execution"); the late reply is discarded
		}
	}

	reply, err := frame.ParseReply(replyParts)
	if err != nil {
		if d.debug {
			log.Printf("broker: dispatcher %s: malformed executor reply: %v", d.rec.ID, err)
		}
		return
	}
	reply.ReceiverAddr = originalAddr

	if req.ServerExecCtx.Oneway {
		return
	}
	if err := q.Origin.SendMultipart(reply.Build()); err != nil && d.debug {
		log.Printf("broker: dispatcher %s: reply delivery failed: %v", d.rec.ID, err)
	}
}

// signalGate performs a non-blocking send on a capacity-1 gate channel.
func signalGate(gate chan struct{}) {
	select {
	case gate <- struct{}{}:
	default:
	}
}
