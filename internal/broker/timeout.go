package broker

import (
	"time"

	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
)

// newGatePair allocates the one-shot signal/verdict channel pair a timeout
// supervisor and its Dispatcher rendezvous on. Both are buffered at
// capacity 1 so a signal sent before the reader is ready is never lost,
// turning what would otherwise need callback scheduling into a plain select
// over (gate, deadline).
func newGatePair() (gate chan struct{}, verdict chan bool) {
	return make(chan struct{}, 1), make(chan bool, 1)
}

// runTimeoutSupervisor races gate against deadline. If gate is signaled
// first, it reports expired=false on verdict and returns. If deadline
// passes first, it re-checks gate once more, closing the window where the
// signal became visible exactly as the deadline fired: a gate signal that
// is already visible always wins the tie. Only on a genuine miss does it
// report expired=true and emit the TIMEOUT reply itself; the supervisor is
// the only writer of TIMEOUT replies.
func runTimeoutSupervisor(gate chan struct{}, verdict chan bool, deadline time.Time, kind string, origin endpoint.Endpoint, receiverAddr []byte, msgID string) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-gate:
		verdict <- false
		return
	case <-timer.C:
	}

	select {
	case <-gate:
		verdict <- false
		return
	default:
	}

	verdict <- true
	emitTimeout(origin, receiverAddr, msgID, kind)
}

// emitTimeout sends a TIMEOUT reply carrying kind ("invocation" or
// "execution") as data.
func emitTimeout(origin endpoint.Endpoint, receiverAddr []byte, msgID string, kind string) {
	reply := &frame.Reply{
		ReceiverAddr: receiverAddr,
		Type:         frame.Timeout,
		MsgID:        msgID,
		Data:         frame.Payload{ContentType: "text/plain", Bytes: []byte(kind)},
	}
	_ = origin.SendMultipart(reply.Build())
}
