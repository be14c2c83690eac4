package broker

import (
	"log"
	"time"

	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
)

// Listener owns one inbound Endpoint and classifies every frame it
// receives, generalizing the teacher's Service.handleConnection
// accept-and-decode loop from a single TCP listener with a fixed JSON-RPC
// method set to an arbitrary transport carrying the 9-part request frame.
//
// The Listener never blocks on an Executor and never awaits replies: it
// only ever reads from its Endpoint, optionally writes one reply frame back
// immediately (HANDSHAKE, INVALID_MESSAGE), or enqueues onto a Thing's
// inbox and moves on.
type Listener struct {
	ep       endpoint.Endpoint
	registry *thing.Registry
	debug    bool
}

// NewListener returns a Listener bound to ep, resolving thing-ids against
// registry.
func NewListener(ep endpoint.Endpoint, registry *thing.Registry, debug bool) *Listener {
	return &Listener{ep: ep, registry: registry, debug: debug}
}

// Run drives the receive loop until the Endpoint is closed or an EXIT
// frame is received. Intended to run in its own goroutine.
func (l *Listener) Run() {
	for {
		parts, err := l.ep.RecvMultipart()
		if err != nil {
			if l.debug {
				log.Printf("broker: listener %s: recv error: %v", l.ep.Address(), err)
			}
			return
		}
		if l.handleFrame(parts) {
			return
		}
	}
}

// handleFrame processes one raw frame, returning true if the Listener
// should stop (an EXIT message was received).
func (l *Listener) handleFrame(parts [][]byte) (stop bool) {
	req, err := frame.ParseRequest(parts)
	if err != nil {
		l.replyInvalid(safePart(parts, 0), string(safePart(parts, 2)), err.Error())
		return false
	}

	switch req.Type {
	case frame.Handshake:
		l.handshake(req)
	case frame.Exit:
		return true
	case frame.Operation:
		l.handleOperation(req)
	default:
		l.replyInvalid(req.SenderAddr, req.MsgID, "unsupported message type: "+string(req.Type))
	}
	return false
}

func (l *Listener) handshake(req *frame.Request) {
	reply := &frame.Reply{
		ReceiverAddr: req.SenderAddr,
		Type:         frame.Handshake,
		MsgID:        req.MsgID,
		Data:         frame.Payload{ContentType: "application/json", Bytes: []byte("{}")},
	}
	if err := l.ep.SendMultipart(reply.Build()); err != nil && l.debug {
		log.Printf("broker: listener %s: handshake reply failed: %v", l.ep.Address(), err)
	}
}

func (l *Listener) handleOperation(req *frame.Request) {
	rec, ok := l.registry.Lookup(req.ThingID)
	if !ok {
		l.replyInvalid(req.SenderAddr, req.MsgID, "unknown thing id: "+req.ThingID)
		return
	}

	q := &thing.QueuedRequest{Request: req, Origin: l.ep}
	if req.ServerExecCtx.InvocationTimeout != nil {
		gate, verdict := newGatePair()
		q.InvocationGate = gate
		q.InvocationVerdict = verdict
		deadline := time.Now().Add(*req.ServerExecCtx.InvocationTimeout)
		go runTimeoutSupervisor(gate, verdict, deadline, "invocation", l.ep, req.SenderAddr, req.MsgID)
	}
	rec.Enqueue(q)
}

// replyInvalid emits an INVALID_MESSAGE reply, used for malformed frames and
// requests addressed to an unknown thing.
func (l *Listener) replyInvalid(receiverAddr []byte, msgID string, reason string) {
	reply := &frame.Reply{
		ReceiverAddr: receiverAddr,
		Type:         frame.InvalidMessage,
		MsgID:        msgID,
		Data:         frame.Payload{ContentType: "text/plain", Bytes: []byte(reason)},
	}
	if err := l.ep.SendMultipart(reply.Build()); err != nil && l.debug {
		log.Printf("broker: listener %s: invalid-message reply failed: %v", l.ep.Address(), err)
	}
}

// safePart returns parts[i], or nil if the frame is too short to have an
// index i part at all. Used when crafting an INVALID_MESSAGE reply for a
// frame that failed to parse and may be missing a sender address.
func safePart(parts [][]byte, i int) []byte {
	if i < len(parts) {
		return parts[i]
	}
	return nil
}
