package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenzoki/wotbroker/internal/codec"
	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
	"github.com/tenzoki/wotbroker/internal/thing/fixture"
)

// recvAsync hands back a channel that receives the next frame off ep, so a
// test can race it against a timeout without blocking forever on an absent
// reply.
func recvAsync(ep endpoint.Endpoint) <-chan [][]byte {
	ch := make(chan [][]byte, 1)
	go func() {
		if parts, err := ep.RecvMultipart(); err == nil {
			ch <- parts
		}
	}()
	return ch
}

func newDispatcherHarness(t *testing.T, brightness int) (*thing.Record, endpoint.Endpoint, endpoint.Endpoint) {
	t.Helper()
	rec := thing.NewRecord("light", fixture.NewLight("light", brightness))
	e := NewExecutor(rec, codec.NewRegistry(), false)
	d := NewDispatcher(rec, false)
	go e.Run()
	go d.Run()
	t.Cleanup(func() {
		d.Stop()
		rec.Close()
	})

	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	t.Cleanup(func() { clientEp.Close() })
	return rec, clientEp, brokerEp
}

func TestDispatcher_ReadPropertySuccess(t *testing.T) {
	rec, clientEp, brokerEp := newDispatcherHarness(t, 42)

	req := &frame.Request{
		SenderAddr: []byte("client-1"),
		Type:       frame.Operation,
		MsgID:      "m1",
		ThingID:    "light",
		ObjectName: "brightness",
		Operation:  frame.ReadProperty,
	}
	rec.Enqueue(&thing.QueuedRequest{Request: req, Origin: brokerEp})

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)
	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.Reply, reply.Type)
	require.Equal(t, []byte("client-1"), reply.ReceiverAddr)
	require.Equal(t, "42", string(reply.Data.Bytes))
}

func TestDispatcher_OnewayWriteSuppressesReply(t *testing.T) {
	rec, clientEp, brokerEp := newDispatcherHarness(t, 1)

	payload, err := json.Marshal(75)
	require.NoError(t, err)
	req := &frame.Request{
		SenderAddr:    []byte("c1"),
		Type:          frame.Operation,
		MsgID:         "m2",
		ThingID:       "light",
		ObjectName:    "brightness",
		Operation:     frame.WriteProperty,
		Payload:       frame.Payload{ContentType: "application/json", Bytes: payload},
		ServerExecCtx: frame.ServerExecContext{Oneway: true},
	}
	rec.Enqueue(&thing.QueuedRequest{Request: req, Origin: brokerEp})

	select {
	case <-time.After(150 * time.Millisecond):
	case parts := <-recvAsync(clientEp):
		t.Fatalf("expected no reply for oneway write, got %v", parts)
	}
}

func TestDispatcher_DropsRequestWhenInvocationExpired(t *testing.T) {
	rec, clientEp, brokerEp := newDispatcherHarness(t, 1)

	gate := make(chan struct{}, 1)
	verdict := make(chan bool, 1)
	verdict <- true // the invocation-timeout supervisor already declared this expired

	req := &frame.Request{
		SenderAddr: []byte("c1"),
		Type:       frame.Operation,
		MsgID:      "m3",
		ThingID:    "light",
		ObjectName: "brightness",
		Operation:  frame.ReadProperty,
	}
	rec.Enqueue(&thing.QueuedRequest{Request: req, Origin: brokerEp, InvocationGate: gate, InvocationVerdict: verdict})

	select {
	case <-time.After(150 * time.Millisecond):
	case parts := <-recvAsync(clientEp):
		t.Fatalf("expected dropped request, got reply %v", parts)
	}
}

func TestDispatcher_ExecutionTimeoutDiscardsLateReply(t *testing.T) {
	rec, clientEp, brokerEp := newDispatcherHarness(t, 1)

	payload, err := json.Marshal(map[string]interface{}{"__args__": []interface{}{0.2}})
	require.NoError(t, err)
	timeout := 20 * time.Millisecond
	req := &frame.Request{
		SenderAddr:    []byte("c1"),
		Type:          frame.Operation,
		MsgID:         "m4",
		ThingID:       "light",
		ObjectName:    "sleep",
		Operation:     frame.InvokeAction,
		Payload:       frame.Payload{ContentType: "application/json", Bytes: payload},
		ServerExecCtx: frame.ServerExecContext{ExecutionTimeout: &timeout},
	}
	rec.Enqueue(&thing.QueuedRequest{Request: req, Origin: brokerEp})

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)
	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.Timeout, reply.Type)
	require.Equal(t, "execution", string(reply.Data.Bytes))

	select {
	case <-time.After(400 * time.Millisecond):
	case parts := <-recvAsync(clientEp):
		t.Fatalf("expected no further reply once the late executor response arrives, got %v", parts)
	}
}
