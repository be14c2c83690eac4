package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenzoki/wotbroker/internal/endpoint"
	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
	"github.com/tenzoki/wotbroker/internal/thing/fixture"
)

func TestListener_HandshakeRoundTrip(t *testing.T) {
	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	defer clientEp.Close()

	l := NewListener(brokerEp, thing.NewRegistry(), false)
	go l.Run()

	req := &frame.Request{SenderAddr: []byte("client-1"), Type: frame.Handshake, MsgID: "m1"}
	parts, err := req.Build()
	require.NoError(t, err)
	require.NoError(t, clientEp.SendMultipart(parts))

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)

	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.Handshake, reply.Type)
	require.Equal(t, "m1", reply.MsgID)
}

func TestListener_MalformedFrameRepliesInvalid(t *testing.T) {
	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	defer clientEp.Close()

	l := NewListener(brokerEp, thing.NewRegistry(), false)
	go l.Run()

	require.NoError(t, clientEp.SendMultipart([][]byte{[]byte("too"), []byte("short")}))

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)

	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.InvalidMessage, reply.Type)
}

func TestListener_UnknownThingRepliesInvalid(t *testing.T) {
	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	defer clientEp.Close()

	l := NewListener(brokerEp, thing.NewRegistry(), false)
	go l.Run()

	req := &frame.Request{
		SenderAddr: []byte("client-1"),
		Type:       frame.Operation,
		MsgID:      "m2",
		ThingID:    "missing-thing",
		ObjectName: "brightness",
		Operation:  frame.ReadProperty,
	}
	parts, err := req.Build()
	require.NoError(t, err)
	require.NoError(t, clientEp.SendMultipart(parts))

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)

	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.InvalidMessage, reply.Type)
}

func TestListener_ExitStopsRun(t *testing.T) {
	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	defer clientEp.Close()

	l := NewListener(brokerEp, thing.NewRegistry(), false)
	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	req := &frame.Request{SenderAddr: []byte("client-1"), Type: frame.Exit, MsgID: "m3"}
	parts, err := req.Build()
	require.NoError(t, err)
	require.NoError(t, clientEp.SendMultipart(parts))

	<-done
}

// TestListener_InvocationTimeoutFiresForReal leaves the Thing's Dispatcher
// unstarted so the queued request is never drained, letting the real
// runTimeoutSupervisor timer spawned by handleOperation fire on its own
// clock rather than a pre-seeded verdict channel.
func TestListener_InvocationTimeoutFiresForReal(t *testing.T) {
	clientEp, brokerEp := endpoint.NewInprocPair("client", "broker")
	defer clientEp.Close()

	registry := thing.NewRegistry()
	_, err := registry.Attach("light", fixture.NewLight("light", 1))
	require.NoError(t, err)

	l := NewListener(brokerEp, registry, false)
	go l.Run()

	timeout := 20 * time.Millisecond
	req := &frame.Request{
		SenderAddr:    []byte("client-1"),
		Type:          frame.Operation,
		MsgID:         "m4",
		ThingID:       "light",
		ObjectName:    "brightness",
		Operation:     frame.ReadProperty,
		ServerExecCtx: frame.ServerExecContext{InvocationTimeout: &timeout},
	}
	parts, err := req.Build()
	require.NoError(t, err)
	require.NoError(t, clientEp.SendMultipart(parts))

	replyParts, err := clientEp.RecvMultipart()
	require.NoError(t, err)
	reply, err := frame.ParseReply(replyParts)
	require.NoError(t, err)
	require.Equal(t, frame.Timeout, reply.Type)
	require.Equal(t, "invocation", string(reply.Data.Bytes))
}
