package endpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInprocPair_RoundTrip(t *testing.T) {
	a, b := NewInprocPair("a", "b")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.SendMultipart([][]byte{[]byte("hello"), []byte("world")}))

	parts, err := b.RecvMultipart()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hello"), []byte("world")}, parts)
}

func TestInprocPair_ClosedReturnsErrClosed(t *testing.T) {
	a, b := NewInprocPair("a", "b")
	a.Close()
	b.Close()

	_, err := a.RecvMultipart()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.SendMultipart([][]byte{[]byte("x")}), ErrClosed)
}

func TestTCP_ListenDialRoundTrip(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Endpoint, 1)
	go func() {
		ep, err := ln.Accept()
		require.NoError(t, err)
		accepted <- ep
	}()

	client, err := DialTCP(ln.Addr())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	frame := [][]byte{[]byte("client-1"), []byte("OPERATION"), []byte("msgid"), {}, []byte("light"), []byte("brightness"), []byte("readProperty"), {}, {}}
	require.NoError(t, client.SendMultipart(frame))

	got, err := server.RecvMultipart()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestIPC_ListenDialRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "broker.sock")
	ln, err := ListenIPC(sockPath)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan Endpoint, 1)
	go func() {
		ep, err := ln.Accept()
		require.NoError(t, err)
		accepted <- ep
	}()

	client, err := DialIPC(sockPath)
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, server.SendMultipart([][]byte{[]byte("reply-part")}))
	got, err := client.RecvMultipart()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("reply-part")}, got)
}

func TestPubSub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewPubSub()
	sub1 := hub.Subscribe("sub-1")
	sub2 := hub.Subscribe("sub-2")
	defer sub1.Close()
	defer sub2.Close()

	hub.Publish([][]byte{[]byte("light"), []byte("brightness-changed"), []byte("42")})

	for _, sub := range []Endpoint{sub1, sub2} {
		parts, err := sub.RecvMultipart()
		require.NoError(t, err)
		assert.Equal(t, []byte("brightness-changed"), parts[1])
	}
}

func TestPubSub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewPubSub()
	sub := hub.Subscribe("sub-1")
	require.NoError(t, sub.Close())

	hub.Publish([][]byte{[]byte("evt")})

	done := make(chan struct{})
	go func() {
		_, err := sub.RecvMultipart()
		assert.ErrorIs(t, err, ErrClosed)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecvMultipart on closed subscriber did not return")
	}
}

func TestPubSubEndpoint_SendNotSupported(t *testing.T) {
	hub := NewPubSub()
	sub := hub.Subscribe("sub-1")
	defer sub.Close()

	err := sub.SendMultipart([][]byte{[]byte("x")})
	assert.Error(t, err)
}
