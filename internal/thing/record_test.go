package thing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/wotbroker/internal/frame"
)

type stubThing struct{ id string }

func (s *stubThing) ID() string                       { return s.id }
func (s *stubThing) Property(string) (Property, bool) { return nil, false }
func (s *stubThing) Action(string) (Action, bool)     { return nil, false }
func (s *stubThing) PropertyNames() []string          { return nil }
func (s *stubThing) SetPublish(PublishFunc)           {}

func TestRecord_EnqueueDrainFIFO(t *testing.T) {
	rec := NewRecord("light", &stubThing{id: "light"})
	defer rec.Close()

	rec.Enqueue(&QueuedRequest{Request: &frame.Request{MsgID: "1"}})
	rec.Enqueue(&QueuedRequest{Request: &frame.Request{MsgID: "2"}})

	select {
	case <-rec.Signal():
	default:
		t.Fatal("expected inbox signal to be set")
	}

	drained := rec.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "1", drained[0].Request.MsgID)
	assert.Equal(t, "2", drained[1].Request.MsgID)

	assert.Nil(t, rec.Drain())
}

func TestRecord_ExecutorTunnelRoundTrip(t *testing.T) {
	rec := NewRecord("light", &stubThing{id: "light"})
	defer rec.Close()

	require.NoError(t, rec.DispatcherEndpoint.SendMultipart([][]byte{[]byte("ping")}))
	got, err := rec.ExecutorEndpoint.RecvMultipart()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ping")}, got)
}

func TestRegistry_AttachLookupDetach(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Attach("light", &stubThing{id: "light"})
	require.NoError(t, err)

	_, err = reg.Attach("light", &stubThing{id: "light"})
	require.Error(t, err)

	rec, ok := reg.Lookup("light")
	require.True(t, ok)
	assert.Equal(t, "light", rec.ID)

	reg.Detach("light")
	_, ok = reg.Lookup("light")
	assert.False(t, ok)
}
