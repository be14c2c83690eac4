package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string
	Value int
}

func TestRegistry_JSONRoundTrip(t *testing.T) {
	r := NewRegistry()
	data, err := r.Encode(JSON, sample{Name: "brightness", Value: 42})
	require.NoError(t, err)

	var out sample
	require.NoError(t, r.Decode(JSON, data, &out))
	assert.Equal(t, sample{Name: "brightness", Value: 42}, out)
}

func TestRegistry_MsgPackRoundTrip(t *testing.T) {
	r := NewRegistry()
	data, err := r.Encode(MsgPack, sample{Name: "brightness", Value: 7})
	require.NoError(t, err)

	var out sample
	require.NoError(t, r.Decode(MsgPack, data, &out))
	assert.Equal(t, sample{Name: "brightness", Value: 7}, out)
}

func TestRegistry_PickleRoundTrip(t *testing.T) {
	r := NewRegistry()
	data, err := r.Encode(Pickle, sample{Name: "x", Value: 1})
	require.NoError(t, err)

	var out sample
	require.NoError(t, r.Decode(Pickle, data, &out))
	assert.Equal(t, sample{Name: "x", Value: 1}, out)
}

func TestRegistry_TextPassthrough(t *testing.T) {
	r := NewRegistry()
	data, err := r.Encode(Text, "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	var out string
	require.NoError(t, r.Decode(Text, data, &out))
	assert.Equal(t, "hello", out)
}

func TestRegistry_UnknownContentType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Encode(ContentType("application/xml"), "x")
	require.Error(t, err)
	var unknown *ErrUnknownContentType
	require.ErrorAs(t, err, &unknown)
}
