// Package codec provides encode/decode for the content-types a request or
// reply payload may declare. The broker never interprets payload bytes
// itself: Things and clients agree on a content-type, and the codec
// registry is the only place that knows how to turn that tag into bytes
// and back.
//
// Supported content-types: application/json, x-msgpack, pickle, text/plain.
// Unknown content types fail locally with ErrUnknownContentType; when the
// Executor hits one decoding a request payload it replies INVALID_MESSAGE.
package codec

import "fmt"

// ContentType identifies the wire encoding of a payload.
type ContentType string

const (
	JSON    ContentType = "application/json"
	MsgPack ContentType = "x-msgpack"
	Pickle  ContentType = "pickle"
	Text    ContentType = "text/plain"
)

// ErrUnknownContentType is returned by Encode/Decode when no codec is
// registered for the requested content-type.
type ErrUnknownContentType struct {
	ContentType ContentType
}

func (e *ErrUnknownContentType) Error() string {
	return fmt.Sprintf("codec: unknown content type %q", e.ContentType)
}

// Codec encodes and decodes Go values for one content-type.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// Registry dispatches Encode/Decode calls to the codec registered for a
// given content-type. A Registry is safe for concurrent use after
// construction since codecs are registered once and never mutated.
type Registry struct {
	codecs map[ContentType]Codec
}

// NewRegistry returns a Registry pre-populated with the four supported
// content-types: application/json, x-msgpack, pickle, and text/plain.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[ContentType]Codec)}
	r.Register(JSON, jsonCodec{})
	r.Register(MsgPack, msgpackCodec{})
	r.Register(Pickle, gobCodec{})
	r.Register(Text, textCodec{})
	return r
}

// Register installs or replaces the codec for a content-type.
func (r *Registry) Register(ct ContentType, c Codec) {
	r.codecs[ct] = c
}

// Encode marshals v using the codec registered for ct.
func (r *Registry) Encode(ct ContentType, v interface{}) ([]byte, error) {
	c, ok := r.codecs[ct]
	if !ok {
		return nil, &ErrUnknownContentType{ContentType: ct}
	}
	return c.Encode(v)
}

// Decode unmarshals data into v using the codec registered for ct.
func (r *Registry) Decode(ct ContentType, data []byte, v interface{}) error {
	c, ok := r.codecs[ct]
	if !ok {
		return &ErrUnknownContentType{ContentType: ct}
	}
	return c.Decode(data, v)
}

// Supports reports whether a codec is registered for ct.
func (r *Registry) Supports(ct ContentType) bool {
	_, ok := r.codecs[ct]
	return ok
}
