package codec

import "github.com/vmihailenco/msgpack/v5"

// msgpackCodec implements Codec for x-msgpack, a more compact binary
// alternative to JSON for large property/action payloads.
type msgpackCodec struct{}

func (msgpackCodec) Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return msgpack.Unmarshal(data, v)
}
