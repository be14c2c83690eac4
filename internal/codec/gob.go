package codec

import (
	"bytes"
	"encoding/gob"
)

// gobCodec backs the "pickle" content-type token. Python's pickle format has
// no Go-ecosystem equivalent (it serializes arbitrary Python object graphs);
// encoding/gob is the closest Go-native self-describing binary codec and is
// used only as a stand-in handler for clients that declare this
// content-type, not as a byte-compatible pickle implementation.
type gobCodec struct{}

func (gobCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
