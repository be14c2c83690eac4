package codec

import "fmt"

// textCodec implements Codec for text/plain: payloads are passed through as
// raw bytes, with Encode accepting either a string or a []byte.
type textCodec struct{}

func (textCodec) Encode(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case nil:
		return nil, nil
	default:
		return []byte(fmt.Sprintf("%v", t)), nil
	}
}

func (textCodec) Decode(data []byte, v interface{}) error {
	switch p := v.(type) {
	case *[]byte:
		*p = data
	case *string:
		*p = string(data)
	default:
		return fmt.Errorf("codec: text/plain decode target must be *string or *[]byte, got %T", v)
	}
	return nil
}
