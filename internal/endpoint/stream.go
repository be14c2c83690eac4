package endpoint

import (
	"encoding/binary"
	"fmt"
	"io"
)

// lengthPrefixSize is the width of the uint32 length prefix preceding each
// part on a stream transport, matching the 4-byte little-endian prefix
// backkem-matter's StreamWriter/StreamReader use for TCP framing.
const lengthPrefixSize = 4

// maxPartSize bounds a single part to guard against a corrupt or hostile
// length prefix causing an unbounded allocation.
const maxPartSize = 64 << 20 // 64MiB

// writeMultipart writes one multipart frame to w as a part count followed by
// length-prefixed parts: uint32(partCount), then for each part
// uint32(len(part)) followed by its bytes. Opaque byte tuples (internal/frame's
// 9-part request, 5-part reply) have no self-delimiting structure the way the
// teacher's JSON objects do, so each part needs an explicit length.
func writeMultipart(w io.Writer, parts [][]byte) error {
	var countBuf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(parts)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, part := range parts {
		var lenBuf [lengthPrefixSize]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(part)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if len(part) == 0 {
			continue
		}
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// readMultipart reads one multipart frame written by writeMultipart.
func readMultipart(r io.Reader) ([][]byte, error) {
	var countBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	if count > 64 {
		return nil, fmt.Errorf("endpoint: implausible part count %d", count)
	}

	parts := make([][]byte, count)
	for i := range parts {
		var lenBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n > maxPartSize {
			return nil, fmt.Errorf("endpoint: part %d exceeds max size: %d", i, n)
		}
		if n == 0 {
			parts[i] = []byte{}
			continue
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		parts[i] = buf
	}
	return parts, nil
}
