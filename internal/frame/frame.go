// Package frame implements the wire layout for requests and replies: opaque
// 9-part request and 5-part reply multipart tuples, plus the exec-context
// mappings carried in request parts 3 and 8.
//
// Frames are opaque byte tuples at the transport level (see
// internal/endpoint); this package is the only place that assigns meaning to
// part indices.
package frame

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageType identifies the kind of a request or reply frame.
type MessageType string

const (
	// Request message types.
	Handshake MessageType = "HANDSHAKE"
	Operation MessageType = "OPERATION"
	Exit      MessageType = "EXIT"
	Interrupt MessageType = "INTERRUPT"

	// Reply message types. Reply reuses Handshake from the request set.
	Reply           MessageType = "REPLY"
	Timeout         MessageType = "TIMEOUT"
	Exception       MessageType = "EXCEPTION"
	InvalidMessage  MessageType = "INVALID_MESSAGE"
)

// Op names the operation carried in request part 6.
type Op string

const (
	ReadProperty            Op = "readProperty"
	WriteProperty           Op = "writeProperty"
	DeleteProperty          Op = "deleteProperty"
	InvokeAction            Op = "invokeAction"
	ReadMultipleProperties  Op = "readMultipleProperties"
	ReadAllProperties       Op = "readAllProperties"
	WriteMultipleProperties Op = "writeMultipleProperties"
	WriteAllProperties      Op = "writeAllProperties"
)

// NewMessageID generates a 128-bit random identifier encoded as UTF-8 hex.
func NewMessageID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

// Payload is a typed value: content-type tag plus raw bytes.
type Payload struct {
	ContentType string
	Bytes       []byte
}

// Request is the typed view of the 9-part request frame:
//
//	[0] sender-addr  [1] msg-type     [2] msg-id        [3] server-exec-ctx
//	[4] thing-id     [5] object-name  [6] operation     [7] payload
//	[8] thing-exec-ctx
type Request struct {
	SenderAddr    []byte
	Type          MessageType
	MsgID         string
	ServerExecCtx ServerExecContext
	ThingID       string
	ObjectName    string
	Operation     Op
	Payload       Payload
	ThingExecCtx  ThingExecContext
}

// requestPartCount is the mandatory wire part count for a request frame.
const requestPartCount = 9

// ParseRequest decodes a raw multipart frame into a Request. It returns
// ErrMalformed if the frame does not have exactly 9 parts or if a context mapping
// fails to decode; both cases are surfaced as INVALID_MESSAGE by the
// Listener.
func ParseRequest(parts [][]byte) (*Request, error) {
	if len(parts) != requestPartCount {
		return nil, &ErrMalformed{Reason: fmt.Sprintf("expected %d parts, got %d", requestPartCount, len(parts))}
	}

	serverCtx, err := DecodeServerExecContext(parts[3])
	if err != nil {
		return nil, &ErrMalformed{Reason: fmt.Sprintf("bad server_exec_ctx: %v", err)}
	}
	thingCtx, err := DecodeThingExecContext(parts[8])
	if err != nil {
		return nil, &ErrMalformed{Reason: fmt.Sprintf("bad thing_exec_ctx: %v", err)}
	}

	req := &Request{
		SenderAddr:    parts[0],
		Type:          MessageType(parts[1]),
		MsgID:         string(parts[2]),
		ServerExecCtx: serverCtx,
		ThingID:       string(parts[4]),
		ObjectName:    string(parts[5]),
		Operation:     Op(parts[6]),
		Payload:       Payload{ContentType: defaultPayloadContentType, Bytes: parts[7]},
		ThingExecCtx:  thingCtx,
	}
	return req, nil
}

// defaultPayloadContentType is assumed for a parsed payload when the caller
// has not overridden Payload.ContentType. The 9-part wire layout has no
// dedicated content-type part; client and Thing agree on it out of band, and
// application/json is the common case.
const defaultPayloadContentType = "application/json"

// Build serializes a Request back into its 9-part wire form.
func (r *Request) Build() ([][]byte, error) {
	serverCtx, err := r.ServerExecCtx.Encode()
	if err != nil {
		return nil, err
	}
	thingCtx, err := r.ThingExecCtx.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{
		r.SenderAddr,
		[]byte(r.Type),
		[]byte(r.MsgID),
		serverCtx,
		[]byte(r.ThingID),
		[]byte(r.ObjectName),
		[]byte(r.Operation),
		r.Payload.Bytes,
		thingCtx,
	}, nil
}

// Reply is the typed view of the 5-part reply frame:
//
//	[0] receiver-addr  [1] msg-type  [2] msg-id  [3] data  [4] pre-encoded-data
type Reply struct {
	ReceiverAddr  []byte
	Type          MessageType
	MsgID         string
	Data          Payload
	PreEncoded    []byte
}

const replyPartCount = 5

// ParseReply decodes a raw multipart frame into a Reply.
func ParseReply(parts [][]byte) (*Reply, error) {
	if len(parts) != replyPartCount {
		return nil, &ErrMalformed{Reason: fmt.Sprintf("expected %d parts, got %d", replyPartCount, len(parts))}
	}
	return &Reply{
		ReceiverAddr: parts[0],
		Type:         MessageType(parts[1]),
		MsgID:        string(parts[2]),
		Data:         Payload{ContentType: defaultPayloadContentType, Bytes: parts[3]},
		PreEncoded:   parts[4],
	}, nil
}

// Build serializes a Reply back into its 5-part wire form.
func (r *Reply) Build() [][]byte {
	return [][]byte{
		r.ReceiverAddr,
		[]byte(r.Type),
		[]byte(r.MsgID),
		r.Data.Bytes,
		r.PreEncoded,
	}
}

// ErrMalformed reports a frame that could not be parsed: wrong part count or
// a JSON decode failure in one of the exec-context parts.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("frame: malformed: %s", e.Reason)
}

