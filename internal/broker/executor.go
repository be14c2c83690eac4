package broker

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"github.com/tenzoki/wotbroker/internal/codec"
	"github.com/tenzoki/wotbroker/internal/frame"
	"github.com/tenzoki/wotbroker/internal/thing"
)

// logFunc appends one line to the current request's scoped execution-log
// buffer, or discards it when fetch_execution_logs is false.
type logFunc func(format string, args ...interface{})

// opHandler implements one operation's semantics against the Thing bound
// to an Executor. The tagged Op enum plus this table replaces dynamic
// attribute dispatch with a static, type-checked lookup.
type opHandler func(e *Executor, req *frame.Request, logf logFunc) (interface{}, error)

var opTable = map[frame.Op]opHandler{
	frame.ReadProperty:            opReadProperty,
	frame.WriteProperty:           opWriteProperty,
	frame.DeleteProperty:          opDeleteProperty,
	frame.InvokeAction:            opInvokeAction,
	frame.ReadMultipleProperties:  opReadMultipleProperties,
	frame.ReadAllProperties:       opReadAllProperties,
	frame.WriteMultipleProperties: opWriteMultipleProperties,
	frame.WriteAllProperties:      opWriteAllProperties,
}

// Executor is the single-threaded loop bound to one Thing, generalizing
// the teacher's per-connection handleRequest method-dispatch-table from a
// fixed JSON-RPC method switch to the eight Thing operations resolved
// through opTable.
type Executor struct {
	rec    *thing.Record
	codecs *codec.Registry
	debug  bool
}

// NewExecutor returns an Executor bound to rec, decoding/encoding payloads
// through codecs.
func NewExecutor(rec *thing.Record, codecs *codec.Registry, debug bool) *Executor {
	return &Executor{rec: rec, codecs: codecs, debug: debug}
}

// Run reads requests off the Executor endpoint until it is closed.
// Intended to run in its own goroutine, one per attached Thing.
func (e *Executor) Run() {
	for {
		parts, err := e.rec.ExecutorEndpoint.RecvMultipart()
		if err != nil {
			if e.debug {
				log.Printf("broker: executor %s: endpoint closed: %v", e.rec.ID, err)
			}
			return
		}
		e.handle(parts)
	}
}

func (e *Executor) handle(parts [][]byte) {
	req, err := frame.ParseRequest(parts)
	if err != nil {
		// The Dispatcher built this frame; a parse failure here means a bug
		// in Request.Build/ParseRequest, not a client error, but the client
		// still needs a reply on the other side of the tunnel.
		e.sendException(safePart(parts, 0), string(safePart(parts, 2)), UserException.String(),
			fmt.Errorf("malformed request reached executor: %w", err), false, nil)
		return
	}

	var logs []string
	logf := func(string, ...interface{}) {}
	if req.ThingExecCtx.FetchExecutionLogs {
		logs = []string{}
		logf = func(format string, args ...interface{}) {
			logs = append(logs, fmt.Sprintf(format, args...))
		}
	}

	handler, ok := opTable[req.Operation]
	if !ok {
		e.sendException(req.SenderAddr, req.MsgID, "UNIMPLEMENTED",
			fmt.Errorf("unimplemented operation %q", req.Operation), req.ThingExecCtx.FetchExecutionLogs, logs)
		return
	}

	value, err := handler(e, req, logf)
	if err != nil {
		var opErr *OpError
		if errors.As(err, &opErr) && (opErr.Kind == UnknownTarget || opErr.Kind == Malformed) {
			e.sendInvalid(req.SenderAddr, req.MsgID, opErr.Error())
			return
		}
		kind := UserException.String()
		if errors.As(err, &opErr) {
			kind = opErr.Kind.String()
		}
		e.sendException(req.SenderAddr, req.MsgID, kind, err, req.ThingExecCtx.FetchExecutionLogs, logs)
		return
	}

	e.sendSuccess(req.SenderAddr, req.MsgID, value, req.ThingExecCtx.FetchExecutionLogs, logs)
}

func (e *Executor) sendSuccess(receiverAddr []byte, msgID string, value interface{}, withLogs bool, logs []string) {
	var payload interface{} = value
	if withLogs {
		payload = map[string]interface{}{"return_value": value, "execution_logs": logs}
	}
	data, err := e.codecs.Encode(codec.JSON, payload)
	if err != nil {
		e.sendException(receiverAddr, msgID, UserException.String(), err, withLogs, logs)
		return
	}
	reply := &frame.Reply{
		ReceiverAddr: receiverAddr,
		Type:         frame.Reply,
		MsgID:        msgID,
		Data:         frame.Payload{ContentType: string(codec.JSON), Bytes: data},
	}
	e.send(reply)
}

// exceptionType narrows kind down to the concrete error type when cause
// follows the fixture/thing convention of naming it up front ("ZeroDivisionError:
// division by zero"); otherwise it falls back to the broker-level taxonomy
// kind (UNSUPPORTED, UNIMPLEMENTED, and so on).
func exceptionType(kind string, cause error) string {
	if kind != UserException.String() {
		return kind
	}
	name, _, ok := strings.Cut(cause.Error(), ": ")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return kind
	}
	return name
}

func (e *Executor) sendException(receiverAddr []byte, msgID string, kind string, cause error, withLogs bool, logs []string) {
	body := map[string]interface{}{
		"exception": map[string]interface{}{
			"type":      exceptionType(kind, cause),
			"message":   cause.Error(),
			"traceback": string(debug.Stack()),
		},
	}
	if withLogs {
		body["execution_logs"] = logs
	}
	data, err := e.codecs.Encode(codec.JSON, body)
	if err != nil {
		data = []byte(`{"exception":{"type":"USER_EXCEPTION","message":"failed to encode exception detail","traceback":""}}`)
	}
	reply := &frame.Reply{
		ReceiverAddr: receiverAddr,
		Type:         frame.Exception,
		MsgID:        msgID,
		Data:         frame.Payload{ContentType: string(codec.JSON), Bytes: data},
	}
	e.send(reply)
}

func (e *Executor) sendInvalid(receiverAddr []byte, msgID string, reason string) {
	reply := &frame.Reply{
		ReceiverAddr: receiverAddr,
		Type:         frame.InvalidMessage,
		MsgID:        msgID,
		Data:         frame.Payload{ContentType: "text/plain", Bytes: []byte(reason)},
	}
	e.send(reply)
}

func (e *Executor) send(reply *frame.Reply) {
	if err := e.rec.ExecutorEndpoint.SendMultipart(reply.Build()); err != nil && e.debug {
		log.Printf("broker: executor %s: reply send failed: %v", e.rec.ID, err)
	}
}

func (e *Executor) decodePayloadInto(req *frame.Request, target interface{}) error {
	if len(req.Payload.Bytes) == 0 {
		return nil
	}
	return e.codecs.Decode(codec.ContentType(req.Payload.ContentType), req.Payload.Bytes, target)
}

func opReadProperty(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	prop, ok := e.rec.Thing.Property(req.ObjectName)
	if !ok {
		return nil, newOpError(UnknownTarget, "readProperty", fmt.Errorf("unknown property %q", req.ObjectName))
	}
	logf("reading property %s", req.ObjectName)
	return prop.Get()
}

func opWriteProperty(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	prop, ok := e.rec.Thing.Property(req.ObjectName)
	if !ok {
		return nil, newOpError(UnknownTarget, "writeProperty", fmt.Errorf("unknown property %q", req.ObjectName))
	}
	var value interface{}
	if err := e.decodePayloadInto(req, &value); err != nil {
		return nil, newOpError(Malformed, "writeProperty", err)
	}
	logf("writing property %s", req.ObjectName)
	if err := prop.Set(value); err != nil {
		if errors.Is(err, thing.ErrNotWritable) {
			return nil, newOpError(Unsupported, "writeProperty", err)
		}
		return nil, err
	}
	return nil, nil
}

func opDeleteProperty(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	prop, ok := e.rec.Thing.Property(req.ObjectName)
	if !ok {
		return nil, newOpError(UnknownTarget, "deleteProperty", fmt.Errorf("unknown property %q", req.ObjectName))
	}
	logf("deleting property %s", req.ObjectName)
	if err := prop.Delete(); err != nil {
		if errors.Is(err, thing.ErrNoDeleteHook) {
			return nil, newOpError(Unsupported, "deleteProperty", err)
		}
		return nil, err
	}
	return nil, nil
}

func opInvokeAction(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	action, ok := e.rec.Thing.Action(req.ObjectName)
	if !ok {
		return nil, newOpError(UnknownTarget, "invokeAction", fmt.Errorf("unknown action %q", req.ObjectName))
	}
	var raw map[string]interface{}
	if err := e.decodePayloadInto(req, &raw); err != nil {
		return nil, newOpError(Malformed, "invokeAction", err)
	}
	var args []interface{}
	if v, ok := raw["__args__"]; ok {
		if arr, ok := v.([]interface{}); ok {
			args = arr
		}
		delete(raw, "__args__")
	}
	logf("invoking action %s with %d positional args", req.ObjectName, len(args))
	return action.Invoke(args, raw)
}

func opReadAllProperties(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	return e.readProperties(e.rec.Thing.PropertyNames(), logf)
}

func opReadMultipleProperties(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	var names []string
	if err := e.decodePayloadInto(req, &names); err != nil {
		return nil, newOpError(Malformed, "readMultipleProperties", err)
	}
	if len(names) == 0 {
		names = e.rec.Thing.PropertyNames()
	}
	return e.readProperties(names, logf)
}

func (e *Executor) readProperties(names []string, logf logFunc) (interface{}, error) {
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		prop, ok := e.rec.Thing.Property(name)
		if !ok {
			return nil, newOpError(UnknownTarget, "readProperties", fmt.Errorf("unknown property %q", name))
		}
		value, err := prop.Get()
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	logf("read %d properties", len(out))
	return out, nil
}

func opWriteMultipleProperties(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	var values map[string]interface{}
	if err := e.decodePayloadInto(req, &values); err != nil {
		return nil, newOpError(Malformed, "writeMultipleProperties", err)
	}
	return e.writeProperties(values, logf)
}

func opWriteAllProperties(e *Executor, req *frame.Request, logf logFunc) (interface{}, error) {
	var values map[string]interface{}
	if err := e.decodePayloadInto(req, &values); err != nil {
		return nil, newOpError(Malformed, "writeAllProperties", err)
	}
	for name := range values {
		if prop, ok := e.rec.Thing.Property(name); ok && !prop.Writable() {
			delete(values, name)
		}
	}
	return e.writeProperties(values, logf)
}

// writeProperties applies each name/value pair independently. A failure on
// one property does not prevent the others from being applied: each write
// is atomic on its own, never across the whole batch.
func (e *Executor) writeProperties(values map[string]interface{}, logf logFunc) (interface{}, error) {
	applied := make([]string, 0, len(values))
	failed := make(map[string]string)
	for name, value := range values {
		prop, ok := e.rec.Thing.Property(name)
		if !ok {
			failed[name] = "unknown property"
			continue
		}
		if err := prop.Set(value); err != nil {
			failed[name] = err.Error()
			continue
		}
		applied = append(applied, name)
	}
	logf("wrote %d of %d requested properties", len(applied), len(values))
	result := map[string]interface{}{"applied": applied}
	if len(failed) > 0 {
		result["errors"] = failed
	}
	return result, nil
}
