package frame

import (
	"encoding/json"
	"time"
)

// defaultInvocationTimeout and defaultExecutionTimeout are the (5, 5, false)
// defaults assumed when a request carries no server_exec_ctx.
const (
	defaultInvocationTimeout = 5 * time.Second
	defaultExecutionTimeout  = 5 * time.Second
)

// ServerExecContext is the immutable decode of request part 3: a plain value
// type built once by Decode, never a map callers mutate in place.
type ServerExecContext struct {
	// InvocationTimeout is nil when the client declared invocation_timeout
	// as JSON null, meaning "no invocation deadline".
	InvocationTimeout *time.Duration
	// ExecutionTimeout is nil when the client declared execution_timeout as
	// JSON null, meaning "no execution deadline".
	ExecutionTimeout *time.Duration
	Oneway           bool
}

// wireServerExecContext is the JSON shape of server_exec_ctx: seconds as
// float64, null meaning "no timeout".
type wireServerExecContext struct {
	InvocationTimeout *float64 `json:"invocation_timeout"`
	ExecutionTimeout  *float64 `json:"execution_timeout"`
	Oneway            bool     `json:"oneway"`
}

// DecodeServerExecContext parses request part 3. An empty/absent part
// yields the documented defaults: invocation_timeout=5s,
// execution_timeout=5s, oneway=false.
func DecodeServerExecContext(raw []byte) (ServerExecContext, error) {
	if len(raw) == 0 {
		five := defaultInvocationTimeout
		fiveExec := defaultExecutionTimeout
		return ServerExecContext{InvocationTimeout: &five, ExecutionTimeout: &fiveExec, Oneway: false}, nil
	}

	var wire struct {
		InvocationTimeout json.RawMessage `json:"invocation_timeout"`
		ExecutionTimeout  json.RawMessage `json:"execution_timeout"`
		Oneway            bool            `json:"oneway"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ServerExecContext{}, err
	}

	ctx := ServerExecContext{Oneway: wire.Oneway}

	inv, err := decodeOptionalSeconds(wire.InvocationTimeout, defaultInvocationTimeout)
	if err != nil {
		return ServerExecContext{}, err
	}
	ctx.InvocationTimeout = inv

	exec, err := decodeOptionalSeconds(wire.ExecutionTimeout, defaultExecutionTimeout)
	if err != nil {
		return ServerExecContext{}, err
	}
	ctx.ExecutionTimeout = exec

	return ctx, nil
}

// decodeOptionalSeconds decodes a field that may be absent (use def),
// explicit JSON null (no timeout, returns nil), or a number of seconds.
func decodeOptionalSeconds(raw json.RawMessage, def time.Duration) (*time.Duration, error) {
	if len(raw) == 0 {
		d := def
		return &d, nil
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return nil, err
	}
	d := time.Duration(seconds * float64(time.Second))
	return &d, nil
}

// Encode serializes the context back to its wire JSON shape.
func (c ServerExecContext) Encode() ([]byte, error) {
	wire := wireServerExecContext{Oneway: c.Oneway}
	if c.InvocationTimeout != nil {
		s := c.InvocationTimeout.Seconds()
		wire.InvocationTimeout = &s
	}
	if c.ExecutionTimeout != nil {
		s := c.ExecutionTimeout.Seconds()
		wire.ExecutionTimeout = &s
	}
	return json.Marshal(wire)
}

// ThingExecContext is the immutable decode of request part 8.
type ThingExecContext struct {
	FetchExecutionLogs bool
}

// DecodeThingExecContext parses request part 8. An empty/absent part yields
// fetch_execution_logs=false.
func DecodeThingExecContext(raw []byte) (ThingExecContext, error) {
	if len(raw) == 0 {
		return ThingExecContext{}, nil
	}
	var wire struct {
		FetchExecutionLogs bool `json:"fetch_execution_logs"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ThingExecContext{}, err
	}
	return ThingExecContext{FetchExecutionLogs: wire.FetchExecutionLogs}, nil
}

// Encode serializes the context back to its wire JSON shape.
func (c ThingExecContext) Encode() ([]byte, error) {
	return json.Marshal(struct {
		FetchExecutionLogs bool `json:"fetch_execution_logs"`
	}{FetchExecutionLogs: c.FetchExecutionLogs})
}
