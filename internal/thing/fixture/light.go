// Package fixture provides a minimal in-memory Thing used by broker tests
// and cmd/brokerd's -demo flag, the way the teacher's agents/testutil
// package backs agent tests without pulling in a real external dependency.
package fixture

import (
	"fmt"
	"time"

	"github.com/tenzoki/wotbroker/internal/thing"
)

// Light is a toy Thing exposing a writable "brightness" property and two
// actions exercised by the end-to-end scenarios: "sleep" (for invocation and
// execution timeout tests) and "divide" (for the exception-path test).
type Light struct {
	id         string
	brightness int
	publish    thing.PublishFunc
}

// NewLight returns a Light Thing with the given id and starting brightness.
func NewLight(id string, brightness int) *Light {
	return &Light{id: id, brightness: brightness, publish: func(string, []byte) {}}
}

func (l *Light) ID() string { return l.id }

func (l *Light) SetPublish(pub thing.PublishFunc) {
	if pub != nil {
		l.publish = pub
	}
}

func (l *Light) PropertyNames() []string {
	return []string{"brightness"}
}

func (l *Light) Property(name string) (thing.Property, bool) {
	if name != "brightness" {
		return nil, false
	}
	return &thing.FuncProperty{
		PropName: "brightness",
		Get_:     func() (interface{}, error) { return l.brightness, nil },
		Set_: func(value interface{}) error {
			n, err := asInt(value)
			if err != nil {
				return err
			}
			l.brightness = n
			l.publish("brightness-changed", []byte(fmt.Sprintf("%d", n)))
			return nil
		},
	}, true
}

func (l *Light) Action(name string) (thing.Action, bool) {
	switch name {
	case "sleep":
		return &thing.FuncAction{ActionName: "sleep", Invoke_: l.sleep}, true
	case "divide":
		return &thing.FuncAction{ActionName: "divide", Invoke_: l.divide}, true
	default:
		return nil, false
	}
}

func (l *Light) sleep(args []interface{}, _ map[string]interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sleep: expected 1 argument, got %d", len(args))
	}
	seconds, err := asFloat(args[0])
	if err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return nil, nil
}

func (l *Light) divide(args []interface{}, _ map[string]interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("divide: expected 2 arguments, got %d", len(args))
	}
	a, err := asFloat(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asFloat(args[1])
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, errZeroDivision
	}
	return a / b, nil
}

var errZeroDivision = fmt.Errorf("ZeroDivisionError: division by zero")

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
