// Package examplenative is a worked example of the native ABI pkg/value
// and pkg/vm define: a print native function and a Clock native model,
// wired into a State by Register. It is not a standard library for
// Clover programs (spec.md leaves that entirely to the embedding host) —
// just the smallest complete demonstration of both halves of the ABI
// (NativeFunc and NativeInstance/NativeModelDescriptor), exercised by
// pkg/clover's own tests.
package examplenative

import (
	"fmt"

	"github.com/cloverlang/clover/pkg/value"
)

// Host is the subset of clover.State a caller needs to register the
// example native surface, named independently so this package doesn't
// import pkg/clover (which, in turn, imports this one from its tests).
type Host interface {
	AddNativeFunction(name string, fn value.NativeFunc)
	AddNativeModel(desc *value.NativeModelDescriptor) int
}

// Register binds "print" and the "Clock" model onto host.
func Register(host Host) {
	host.AddNativeFunction("print", printFunc)
	host.AddNativeModel(&value.NativeModelDescriptor{
		Name:      "Clock",
		Construct: constructClock,
		ModelGet: func(key string) (value.Value, bool) {
			if key == "EPOCH_NAME" {
				return value.Str("ticks"), true
			}
			return nil, false
		},
	})
}

// printFunc implements the "print" native function: one line per call,
// space-separated arguments, stringified with each Value's own String().
func printFunc(_ value.Caller, args []value.Value) (value.Value, error) {
	parts := make([]interface{}, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Println(parts...)
	return value.Null{}, nil
}

func constructClock(_ value.Caller, args []value.Value) (value.Value, error) {
	start := int64(0)
	if len(args) > 0 {
		if n, ok := args[0].(value.Integer); ok {
			start = int64(n)
		}
	}
	return &clock{ticks: start}, nil
}

// clock is a minimal value.NativeInstance: a single mutable counter
// exposed as a "ticks" property and a "tick" method.
type clock struct {
	ticks int64
}

func (c *clock) Kind() value.Kind   { return value.KindNativeInstance }
func (c *clock) String() string     { return fmt.Sprintf("<Clock ticks=%d>", c.ticks) }

func (c *clock) InstanceGet(name string) (value.Value, error) {
	switch name {
	case "ticks":
		return value.Integer(c.ticks), nil
	case "tick":
		return value.InstanceNativeFunction{Instance: c, Method: "tick"}, nil
	default:
		return nil, fmt.Errorf("Clock has no property or method %q", name)
	}
}

func (c *clock) InstanceSet(name string, val value.Value) error {
	if name != "ticks" {
		return fmt.Errorf("Clock has no settable property %q", name)
	}
	n, ok := val.(value.Integer)
	if !ok {
		return fmt.Errorf("Clock.ticks must be an Integer, got %s", val.Kind())
	}
	c.ticks = int64(n)
	return nil
}

func (c *clock) Call(_ value.Caller, method string, args []value.Value) (value.Value, error) {
	if method != "tick" {
		return nil, fmt.Errorf("Clock has no method %q", method)
	}
	step := int64(1)
	if len(args) > 0 {
		if n, ok := args[0].(value.Integer); ok {
			step = int64(n)
		}
	}
	c.ticks += step
	return value.Integer(c.ticks), nil
}

func (c *clock) IndexGet(value.Value) (value.Value, error) {
	return nil, fmt.Errorf("Clock is not indexable")
}

func (c *clock) IndexSet(value.Value, value.Value) error {
	return fmt.Errorf("Clock is not indexable")
}

func (c *clock) RawInt() (int64, bool)     { return c.ticks, true }
func (c *clock) RawFloat() (float64, bool) { return 0, false }
func (c *clock) RawBool() (bool, bool)     { return false, false }
func (c *clock) RawBytes() ([]byte, bool)  { return nil, false }
