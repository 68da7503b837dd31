// Package value defines Clover's runtime value model: the tagged variant
// every stack slot, local, and model property holds, plus the native-object
// ABI host code implements to extend it.
//
// spec.md's value model calls its shared containers "reference-counted";
// this package instead leans on Go's own garbage collector and represents
// String/Array/Instance/NativeInstance with pointer (or, for String, plain
// immutable-string) semantics. Aliasing two stack slots to the same *Array
// already gives the required "mutation through any alias is visible"
// invariant — hand-rolled refcounts would only reproduce collection timing
// Go already provides.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a Value's variant.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindFunction
	KindInstanceFunction
	KindNativeFunction
	KindInstanceNativeFunction
	KindModel
	KindNativeModel
	KindString
	KindInstance
	KindNativeInstance
	KindArray
)

var kindNames = map[Kind]string{
	KindNull: "Null", KindInteger: "Integer", KindFloat: "Float", KindBoolean: "Boolean",
	KindFunction: "Function", KindInstanceFunction: "InstanceFunction",
	KindNativeFunction: "NativeFunction", KindInstanceNativeFunction: "InstanceNativeFunction",
	KindModel: "Model", KindNativeModel: "NativeModel",
	KindString: "String", KindInstance: "Instance", KindNativeInstance: "NativeInstance",
	KindArray: "Array",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Value is implemented by every runtime value variant.
type Value interface {
	Kind() Kind
	String() string
}

// Caller is the re-entry surface a NativeFunction or NativeInstance.Call
// implementation uses to invoke back into scripted code (spec.md §5:
// "native functions run synchronously and may call back into the VM").
// pkg/vm.State implements it; defining it here (rather than importing
// pkg/vm) keeps pkg/value free of a dependency on its own consumer.
type Caller interface {
	Call(callee Value, args []Value) (Value, error)
}

// NativeFunc is the signature every host-registered native function
// implements (spec.md §6: "fn(&mut State, &[Value]) -> Value | RuntimeError").
type NativeFunc func(caller Caller, args []Value) (Value, error)

// ---- Primitives ----

type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }

type Integer int64

func (Integer) Kind() Kind       { return KindInteger }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

type Float float64

func (Float) Kind() Kind       { return KindFloat }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

type Boolean bool

func (Boolean) Kind() Kind       { return KindBoolean }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

// Str is an immutable string value. Unlike Array/Instance it needs no
// pointer identity: Go strings can't be mutated in place, so two aliases of
// the same Str can never observe each other diverge.
type Str string

func (Str) Kind() Kind      { return KindString }
func (s Str) String() string { return string(s) }

// ---- Callables ----

// Function is a reference to a compiled function by its global index into
// Program.Functions.
type Function struct{ Index int }

func (Function) Kind() Kind { return KindFunction }
func (f Function) String() string {
	return fmt.Sprintf("<function #%d>", f.Index)
}

// InstanceFunction binds a compiled instance method to its receiver; local
// slot 0 of the call is Receiver (spec.md §3, §4.9).
type InstanceFunction struct {
	Receiver Value
	Index    int
}

func (InstanceFunction) Kind() Kind { return KindInstanceFunction }
func (f InstanceFunction) String() string {
	return fmt.Sprintf("<method #%d bound to %s>", f.Index, f.Receiver)
}

// NativeFunction wraps a host-registered Go function.
type NativeFunction struct {
	Name string
	Fn   NativeFunc
}

func (NativeFunction) Kind() Kind { return KindNativeFunction }
func (f NativeFunction) String() string {
	return fmt.Sprintf("<native function %s>", f.Name)
}

// InstanceNativeFunction is a bound method reference into a NativeInstance's
// own call dispatch (spec.md §4.9: InstanceNativeFunction(native_instance,
// method_name)).
type InstanceNativeFunction struct {
	Instance NativeInstance
	Method   string
}

func (InstanceNativeFunction) Kind() Kind { return KindInstanceNativeFunction }
func (f InstanceNativeFunction) String() string {
	return fmt.Sprintf("<native method %s>", f.Method)
}

// ---- Constructibles ----

// Model is a reference to a compiled model by its global index into
// Program.Models.
type Model struct{ Index int }

func (Model) Kind() Kind         { return KindModel }
func (m Model) String() string   { return fmt.Sprintf("<model #%d>", m.Index) }

// NativeModel is a reference to a host-registered native model constructor.
type NativeModel struct {
	Index int
	Name  string
}

func (NativeModel) Kind() Kind       { return KindNativeModel }
func (m NativeModel) String() string { return fmt.Sprintf("<native model %s>", m.Name) }

// ---- Shared containers ----

// Instance is a live ModelInstance: a fixed-size, insertion-ordered vector
// of property values sized at construction to its model's property count
// (spec.md §3 invariant).
type Instance struct {
	ModelIndex int
	Properties []Value
}

func (*Instance) Kind() Kind { return KindInstance }
func (i *Instance) String() string {
	return fmt.Sprintf("<instance of model #%d>", i.ModelIndex)
}

// Array is an ordered, mutable vector of values. IndexSet through any alias
// of the same *Array is visible through every other alias.
type Array struct {
	Elements []Value
}

func (*Array) Kind() Kind { return KindArray }
func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Truthy implements Clover's boolean coercion for Not and JumpIf: Null and
// Boolean(false) are falsy, everything else (including Integer(0)) is truthy.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case Null:
		return false
	case Boolean:
		return bool(x)
	default:
		return true
	}
}
