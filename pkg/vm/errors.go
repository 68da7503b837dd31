package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind classifies a RuntimeError by what went wrong rather than by
// message text (spec.md §7: "Kinds, not names").
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindTypeError
	KindArityMismatch
	KindArithmeticDomain
	KindUnknownProperty
	KindIndexOutOfRange
	KindMissingGlobal
	KindUnknownOpcode
	KindUnknownMetaMethod
	KindIterationError
	KindNotCallable
)

var kindNames = map[ErrorKind]string{
	KindInternal:          "internal",
	KindTypeError:         "type-error",
	KindArityMismatch:     "arity-mismatch",
	KindArithmeticDomain:  "arithmetic-domain",
	KindUnknownProperty:   "unknown-property",
	KindIndexOutOfRange:   "index-out-of-range",
	KindMissingGlobal:     "missing-global",
	KindUnknownOpcode:     "unknown-opcode",
	KindUnknownMetaMethod: "unknown-meta-method",
	KindIterationError:    "iteration-error",
	KindNotCallable:       "not-callable",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// StackFrame is one call-stack entry captured at unwind time (spec.md §4.10
// "pop each frame into a call-stack snapshot attached to the error").
type StackFrame struct {
	Name string
	IP   int
}

// RuntimeError is a runtime error with its kind and, once it has propagated
// past every rescue site, a full stack-trace snapshot (spec.md §7). StateID
// names the State that raised it, so a host logging re-entrant
// execute_by_function_index calls from several States at once can tell
// their stack traces apart.
type RuntimeError struct {
	Kind       ErrorKind
	Message    string
	StateID    uuid.UUID
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[state %s] %s: %s", e.StateID, e.Kind, e.Message)

	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			fmt.Fprintf(&b, "\n  at %s [IP: %d]", frame.Name, frame.IP)
		}
	}

	return b.String()
}
