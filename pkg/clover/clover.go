// Package clover is the embedding facade over the compiler and VM: the
// surface a host program uses instead of reaching into pkg/compiler and
// pkg/vm directly (spec.md §6, original_source's clover/src/lib.rs
// embedding surface). It mirrors the runSourceFile/runBytecodeFile split
// smog/cmd/smog/main.go hand-rolls, as two loader functions returning one
// Program value, plus a thin State wrapper that forwards to pkg/vm.State
// and exposes the native-registration calls a host needs before running.
package clover

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/compiler"
	"github.com/cloverlang/clover/pkg/diag"
	"github.com/cloverlang/clover/pkg/storage"
	"github.com/cloverlang/clover/pkg/value"
	"github.com/cloverlang/clover/pkg/vm"
)

// CompileFile compiles sourcePath (and everything it transitively
// includes) through s, the traditional source -> AST -> bytecode path.
func CompileFile(s storage.Storage, sourcePath string) (*bytecode.Program, *diag.List) {
	return compiler.CompileFile(s, sourcePath)
}

// LoadProgram deserializes a previously compiled .lucky program, the fast
// path that skips parsing and compilation entirely. A version mismatch is
// only a warning (spec.md §4.11: "Mismatch prints a warning but continues",
// §7: "Binary-format version mismatches are warnings, not errors") — the
// program is still returned and still runs.
func LoadProgram(r io.Reader) (*bytecode.Program, error) {
	prog, versionMismatch, err := bytecode.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "clover: load program")
	}
	if versionMismatch {
		fmt.Fprintln(os.Stderr, "clover: warning: program was compiled by a different bytecode format version")
	}
	return prog, nil
}

// State wraps a pkg/vm.State with the embedding-facing surface: compile or
// load a Program first, then construct a State against it, register any
// native functions and models the host wants to expose, and Run.
type State struct {
	vm *vm.State
}

// New creates a State bound to prog. Call AddNativeFunction/AddNativeModel
// to extend its Globals before calling Run.
func New(prog *bytecode.Program) *State {
	return &State{vm: vm.New(prog)}
}

// AddNativeFunction registers a NativeFunction callable from script as a
// global named name.
func (s *State) AddNativeFunction(name string, fn value.NativeFunc) {
	s.vm.AddNativeFunction(name, fn)
}

// AddNativeModel registers a NativeModel constructor, callable from script
// the same way a compiled model is, and returns its host-side index.
func (s *State) AddNativeModel(desc *value.NativeModelDescriptor) int {
	return s.vm.AddNativeModel(desc)
}

// Run executes the program's entry point.
func (s *State) Run() (value.Value, error) {
	return s.vm.Execute()
}

// Call invokes callee (any callable Value: a compiled Function, a bound
// InstanceFunction, or a host-registered NativeFunction/NativeModel) the
// same way a script-level OpCall would, letting a host drive the VM
// directly instead of only through its entry point.
func (s *State) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return s.vm.Call(callee, args)
}

// GetProperty reads an instance (or native instance) property by name, the
// embedding-facing equivalent of OpInstanceGet.
func (s *State) GetProperty(obj value.Value, name string) (value.Value, error) {
	return s.vm.GetObjectPropertyByName(obj, name)
}
