// Package vm implements Clover's stack-based virtual machine: the State that
// owns a loaded Program, its call stack of Frames, and the instruction
// dispatch loop that drives them (spec.md §4.9–§4.10, §11).
//
// Architecture:
//
// State is the direct descendant of smog/pkg/vm.VM's fixed fields (stack,
// locals, globals, constants, callStack) generalized three ways: locals are
// per-Frame instead of one shared 256-slot array (Clover functions nest via
// real Call/Return, not smog's single flat Run), constants are promoted from
// bytecode.ConstantValue to live value.Value once at load time, and the
// call stack is walked on error to find the nearest rescue site instead of
// smog's non-local-return home-context search.
//
// Frames share one value stack (State.stack); OpCall pushes a Frame and lets
// the same dispatch loop keep running against its instructions — no Go
// recursion — so a deeply-nested scripted call chain costs Go stack space
// only when a NativeFunction or a meta-method re-enters the VM (§5 "native
// functions run synchronously and may call back into the VM").
package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/value"
)

// Frame is one activation of a compiled Function: its own local slots, an
// instruction pointer, and the value-stack depth it started at (used by
// OpReturn's collapse rule and by rescue unwinding to discard a failed
// frame's leftover operands).
type Frame struct {
	Function   *bytecode.Function
	Locals     []value.Value
	pc         int
	entryDepth int
}

// State is one Clover VM instance: a loaded Program (as live values), a
// shared value stack, the active call stack, and the host-injected globals
// and native models a running program can reach (spec.md §6 embedding API).
//
// ID tags every State with a run identifier purely for RuntimeError stack
// traces — re-entrant execute_by_function_index calls from host logging
// code are otherwise indistinguishable in a shared log stream.
type State struct {
	ID uuid.UUID

	Program *bytecode.Program

	// Constants are Program.Constants promoted to live value.Value: a
	// ConstModelIndex/ConstFunctionIndex constant becomes a value.Model or
	// value.Function reference here, the one conversion bytecode.go's doc
	// comment defers to "when a State loads the Program".
	Constants []value.Value

	// ContextLocals are the program's top-level ("context") locals, shared
	// across every file that was compiled into this Program.
	ContextLocals []value.Value

	Globals map[string]value.Value

	nativeModels map[int]*value.NativeModelDescriptor

	stack  []value.Value
	frames []*Frame
}

// New creates a State ready to run prog. Globals start empty; the embedder
// registers them with AddNativeFunction/AddNativeModel before calling
// Execute (spec.md §6).
func New(prog *bytecode.Program) *State {
	s := &State{
		ID:           uuid.New(),
		Program:      prog,
		Globals:      map[string]value.Value{},
		nativeModels: map[int]*value.NativeModelDescriptor{},
	}
	s.loadConstants()
	s.loadContextLocals()
	return s
}

// loadConstants converts every compile-time bytecode.ConstantValue into a
// runtime value.Value once, up front, so instruction dispatch never has to
// branch on "is this constant still a compile-time tag or a live value".
func (s *State) loadConstants() {
	s.Constants = make([]value.Value, len(s.Program.Constants))
	for i, c := range s.Program.Constants {
		switch c.Kind {
		case bytecode.ConstNull:
			s.Constants[i] = value.Null{}
		case bytecode.ConstTrue:
			s.Constants[i] = value.Boolean(true)
		case bytecode.ConstFalse:
			s.Constants[i] = value.Boolean(false)
		case bytecode.ConstInteger:
			s.Constants[i] = value.Integer(c.Int)
		case bytecode.ConstFloat:
			s.Constants[i] = value.Float(c.Flt)
		case bytecode.ConstString:
			s.Constants[i] = value.Str(c.Str)
		case bytecode.ConstModelIndex:
			s.Constants[i] = value.Model{Index: int(c.Int)}
		case bytecode.ConstFunctionIndex:
			s.Constants[i] = value.Function{Index: int(c.Int)}
		default:
			s.Constants[i] = value.Null{}
		}
	}
}

func (s *State) loadContextLocals() {
	s.ContextLocals = make([]value.Value, s.Program.LocalCount)
	for i := range s.ContextLocals {
		s.ContextLocals[i] = value.Null{}
	}
	for localIdx, constIdx := range s.Program.LocalValues {
		if constIdx >= 0 && constIdx < len(s.Constants) {
			s.ContextLocals[localIdx] = s.Constants[constIdx]
		}
	}
}

// AddNativeFunction registers a host function as a global callable under
// name (spec.md §6: "state.add_native_function(name, fn)").
func (s *State) AddNativeFunction(name string, fn value.NativeFunc) {
	s.Globals[name] = value.NativeFunction{Name: name, Fn: fn}
}

// AddNativeModel registers a host-backed model constructor as a global under
// desc.Name, returning the index NativeModel values reference (spec.md §6:
// "state.add_native_model(name, model) -> id").
func (s *State) AddNativeModel(desc *value.NativeModelDescriptor) int {
	id := len(s.nativeModels)
	s.nativeModels[id] = desc
	s.Globals[desc.Name] = value.NativeModel{Index: id, Name: desc.Name}
	return id
}

// ---- value stack ----

func (s *State) push(v value.Value) {
	s.stack = append(s.stack, v)
}

func (s *State) pop() (value.Value, error) {
	if len(s.stack) == 0 {
		return nil, s.newError(KindInternal, "stack underflow")
	}
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v, nil
}

func (s *State) top() *Frame {
	return s.frames[len(s.frames)-1]
}

// Execute runs the Program's entry point with no arguments (spec.md §6
// "state.execute()").
func (s *State) Execute() (value.Value, error) {
	return s.ExecuteByFunctionIndex(s.Program.EntryPoint, nil)
}

// ExecuteByFunctionIndex invokes function fnIndex directly with args,
// bypassing any scripted caller (spec.md §6
// "state.execute_by_function_index(i, args)").
func (s *State) ExecuteByFunctionIndex(fnIndex int, args []value.Value) (value.Value, error) {
	return s.executeCallable(value.Function{Index: fnIndex}, args)
}

// ExecuteByObject invokes any callable value with args — the general form
// host code uses for a value retrieved off an Instance or a closure-free
// callback (spec.md §6 "state.execute_by_object(callable, args)").
func (s *State) ExecuteByObject(callee value.Value, args []value.Value) (value.Value, error) {
	return s.executeCallable(callee, args)
}

// Call implements value.Caller: it is the re-entry surface a NativeFunction
// or NativeInstance.Call uses to invoke back into scripted code (spec.md §5
// "native functions run synchronously and may call back into the VM").
func (s *State) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return s.executeCallable(callee, args)
}

// GetObjectPropertyByName reads a named property or bound method off any
// value through the same path OpInstanceGet uses (spec.md §6).
func (s *State) GetObjectPropertyByName(obj value.Value, name string) (value.Value, error) {
	return s.instanceGet(obj, name)
}

// GetObjectPropertyByIndex reads the property at dense index idx off a
// scripted Instance — used by host code that already knows a model's
// property layout (spec.md §6).
func (s *State) GetObjectPropertyByIndex(obj value.Value, idx int) (value.Value, error) {
	inst, ok := obj.(*value.Instance)
	if !ok {
		return nil, s.newError(KindTypeError, "get_object_property_by_index: %s is not an instance", obj.Kind())
	}
	if idx < 0 || idx >= len(inst.Properties) {
		return nil, s.newError(KindIndexOutOfRange, "property index %d out of range (0..%d)", idx, len(inst.Properties)-1)
	}
	return inst.Properties[idx], nil
}

// executeCallable is the single call path shared by top-level Execute*,
// OpCall's dispatch, and meta-method routing (spec.md §4.9). It dispatches
// callee once — which either pushes a new Frame (scripted Function /
// InstanceFunction) or resolves synchronously and leaves its result on the
// stack (native function, native model constructor, model construction) —
// then drives the dispatch loop until the frame stack collapses back to the
// depth it started at.
func (s *State) executeCallable(callee value.Value, args []value.Value) (value.Value, error) {
	target := len(s.frames)
	baseDepth := len(s.stack)

	if err := s.dispatchCall(callee, args); err != nil {
		if !s.unwind(target, baseDepth, err) {
			return nil, err
		}
	}
	return s.run(target, baseDepth)
}

// run drives instruction dispatch until the frame stack collapses back to
// target (the call that invoked run has returned) or an unrescued error
// surfaces. Every Return pushes its value for the caller to consume — when
// that caller is "nobody" (the frame stack just reached target), the pushed
// value is this call's own result.
func (s *State) run(target, baseDepth int) (value.Value, error) {
	for {
		if len(s.frames) <= target {
			return s.pop()
		}
		frame := s.top()
		if frame.pc >= len(frame.Function.Instructions) {
			// Every compiled Function ends with an explicit Return
			// (spec.md §4.5); reaching past the end is a compiler defect,
			// not a user-triggerable error.
			return nil, s.newError(KindInternal, "instruction pointer ran off the end of function %q", frame.Function.Name)
		}
		instr := frame.Function.Instructions[frame.pc]
		frame.pc++

		if err := s.step(instr); err != nil {
			if s.unwind(target, baseDepth, err) {
				continue
			}
			return nil, err
		}
	}
}

// unwind implements spec.md §4.10: search frames pushed since this call
// began (index target upward) for the nearest rescue_position, from the
// innermost frame outward. On success it discards every frame above the
// rescuing one, rewinds the stack to that frame's entry depth, and resumes
// there. On failure it restores the frame/stack depth this call started
// with and reports the error back to the caller.
func (s *State) unwind(target, baseDepth int, err error) bool {
	for i := len(s.frames) - 1; i >= target; i-- {
		f := s.frames[i]
		if f.Function.RescuePosition != 0 {
			s.frames = s.frames[:i+1]
			f.pc = f.Function.RescuePosition
			s.stack = s.stack[:f.entryDepth]
			return true
		}
	}
	if re, ok := err.(*RuntimeError); ok && re.StackTrace == nil {
		re.StackTrace = s.snapshot()
	}
	s.frames = s.frames[:target]
	if baseDepth <= len(s.stack) {
		s.stack = s.stack[:baseDepth]
	}
	return false
}

// step executes one instruction against the current top frame.
func (s *State) step(instr bytecode.Instruction) error {
	frame := s.top()

	switch instr.Op() {
	case bytecode.OpPop:
		_, err := s.pop()
		return err

	case bytecode.OpPushConstant:
		idx := instr.OperandInt()
		if idx < 0 || idx >= len(s.Constants) {
			return s.newError(KindInternal, "constant index %d out of range", idx)
		}
		s.push(s.Constants[idx])
		return nil

	case bytecode.OpReturn:
		return s.doReturn()

	case bytecode.OpLocalGet:
		idx := instr.OperandInt()
		if idx < 0 || idx >= len(frame.Locals) {
			return s.newError(KindInternal, "local index %d out of range", idx)
		}
		s.push(frame.Locals[idx])
		return nil

	case bytecode.OpLocalSet:
		idx := instr.OperandInt()
		v, err := s.pop()
		if err != nil {
			return err
		}
		frame.Locals[idx] = v
		s.push(v)
		return nil

	case bytecode.OpLocalInit:
		idx := instr.OperandInt()
		v, err := s.pop()
		if err != nil {
			return err
		}
		frame.Locals[idx] = v
		return nil

	case bytecode.OpContextGet:
		idx := instr.OperandInt()
		if idx < 0 || idx >= len(s.ContextLocals) {
			return s.newError(KindInternal, "context local index %d out of range", idx)
		}
		s.push(s.ContextLocals[idx])
		return nil

	case bytecode.OpContextSet:
		idx := instr.OperandInt()
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.ContextLocals[idx] = v
		s.push(v)
		return nil

	case bytecode.OpGlobalGet:
		name, err := s.constantString(instr.OperandInt())
		if err != nil {
			return err
		}
		v, ok := s.Globals[name]
		if !ok {
			return s.newError(KindMissingGlobal, "missing global %q", name)
		}
		s.push(v)
		return nil

	case bytecode.OpGlobalSet:
		name, err := s.constantString(instr.OperandInt())
		if err != nil {
			return err
		}
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.Globals[name] = v
		s.push(v)
		return nil

	case bytecode.OpInstanceGet:
		key, err := s.pop()
		if err != nil {
			return err
		}
		recv, err := s.pop()
		if err != nil {
			return err
		}
		name, ok := key.(value.Str)
		if !ok {
			return s.newError(KindTypeError, "instance property key must be a string, got %s", key.Kind())
		}
		v, err := s.instanceGet(recv, string(name))
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	case bytecode.OpInstanceSet:
		key, err := s.pop()
		if err != nil {
			return err
		}
		recv, err := s.pop()
		if err != nil {
			return err
		}
		val, err := s.pop()
		if err != nil {
			return err
		}
		name, ok := key.(value.Str)
		if !ok {
			return s.newError(KindTypeError, "instance property key must be a string, got %s", key.Kind())
		}
		if err := s.instanceSet(recv, string(name), val); err != nil {
			return err
		}
		s.push(val)
		return nil

	case bytecode.OpIndexGet:
		idx, err := s.pop()
		if err != nil {
			return err
		}
		recv, err := s.pop()
		if err != nil {
			return err
		}
		v, err := s.indexGet(recv, idx)
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	case bytecode.OpIndexSet:
		idx, err := s.pop()
		if err != nil {
			return err
		}
		recv, err := s.pop()
		if err != nil {
			return err
		}
		val, err := s.pop()
		if err != nil {
			return err
		}
		if err := s.indexSet(recv, idx, val); err != nil {
			return err
		}
		s.push(val)
		return nil

	case bytecode.OpOperation:
		right, err := s.pop()
		if err != nil {
			return err
		}
		left, err := s.pop()
		if err != nil {
			return err
		}
		v, err := s.operate(left, right, bytecode.Operation(instr.OperandInt()))
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	case bytecode.OpNot:
		v, err := s.pop()
		if err != nil {
			return err
		}
		s.push(value.Boolean(!value.Truthy(v)))
		return nil

	case bytecode.OpNegative:
		v, err := s.pop()
		if err != nil {
			return err
		}
		neg, err := s.negate(v)
		if err != nil {
			return err
		}
		s.push(neg)
		return nil

	case bytecode.OpCall:
		argc := instr.OperandInt()
		if len(s.stack) < argc+1 {
			return s.newError(KindInternal, "stack underflow calling with %d args", argc)
		}
		args := make([]value.Value, argc)
		copy(args, s.stack[len(s.stack)-argc:])
		s.stack = s.stack[:len(s.stack)-argc]
		callee, err := s.pop()
		if err != nil {
			return err
		}
		return s.dispatchCall(callee, args)

	case bytecode.OpArray:
		n := instr.OperandInt()
		if len(s.stack) < n {
			return s.newError(KindInternal, "stack underflow building array of %d elements", n)
		}
		elems := make([]value.Value, n)
		copy(elems, s.stack[len(s.stack)-n:])
		s.stack = s.stack[:len(s.stack)-n]
		s.push(&value.Array{Elements: elems})
		return nil

	case bytecode.OpJump:
		frame.pc = instr.OperandInt()
		return nil

	case bytecode.OpJumpIf:
		cond, err := s.pop()
		if err != nil {
			return err
		}
		if value.Truthy(cond) {
			frame.pc = instr.OperandInt()
		}
		return nil

	case bytecode.OpForNext:
		return s.forNext(frame, instr.OperandInt())

	case bytecode.OpIterate:
		idx := instr.OperandInt()
		cur, ok := frame.Locals[idx].(value.Integer)
		if !ok {
			return s.newError(KindInternal, "for-loop cursor local %d is not an integer", idx)
		}
		frame.Locals[idx] = cur + 1
		return nil

	default:
		return s.newError(KindUnknownOpcode, "unknown opcode %v", instr.Op())
	}
}

func (s *State) constantString(idx int) (string, error) {
	if idx < 0 || idx >= len(s.Constants) {
		return "", s.newError(KindInternal, "constant index %d out of range", idx)
	}
	str, ok := s.Constants[idx].(value.Str)
	if !ok {
		return "", s.newError(KindTypeError, "constant %d is not a string", idx)
	}
	return string(str), nil
}

// doReturn implements spec.md §4.6's OpReturn rule: if exactly one value
// sits above the frame's entry depth, that becomes the return value;
// otherwise the stack collapses to entry depth and the return value is
// Null. The finishing frame is popped and the return value is always
// pushed back — whether the next thing to see it is a caller frame's
// continued execution or run()'s own "collapsed to target" check.
func (s *State) doReturn() error {
	frame := s.top()
	extra := len(s.stack) - frame.entryDepth

	var retVal value.Value
	if extra == 1 {
		v, err := s.pop()
		if err != nil {
			return err
		}
		retVal = v
	} else {
		s.stack = s.stack[:frame.entryDepth]
		retVal = value.Null{}
	}

	s.frames = s.frames[:len(s.frames)-1]
	s.push(retVal)
	return nil
}

func (s *State) newError(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		StateID: s.ID,
	}
}

func (s *State) snapshot() []StackFrame {
	trace := make([]StackFrame, len(s.frames))
	for i, f := range s.frames {
		trace[i] = StackFrame{Name: f.Function.Name, IP: f.pc}
	}
	return trace
}
