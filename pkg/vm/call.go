package vm

import "github.com/cloverlang/clover/pkg/value"

// dispatchCall implements spec.md §4.9's six-case call protocol. A scripted
// callee pushes a new Frame for the dispatch loop to keep running; every
// other case resolves synchronously and leaves its result on top of the
// stack, so the caller (step's OpCall case, or executeCallable) never has
// to tell the two outcomes apart.
func (s *State) dispatchCall(callee value.Value, args []value.Value) error {
	switch c := callee.(type) {
	case value.Function:
		return s.pushScriptedFrame(c.Index, nil, args)

	case value.InstanceFunction:
		return s.pushScriptedFrame(c.Index, c.Receiver, args)

	case value.NativeFunction:
		v, err := c.Fn(s, args)
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	case value.InstanceNativeFunction:
		v, err := c.Instance.Call(s, c.Method, args)
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	case value.Model:
		inst, err := s.constructInstance(c.Index, args)
		if err != nil {
			return err
		}
		s.push(inst)
		return nil

	case value.NativeModel:
		desc, ok := s.nativeModels[c.Index]
		if !ok {
			return s.newError(KindInternal, "unknown native model #%d", c.Index)
		}
		v, err := desc.Construct(s, args)
		if err != nil {
			return err
		}
		s.push(v)
		return nil

	default:
		return s.newError(KindNotCallable, "%s is not callable", callee.Kind())
	}
}

// pushScriptedFrame pushes a Frame for function fnIndex. A non-nil receiver
// binds local slot 0 and shifts args to start at slot 1 (InstanceFunction);
// a nil receiver fills locals 0..N-1 directly from args (plain Function).
// Unfilled parameter slots default to Null; passing more explicit args than
// the function declares (beyond the implicit receiver) is an arity error
// (spec.md §4.9).
func (s *State) pushScriptedFrame(fnIndex int, receiver value.Value, args []value.Value) error {
	if fnIndex < 0 || fnIndex >= len(s.Program.Functions) {
		return s.newError(KindInternal, "function index %d out of range", fnIndex)
	}
	fn := s.Program.Functions[fnIndex]

	offset := 0
	if receiver != nil {
		offset = 1
	}
	explicitParams := fn.ParameterCount - offset
	if len(args) > explicitParams {
		return s.newError(KindArityMismatch, "function %q takes %d argument(s), got %d", fn.Name, explicitParams, len(args))
	}

	locals := make([]value.Value, fn.LocalCount)
	for i := range locals {
		locals[i] = value.Null{}
	}
	if receiver != nil {
		locals[0] = receiver
	}
	for i, a := range args {
		locals[offset+i] = a
	}

	s.frames = append(s.frames, &Frame{
		Function:   fn,
		Locals:     locals,
		pc:         0,
		entryDepth: len(s.stack),
	})
	return nil
}

// constructInstance implements spec.md §4.9's Model(i) case: a fresh
// ModelInstance sized to the model's property count, filled left-to-right
// from args and padded with Null.
func (s *State) constructInstance(modelIndex int, args []value.Value) (*value.Instance, error) {
	if modelIndex < 0 || modelIndex >= len(s.Program.Models) {
		return nil, s.newError(KindInternal, "model index %d out of range", modelIndex)
	}
	model := s.Program.Models[modelIndex]
	if len(args) > len(model.Properties) {
		return nil, s.newError(KindArityMismatch, "model %q has %d properties, got %d constructor args", model.Name, len(model.Properties), len(args))
	}

	props := make([]value.Value, len(model.Properties))
	for i := range props {
		props[i] = value.Null{}
	}
	copy(props, args)

	return &value.Instance{ModelIndex: modelIndex, Properties: props}, nil
}
