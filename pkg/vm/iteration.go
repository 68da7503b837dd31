package vm

import "github.com/cloverlang/clover/pkg/value"

// forNext implements spec.md §4.7's runtime semantics for the ForNext
// opcode: enumLoc names the enumerable local, and by the compiler's
// adjacency convention (pkg/compiler's compileFor allocates the two
// anonymous locals back to back) the iterator cursor always lives at
// enumLoc+1. Pushes the next value followed by a "done" boolean, or just
// the "done" boolean alone once the enumerable is exhausted (spec.md §4.7:
// "push a boolean done marker after the value (or alone if done)");
// JumpIf consumes the boolean, and compileFor only emits a matching
// LocalSet/Pop for the value on the not-done path.
func (s *State) forNext(frame *Frame, enumLoc int) error {
	if enumLoc < 0 || enumLoc+1 >= len(frame.Locals) {
		return s.newError(KindInternal, "for-loop local %d out of range", enumLoc)
	}
	enum := frame.Locals[enumLoc]
	iter, ok := frame.Locals[enumLoc+1].(value.Integer)
	if !ok {
		return s.newError(KindInternal, "for-loop cursor local %d is not an integer", enumLoc+1)
	}
	cursor := int64(iter)

	switch e := enum.(type) {
	case value.Integer:
		if cursor >= int64(e) {
			s.push(value.Boolean(true))
			return nil
		}
		s.push(value.Integer(cursor))
		s.push(value.Boolean(false))
		return nil

	case *value.Array:
		if cursor < 0 || cursor >= int64(len(e.Elements)) {
			s.push(value.Boolean(true))
			return nil
		}
		s.push(e.Elements[cursor])
		s.push(value.Boolean(false))
		return nil

	case *value.Instance:
		model := s.Program.Models[e.ModelIndex]
		if cursor < 0 || cursor >= int64(len(model.Properties)) {
			s.push(value.Boolean(true))
			return nil
		}
		s.push(value.Str(model.Properties[cursor]))
		s.push(value.Boolean(false))
		return nil

	default:
		// "other values signal done immediately" (spec.md §4.7).
		s.push(value.Boolean(true))
		return nil
	}
}
