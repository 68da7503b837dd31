package vm

import "github.com/cloverlang/clover/pkg/value"

// instanceGet implements OpInstanceGet (spec.md §4.6): property read falls
// through to a bound method reference when name isn't a property, a
// NativeModel exposes its model_get hook, and a NativeInstance gets full
// control through its own InstanceGet.
func (s *State) instanceGet(recv value.Value, name string) (value.Value, error) {
	switch r := recv.(type) {
	case *value.Instance:
		model := s.Program.Models[r.ModelIndex]
		if idx, ok := model.PropertyIndex[name]; ok {
			return r.Properties[idx], nil
		}
		if fnIdx, ok := model.Methods[name]; ok {
			return value.InstanceFunction{Receiver: recv, Index: fnIdx}, nil
		}
		return nil, s.newError(KindUnknownProperty, "%q has no property or method %q", model.Name, name)

	case value.NativeModel:
		desc, ok := s.nativeModels[r.Index]
		if !ok {
			return nil, s.newError(KindInternal, "unknown native model #%d", r.Index)
		}
		if desc.ModelGet == nil {
			return nil, s.newError(KindUnknownProperty, "native model %q has no %q", desc.Name, name)
		}
		v, ok := desc.ModelGet(name)
		if !ok {
			return nil, s.newError(KindUnknownProperty, "native model %q has no %q", desc.Name, name)
		}
		return v, nil

	case value.NativeInstance:
		// A NativeInstance implementation is responsible for returning an
		// InstanceNativeFunction itself when name names a method rather
		// than a property (spec.md §9: each host type picks its own
		// dispatch mechanism).
		return r.InstanceGet(name)

	default:
		return nil, s.newError(KindTypeError, "%s has no instance properties", recv.Kind())
	}
}

// instanceSet implements OpInstanceSet.
func (s *State) instanceSet(recv value.Value, name string, val value.Value) error {
	switch r := recv.(type) {
	case *value.Instance:
		model := s.Program.Models[r.ModelIndex]
		idx, ok := model.PropertyIndex[name]
		if !ok {
			return s.newError(KindUnknownProperty, "%q has no property %q", model.Name, name)
		}
		r.Properties[idx] = val
		return nil

	case value.NativeInstance:
		return r.InstanceSet(name, val)

	default:
		return s.newError(KindTypeError, "%s has no instance properties", recv.Kind())
	}
}

// indexGet implements OpIndexGet: Array indexing is numeric with bounds
// checking, NativeInstance indexing defers to the host type entirely
// (spec.md §4.6).
func (s *State) indexGet(recv value.Value, idx value.Value) (value.Value, error) {
	switch r := recv.(type) {
	case *value.Array:
		i, ok := idx.(value.Integer)
		if !ok {
			return nil, s.newError(KindTypeError, "array index must be an integer, got %s", idx.Kind())
		}
		if int64(i) < 0 || int64(i) >= int64(len(r.Elements)) {
			return nil, s.newError(KindIndexOutOfRange, "array index %d out of range (0..%d)", i, len(r.Elements)-1)
		}
		return r.Elements[i], nil

	case value.NativeInstance:
		return r.IndexGet(idx)

	default:
		return nil, s.newError(KindTypeError, "%s is not indexable", recv.Kind())
	}
}

// indexSet implements OpIndexSet.
func (s *State) indexSet(recv value.Value, idx value.Value, val value.Value) error {
	switch r := recv.(type) {
	case *value.Array:
		i, ok := idx.(value.Integer)
		if !ok {
			return s.newError(KindTypeError, "array index must be an integer, got %s", idx.Kind())
		}
		if int64(i) < 0 || int64(i) >= int64(len(r.Elements)) {
			return s.newError(KindIndexOutOfRange, "array index %d out of range (0..%d)", i, len(r.Elements)-1)
		}
		r.Elements[i] = val
		return nil

	case value.NativeInstance:
		return r.IndexSet(idx, val)

	default:
		return s.newError(KindTypeError, "%s is not indexable", recv.Kind())
	}
}
