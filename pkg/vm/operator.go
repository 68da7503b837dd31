package vm

import (
	"math"

	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/value"
)

// operate implements spec.md §4.8's Operation dispatch: numeric promotion
// between Integer and Float, string concatenation and equality, Null
// equality, boolean short-circuit (already-evaluated) and/or, and
// meta-method dispatch for Instance operands.
func (s *State) operate(left, right value.Value, op bytecode.Operation) (value.Value, error) {
	if op == bytecode.OpAnd {
		return value.Boolean(value.Truthy(left) && value.Truthy(right)), nil
	}
	if op == bytecode.OpOr {
		return value.Boolean(value.Truthy(left) || value.Truthy(right)), nil
	}

	if li, ok := left.(value.Integer); ok {
		if ri, ok := right.(value.Integer); ok {
			return s.operateInteger(int64(li), int64(ri), op)
		}
		if rf, ok := right.(value.Float); ok {
			return s.operateFloat(float64(li), float64(rf), op)
		}
	}
	if lf, ok := left.(value.Float); ok {
		if rf, ok := right.(value.Float); ok {
			return s.operateFloat(float64(lf), float64(rf), op)
		}
		if ri, ok := right.(value.Integer); ok {
			return s.operateFloat(float64(lf), float64(ri), op)
		}
	}

	if ls, ok := left.(value.Str); ok {
		return s.operateString(ls, right, op)
	}

	if _, ok := left.(value.Null); ok {
		if op == bytecode.OpEq {
			_, rightNull := right.(value.Null)
			return value.Boolean(rightNull), nil
		}
	}

	if inst, ok := left.(*value.Instance); ok {
		return s.operateMetaMethod(inst, right, op)
	}

	return nil, s.newError(KindArithmeticDomain, "operator not defined for %s and %s", left.Kind(), right.Kind())
}

func (s *State) operateInteger(l, r int64, op bytecode.Operation) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return value.Integer(l + r), nil
	case bytecode.OpSub:
		return value.Integer(l - r), nil
	case bytecode.OpMul:
		return value.Integer(l * r), nil
	case bytecode.OpDiv:
		if r == 0 {
			return nil, s.newError(KindArithmeticDomain, "division by zero")
		}
		return value.Integer(l / r), nil
	case bytecode.OpMod:
		if r == 0 {
			return nil, s.newError(KindArithmeticDomain, "division by zero")
		}
		return value.Integer(l % r), nil
	case bytecode.OpEq:
		return value.Boolean(l == r), nil
	case bytecode.OpGt:
		return value.Boolean(l > r), nil
	case bytecode.OpLt:
		return value.Boolean(l < r), nil
	case bytecode.OpGe:
		return value.Boolean(l >= r), nil
	case bytecode.OpLe:
		return value.Boolean(l <= r), nil
	}
	return nil, s.newError(KindInternal, "unknown integer operation %v", op)
}

func (s *State) operateFloat(l, r float64, op bytecode.Operation) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return value.Float(l + r), nil
	case bytecode.OpSub:
		return value.Float(l - r), nil
	case bytecode.OpMul:
		return value.Float(l * r), nil
	case bytecode.OpDiv:
		if r == 0 {
			return nil, s.newError(KindArithmeticDomain, "division by zero")
		}
		return value.Float(l / r), nil
	case bytecode.OpMod:
		if r == 0 {
			return nil, s.newError(KindArithmeticDomain, "division by zero")
		}
		return value.Float(math.Mod(l, r)), nil
	case bytecode.OpEq:
		return value.Boolean(l == r), nil
	case bytecode.OpGt:
		return value.Boolean(l > r), nil
	case bytecode.OpLt:
		return value.Boolean(l < r), nil
	case bytecode.OpGe:
		return value.Boolean(l >= r), nil
	case bytecode.OpLe:
		return value.Boolean(l <= r), nil
	}
	return nil, s.newError(KindInternal, "unknown float operation %v", op)
}

// operateString implements "String + X" concatenation (X primitive is
// stringified, or another string) and "String == String" content equality
// (spec.md §4.8); every other string operator is undefined.
func (s *State) operateString(l value.Str, right value.Value, op bytecode.Operation) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		switch right.(type) {
		case value.Str, value.Integer, value.Float, value.Boolean, value.Null:
			return value.Str(string(l) + right.String()), nil
		default:
			return nil, s.newError(KindArithmeticDomain, "can not concatenate String with %s", right.Kind())
		}
	case bytecode.OpEq:
		rs, ok := right.(value.Str)
		return value.Boolean(ok && l == rs), nil
	}
	return nil, s.newError(KindArithmeticDomain, "operator not defined for String and %s", right.Kind())
}

// operateMetaMethod implements "Instance op X" dispatch: the model named by
// the left operand's instance must implement the corresponding meta-method
// (spec.md §4.8, §9 "Meta-method").
func (s *State) operateMetaMethod(inst *value.Instance, right value.Value, op bytecode.Operation) (value.Value, error) {
	name, ok := op.MetaMethod()
	if !ok {
		return nil, s.newError(KindUnknownMetaMethod, "operation %v has no meta-method", op)
	}
	model := s.Program.Models[inst.ModelIndex]
	fnIdx, ok := model.Methods[name]
	if !ok {
		return nil, s.newError(KindUnknownMetaMethod, "%q does not implement %s", model.Name, name)
	}
	return s.executeCallable(value.InstanceFunction{Receiver: inst, Index: fnIdx}, []value.Value{right})
}

// negate implements OpNegative: numeric-only, per spec.md §4.6.
func (s *State) negate(v value.Value) (value.Value, error) {
	switch n := v.(type) {
	case value.Integer:
		return -n, nil
	case value.Float:
		return -n, nil
	default:
		return nil, s.newError(KindArithmeticDomain, "can not negate %s", v.Kind())
	}
}
