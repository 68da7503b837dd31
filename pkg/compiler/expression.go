package compiler

import (
	"github.com/cloverlang/clover/pkg/ast"
	"github.com/cloverlang/clover/pkg/bytecode"
)

var compoundOps = map[string]bytecode.Operation{
	"+=": bytecode.OpAdd,
	"-=": bytecode.OpSub,
	"*=": bytecode.OpMul,
	"/=": bytecode.OpDiv,
	"%=": bytecode.OpMod,
}

var binaryOps = map[string]bytecode.Operation{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
	"==": bytecode.OpEq, ">": bytecode.OpGt, "<": bytecode.OpLt,
	">=": bytecode.OpGe, "<=": bytecode.OpLe,
}

func (fs *FunctionState) compileExpression(e ast.Expression) {
	switch expr := e.(type) {
	case *ast.NullLiteral:
		fs.emit(bytecode.OpPushConstant, uint64(NullConstantIndex))
	case *ast.BooleanLiteral:
		if expr.Value {
			fs.emit(bytecode.OpPushConstant, uint64(TrueConstantIndex))
		} else {
			fs.emit(bytecode.OpPushConstant, uint64(FalseConstantIndex))
		}
	case *ast.IntegerLiteral:
		idx := fs.ctx.addIntegerConstant(expr.Value)
		fs.emit(bytecode.OpPushConstant, uint64(idx))
	case *ast.FloatLiteral:
		idx := fs.ctx.addFloatConstant(expr.Value)
		fs.emit(bytecode.OpPushConstant, uint64(idx))
	case *ast.StringLiteral:
		idx := fs.ctx.addStringConstant(expr.Value)
		fs.emit(bytecode.OpPushConstant, uint64(idx))
	case *ast.ArrayLiteral:
		for _, el := range expr.Elements {
			fs.compileExpression(el)
		}
		fs.emit(bytecode.OpArray, uint64(len(expr.Elements)))
	case *ast.This:
		fs.emit(bytecode.OpLocalGet, 0)
	case *ast.Identifier:
		fs.compileIdentifierRead(expr.Name)
	case *ast.PrefixExpression:
		fs.compileExpression(expr.Right)
		switch expr.Operator {
		case "-":
			fs.emit(bytecode.OpNegative, 0)
		case "not":
			fs.emit(bytecode.OpNot, 0)
		default:
			fs.ctx.Errors.Add(expr.Position, expr.Operator, "unsupported prefix operator")
		}
	case *ast.InfixExpression:
		fs.compileInfix(expr)
	case *ast.IfExpression:
		fs.compileIf(expr)
	case *ast.CallExpression:
		fs.compileExpression(expr.Callee)
		for _, arg := range expr.Args {
			fs.compileExpression(arg)
		}
		fs.emit(bytecode.OpCall, uint64(len(expr.Args)))
	case *ast.InstanceGetExpression:
		fs.compileExpression(expr.Object)
		idx := fs.ctx.addStringConstant(expr.Name)
		fs.emit(bytecode.OpPushConstant, uint64(idx))
		fs.emit(bytecode.OpInstanceGet, 0)
	case *ast.IndexGetExpression:
		fs.compileExpression(expr.Object)
		fs.compileExpression(expr.Index)
		fs.emit(bytecode.OpIndexGet, 0)
	default:
		fs.ctx.Errors.Add(e.Pos(), "", "unsupported expression %T", e)
	}
}

// compileIdentifierRead resolves a bare name in lookup order: the current
// frame's locals, then the compiling file's top-level ("context") names,
// then a host-registered global (spec.md §4.5).
func (fs *FunctionState) compileIdentifierRead(name string) {
	if slot, ok := fs.lookupLocal(name); ok {
		fs.emit(bytecode.OpLocalGet, uint64(slot))
		return
	}
	if ctxIdx, ok := fs.ctx.lookupContextLocal(fs.file, name); ok {
		fs.emit(bytecode.OpContextGet, uint64(ctxIdx))
		return
	}
	constIdx := fs.ctx.addStringConstant(name)
	fs.ctx.addGlobalDependency(constIdx)
	fs.emit(bytecode.OpGlobalGet, uint64(constIdx))
}

func (fs *FunctionState) compileIf(expr *ast.IfExpression) {
	fs.compileExpression(expr.Condition)
	toTrue := fs.emit(bytecode.OpJumpIf, 0)

	fs.depth++
	fs.compileBlockValue(expr.FalsePart)
	fs.depth--
	toEnd := fs.emit(bytecode.OpJump, 0)

	fs.patch(toTrue, len(fs.fn.Instructions))
	fs.depth++
	fs.compileBlockValue(expr.TruePart)
	fs.depth--

	fs.patch(toEnd, len(fs.fn.Instructions))
}

func (fs *FunctionState) compileInfix(expr *ast.InfixExpression) {
	if expr.Operator == "and" || expr.Operator == "or" {
		fs.compileExpression(expr.Left)
		fs.compileExpression(expr.Right)
		op := bytecode.OpAnd
		if expr.Operator == "or" {
			op = bytecode.OpOr
		}
		fs.emit(bytecode.OpOperation, uint64(op))
		return
	}

	if expr.Operator == "=" {
		fs.compileExpression(expr.Right)
		fs.compileStoreTarget(expr.Left)
		return
	}
	if op, ok := compoundOps[expr.Operator]; ok {
		fs.compileExpression(expr.Left)
		fs.compileExpression(expr.Right)
		fs.emit(bytecode.OpOperation, uint64(op))
		fs.compileStoreTarget(expr.Left)
		return
	}

	fs.compileExpression(expr.Left)
	fs.compileExpression(expr.Right)
	if expr.Operator == "!=" {
		// Open Question (spec.md §9): "!=" compiles as "eq" then "Not"
		// without checking what a meta-method's _eq returned.
		fs.emit(bytecode.OpOperation, uint64(bytecode.OpEq))
		fs.emit(bytecode.OpNot, 0)
		return
	}
	op, ok := binaryOps[expr.Operator]
	if !ok {
		fs.ctx.Errors.Add(expr.Position, expr.Operator, "unsupported binary operator")
		return
	}
	fs.emit(bytecode.OpOperation, uint64(op))
}

// compileStoreTarget emits the store half of an assignment; the value to
// store is already on top of the stack. For InstanceSet/IndexSet this
// compiler always pushes the value first, then the receiver, then the
// index/key — an ordering convention owned entirely by this package and
// mirrored by pkg/vm's dispatch, since spec.md's bytecode table leaves it
// unspecified.
func (fs *FunctionState) compileStoreTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		if slot, ok := fs.lookupLocal(t.Name); ok {
			fs.emit(bytecode.OpLocalSet, uint64(slot))
			return
		}
		if ctxIdx, ok := fs.ctx.lookupContextLocal(fs.file, t.Name); ok {
			fs.emit(bytecode.OpContextSet, uint64(ctxIdx))
			return
		}
		constIdx := fs.ctx.addStringConstant(t.Name)
		fs.ctx.addGlobalDependency(constIdx)
		fs.emit(bytecode.OpGlobalSet, uint64(constIdx))
	case *ast.InstanceGetExpression:
		fs.compileExpression(t.Object)
		idx := fs.ctx.addStringConstant(t.Name)
		fs.emit(bytecode.OpPushConstant, uint64(idx))
		fs.emit(bytecode.OpInstanceSet, 0)
	case *ast.IndexGetExpression:
		fs.compileExpression(t.Object)
		fs.compileExpression(t.Index)
		fs.emit(bytecode.OpIndexSet, 0)
	default:
		fs.ctx.Errors.Add(target.Pos(), "", "invalid assignment target %T", target)
	}
}
