package compiler

import (
	"github.com/cloverlang/clover/pkg/ast"
	"github.com/cloverlang/clover/pkg/bytecode"
)

// FunctionState is the per-function compiler: its growing instruction
// list, its frame-local symbol table, and the bits of control-flow state
// (break targets, rescue legality) that only make sense while compiling one
// function body (spec.md §4.5).
type FunctionState struct {
	ctx  *Context
	file string

	scopes      []map[string]int
	breakScopes [][]int
	localCount  int
	depth       int
	rescueSeen  bool

	fn *bytecode.Function
}

func newFunctionState(ctx *Context, file string, isInstance bool) *FunctionState {
	return &FunctionState{
		ctx:    ctx,
		file:   file,
		scopes: []map[string]int{{}},
		depth:  1,
		fn:     &bytecode.Function{IsInstance: isInstance},
	}
}

func (fs *FunctionState) emit(op bytecode.Opcode, operand uint64) int {
	idx := len(fs.fn.Instructions)
	fs.fn.Instructions = append(fs.fn.Instructions, bytecode.NewInstruction(op, operand))
	fs.fn.Positions = append(fs.fn.Positions, bytecode.Position{})
	return idx
}

func (fs *FunctionState) emitAt(op bytecode.Opcode, operand uint64, pos bytecode.Position) int {
	idx := fs.emit(op, operand)
	fs.fn.Positions[idx] = pos
	return idx
}

func (fs *FunctionState) patch(idx int, target int) {
	op := fs.fn.Instructions[idx].Op()
	fs.fn.Instructions[idx] = bytecode.NewInstruction(op, uint64(target))
}

func (fs *FunctionState) emitPushNull() {
	fs.emit(bytecode.OpPushConstant, uint64(NullConstantIndex))
}

func (fs *FunctionState) pushScope() {
	fs.scopes = append(fs.scopes, map[string]int{})
}

func (fs *FunctionState) popScope() {
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
}

// newLocal allocates a fresh frame-local slot bound to name in the
// innermost scope. Slots are never reused across sibling scopes — simpler
// than slot-recycling and still correct, it just costs a few unused slots
// in functions with multiple non-overlapping blocks.
func (fs *FunctionState) newLocal(name string) int {
	slot := fs.localCount
	fs.localCount++
	fs.scopes[len(fs.scopes)-1][name] = slot
	return slot
}

func (fs *FunctionState) newAnonymousLocal() int {
	slot := fs.localCount
	fs.localCount++
	return slot
}

func (fs *FunctionState) lookupLocal(name string) (int, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if slot, ok := fs.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (fs *FunctionState) pushBreakScope() {
	fs.breakScopes = append(fs.breakScopes, nil)
}

func (fs *FunctionState) recordBreak(idx int) {
	top := len(fs.breakScopes) - 1
	fs.breakScopes[top] = append(fs.breakScopes[top], idx)
}

func (fs *FunctionState) popBreakScope(target int) {
	top := len(fs.breakScopes) - 1
	for _, idx := range fs.breakScopes[top] {
		fs.patch(idx, target)
	}
	fs.breakScopes = fs.breakScopes[:top]
}

// compileFunctionBody compiles one FunctionDefinition (top-level function
// or implement-block method) into a bytecode.Function.
func (ctx *Context) compileFunctionBody(file string, d *ast.FunctionDefinition) *bytecode.Function {
	fs := newFunctionState(ctx, file, d.IsInstance)
	fs.fn.Name = d.Name
	fs.fn.ParameterCount = len(d.Parameters)
	for _, p := range d.Parameters {
		fs.newLocal(p)
	}

	fs.compileBlockValue(d.Body)

	if n := len(fs.fn.Instructions); n == 0 || fs.fn.Instructions[n-1].Op() != bytecode.OpReturn {
		fs.emit(bytecode.OpReturn, 0)
	}
	fs.fn.LocalCount = fs.localCount
	return fs.fn
}

// compileBlockValue compiles a statement list so that exactly one value is
// left on the stack when it finishes: the last statement's value if it is
// an expression statement, an explicit pushed null if the last statement
// produces no value of its own, or nothing extra if the last statement was
// already a return (spec.md §4.5 "remove trailing Pop / insert PushNull").
// Used for function bodies and if/else branches.
func (fs *FunctionState) compileBlockValue(stmts []ast.Statement) {
	if len(stmts) == 0 {
		fs.emitPushNull()
		return
	}
	for i, stmt := range stmts {
		isLast := i == len(stmts)-1
		if expr, ok := stmt.(*ast.ExpressionStatement); ok {
			fs.compileExpression(expr.Expression)
			if !isLast {
				fs.emit(bytecode.OpPop, 0)
			}
			continue
		}
		fs.compileStatement(stmt)
		if isLast {
			if _, isReturn := stmt.(*ast.ReturnStatement); !isReturn {
				fs.emitPushNull()
			}
		}
	}
}

// compileBlockEffect compiles a statement list purely for effect, discarding
// every expression statement's value including the last. Used for for-loop
// bodies, which never themselves produce a value.
func (fs *FunctionState) compileBlockEffect(stmts []ast.Statement) {
	for _, stmt := range stmts {
		if expr, ok := stmt.(*ast.ExpressionStatement); ok {
			fs.compileExpression(expr.Expression)
			fs.emit(bytecode.OpPop, 0)
			continue
		}
		fs.compileStatement(stmt)
	}
}

func (fs *FunctionState) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LocalStatement:
		fs.compileLocalStatement(s)
	case *ast.ReturnStatement:
		fs.compileReturn(s)
	case *ast.ForStatement:
		fs.compileFor(s)
	case *ast.BreakStatement:
		fs.compileBreak(s)
	case *ast.RescueStatement:
		fs.compileRescue(s)
	case *ast.ExpressionStatement:
		fs.compileExpression(s.Expression)
		fs.emit(bytecode.OpPop, 0)
	default:
		fs.ctx.Errors.Add(stmt.Pos(), "", "unsupported statement %T", stmt)
	}
}

func (fs *FunctionState) compileLocalStatement(s *ast.LocalStatement) {
	for i, name := range s.Names {
		var value ast.Expression
		if i < len(s.Values) {
			value = s.Values[i]
		}
		if value != nil {
			fs.compileExpression(value)
		} else {
			fs.emitPushNull()
		}
		slot := fs.newLocal(name)
		fs.emit(bytecode.OpLocalInit, uint64(slot))
	}
}

func (fs *FunctionState) compileReturn(s *ast.ReturnStatement) {
	if s.Value != nil {
		fs.compileExpression(s.Value)
	} else {
		fs.emitPushNull()
	}
	fs.emit(bytecode.OpReturn, 0)
}

func (fs *FunctionState) compileBreak(s *ast.BreakStatement) {
	if len(fs.breakScopes) == 0 {
		fs.ctx.Errors.Add(s.Position, "break", "break outside of a for loop")
		return
	}
	idx := fs.emit(bytecode.OpJump, 0)
	fs.recordBreak(idx)
}

// compileRescue implements spec.md §4.5/§4.10: legal only as a direct
// child of the function body, at most once. It emits Return (ending the
// function's normal path) and records the following instruction as the
// function's rescue handler entry point.
func (fs *FunctionState) compileRescue(s *ast.RescueStatement) {
	if fs.depth != 1 {
		fs.ctx.Errors.Add(s.Position, "rescue", "rescue is only legal at a function's top level")
		return
	}
	if fs.rescueSeen {
		fs.ctx.Errors.Add(s.Position, "rescue", "a function may have at most one rescue")
		return
	}
	fs.rescueSeen = true
	fs.emit(bytecode.OpReturn, 0)
	fs.fn.RescuePosition = len(fs.fn.Instructions)
}

// compileFor implements the iteration protocol of spec.md §4.7 exactly:
// reserve two anonymous locals for the enumerable and its cursor, bind the
// loop variable once up front, then loop ForNext/JumpIf/LocalSet/body/
// Iterate/Jump until ForNext reports done.
func (fs *FunctionState) compileFor(s *ast.ForStatement) {
	fs.pushScope()
	fs.pushBreakScope()
	fs.depth++

	enumLoc := fs.newAnonymousLocal()
	iterLoc := fs.newAnonymousLocal()
	iLoc := fs.newLocal(s.Identifier)

	fs.compileExpression(s.Enumerable)
	fs.emit(bytecode.OpLocalSet, uint64(enumLoc))
	fs.emit(bytecode.OpPop, 0)

	zeroIdx := fs.ctx.addIntegerConstant(0)
	fs.emit(bytecode.OpPushConstant, uint64(zeroIdx))
	fs.emit(bytecode.OpLocalSet, uint64(iterLoc))
	fs.emit(bytecode.OpPop, 0)

	loopHead := len(fs.fn.Instructions)
	fs.emit(bytecode.OpForNext, uint64(enumLoc))
	endJump := fs.emit(bytecode.OpJumpIf, 0)

	fs.emit(bytecode.OpLocalSet, uint64(iLoc))
	fs.emit(bytecode.OpPop, 0)

	fs.compileBlockEffect(s.Body)

	fs.emit(bytecode.OpIterate, uint64(iterLoc))
	fs.emit(bytecode.OpJump, uint64(loopHead))

	end := len(fs.fn.Instructions)
	fs.patch(endJump, end)
	fs.popBreakScope(end)

	fs.depth--
	fs.popScope()
}
