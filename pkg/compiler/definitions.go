package compiler

import (
	"github.com/cloverlang/clover/pkg/ast"
	"github.com/cloverlang/clover/pkg/bytecode"
)

// compileDocument lowers every top-level Definition in doc, in source
// order, registering names into doc.Path's AssemblyState as it goes so
// later definitions in the same file (and functions compiled later) can
// reference earlier ones — including a function referencing itself
// recursively (spec.md §4.4).
func (ctx *Context) compileDocument(doc *ast.Document) {
	file := doc.Path
	ctx.assembly(file) // ensure it exists even for an empty/leaf file

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.IncludeDefinition:
			ctx.compileInclude(file, d)
		case *ast.LocalDefinition:
			ctx.compileLocalDefinition(file, d)
		case *ast.ModelDefinition:
			ctx.compileModelDefinition(file, d)
		case *ast.FunctionDefinition:
			ctx.compileTopLevelFunction(file, d)
		case *ast.ImplementDefinition:
			ctx.compileImplement(file, d)
		case *ast.ApplyDefinition:
			ctx.compileApply(file, d)
		default:
			ctx.Errors.Add(def.Pos(), "", "unsupported top-level definition %T", def)
		}
	}
}

func (ctx *Context) compileInclude(file string, d *ast.IncludeDefinition) {
	target := ctx.assembly(d.Path)
	for i, nameTok := range d.Names {
		name := nameTok.Text
		if !target.Public[name] {
			ctx.Errors.Add(d.Position, name, "%q is not a public name of %q", name, d.Path)
			continue
		}
		targetCtxIdx := target.Names[name]
		constIdx := ctx.Program.LocalValues[targetCtxIdx]

		localName := name
		if alias := d.Aliases[i]; alias != "" {
			localName = alias
		}
		ctx.bindName(file, localName, constIdx, false)
	}
}

// compileLocalDefinition handles a top-level "local x = K, ...": each
// initializer is already restricted by the parser to a literal constant, so
// this only needs to add pool constants and bind context locals — no
// bytecode is emitted (spec.md §4.4).
func (ctx *Context) compileLocalDefinition(file string, d *ast.LocalDefinition) {
	for i, name := range d.Names {
		var value ast.Expression
		if i < len(d.Values) {
			value = d.Values[i]
		}
		constIdx := ctx.compileLiteralConstant(value)
		ctx.bindName(file, name, constIdx, false)
	}
}

func (ctx *Context) compileLiteralConstant(e ast.Expression) int {
	switch v := e.(type) {
	case nil:
		return NullConstantIndex
	case *ast.NullLiteral:
		return NullConstantIndex
	case *ast.BooleanLiteral:
		if v.Value {
			return TrueConstantIndex
		}
		return FalseConstantIndex
	case *ast.IntegerLiteral:
		return ctx.addIntegerConstant(v.Value)
	case *ast.FloatLiteral:
		return ctx.addFloatConstant(v.Value)
	case *ast.StringLiteral:
		return ctx.addStringConstant(v.Value)
	case *ast.PrefixExpression:
		// parseLiteralConstant already folds a leading "-" into the numeric
		// literal; this case accepts the unfolded "-" literal form as well.
		switch inner := v.Right.(type) {
		case *ast.IntegerLiteral:
			return ctx.addIntegerConstant(-inner.Value)
		case *ast.FloatLiteral:
			return ctx.addFloatConstant(-inner.Value)
		}
	}
	ctx.Errors.Add(e.Pos(), "", "top-level local initializer must be a literal constant")
	return NullConstantIndex
}

func (ctx *Context) compileModelDefinition(file string, d *ast.ModelDefinition) {
	m := bytecode.NewModel(d.Name)
	for _, prop := range d.Properties {
		m.AddProperty(prop)
	}
	modelIdx := len(ctx.Program.Models)
	ctx.Program.Models = append(ctx.Program.Models, m)

	constIdx := ctx.addModelIndexConstant(modelIdx)
	ctx.bindName(file, d.Name, constIdx, d.Public)
}

// compileTopLevelFunction reserves the function's slot and binds its name
// before compiling the body, so a function can call itself recursively
// (spec.md §4.5).
func (ctx *Context) compileTopLevelFunction(file string, d *ast.FunctionDefinition) int {
	fnIdx := len(ctx.Program.Functions)
	ctx.Program.Functions = append(ctx.Program.Functions, nil)

	constIdx := ctx.addFunctionIndexConstant(fnIdx)
	ctx.bindName(file, d.Name, constIdx, d.Public)

	ctx.Program.Functions[fnIdx] = ctx.compileFunctionBody(file, d)
	return fnIdx
}

func (ctx *Context) compileImplement(file string, d *ast.ImplementDefinition) {
	modelIdx, ok := ctx.resolveModelIndex(file, d.ModelName)
	if !ok {
		ctx.Errors.Add(d.Position, d.ModelName, "%q is not a known model", d.ModelName)
		return
	}
	model := ctx.Program.Models[modelIdx]
	for _, fnDef := range d.Functions {
		fnIdx := len(ctx.Program.Functions)
		ctx.Program.Functions = append(ctx.Program.Functions, nil)
		ctx.Program.Functions[fnIdx] = ctx.compileFunctionBody(file, fnDef)
		model.Methods[fnDef.Name] = fnIdx
	}
}

func (ctx *Context) compileApply(file string, d *ast.ApplyDefinition) {
	srcIdx, ok := ctx.resolveModelIndex(file, d.Source)
	if !ok {
		ctx.Errors.Add(d.Position, d.Source, "%q is not a known model", d.Source)
		return
	}
	dstIdx, ok := ctx.resolveModelIndex(file, d.Target)
	if !ok {
		ctx.Errors.Add(d.Position, d.Target, "%q is not a known model", d.Target)
		return
	}
	src, dst := ctx.Program.Models[srcIdx], ctx.Program.Models[dstIdx]
	for name, fnIdx := range src.Methods {
		dst.Methods[name] = fnIdx
	}
}
