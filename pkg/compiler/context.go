// Package compiler lowers a dependency-ordered set of Documents into a
// single bytecode.Program: one flat constant pool, models table, and
// functions table shared across every file in the compilation (spec.md
// §4.4–§4.7). It is the direct descendant of smog/pkg/compiler's
// single-struct Compiler, generalized from one in-memory AST to a
// multi-file compile driven by pkg/depsolver.
package compiler

import (
	"os"
	"path/filepath"

	"github.com/cloverlang/clover/pkg/ast"
	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/depsolver"
	"github.com/cloverlang/clover/pkg/diag"
	"github.com/cloverlang/clover/pkg/parser"
	"github.com/cloverlang/clover/pkg/storage"
	"github.com/cloverlang/clover/pkg/token"
)

// AssemblyState is one compiled file's public-name table: every top-level
// name it declares (local, model, or function, public or not) mapped to
// the context-local index that holds it, plus which of those names are
// eligible for another file's "include ... from" (spec.md §4.4, glossary
// "Public index").
type AssemblyState struct {
	Names  map[string]int
	Public map[string]bool
}

func newAssemblyState() *AssemblyState {
	return &AssemblyState{Names: map[string]int{}, Public: map[string]bool{}}
}

// Context is the mutable global state threaded through compiling every
// Document in one program: the growing Program tables, constant dedup
// indexes, and per-file AssemblyStates.
type Context struct {
	Program *bytecode.Program

	intConstants map[int64]int
	strConstants map[string]int
	globalDeps   map[int]bool

	files map[string]*AssemblyState

	Errors *diag.List
}

// NewContext creates a Context with the three fixed constant slots already
// in place (spec.md §3 invariant: positions 0, 1, 2 are Null, true, false).
func NewContext() *Context {
	return &Context{
		Program: &bytecode.Program{
			Constants:   []bytecode.ConstantValue{bytecode.NullConstant, bytecode.TrueConstant, bytecode.FalseConstant},
			LocalValues: map[int]int{},
			FileInfo:    map[string]int{},
		},
		intConstants: map[int64]int{},
		strConstants: map[string]int{},
		globalDeps:   map[int]bool{},
		files:        map[string]*AssemblyState{},
		Errors:       diag.NewList(""),
	}
}

// NullConstantIndex, TrueConstantIndex, FalseConstantIndex are the fixed
// pool slots every Program starts with.
const (
	NullConstantIndex  = 0
	TrueConstantIndex  = 1
	FalseConstantIndex = 2
)

func (ctx *Context) addIntegerConstant(v int64) int {
	if idx, ok := ctx.intConstants[v]; ok {
		return idx
	}
	idx := len(ctx.Program.Constants)
	ctx.Program.Constants = append(ctx.Program.Constants, bytecode.IntegerConstant(v))
	ctx.intConstants[v] = idx
	return idx
}

func (ctx *Context) addFloatConstant(v float64) int {
	idx := len(ctx.Program.Constants)
	ctx.Program.Constants = append(ctx.Program.Constants, bytecode.FloatConstant(v))
	return idx
}

func (ctx *Context) addStringConstant(v string) int {
	if idx, ok := ctx.strConstants[v]; ok {
		return idx
	}
	idx := len(ctx.Program.Constants)
	ctx.Program.Constants = append(ctx.Program.Constants, bytecode.StringConstant(v))
	ctx.strConstants[v] = idx
	return idx
}

func (ctx *Context) addModelIndexConstant(modelIdx int) int {
	idx := len(ctx.Program.Constants)
	ctx.Program.Constants = append(ctx.Program.Constants, bytecode.ModelIndexConstant(modelIdx))
	return idx
}

func (ctx *Context) addFunctionIndexConstant(fnIdx int) int {
	idx := len(ctx.Program.Constants)
	ctx.Program.Constants = append(ctx.Program.Constants, bytecode.FunctionIndexConstant(fnIdx))
	return idx
}

func (ctx *Context) addGlobalDependency(constIdx int) {
	if ctx.globalDeps[constIdx] {
		return
	}
	ctx.globalDeps[constIdx] = true
	ctx.Program.GlobalDependencies = append(ctx.Program.GlobalDependencies, constIdx)
}

// newContextLocal reserves the next top-level ("context") local slot,
// shared across every file in the compilation (spec.md §3: "top-level local
// count with an index→constant-index map").
func (ctx *Context) newContextLocal(constIdx int) int {
	idx := ctx.Program.LocalCount
	ctx.Program.LocalCount++
	ctx.Program.LocalValues[idx] = constIdx
	return idx
}

func (ctx *Context) assembly(file string) *AssemblyState {
	as, ok := ctx.files[file]
	if !ok {
		as = newAssemblyState()
		ctx.files[file] = as
	}
	return as
}

// bindName records name as resolvable within file, pointing at the
// constant constIdx via a freshly reserved context local. It returns that
// context-local index.
func (ctx *Context) bindName(file, name string, constIdx int, public bool) int {
	ctxIdx := ctx.newContextLocal(constIdx)
	as := ctx.assembly(file)
	as.Names[name] = ctxIdx
	if public {
		as.Public[name] = true
	}
	return ctxIdx
}

// lookupContextLocal resolves name against file's own top-level names.
func (ctx *Context) lookupContextLocal(file, name string) (int, bool) {
	ctxIdx, ok := ctx.assembly(file).Names[name]
	return ctxIdx, ok
}

// resolveModelIndex resolves name to a compiled model index by looking it
// up in file's top-level names and checking that the constant it was bound
// to is a model reference — the same path "implement Name" and
// "apply Name to Name" use (spec.md §3 Model/Implement/Apply definitions).
func (ctx *Context) resolveModelIndex(file, name string) (int, bool) {
	ctxIdx, ok := ctx.lookupContextLocal(file, name)
	if !ok {
		return 0, false
	}
	constIdx, ok := ctx.Program.LocalValues[ctxIdx]
	if !ok {
		return 0, false
	}
	c := ctx.Program.Constants[constIdx]
	if c.Kind != bytecode.ConstModelIndex {
		return 0, false
	}
	return int(c.Int), true
}

// CompileFile compiles entryPath and everything it transitively includes,
// reading source text through s, and driving pkg/depsolver to establish a
// dependency-respecting compile order (spec.md §4.3).
func CompileFile(s storage.Storage, entryPath string) (*bytecode.Program, *diag.List) {
	ctx := NewContext()
	solver := depsolver.New()
	parsedDocs := map[string]*ast.Document{}
	seen := map[string]bool{entryPath: true}
	queue := []string{entryPath}

	cwd, _ := os.Getwd()

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		source, err := s.ReadSource(path)
		if err != nil {
			ctx.Errors.Add(token.None, "", "%s: %s", path, err)
			continue
		}
		doc, perrs := parser.Parse(path, source, filepath.Dir(path), cwd)
		ctx.Errors.Extend(perrs)
		parsedDocs[path] = doc

		discovered := solver.Solve(doc)
		for _, dep := range discovered {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	if ctx.Errors.HasErrors() {
		return nil, ctx.Errors
	}

	for solver.Pending() {
		next, ok := solver.NextZeroDegree()
		if !ok {
			break
		}
		ctx.compileDocument(parsedDocs[next])
		solver.SetLoaded(next)
	}

	if solver.Pending() {
		ctx.Errors.Add(token.None, "", "%s", depsolver.NewCycleError(solver))
		return nil, ctx.Errors
	}

	if ctx.Errors.HasErrors() {
		return nil, ctx.Errors
	}

	entry, ok := ctx.findEntryPoint(entryPath)
	if !ok {
		ctx.Errors.Add(token.None, entryPath, "no entry point function found (expected a public function named %q)", "main")
		return nil, ctx.Errors
	}
	ctx.Program.EntryPoint = entry

	return ctx.Program, ctx.Errors
}

// findEntryPoint resolves the compiled program's entry point: by
// convention, the public function named "main" declared in the file
// originally passed to CompileFile. spec.md leaves the exact selection rule
// to the embedder; "main" mirrors original_source's clover-cli invocation
// (DESIGN.md records this as an Open Question decision).
func (ctx *Context) findEntryPoint(entryFile string) (int, bool) {
	ctxIdx, ok := ctx.lookupContextLocal(entryFile, "main")
	if !ok || !ctx.assembly(entryFile).Public["main"] {
		return 0, false
	}
	constIdx, ok := ctx.Program.LocalValues[ctxIdx]
	if !ok {
		return 0, false
	}
	c := ctx.Program.Constants[constIdx]
	if c.Kind != bytecode.ConstFunctionIndex {
		return 0, false
	}
	return int(c.Int), true
}
