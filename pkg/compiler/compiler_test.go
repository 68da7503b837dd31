package compiler

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/bytecode"
)

// memStorage is an in-memory storage.Storage fixture: no filesystem access,
// so tests can describe a whole multi-file program as a literal map.
type memStorage map[string]string

func (m memStorage) ReadSource(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", errNotFound(path)
	}
	return src, nil
}

func (m memStorage) OpenBinaryReader(path string) (io.ReadCloser, error) { panic("unused") }
func (m memStorage) OpenBinaryWriter(path string) (io.WriteCloser, error) {
	panic("unused")
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func mustCompile(t *testing.T, files memStorage, entry string) *bytecode.Program {
	t.Helper()
	prog, errs := CompileFile(files, entry)
	require.False(t, errs.HasErrors(), "unexpected compile errors: %s", errs.Error())
	require.NotNil(t, prog)
	return prog
}

func TestCompileFile_ArithmeticFunctionReturnsExpression(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 1 + 2 * 3 end`,
	}
	prog := mustCompile(t, files, "main.luck")

	require.Len(t, prog.Functions, 1)
	fn := prog.Functions[prog.EntryPoint]
	require.Equal(t, "main", fn.Name)

	last := fn.Instructions[len(fn.Instructions)-1]
	require.Equal(t, bytecode.OpReturn, last.Op())

	var sawMul, sawAdd bool
	for _, instr := range fn.Instructions {
		if instr.Op() == bytecode.OpOperation {
			switch bytecode.Operation(instr.OperandInt()) {
			case bytecode.OpMul:
				sawMul = true
			case bytecode.OpAdd:
				sawAdd = true
			}
		}
	}
	require.True(t, sawMul, "expected a mul operation from precedence climbing")
	require.True(t, sawAdd, "expected an add operation")
}

func TestCompileFile_ForLoopEmitsIterationProtocol(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function main()
	local total = 0
	for x in [1, 2, 3]
		total = total + x
	end
	return total
end`,
	}
	prog := mustCompile(t, files, "main.luck")
	fn := prog.Functions[prog.EntryPoint]

	var ops []bytecode.Opcode
	for _, instr := range fn.Instructions {
		ops = append(ops, instr.Op())
	}
	require.Contains(t, ops, bytecode.OpForNext)
	require.Contains(t, ops, bytecode.OpIterate)
	require.Contains(t, ops, bytecode.OpJumpIf)
	require.Contains(t, ops, bytecode.OpJump)
}

func TestCompileFile_ModelImplementAndMethodDispatch(t *testing.T) {
	files := memStorage{
		"main.luck": `
public model Point
	x
	y
end

implement Point
	function distance_sq(this)
		return this.x * this.x + this.y * this.y
	end
end

public function main()
	local p = Point(3, 4)
	return p.distance_sq()
end`,
	}
	prog := mustCompile(t, files, "main.luck")

	require.Len(t, prog.Models, 1)
	model := prog.Models[0]
	require.Equal(t, "Point", model.Name)
	require.Equal(t, []string{"x", "y"}, model.Properties)
	methodIdx, ok := model.Methods["distance_sq"]
	require.True(t, ok)

	method := prog.Functions[methodIdx]
	require.True(t, method.IsInstance)
	require.Equal(t, 1, method.ParameterCount)

	var sawInstanceGet bool
	for _, instr := range method.Instructions {
		if instr.Op() == bytecode.OpInstanceGet {
			sawInstanceGet = true
		}
	}
	require.True(t, sawInstanceGet)
}

func TestCompileFile_IncludeBindsPublicNameAsContextLocal(t *testing.T) {
	files := memStorage{
		"greeter.luck": `public function greet() return "hi" end`,
		"main.luck": `
include greet from "greeter.luck"

public function main()
	return greet()
end`,
	}
	prog := mustCompile(t, files, "main.luck")

	mainFn := prog.Functions[prog.EntryPoint]
	var sawContextGet bool
	for _, instr := range mainFn.Instructions {
		if instr.Op() == bytecode.OpContextGet {
			sawContextGet = true
		}
	}
	require.True(t, sawContextGet, "greet() should resolve through a context local bound by include")
}

func TestCompileFile_IncludeAliasUsesAliasName(t *testing.T) {
	files := memStorage{
		"greeter.luck": `public function greet() return "hi" end`,
		"main.luck": `
include greet as hello from "greeter.luck"

public function main()
	return hello()
end`,
	}
	prog := mustCompile(t, files, "main.luck")
	require.NotNil(t, prog)
}

func TestCompileFile_NonPublicIncludeNameIsError(t *testing.T) {
	files := memStorage{
		"greeter.luck": `function greet() return "hi" end`,
		"main.luck": `
include greet from "greeter.luck"

public function main()
	return greet()
end`,
	}
	_, errs := CompileFile(files, "main.luck")
	require.True(t, errs.HasErrors())
}

func TestCompileFile_IncludeCycleIsReported(t *testing.T) {
	files := memStorage{
		"a.luck": `include b from "b.luck"` + "\n" + `public function fa() return 1 end`,
		"b.luck": `include a from "a.luck"` + "\n" + `public function fb() return 1 end`,
	}
	_, errs := CompileFile(files, "a.luck")
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Error(), "cycle")
}

func TestCompileFile_RescueSplitsFunctionAtTopLevel(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function main()
	return 1 / 0
rescue
	return -1
end`,
	}
	prog := mustCompile(t, files, "main.luck")
	fn := prog.Functions[prog.EntryPoint]
	require.NotZero(t, fn.RescuePosition)
	require.Less(t, fn.RescuePosition, len(fn.Instructions))
}

func TestCompileFile_NotEqualCompilesAsEqThenNot(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 1 != 2 end`,
	}
	prog := mustCompile(t, files, "main.luck")
	fn := prog.Functions[prog.EntryPoint]

	foundEqThenNot := false
	for i := 0; i < len(fn.Instructions)-1; i++ {
		a, b := fn.Instructions[i], fn.Instructions[i+1]
		if a.Op() == bytecode.OpOperation && bytecode.Operation(a.OperandInt()) == bytecode.OpEq && b.Op() == bytecode.OpNot {
			foundEqThenNot = true
		}
	}
	require.True(t, foundEqThenNot)
}

func TestCompileFile_IntegerConstantsAreDeduped(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 7 + 7 end`,
	}
	prog := mustCompile(t, files, "main.luck")

	count := 0
	for _, c := range prog.Constants {
		if c.Kind == bytecode.ConstInteger && c.Int == 7 {
			count++
		}
	}
	require.Equal(t, 1, count, "the constant 7 should be deduplicated across both uses")
}

func TestCompileFile_UndefinedGlobalRecordsDependency(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return some_host_global end`,
	}
	prog := mustCompile(t, files, "main.luck")
	require.Len(t, prog.GlobalDependencies, 1)

	nameConst := prog.Constants[prog.GlobalDependencies[0]]
	require.Equal(t, bytecode.ConstString, nameConst.Kind)
	require.Equal(t, "some_host_global", nameConst.Str)
}
