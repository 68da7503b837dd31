package vm_test

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/compiler"
	"github.com/cloverlang/clover/pkg/value"
	"github.com/cloverlang/clover/pkg/vm"
)

type memStorage map[string]string

func (m memStorage) ReadSource(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", errNotFound(path)
	}
	return src, nil
}

func (m memStorage) OpenBinaryReader(path string) (io.ReadCloser, error)  { panic("unused") }
func (m memStorage) OpenBinaryWriter(path string) (io.WriteCloser, error) { panic("unused") }

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

func run(t *testing.T, files memStorage, entry string) (value.Value, error) {
	t.Helper()
	prog, errs := compiler.CompileFile(files, entry)
	require.False(t, errs.HasErrors(), "unexpected compile errors: %s", errs.Error())
	return vm.New(prog).Execute()
}

func TestExecute_IntegerArithmetic(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 1 + 2 * 3 end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(7), result)
}

func TestExecute_FloatModPreservesFraction(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 5.5 % 2.0 end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Float(1.5), result)
}

func TestExecute_ForLoopOverInteger(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function main()
	local s = 0
	for i in 5
		s = s + i
	end
	return s
end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(10), result)
}

func TestExecute_ForLoopOverArray(t *testing.T) {
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
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(6), result)
}

func TestExecute_ModelImplementAndMethodDispatch(t *testing.T) {
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
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(25), result)
}

func TestExecute_IncludeAndPublicName(t *testing.T) {
	files := memStorage{
		"a.luck": `public function greet() return "hi" end`,
		"main.luck": `
include greet from "a.luck"
public function main() return greet() end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Str("hi"), result)
}

func TestExecute_RescueCatchesDivByZero(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function safe_div(a, b)
	local r = a / b
	return r
rescue
	return -1
end
public function main() return safe_div(10, 0) end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(-1), result)
}

func TestExecute_RescueDoesNotFireOnSuccess(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function safe_div(a, b)
	local r = a / b
	return r
rescue
	return -1
end
public function main() return safe_div(10, 2) end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(5), result)
}

func TestExecute_UnrescuedErrorReturnsStackTrace(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function divide(a, b) return a / b end
public function main() return divide(1, 0) end`,
	}
	_, err := run(t, files, "main.luck")
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	require.Equal(t, vm.KindArithmeticDomain, rerr.Kind)
	require.NotEmpty(t, rerr.StackTrace)
	require.NotEqual(t, uuid.UUID{}, rerr.StateID)
}

func TestExecute_ModelMetaMethodDispatch(t *testing.T) {
	files := memStorage{
		"main.luck": `
public model Vec
	x
end

implement Vec
	function _add(this, other)
		return Vec(this.x + other.x)
	end
end

public function main()
	local a = Vec(1)
	local b = Vec(2)
	local c = a + b
	return c.x
end`,
	}
	result, err := run(t, files, "main.luck")
	require.NoError(t, err)
	require.Equal(t, value.Integer(3), result)
}

func TestExecute_NativeFunctionReentry(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function doubled(x) return x * 2 end
public function main() return apply_twice(doubled, 5) end`,
	}
	prog, errs := compiler.CompileFile(files, "main.luck")
	require.False(t, errs.HasErrors())

	state := vm.New(prog)
	state.AddNativeFunction("apply_twice", func(caller value.Caller, args []value.Value) (value.Value, error) {
		once, err := caller.Call(args[0], []value.Value{args[1]})
		if err != nil {
			return nil, err
		}
		return caller.Call(args[0], []value.Value{once})
	})

	result, err := state.Execute()
	require.NoError(t, err)
	require.Equal(t, value.Integer(20), result)
}

func TestExecute_MissingGlobalIsRuntimeError(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return some_host_global end`,
	}
	_, err := run(t, files, "main.luck")
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	require.Equal(t, vm.KindMissingGlobal, rerr.Kind)
}
