package clover_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/clover"
	"github.com/cloverlang/clover/pkg/clover/examplenative"
	"github.com/cloverlang/clover/pkg/value"
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

func TestState_CompileAndRun(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return 6 * 7 end`,
	}
	prog, errs := clover.CompileFile(files, "main.luck")
	require.False(t, errs.HasErrors(), "unexpected compile errors: %s", errs.Error())

	state := clover.New(prog)
	result, err := state.Run()
	require.NoError(t, err)
	require.Equal(t, value.Integer(42), result)
}

func TestState_NativeFunctionAndModel(t *testing.T) {
	files := memStorage{
		"main.luck": `
public function main()
	local c = Clock(10)
	c.tick()
	c.tick(5)
	print(c.ticks)
	return c.ticks
end`,
	}
	prog, errs := clover.CompileFile(files, "main.luck")
	require.False(t, errs.HasErrors(), "unexpected compile errors: %s", errs.Error())

	state := clover.New(prog)
	examplenative.Register(state)

	result, err := state.Run()
	require.NoError(t, err)
	require.Equal(t, value.Integer(16), result)
}

func TestLoadProgram_RoundTrip(t *testing.T) {
	files := memStorage{
		"main.luck": `public function main() return "hi" end`,
	}
	prog, errs := clover.CompileFile(files, "main.luck")
	require.False(t, errs.HasErrors())

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(prog, &buf))

	loaded, err := clover.LoadProgram(&buf)
	require.NoError(t, err)

	state := clover.New(loaded)
	result, err := state.Run()
	require.NoError(t, err)
	require.Equal(t, value.Str("hi"), result)
}
