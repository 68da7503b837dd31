package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstruction_PacksAndUnpacksOperand(t *testing.T) {
	instr := NewInstruction(OpCall, 3)
	require.Equal(t, OpCall, instr.Op())
	require.Equal(t, 3, instr.OperandInt())
}

func TestInstruction_OperandDoesNotBleedIntoOpcodeByte(t *testing.T) {
	instr := NewInstruction(OpJump, 0xFFFFFFFF)
	require.Equal(t, OpJump, instr.Op())
	require.Equal(t, uint64(0xFFFFFFFF), instr.Operand())
}

func TestModel_AddPropertyDedups(t *testing.T) {
	m := NewModel("Point")
	require.Equal(t, 0, m.AddProperty("x"))
	require.Equal(t, 1, m.AddProperty("y"))
	require.Equal(t, 0, m.AddProperty("x"))
	require.Equal(t, 2, m.PropertyCount())
}

func samplePoint() *Program {
	m := NewModel("Point")
	m.AddProperty("x")
	m.AddProperty("y")
	m.Methods["distance_sq"] = 1

	fns := []*Function{
		{Name: "add", ParameterCount: 0, LocalCount: 0, Instructions: []Instruction{
			NewInstruction(OpPushConstant, 3),
			NewInstruction(OpPushConstant, 4),
			NewInstruction(OpOperation, uint64(OpAdd)),
			NewInstruction(OpReturn, 0),
		}},
		{Name: "distance_sq", ParameterCount: 0, LocalCount: 1, IsInstance: true, Instructions: []Instruction{
			NewInstruction(OpLocalGet, 0),
			NewInstruction(OpReturn, 0),
		}},
	}

	return &Program{
		Models:             []*Model{m},
		Functions:          fns,
		Constants:          []ConstantValue{NullConstant, TrueConstant, FalseConstant, IntegerConstant(1), IntegerConstant(2), StringConstant("hi")},
		GlobalDependencies: []int{5},
		LocalCount:         1,
		LocalValues:        map[int]int{0: 3},
		EntryPoint:         0,
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p := samplePoint()

	var buf bytes.Buffer
	require.NoError(t, Encode(p, &buf))

	got, mismatch, err := Decode(&buf)
	require.NoError(t, err)
	require.False(t, mismatch)

	require.Len(t, got.Models, 1)
	require.Equal(t, []string{"x", "y"}, got.Models[0].Properties)
	require.Equal(t, 1, got.Models[0].Methods["distance_sq"])

	require.Len(t, got.Functions, 2)
	require.Equal(t, p.Functions[0].Instructions, got.Functions[0].Instructions)
	require.True(t, got.Functions[1].IsInstance)

	require.Equal(t, p.Constants, got.Constants)
	require.Equal(t, p.GlobalDependencies, got.GlobalDependencies)
	require.Equal(t, p.LocalCount, got.LocalCount)
	require.Equal(t, p.LocalValues, got.LocalValues)
	require.Equal(t, p.EntryPoint, got.EntryPoint)
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	_, _, err := Decode(buf)
	require.Error(t, err)
}

func TestDecode_FlagsVersionMismatchAsWarningNotError(t *testing.T) {
	p := samplePoint()
	var buf bytes.Buffer
	require.NoError(t, Encode(p, &buf))

	raw := buf.Bytes()
	// version triple sits right after the 4-byte magic.
	raw[4] = 9

	got, mismatch, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	require.True(t, mismatch)
	require.NotNil(t, got)
}

func TestOperation_MetaMethodNames(t *testing.T) {
	name, ok := OpAdd.MetaMethod()
	require.True(t, ok)
	require.Equal(t, "_add", name)

	_, ok = OpAnd.MetaMethod()
	require.False(t, ok)
}
