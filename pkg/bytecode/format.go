// Binary program format for Clover .lucky files (spec.md §4.11).
//
// Layout, little-endian throughout:
//
//	magic            uint32          "luck" = 0x6b63756c
//	version           3 bytes + pad  major, minor, patch, 0
//	models            count + Model entries
//	functions         count + Function entries
//	constants         count + (constant beyond the fixed 3) entries
//	global deps       count + uint32 constant indices
//	local count       uint32
//	local inits       count + (local index, constant index) pairs
//	entry point       uint32 function index
//
// File-info and debug-info are compile-time only and are never written;
// Decode always returns a Program with both absent, matching spec.md's
// "a loaded program has them as absent".
package bytecode

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Magic is the four-byte file signature ("luck").
const Magic uint32 = 0x6b63756c

// FormatVersion is the advisory version triple Encode stamps into new
// files. Decode only warns (via the returned bool) on a mismatch, never
// errors — spec.md §4.11: "Mismatch prints a warning but continues."
var FormatVersion = [3]byte{1, 0, 0}

// Encode writes p to w in the binary program format.
func Encode(p *Program, w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := writeU32(bw, Magic); err != nil {
		return errors.Wrap(err, "bytecode: write magic")
	}
	if _, err := bw.Write([]byte{FormatVersion[0], FormatVersion[1], FormatVersion[2], 0}); err != nil {
		return errors.Wrap(err, "bytecode: write version")
	}
	if err := writeModels(bw, p.Models); err != nil {
		return errors.Wrap(err, "bytecode: write models")
	}
	if err := writeFunctions(bw, p.Functions); err != nil {
		return errors.Wrap(err, "bytecode: write functions")
	}
	if err := writeConstants(bw, p.Constants); err != nil {
		return errors.Wrap(err, "bytecode: write constants")
	}
	if err := writeGlobalDeps(bw, p.GlobalDependencies); err != nil {
		return errors.Wrap(err, "bytecode: write global dependencies")
	}
	if err := writeU32(bw, uint32(p.LocalCount)); err != nil {
		return errors.Wrap(err, "bytecode: write local count")
	}
	if err := writeLocalValues(bw, p.LocalValues); err != nil {
		return errors.Wrap(err, "bytecode: write local initializers")
	}
	if err := writeU32(bw, uint32(p.EntryPoint)); err != nil {
		return errors.Wrap(err, "bytecode: write entry point")
	}
	return errors.Wrap(bw.Flush(), "bytecode: flush")
}

// Decode reads a Program from r. versionMismatch reports whether the
// file's version triple differed from FormatVersion; callers decide
// whether (and how) to surface that as a warning.
func Decode(r io.Reader) (p *Program, versionMismatch bool, err error) {
	br := bufio.NewReader(r)

	magic, err := readU32(br)
	if err != nil {
		return nil, false, errors.Wrap(err, "bytecode: read magic")
	}
	if magic != Magic {
		return nil, false, errors.Errorf("bytecode: bad magic 0x%08x (expected 0x%08x)", magic, Magic)
	}

	var versionBytes [4]byte
	if _, err := io.ReadFull(br, versionBytes[:]); err != nil {
		return nil, false, errors.Wrap(err, "bytecode: read version")
	}
	mismatch := versionBytes[0] != FormatVersion[0] || versionBytes[1] != FormatVersion[1] || versionBytes[2] != FormatVersion[2]

	p = &Program{LocalValues: map[int]int{}}

	p.Models, err = readModels(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read models")
	}
	p.Functions, err = readFunctions(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read functions")
	}
	p.Constants, err = readConstants(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read constants")
	}
	p.GlobalDependencies, err = readGlobalDeps(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read global dependencies")
	}
	localCount, err := readU32(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read local count")
	}
	p.LocalCount = int(localCount)
	p.LocalValues, err = readLocalValues(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read local initializers")
	}
	entryPoint, err := readU32(br)
	if err != nil {
		return nil, mismatch, errors.Wrap(err, "bytecode: read entry point")
	}
	p.EntryPoint = int(entryPoint)

	return p, mismatch, nil
}

// ---- primitive field helpers ----

func writeU8(w io.Writer, v uint8) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeU16(w io.Writer, v uint16) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU64(w io.Writer, v uint64) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI64(w io.Writer, v int64) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF64(w io.Writer, v float64) error { return binary.Write(w, binary.LittleEndian, v) }

func readU8(r io.Reader) (uint8, error) {
	var v uint8
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readI64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
func readF64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ---- models ----

func writeModels(w io.Writer, models []*Model) error {
	if err := writeU32(w, uint32(len(models))); err != nil {
		return err
	}
	for _, m := range models {
		if err := writeU32(w, uint32(len(m.Properties))); err != nil {
			return err
		}
		for _, prop := range m.Properties {
			if err := writeString(w, prop); err != nil {
				return err
			}
		}
		if err := writeU32(w, uint32(len(m.Methods))); err != nil {
			return err
		}
		for name, idx := range m.Methods {
			if err := writeString(w, name); err != nil {
				return err
			}
			if err := writeU32(w, uint32(idx)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readModels(r io.Reader) ([]*Model, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	models := make([]*Model, count)
	for i := range models {
		m := NewModel("")
		propCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		for p := uint32(0); p < propCount; p++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			m.AddProperty(name)
		}
		methodCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		for mi := uint32(0); mi < methodCount; mi++ {
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			idx, err := readU32(r)
			if err != nil {
				return nil, err
			}
			m.Methods[name] = int(idx)
		}
		models[i] = m
	}
	return models, nil
}

// ---- functions ----

func writeFunctions(w io.Writer, fns []*Function) error {
	if err := writeU32(w, uint32(len(fns))); err != nil {
		return err
	}
	for _, fn := range fns {
		if err := writeU32(w, uint32(fn.ParameterCount)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(fn.LocalCount)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(fn.RescuePosition)); err != nil {
			return err
		}
		isInstance := uint8(0)
		if fn.IsInstance {
			isInstance = 1
		}
		if err := writeU8(w, isInstance); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(fn.Instructions))); err != nil {
			return err
		}
		for _, instr := range fn.Instructions {
			if err := writeU64(w, uint64(instr)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFunctions(r io.Reader) ([]*Function, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	fns := make([]*Function, count)
	for i := range fns {
		paramCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		localCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		rescuePos, err := readU32(r)
		if err != nil {
			return nil, err
		}
		isInstanceByte, err := readU8(r)
		if err != nil {
			return nil, err
		}
		instrCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		instrs := make([]Instruction, instrCount)
		for j := range instrs {
			word, err := readU64(r)
			if err != nil {
				return nil, err
			}
			instrs[j] = Instruction(word)
		}
		fns[i] = &Function{
			ParameterCount: int(paramCount),
			LocalCount:     int(localCount),
			RescuePosition: int(rescuePos),
			IsInstance:     isInstanceByte != 0,
			Instructions:   instrs,
		}
	}
	return fns, nil
}

// ---- constants ----

const (
	constTagInteger      byte = 0
	constTagFloat        byte = 1
	constTagString       byte = 2
	constTagModelIndex   byte = 3
	constTagFunctionIndex byte = 4
)

func writeConstants(w io.Writer, constants []ConstantValue) error {
	if err := writeU32(w, uint32(len(constants))); err != nil {
		return err
	}
	for i, c := range constants {
		if i < 3 {
			// slots 0,1,2 are the fixed Null/true/false constants and are
			// not re-serialized; Decode reconstructs them positionally.
			continue
		}
		switch c.Kind {
		case ConstInteger:
			if err := writeU8(w, constTagInteger); err != nil {
				return err
			}
			if err := writeI64(w, c.Int); err != nil {
				return err
			}
		case ConstFloat:
			if err := writeU8(w, constTagFloat); err != nil {
				return err
			}
			if err := writeF64(w, c.Flt); err != nil {
				return err
			}
		case ConstString:
			if err := writeU8(w, constTagString); err != nil {
				return err
			}
			if err := writeString(w, c.Str); err != nil {
				return err
			}
		case ConstModelIndex:
			if err := writeU8(w, constTagModelIndex); err != nil {
				return err
			}
			if err := writeU32(w, uint32(c.Int)); err != nil {
				return err
			}
		case ConstFunctionIndex:
			if err := writeU8(w, constTagFunctionIndex); err != nil {
				return err
			}
			if err := writeU32(w, uint32(c.Int)); err != nil {
				return err
			}
		default:
			return errors.Errorf("bytecode: constant %d has unserializable kind %d", i, c.Kind)
		}
	}
	return nil
}

func readConstants(r io.Reader) ([]ConstantValue, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	constants := make([]ConstantValue, 0, count)
	constants = append(constants, NullConstant, TrueConstant, FalseConstant)
	for i := uint32(3); i < count; i++ {
		tag, err := readU8(r)
		if err != nil {
			return nil, err
		}
		switch tag {
		case constTagInteger:
			v, err := readI64(r)
			if err != nil {
				return nil, err
			}
			constants = append(constants, IntegerConstant(v))
		case constTagFloat:
			v, err := readF64(r)
			if err != nil {
				return nil, err
			}
			constants = append(constants, FloatConstant(v))
		case constTagString:
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			constants = append(constants, StringConstant(v))
		case constTagModelIndex:
			v, err := readU32(r)
			if err != nil {
				return nil, err
			}
			constants = append(constants, ModelIndexConstant(int(v)))
		case constTagFunctionIndex:
			v, err := readU32(r)
			if err != nil {
				return nil, err
			}
			constants = append(constants, FunctionIndexConstant(int(v)))
		default:
			return nil, errors.Errorf("bytecode: unknown constant tag %d", tag)
		}
	}
	return constants, nil
}

// ---- global dependencies ----

func writeGlobalDeps(w io.Writer, deps []int) error {
	if err := writeU32(w, uint32(len(deps))); err != nil {
		return err
	}
	for _, d := range deps {
		if err := writeU32(w, uint32(d)); err != nil {
			return err
		}
	}
	return nil
}

func readGlobalDeps(r io.Reader) ([]int, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	deps := make([]int, count)
	for i := range deps {
		v, err := readU32(r)
		if err != nil {
			return nil, err
		}
		deps[i] = int(v)
	}
	return deps, nil
}

// ---- top-level local initializers ----

func writeLocalValues(w io.Writer, values map[int]int) error {
	if err := writeU32(w, uint32(len(values))); err != nil {
		return err
	}
	// Write the pairs in ascending local-index order so this section's bytes
	// do not depend on map iteration order.
	keys := make([]int, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sortInts(keys)
	for _, k := range keys {
		if err := writeU32(w, uint32(k)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(values[k])); err != nil {
			return err
		}
	}
	return nil
}

func readLocalValues(r io.Reader) (map[int]int, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	values := make(map[int]int, count)
	for i := uint32(0); i < count; i++ {
		localIdx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		constIdx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		values[int(localIdx)] = int(constIdx)
	}
	return values, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
