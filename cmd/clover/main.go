// Command clover is the thin CLI runner spec.md §6 describes: compile a
// .luck source tree to a .lucky binary program, or run either kind of
// file directly. It narrows smog/cmd/smog/main.go's hand-rolled
// run/compile/disassemble/repl dispatch down to the two-flag surface the
// spec calls for, rebuilt on github.com/urfave/cli/v2 instead of a
// switch over os.Args.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/cloverlang/clover/pkg/bytecode"
	"github.com/cloverlang/clover/pkg/clover"
	"github.com/cloverlang/clover/pkg/clover/examplenative"
	"github.com/cloverlang/clover/pkg/storage"
)

const luckyExt = ".lucky"

func main() {
	app := &cli.App{
		Name:      "clover",
		Usage:     "run or compile a Clover program",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "compile", Usage: "compile <file> to a .lucky program instead of running it"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output path for --compile (default: <file> with \"y\" appended, so foo.luck -> foo.lucky)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("clover: no file specified", 1)
	}
	file := c.Args().First()
	s := storage.NewOS()

	if c.Bool("compile") {
		return compileCommand(s, file, c.String("output"))
	}

	if strings.HasSuffix(file, luckyExt) {
		return runBytecodeFile(s, file)
	}
	return runSourceFile(s, file)
}

// compileCommand implements spec.md §6's --compile rule: the input must
// not already be a compiled program, and the default output name is the
// input path with "y" appended ("foo.luck" -> "foo.lucky").
func compileCommand(s storage.Storage, file, output string) error {
	if strings.HasSuffix(file, luckyExt) {
		return cli.Exit(fmt.Sprintf("clover: %q is already a compiled program, nothing to compile", file), 1)
	}
	if output == "" {
		output = file + "y"
	}

	prog, errs := clover.CompileFile(s, file)
	if errs.HasErrors() {
		return cli.Exit(errs.Error(), 1)
	}

	w, err := s.OpenBinaryWriter(output)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer w.Close()

	var buf countingWriter
	if err := bytecode.Encode(prog, &buf); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if _, err := w.Write(buf.data); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("compiled %s -> %s (%s)\n", file, output, humanize.Bytes(uint64(len(buf.data))))
	return nil
}

func runSourceFile(s storage.Storage, file string) error {
	prog, errs := clover.CompileFile(s, file)
	if errs.HasErrors() {
		return cli.Exit(errs.Error(), 1)
	}
	return runProgram(prog)
}

func runBytecodeFile(s storage.Storage, file string) error {
	r, err := s.OpenBinaryReader(file)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer r.Close()

	prog, err := clover.LoadProgram(r)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return runProgram(prog)
}

func runProgram(prog *bytecode.Program) error {
	state := clover.New(prog)
	examplenative.Register(state)

	result, err := state.Run()
	if err != nil {
		return cli.Exit(fmt.Sprintf("clover: %s", err), 1)
	}
	if result != nil {
		fmt.Println(result.String())
	}
	return nil
}

// countingWriter buffers Encode's output so compileCommand can report its
// size with humanize.Bytes before writing it out.
type countingWriter struct {
	data []byte
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}
