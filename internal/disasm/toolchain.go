// Package disasm implements the disassembly parser (C1): turning a
// textual disassembly listing into per-function instruction streams, and
// the external-collaborator interfaces (disassembler, symbol dumper) the
// rest of the pipeline depends on but treats as opaque. The line resolver
// interface lives in internal/lineresolve.
package disasm

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Disassembler produces a textual disassembly listing for an ELF image,
// in the format this package's Parse function understands (objdump's
// `-d` output, or a compatible native rendering).
type Disassembler interface {
	Disassemble(elfPath string) (string, error)
}

// SymbolDumper produces the symbol table text for an ELF image, in the
// format internal/symtab understands (objdump's `-t` output, or
// equivalent).
type SymbolDumper interface {
	DumpSymbols(elfPath string) (string, error)
}

// ExecToolchain shells out to the configured objdump binary, the default
// collaborator implementation described in spec.md §6. Addr2linePath is
// stored but not run by any method here; address-to-line lookups go
// through lineresolve.Addr2Line.
type ExecToolchain struct {
	ObjdumpPath  string
	Addr2linePath string
}

func (t ExecToolchain) Disassemble(elfPath string) (string, error) {
	out, err := runTool(t.objdump(), "-d", "--no-show-raw-insn", elfPath)
	if err != nil {
		return "", fmt.Errorf("disasm: objdump -d: %w", err)
	}
	return out, nil
}

func (t ExecToolchain) DumpSymbols(elfPath string) (string, error) {
	out, err := runTool(t.objdump(), "-t", elfPath)
	if err != nil {
		return "", fmt.Errorf("disasm: objdump -t: %w", err)
	}
	return out, nil
}

func (t ExecToolchain) objdump() string {
	if t.ObjdumpPath != "" {
		return t.ObjdumpPath
	}
	return "objdump"
}

func (t ExecToolchain) addr2line() string {
	if t.Addr2linePath != "" {
		return t.Addr2linePath
	}
	return "addr2line"
}

func runTool(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}
