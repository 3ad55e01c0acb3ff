// Package nativearm is an in-process alternative to shelling out to
// objdump/addr2line: it decodes ARM/Thumb instructions directly from an
// ELF image's .text bytes with golang.org/x/arch/arm/armasm and formats
// them in the same textual shape internal/disasm.Parse and
// internal/symtab.Parse consume. It exists for environments without a
// cross objdump on PATH, and is the backend this repository's own tests
// exercise, since a real cross-toolchain cannot be assumed to be present
// wherever these tests run (spec.md SPEC_FULL.md §4.8).
package nativearm

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/arch/arm/armasm"

	"firmstack/internal/elfx"
)

// Backend implements disasm.Disassembler and disasm.SymbolDumper against
// an already-open ELF file.
type Backend struct {
	ELF *elfx.File
}

// Disassemble decodes every STT_FUNC symbol's instruction stream and
// renders it as an objdump-compatible listing.
func (b Backend) Disassemble(elfPath string) (string, error) {
	ef := b.ELF
	if ef == nil {
		var err error
		ef, err = elfx.Open(elfPath)
		if err != nil {
			return "", err
		}
		defer ef.Close()
	}

	syms, err := ef.FuncSymbols()
	if err != nil {
		return "", err
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Value < syms[j].Value })

	var sb strings.Builder
	for _, s := range syms {
		size := s.Size
		if size == 0 {
			size = 4
		}
		code, err := ef.ReadBytesAtVA(s.Value, int(size))
		if err != nil {
			continue
		}
		text, err := FormatFunction(s.Value, s.Name, code)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// DumpSymbols renders the ELF's function symbol table in the textual
// shape internal/symtab.Parse expects.
func (b Backend) DumpSymbols(elfPath string) (string, error) {
	ef := b.ELF
	if ef == nil {
		var err error
		ef, err = elfx.Open(elfPath)
		if err != nil {
			return "", err
		}
		defer ef.Close()
	}
	syms, err := ef.FuncSymbols()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SYMBOL TABLE:\n")
	for _, s := range syms {
		fmt.Fprintf(&sb, "%08x g     F .text\t%08x %s\n", s.Value, s.Size, s.Name)
	}
	return sb.String(), nil
}

// FormatFunction decodes code (the bytes of one function, starting at
// addr, a Thumb instruction stream — the overwhelming majority of
// Cortex-M firmware is Thumb-only) and formats it as:
//
//	00001000 <name>:
//	    1000:	push	{r4, lr}
//	    1002:	bx	lr
func FormatFunction(addr uint64, name string, code []byte) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%08x <%s>:\n", addr, name)

	off := 0
	for off < len(code) {
		inst, err := armasm.Decode(code[off:], armasm.ModeThumb)
		if err != nil || inst.Len == 0 {
			off += 2 // resync on a halfword boundary and keep going
			continue
		}
		mnem, ops := splitGNUSyntax(inst)
		fmt.Fprintf(&sb, "    %x:\t%s\t%s\n", addr+uint64(off), mnem, ops)
		off += inst.Len
	}
	return sb.String(), nil
}

// splitGNUSyntax turns armasm's single-string instruction rendering into
// the (mnemonic, operands) pair the textual parser expects.
func splitGNUSyntax(inst armasm.Inst) (string, string) {
	s := strings.TrimSpace(armasm.GNUSyntax(inst))
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return strings.ToLower(s), ""
	}
	return strings.ToLower(s[:sp]), strings.TrimSpace(s[sp+1:])
}
