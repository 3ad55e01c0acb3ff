// Package symtab parses the dump_symbols external collaborator's output
// (spec.md §6): objdump -t's symbol table listing, or an equivalent.
package symtab

import (
	"bufio"
	"strconv"
	"strings"

	"firmstack/internal/model"
)

// Parse reads objdump -t style output:
//
//	00001000 g     F .text	00000020 foo
//
// and returns every STT_FUNC ("F") symbol found. Lines that don't match
// this shape (section headers, blank lines, data symbols) are skipped.
func Parse(text string) []model.Symbol {
	var out []model.Symbol
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, " F ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			continue
		}
		// size is the second-to-last whitespace-delimited field, name
		// is whatever follows it (objdump separates them with a tab,
		// but Fields already splits on all whitespace).
		size, err := strconv.ParseUint(fields[len(fields)-2], 16, 64)
		if err != nil {
			continue
		}
		name := fields[len(fields)-1]
		if name == "" {
			continue
		}
		out = append(out, model.Symbol{Name: name, Addr: addr, Size: size, Kind: model.SymbolFunction})
	}
	return out
}

// ByName indexes symbols by name; a later symbol with the same name
// replaces an earlier one.
func ByName(syms []model.Symbol) map[string]model.Symbol {
	m := make(map[string]model.Symbol, len(syms))
	for _, s := range syms {
		m[s.Name] = s
	}
	return m
}

// FuncAddrs returns the set of addresses carrying a Function symbol, for
// gating the disassembly parser's Seeking state (spec.md §4.1: "read
// lines until a function header whose address is a known Function
// symbol").
func FuncAddrs(syms []model.Symbol) map[uint64]bool {
	m := make(map[uint64]bool, len(syms))
	for _, s := range syms {
		if s.Kind == model.SymbolFunction {
			m[s.Addr] = true
		}
	}
	return m
}
