package disasm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"firmstack/internal/arch"
	"firmstack/internal/errs"
	"firmstack/internal/model"
)

var funcHeader = func(line string) (addr uint64, name string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasSuffix(line, ">:") {
		return 0, "", false
	}
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return 0, "", false
	}
	a, err := strconv.ParseUint(line[:sp], 16, 64)
	if err != nil {
		return 0, "", false
	}
	rest := strings.TrimSpace(line[sp+1:])
	rest = strings.TrimPrefix(rest, "<")
	rest = strings.TrimSuffix(rest, ">:")
	return a, rest, true
}

// Parse reads an objdump-style disassembly listing (one function header
// line "ADDR <name>:" followed by "  addr:\tmnemonic\toperands" lines per
// instruction) and builds one model.Function per labeled routine,
// classifying every instruction with az to accumulate each function's
// stack frame and callsite list (spec.md §4.1, §4.2).
//
// funcAddrs is the set of addresses carrying a known Function symbol
// (from symtab.FuncAddrs): the Seeking state only starts a new function
// at a header address present in this set, so a data label or a disassembler
// annotation line shaped like "ADDR <name>:" never gets mistaken for a
// routine. A nil or empty funcAddrs means no symbol table was available,
// in which case every header line starts a function.
//
// Parse never fails on a malformed instruction line — it is skipped, since
// the disassembler is trusted to emit consistent output and stray notes
// (section headers, "..." elision markers) are common in real listings.
// A *ContractViolation from the architecture analyzer is fatal and
// returned wrapped as an errs.Instruction error.
func Parse(text string, az arch.Analyzer, funcAddrs map[uint64]bool) ([]*model.Function, error) {
	var funcs []*model.Function
	var cur *model.Function
	var insts []arch.Instruction

	flush := func() error {
		if cur == nil {
			return nil
		}
		hi := cur.Addr + cur.Size
		if hi == cur.Addr && len(insts) > 0 {
			hi = insts[len(insts)-1].Addr + 4
		}
		for _, in := range insts {
			eff, err := az.Classify(in, cur.Addr, hi)
			if err != nil {
				return errs.New(errs.Instruction, err)
			}
			cur.StackFrame += eff.StackDelta
			if eff.IsCall {
				cur.Callsites = append(cur.Callsites, &model.Callsite{
					Addr:     in.Addr,
					Kind:     callKind(eff.Direct),
					Target:   eff.Target,
					TailCall: eff.TailCall,
				})
			}
		}
		funcs = append(funcs, cur)
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if addr, name, ok := funcHeader(line); ok && (len(funcAddrs) == 0 || funcAddrs[addr]) {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &model.Function{Name: name, Addr: addr}
			insts = nil
			continue
		}
		if cur == nil {
			continue
		}
		in, ok := parseInstLine(line)
		if !ok {
			continue
		}
		if in.Addr > cur.Addr {
			cur.Size = in.Addr - cur.Addr + 4
		}
		insts = append(insts, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("disasm: scan: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return funcs, nil
}

func callKind(direct bool) model.CallKind {
	if direct {
		return model.CallDirect
	}
	return model.CallIndirect
}

// parseInstLine parses one "  1000:\tpush\t{r4, lr}" style line. Operands
// are optional (e.g. "bx\tlr" has operands, "nop" alone does not).
func parseInstLine(line string) (arch.Instruction, bool) {
	t := strings.TrimLeft(line, " \t")
	colon := strings.IndexByte(t, ':')
	if colon <= 0 {
		return arch.Instruction{}, false
	}
	addrText := t[:colon]
	addr, err := strconv.ParseUint(strings.TrimSpace(addrText), 16, 64)
	if err != nil {
		return arch.Instruction{}, false
	}
	rest := strings.TrimSpace(t[colon+1:])
	if rest == "" {
		return arch.Instruction{}, false
	}
	fields := strings.SplitN(rest, "\t", 2)
	if len(fields) == 1 {
		fields = strings.SplitN(rest, "  ", 2)
	}
	mnem := strings.TrimSpace(fields[0])
	if mnem == "" {
		return arch.Instruction{}, false
	}
	ops := ""
	if len(fields) == 2 {
		ops = strings.TrimSpace(fields[1])
	}
	return arch.Instruction{Addr: addr, Mnemonic: mnem, Operands: ops}, true
}
