package arch

import (
	"regexp"
	"strconv"
	"strings"
)

// CortexM implements Analyzer for the ARM/Thumb instruction family used by
// Cortex-M firmware, per spec.md §4.2's instruction table:
//
//	push {...}                    += 4 * len(register list)
//	stmdb sp!, {...}               += 4 * len(register list)
//	sub[s|w] sp, [sp,] #N          += N
//	any other SP-modifying sub     contract violation
//	bl/blx <addr>                  direct call
//	blx <reg>                      indirect call
//	bx <reg>   (reg != lr)         indirect call (tail, via register)
//	bx lr                          return, not a call
//	b/b<cond> <addr> within [funcLo,funcHi)   in-function branch, not a call
//	b/b<cond> <addr> outside function         tail call (direct)
//	cbz/cbnz <reg>, <addr> within [funcLo,funcHi)   in-function branch, not a call
//	cbz/cbnz <reg>, <addr> outside function         tail call (direct)
//	ldr pc, [sp, ...]              return (stack-based PC reload), not a call
//	ldr pc, [<other base>, ...]    indirect call (tail, jump table dispatch)
type CortexM struct{}

// InterruptExtraStackFrame is the architecture-dependent stack allowance
// an interrupt entry reserves on top of a task routine's own computed
// bound, for the target MCU with FPU (spec.md §4.7). It is additive on
// task-routine depth only, never on a callee's own contribution.
const InterruptExtraStackFrame = 224

var (
	reRegList     = regexp.MustCompile(`\{([^}]*)\}`)
	reSubSP       = regexp.MustCompile(`^sub[sw]?$`)
	reSubSPOps    = regexp.MustCompile(`^sp,\s*(?:sp,\s*)?#(\d+)$`)
	reBranchTgt   = regexp.MustCompile(`^(?:0x)?([0-9a-fA-F]+)\s*(?:<.*>)?$`)
	reCondSuffix  = regexp.MustCompile(`^b(eq|ne|cs|hs|cc|lo|mi|pl|vs|vc|hi|ls|ge|lt|gt|le|al)?(\.w)?$`)
)

func (CortexM) Name() string { return "armthumb" }

func (CortexM) Classify(inst Instruction, funcLo, funcHi uint64) (Effect, error) {
	mnem := strings.ToLower(strings.TrimSpace(inst.Mnemonic))
	ops := strings.TrimSpace(inst.Operands)

	switch {
	case mnem == "push":
		return Effect{StackDelta: regListBytes(ops)}, nil

	case mnem == "stmdb" && strings.HasPrefix(ops, "sp!,"):
		return Effect{StackDelta: regListBytes(ops)}, nil

	case reSubSP.MatchString(mnem):
		if m := reSubSPOps.FindStringSubmatch(ops); m != nil {
			n, _ := strconv.ParseUint(m[1], 10, 64)
			return Effect{StackDelta: n}, nil
		}
		if strings.HasPrefix(ops, "sp") {
			return Effect{}, &ContractViolation{
				Addr: inst.Addr, Inst: inst,
				Cause: "SP-modifying subtract does not match push/stmdb/sub #imm pattern",
			}
		}
		return Effect{}, nil

	case mnem == "bl" || mnem == "blx":
		if target, ok := parseHexTarget(ops); ok {
			return Effect{IsCall: true, Direct: true, Target: target}, nil
		}
		return Effect{IsCall: true, Direct: false}, nil

	case mnem == "bx":
		if strings.EqualFold(ops, "lr") {
			return Effect{}, nil // return, not a call
		}
		return Effect{IsCall: true, Direct: false, TailCall: true}, nil

	case reCondSuffix.MatchString(mnem):
		target, ok := parseHexTarget(ops)
		if !ok {
			return Effect{}, nil
		}
		if target >= funcLo && target < funcHi {
			return Effect{}, nil // in-function branch, not a call
		}
		return Effect{IsCall: true, Direct: true, Target: target, TailCall: true}, nil

	case mnem == "cbz" || mnem == "cbnz":
		target, ok := parseCompareBranchTarget(ops)
		if !ok {
			return Effect{}, nil
		}
		if target >= funcLo && target < funcHi {
			return Effect{}, nil // in-function branch, not a call
		}
		return Effect{IsCall: true, Direct: true, Target: target, TailCall: true}, nil

	case mnem == "ldr" && strings.HasPrefix(ops, "pc,"):
		if ldrPCBaseIsSP(ops) {
			return Effect{}, nil // return via stack-based PC reload, not a call
		}
		return Effect{IsCall: true, Direct: false, TailCall: true}, nil
	}

	return Effect{}, nil
}

func regListBytes(ops string) uint64 {
	m := reRegList.FindStringSubmatch(ops)
	if m == nil {
		return 0
	}
	count := 0
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, okLo := regNumber(bounds[0])
			hi, okHi := regNumber(bounds[1])
			if okLo && okHi && hi >= lo {
				count += hi - lo + 1
				continue
			}
		}
		count++
	}
	return uint64(count) * 4
}

func regNumber(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "lr":
		return 14, true
	case "pc":
		return 15, true
	case "sp":
		return 13, true
	}
	if strings.HasPrefix(name, "r") {
		n, err := strconv.Atoi(name[1:])
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func parseHexTarget(ops string) (uint64, bool) {
	m := reBranchTgt.FindStringSubmatch(ops)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseCompareBranchTarget pulls the branch target out of a
// "cbz/cbnz Rn, ADDR" operand pair — the target is the second operand.
func parseCompareBranchTarget(ops string) (uint64, bool) {
	parts := strings.SplitN(ops, ",", 2)
	if len(parts) != 2 {
		return 0, false
	}
	return parseHexTarget(strings.TrimSpace(parts[1]))
}

// ldrPCBaseIsSP reports whether "ldr pc, [...]" loads from an SP-based
// address, the epilogue pattern for restoring the return address rather
// than dispatching through a jump table.
func ldrPCBaseIsSP(ops string) bool {
	rest := strings.TrimSpace(strings.TrimPrefix(ops, "pc,"))
	rest = strings.TrimPrefix(rest, "[")
	return strings.HasPrefix(strings.ToLower(rest), "sp")
}
