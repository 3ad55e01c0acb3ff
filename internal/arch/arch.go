// Package arch defines the pluggable instruction-stream analyzer (C2):
// given one disassembled instruction, it decides whether the instruction
// contributes to the function's stack frame, is a direct or indirect call,
// or is neither.
package arch

import "fmt"

// Instruction is one disassembled line as produced by the disassembly
// parser (C1): an address, the mnemonic, and the raw operand text.
type Instruction struct {
	Addr     uint64
	Mnemonic string
	Operands string
}

// Effect is what one instruction contributes to stack analysis.
type Effect struct {
	// StackDelta is the number of bytes this instruction adds to the
	// function's own stack frame (push-register-list, stmdb, sub-immediate
	// SP adjustments). Zero for instructions with no frame effect.
	StackDelta uint64

	// IsCall marks a call instruction; Direct/Target are meaningful only
	// when IsCall is true.
	IsCall   bool
	Direct   bool   // true for a call to a fixed address, false for indirect
	Target   uint64 // valid when Direct
	TailCall bool
}

// ContractViolation is returned by Analyzer.Classify when an instruction
// modifies SP in a way the analyzer does not recognize (spec.md §4.2: "any
// other SP-modifying subtract is a contract violation" — the analysis
// cannot proceed without either handling or flagging it).
type ContractViolation struct {
	Addr  uint64
	Inst  Instruction
	Cause string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("0x%x: %s %s: %s", e.Addr, e.Inst.Mnemonic, e.Inst.Operands, e.Cause)
}

// Analyzer is the architecture-specific instruction classifier (C2).
// Implementations are expected to be stateless and safe for reuse across
// functions; any required per-function state (e.g. branch target tracking
// for in-function-branch filtering) is passed in via Classify's context.
type Analyzer interface {
	// Name identifies the architecture, e.g. "armthumb".
	Name() string

	// Classify inspects one instruction in the context of the function
	// it belongs to (funcLo, funcHi bound the function's address range,
	// used to filter in-function branches from call edges) and returns
	// its stack/call Effect. A non-nil *ContractViolation signals an
	// SP-modifying instruction the analyzer does not recognize.
	Classify(inst Instruction, funcLo, funcHi uint64) (Effect, error)
}
