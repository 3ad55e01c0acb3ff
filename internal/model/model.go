// Package model defines the data types shared across the stack-bound
// analysis pipeline: symbols, functions, callsites, tasks, and the
// annotation rules used to repair an incomplete call graph.
package model

import "fmt"

// SymbolKind distinguishes a Function symbol (the only kind the
// disassembly parser may start a new function at) from a Data symbol
// (spec.md §4.1, §6 dump_symbols: "O" = data, "F" = function).
type SymbolKind int

const (
	SymbolData SymbolKind = iota
	SymbolFunction
)

func (k SymbolKind) String() string {
	if k == SymbolFunction {
		return "function"
	}
	return "data"
}

// Symbol is one entry from the target's symbol table.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
	Kind SymbolKind
}

// CallKind distinguishes how a callsite transfers control.
type CallKind int

const (
	// CallDirect is a call whose target address is known from the
	// instruction stream (e.g. BL/BL.W to a fixed address).
	CallDirect CallKind = iota
	// CallIndirect is a call through a register or memory operand whose
	// target is not statically known (e.g. BLX Rn, BX Rn via a jump table).
	CallIndirect
)

func (k CallKind) String() string {
	switch k {
	case CallDirect:
		return "direct"
	case CallIndirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Callsite is one call instruction inside a function's body.
type Callsite struct {
	Addr uint64 // address of the call instruction
	Kind CallKind

	// Target is the resolved callee address for CallDirect callsites.
	// Zero and meaningless for CallIndirect; annotations never fill it in
	// (the graph rewriter adds separate CallDirect callsites instead).
	Target uint64

	// TailCall is true when the call instruction is also the function's
	// return path (a tail call) rather than a call followed by further
	// work in the caller. Tail calls compose with max(), not +=, when the
	// stack-path cost is folded (spec.md §4.6, §8 scenario 3).
	TailCall bool

	// Callee is filled in by the call-graph builder once Target resolves
	// to a known function. Nil for unresolved direct calls and for every
	// indirect call; annotation edges arrive as separate callsites added
	// by the graph rewriter, which also drops indirect callsites that an
	// annotation accounted for.
	Callee *Function
}

// Function is one disassembled routine: its own stack frame size plus the
// callsites found in its body. StackMaxUsage, StackSuccessor and CycleIndex
// are the three finalized results the SCC + max-stack analyzer (C6) writes
// back once computed; they are meaningless before that pass runs.
type Function struct {
	Name      string
	Addr      uint64
	Size      uint64
	File      string // declaring source file, if known (for annotation matching)
	Line      int    // declaring source line, if known

	// StackFrame is this function's own prologue stack allocation in
	// bytes, as derived by the architecture analyzer (C2) from its
	// instruction stream. Does not include callee contributions.
	StackFrame uint64

	Callsites []*Callsite

	// Results written by the SCC + max-stack analyzer. StackMaxUsage is
	// the cost of the deepest path starting here: StackFrame plus the
	// callee's StackMaxUsage for a non-tail call, the larger of the two for
	// a tail call; it is NOT a sound upper bound when CycleIndex is non-zero
	// (spec.md §9 design note on cycle unsoundness).
	StackMaxUsage  uint64
	StackSuccessor *Function // callee chosen as the max-stack path, or nil at a leaf
	CycleIndex     int       // 0 = not part of any cycle; otherwise a 1-based SCC id
}

func (f *Function) String() string {
	return fmt.Sprintf("%s@0x%x", f.Name, f.Addr)
}

// Task is one entry from the task table: a named execution context whose
// analysis entry point is Routine.
type Task struct {
	Name          string
	RoutineName   string
	DeclaredStack uint64 // stack_size declared in the task table, in bytes
	Routine       *Function
}

// SignatureKind is what shape a parsed annotation signature takes.
type SignatureKind int

const (
	// SigName is bare NAME: matches by symbol name only.
	SigName SignatureKind = iota
	// SigNameFile is NAME,PATH: matches by symbol name + declaring file.
	SigNameFile
	// SigNameFileLine is NAME,PATH:LINE: matches by symbol name,
	// declaring file, and a specific line (for disambiguating duplicate
	// static functions across distinct inline expansions).
	SigNameFileLine
)

// Signature is a parsed annotation target, per spec.md §4.4's grammar:
// NAME[,PATH[:LINE]].
type Signature struct {
	Kind SignatureKind
	Name string
	Path string
	Line int
}

func (s Signature) String() string {
	switch s.Kind {
	case SigNameFileLine:
		return fmt.Sprintf("%s,%s:%d", s.Name, s.Path, s.Line)
	case SigNameFile:
		return fmt.Sprintf("%s,%s", s.Name, s.Path)
	default:
		return s.Name
	}
}

// AddRule is one `add` entry: a source signature mapped to the set of
// destination signatures it should gain an edge to (spec.md §4.4, §6:
// `add_rules`: source-signature -> set of destination-signatures).
type AddRule struct {
	Source       Signature
	Destinations []Signature
}

// RuleSet is the parsed, not-yet-resolved annotation file contents:
// add rules (source -> destination signatures) and remove rules (bare
// signatures whose matching functions are excised as graph nodes
// entirely, not just as one caller's edge — spec.md §4.5).
type RuleSet struct {
	Add    []AddRule
	Remove []Signature
}

// CycleGroup is one strongly connected component of size > 1, or a
// self-loop, discovered by the SCC pass.
type CycleGroup struct {
	Index     int
	Functions []*Function
}
