// Package report implements the task walker and reporter (C7): walking
// each task's resolved max-stack path from its routine down through
// StackSuccessor links, printing the per-task bound, and surfacing cycle
// membership and unresolved findings collected earlier in the pipeline.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"firmstack/internal/arch"
	"firmstack/internal/errs"
	"firmstack/internal/lineresolve"
	"firmstack/internal/model"
)

// PathStep is one hop of a task's walked stack path.
type PathStep struct {
	Func      *model.Function
	CycleNote string // non-empty when Func belongs to a cycle group
}

// TaskReport is one task's resolved stack bound plus the path that
// produced it.
type TaskReport struct {
	Task  *model.Task
	Total uint64
	Path  []PathStep

	// InlineStacks[i] is the inline-expansion stack at the callsite
	// connecting Path[i] to Path[i+1], innermost frame first, populated
	// by WithInlineStacks. Nil until then.
	InlineStacks [][]lineresolve.Frame
}

// WithInlineStacks annotates each report's path with the full
// inline-expansion stack at every callsite along it (spec.md
// SPEC_FULL.md "Inline-stack pretty-printing"), rather than a single
// (file, line) pair per hop.
func WithInlineStacks(reports []TaskReport, lr lineresolve.Resolver) []TaskReport {
	for i := range reports {
		r := &reports[i]
		if len(r.Path) < 2 {
			continue
		}
		r.InlineStacks = make([][]lineresolve.Frame, len(r.Path)-1)
		for j := 0; j+1 < len(r.Path); j++ {
			from, to := r.Path[j].Func, r.Path[j+1].Func
			addr, ok := callsiteAddr(from, to)
			if !ok {
				continue
			}
			frames, err := lr.Resolve(addr, true)
			if err == nil {
				r.InlineStacks[j] = frames
			}
		}
	}
	return reports
}

func callsiteAddr(from, to *model.Function) (uint64, bool) {
	for _, cs := range from.Callsites {
		if cs.Callee == to {
			return cs.Addr, true
		}
	}
	return 0, false
}

func writeInlineStacks(w io.Writer, r TaskReport) {
	for i, frames := range r.InlineStacks {
		if len(frames) == 0 {
			continue
		}
		fmt.Fprintf(w, "     inline stack at callsite %s -> %s:\n", r.Path[i].Func.Name, r.Path[i+1].Func.Name)
		for depth, fr := range frames {
			fmt.Fprintf(w, "       %s%s (%s:%d)\n", indent(depth), fr.Func, fr.File, fr.Line)
		}
	}
}

func indent(depth int) string {
	out := ""
	for i := 0; i < depth; i++ {
		out += "  "
	}
	return out
}

// Walk follows Routine.StackSuccessor links to build each task's reported
// path. A cycle is still walked through once (the successor chain cannot
// loop back on itself, since StackSuccessor only ever points at a
// different-SCC callee — see internal/analysis), so this never infinite
// loops even though cycle membership is noted along the way.
//
// Total adds arch.InterruptExtraStackFrame to the routine's own computed
// bound (spec.md §4.7): an interrupt can preempt a task at any point in
// its call path, so every task's reported bound must cover the worst-case
// interrupt entry frame on top of its deepest call chain. This allowance
// is added once per task, never per callee in the path.
func Walk(tasks []*model.Task) []TaskReport {
	out := make([]TaskReport, 0, len(tasks))
	for _, task := range tasks {
		var path []PathStep
		for fn := task.Routine; fn != nil; fn = fn.StackSuccessor {
			note := ""
			if fn.CycleIndex != 0 {
				note = fmt.Sprintf("cycle #%d (bound through this function is not sound)", fn.CycleIndex)
			}
			path = append(path, PathStep{Func: fn, CycleNote: note})
		}
		total := uint64(0)
		if task.Routine != nil {
			total = task.Routine.StackMaxUsage + arch.InterruptExtraStackFrame
		}
		out = append(out, TaskReport{Task: task, Total: total, Path: path})
	}
	return out
}

// Write renders the text report: one section per task with its total
// bound and walked path, followed by any non-fatal findings gathered
// during annotation resolution.
func Write(w io.Writer, reports []TaskReport, findings []errs.Finding) {
	for _, r := range reports {
		fmt.Fprintf(w, "task %s (routine %s): stack bound = %d bytes (includes %d byte interrupt frame; declared = %d bytes)\n",
			r.Task.Name, r.Task.RoutineName, r.Total, arch.InterruptExtraStackFrame, r.Task.DeclaredStack)
		for i, step := range r.Path {
			fmt.Fprintf(w, "  %d. %s  frame=%d", i, step.Func.Name, step.Func.StackFrame)
			if loc := location(step.Func); loc != "" {
				fmt.Fprintf(w, "  (%s)", loc)
			}
			if step.CycleNote != "" {
				fmt.Fprintf(w, "  [%s]", step.CycleNote)
			}
			fmt.Fprintln(w)
		}
		if r.InlineStacks != nil {
			writeInlineStacks(w, r)
		}
		if r.Task.DeclaredStack != 0 && r.Total > r.Task.DeclaredStack {
			fmt.Fprintf(w, "  WARNING: declared stack size %d is smaller than the computed bound\n", r.Task.DeclaredStack)
		}
		fmt.Fprintln(w)
	}

	if len(findings) == 0 {
		return
	}
	fmt.Fprintln(w, "annotation findings:")
	for _, f := range findings {
		fmt.Fprintf(w, "  %s\n", f.String())
	}
}

// location renders a function's declaring file relative to the current
// working directory, the way the original tool does (spec.md
// SPEC_FULL.md "Relative-path display"). Falls back to the absolute path
// if the relative form cannot be computed.
func location(fn *model.Function) string {
	if fn.File == "" {
		return ""
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("%s:%d", fn.File, fn.Line)
	}
	rel, err := filepath.Rel(wd, fn.File)
	if err != nil {
		rel = fn.File
	}
	if fn.Line > 0 {
		return fmt.Sprintf("%s:%d", rel, fn.Line)
	}
	return rel
}
