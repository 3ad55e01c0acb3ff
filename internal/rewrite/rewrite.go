// Package rewrite implements the graph rewriter (C5): applying resolved
// annotation edges to the call graph. Rewriting is idempotent — applying
// the same inputs twice leaves the graph unchanged, since add is a
// set-insert keyed by (caller, callee) and remove rebuilds each
// function's callsite list by filtering rather than a positional
// instruction edit.
package rewrite

import "firmstack/internal/model"

// Edge is the minimal shape rewrite needs from a resolved annotation —
// satisfied by annotate.Edge without importing that package, to keep
// rewrite's dependency graph one-directional (C5 does not need to know
// how C4 produced the edges it is given).
type Edge struct {
	Caller *model.Function
	Callee *model.Function
}

// Apply rewrites funcs in place per spec.md §4.5:
//
//  1. every edge gets a synthetic non-tail CallDirect callsite
//     (site address ∅) appended to its Caller, idempotently.
//  2. every function in funcs has any callsite whose Callee is in
//     removeSet dropped — removal excises the callee as a node from the
//     whole graph, not just from whichever caller a rule happened to name.
//  3. any remaining indirect callsite (Callee still unresolved) whose
//     address is in eliminated is dropped: it was already folded into a
//     synthetic edge by the second annotation-resolution pass.
func Apply(funcs []*model.Function, edges []Edge, removeSet []*model.Function, eliminated map[uint64]bool) {
	for _, e := range edges {
		add(e.Caller, e.Callee)
	}

	removed := make(map[*model.Function]bool, len(removeSet))
	for _, fn := range removeSet {
		removed[fn] = true
	}
	if len(removed) == 0 && len(eliminated) == 0 {
		return
	}

	for _, fn := range funcs {
		kept := fn.Callsites[:0]
		for _, cs := range fn.Callsites {
			if cs.Callee != nil && removed[cs.Callee] {
				continue
			}
			if cs.Callee == nil && cs.Kind == model.CallIndirect && eliminated[cs.Addr] {
				continue
			}
			kept = append(kept, cs)
		}
		fn.Callsites = kept
	}
}

func add(caller, callee *model.Function) {
	for _, cs := range caller.Callsites {
		if cs.Callee == callee {
			return // already present; idempotent
		}
	}
	caller.Callsites = append(caller.Callsites, &model.Callsite{
		Kind:   model.CallDirect,
		Target: callee.Addr,
		Callee: callee,
	})
}
