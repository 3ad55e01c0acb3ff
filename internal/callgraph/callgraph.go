// Package callgraph builds the initial call graph (C3) by resolving every
// direct callsite's target address to the Function it points at. Indirect
// callsites and direct callsites whose target falls outside any known
// function are left unresolved — that's expected; the annotation resolver
// (C4) and graph rewriter (C5) fix those up downstream. This stage never
// errors: an unresolved callsite is simply a nil Callee.
package callgraph

import "firmstack/internal/model"

// Build indexes funcs by address and fills in Callsite.Callee for every
// CallDirect callsite whose Target matches a known function address.
func Build(funcs []*model.Function) map[uint64]*model.Function {
	byAddr := make(map[uint64]*model.Function, len(funcs))
	for _, f := range funcs {
		byAddr[f.Addr] = f
	}
	for _, f := range funcs {
		for _, cs := range f.Callsites {
			if cs.Kind != model.CallDirect {
				continue
			}
			if callee, ok := byAddr[cs.Target]; ok {
				cs.Callee = callee
			}
		}
	}
	return byAddr
}
