package report

import (
	"os"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"firmstack/internal/model"
)

// WriteGraph renders each task's walked stack path as a Graphviz DOT
// callgraph and writes it to path (spec.md SPEC_FULL.md §6, --graph).
// This is purely additive output alongside the text report; it never
// feeds back into the analysis.
func WriteGraph(path string, reports []TaskReport) error {
	g := &lattice.Graph{}
	for _, r := range reports {
		for i := 0; i+1 < len(r.Path); i++ {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: r.Path[i].Func.Name,
				Callee: r.Path[i+1].Func.Name,
			})
		}
		for _, step := range r.Path {
			g.Nodes = append(g.Nodes, step.Func.Name)
		}
	}
	g.Dedup()

	dot := render.DOT(g, "stack paths")
	return os.WriteFile(path, []byte(dot), 0o644)
}

// WriteFuncCFG renders one function as a Graphviz CFG with a single basic
// block listing its callsites in order (an unresolved callee is shown as
// "indirect") and writes it to path. The firmstack command does not call
// it; --graph writes only the stack-path graph from WriteGraph.
func WriteFuncCFG(path string, fn *model.Function) error {
	fcfg := &lattice.FuncCFG{Name: fn.Name}
	block := &lattice.BasicBlock{ID: 0, Start: 0, End: len(fn.Callsites), Term: true}
	for i, cs := range fn.Callsites {
		callee := "indirect"
		if cs.Callee != nil {
			callee = cs.Callee.Name
		}
		block.Calls = append(block.Calls, lattice.CallSite{Offset: i, Callee: callee})
	}
	fcfg.Blocks = append(fcfg.Blocks, block)

	g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{fcfg}}
	dot := render.DOTCFG(g, fn.Name)
	return os.WriteFile(path, []byte(dot), 0o644)
}
