// Command firmstack computes a static, per-task worst-case stack bound
// for ARM/Thumb firmware, walking each task's deepest call path through a
// disassembled, annotation-repaired call graph (spec.md §1, §6).
package main

import (
	"fmt"
	"os"
	"os/exec"

	"firmstack/internal/analysis"
	"firmstack/internal/annotate"
	"firmstack/internal/arch"
	"firmstack/internal/callgraph"
	"firmstack/internal/config"
	"firmstack/internal/disasm"
	"firmstack/internal/elfx"
	"firmstack/internal/errs"
	"firmstack/internal/lineresolve"
	"firmstack/internal/model"
	"firmstack/internal/nativearm"
	"firmstack/internal/report"
	"firmstack/internal/rewrite"
	"firmstack/internal/symtab"
	"firmstack/internal/tasktable"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	toolchain, lr, err := selectBackend(cfg)
	if err != nil {
		return err
	}

	symText, err := toolchain.DumpSymbols(cfg.ELFPath)
	if err != nil {
		return errs.New(errs.ToolInvocation, err)
	}
	syms := symtab.Parse(symText)
	sizeByAddr := make(map[uint64]uint64, len(syms))
	for _, s := range syms {
		sizeByAddr[s.Addr] = s.Size
	}

	disasmText, err := toolchain.Disassemble(cfg.ELFPath)
	if err != nil {
		return errs.New(errs.ToolInvocation, err)
	}
	funcs, err := disasm.Parse(disasmText, arch.CortexM{}, symtab.FuncAddrs(syms))
	if err != nil {
		return err
	}

	for _, f := range funcs {
		if sz, ok := sizeByAddr[f.Addr]; ok && sz > 0 {
			f.Size = sz
		}
		if frames, err := lr.Resolve(f.Addr, false); err == nil && len(frames) > 0 {
			f.File, f.Line = frames[0].File, frames[0].Line
		}
	}

	callgraph.Build(funcs)
	byName := make(map[string]*model.Function, len(funcs))
	for _, f := range funcs {
		byName[f.Name] = f
	}

	var findings []errs.Finding
	if cfg.AnnotationPath != "" {
		rs, parseFindings, err := annotate.LoadRuleSet(cfg.AnnotationPath)
		if err != nil {
			return err
		}
		findings = append(findings, parseFindings...)

		resolver := &annotate.Resolver{Funcs: funcs}
		edges, removeSet, resolveFindings := resolver.Resolve(rs)
		findings = append(findings, resolveFindings...)
		indirectEdges, eliminated, indirectFindings := resolver.ResolveIndirect(rs, lr)
		findings = append(findings, indirectFindings...)
		edges = append(edges, indirectEdges...)

		rwEdges := make([]rewrite.Edge, len(edges))
		for i, e := range edges {
			rwEdges[i] = rewrite.Edge{Caller: e.Caller, Callee: e.Callee}
		}
		rewrite.Apply(funcs, rwEdges, removeSet, eliminated)
	}

	analysis.Run(funcs)

	entries, err := (tasktable.JSONLoader{Path: cfg.ExportTaskInfo}).Load(string(cfg.Section))
	if err != nil {
		return err
	}
	tasks, err := tasktable.Resolve(entries, byName)
	if err != nil {
		return err
	}

	reports := report.Walk(tasks)
	reports = report.WithInlineStacks(reports, lr)
	report.Write(os.Stdout, reports, findings)

	if cfg.GraphPath != "" {
		if err := report.WriteGraph(cfg.GraphPath, reports); err != nil {
			return errs.New(errs.ToolInvocation, err)
		}
	}
	return nil
}

// selectBackend picks the exec-backed objdump/addr2line collaborators
// when available, falling back to the in-process native ARM decoder when
// --native is set or the configured binaries are not on PATH
// (spec.md SPEC_FULL.md §4.8).
func selectBackend(cfg config.Config) (disasmToolchain, lineresolve.Resolver, error) {
	if cfg.Native || !toolsAvailable(cfg) {
		ef, err := elfx.Open(cfg.ELFPath)
		if err != nil {
			return nil, nil, fmt.Errorf("firmstack: open %s: %w", cfg.ELFPath, err)
		}
		nb := nativearm.Backend{ELF: ef}
		return nb, lineresolve.NewCaching(nativeLineResolver{ef: ef}), nil
	}

	et := disasm.ExecToolchain{ObjdumpPath: cfg.ObjdumpPath, Addr2linePath: cfg.Addr2linePath}
	a2l := lineresolve.Addr2Line{Path: cfg.Addr2linePath, ELFPath: cfg.ELFPath}
	return et, lineresolve.NewCaching(a2l), nil
}

func toolsAvailable(cfg config.Config) bool {
	objdump := cfg.ObjdumpPath
	if objdump == "" {
		objdump = "objdump"
	}
	addr2line := cfg.Addr2linePath
	if addr2line == "" {
		addr2line = "addr2line"
	}
	_, err1 := exec.LookPath(objdump)
	_, err2 := exec.LookPath(addr2line)
	return err1 == nil && err2 == nil
}

// disasmToolchain is the subset of disasm.Disassembler + disasm.SymbolDumper
// this command needs from whichever backend was selected.
type disasmToolchain interface {
	disasm.Disassembler
	disasm.SymbolDumper
}

// nativeLineResolver is a best-effort substitute for addr2line when
// running the native backend: it maps an address to the nearest function
// symbol at or below it, since there is no .debug_line consumer in this
// repository (spec.md SPEC_FULL.md §4.8 Open Question).
type nativeLineResolver struct {
	ef *elfx.File
}

func (n nativeLineResolver) Resolve(addr uint64, inline bool) ([]lineresolve.Frame, error) {
	syms, err := n.ef.FuncSymbols()
	if err != nil {
		return nil, err
	}
	var best *model.Symbol
	for i := range syms {
		s := model.Symbol{Name: syms[i].Name, Addr: syms[i].Value, Size: syms[i].Size}
		if s.Addr <= addr && (best == nil || s.Addr > best.Addr) {
			sCopy := s
			best = &sCopy
		}
	}
	if best == nil {
		return nil, nil
	}
	return []lineresolve.Frame{{Func: best.Name, File: "", Line: 0}}, nil
}
