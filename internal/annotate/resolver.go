package annotate

import (
	"firmstack/internal/errs"
	"firmstack/internal/lineresolve"
	"firmstack/internal/model"
)

// Edge is one annotation rule resolved down to a concrete pair of
// functions, ready for the graph rewriter (C5).
type Edge struct {
	Caller *model.Function
	Callee *model.Function
}

// Resolver resolves a parsed RuleSet's signatures against the known
// function set, classifying each signature as resolved, NOTFOUND, or
// AMBIGUOUS (spec.md §4.4, §8 scenario 6).
type Resolver struct {
	Funcs []*model.Function
}

// resolveSet finds every function matching sig, per spec.md §4.4's
// resolution algorithm: a name-only signature may legitimately resolve
// to several functions at once (static duplicates sharing one declaring
// file — "the system does not attempt to disambiguate between identical
// copies and treats them as interchangeable"). It is only AMBIGUOUS when
// matches span more than one file and the signature supplied no path to
// disambiguate with.
func (r *Resolver) resolveSet(sig model.Signature, findings *[]errs.Finding) []*model.Function {
	if sig.Kind != model.SigName {
		var out []*model.Function
		for _, fn := range r.Funcs {
			if Matches(sig, fn) {
				out = append(out, fn)
			}
		}
		if len(out) == 0 {
			*findings = append(*findings, errs.Finding{Kind: errs.FindingNotFound, Subject: sig.String()})
		}
		return out
	}

	groups := make(map[string][]*model.Function)
	var order []string
	for _, fn := range r.Funcs {
		if stripToIdentifier(fn.Name) != sig.Name {
			continue
		}
		key := canonicalize(fn.File)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], fn)
	}
	switch len(groups) {
	case 0:
		*findings = append(*findings, errs.Finding{Kind: errs.FindingNotFound, Subject: sig.String()})
		return nil
	case 1:
		return groups[order[0]]
	default:
		*findings = append(*findings, errs.Finding{
			Kind: errs.FindingAmbiguous, Subject: sig.String(),
			Detail: "matches functions in multiple files; disambiguate with ,path or ,path:line",
		})
		return nil
	}
}

// Resolve resolves every add/remove rule in rs against the function set,
// returning the edges ready to hand to the graph rewriter, the set of
// functions named by remove rules (excised as nodes everywhere, not just
// from one caller), and any non-fatal findings (spec.md §7).
func (r *Resolver) Resolve(rs model.RuleSet) ([]Edge, []*model.Function, []errs.Finding) {
	var edges []Edge
	var findings []errs.Finding

	for _, rule := range rs.Add {
		srcs := r.resolveSet(rule.Source, &findings)
		if len(srcs) == 0 {
			continue
		}
		for _, dstSig := range rule.Destinations {
			dsts := r.resolveSet(dstSig, &findings)
			for _, src := range srcs {
				for _, dst := range dsts {
					edges = append(edges, Edge{Caller: src, Callee: dst})
				}
			}
		}
	}

	var removeSet []*model.Function
	for _, sig := range rs.Remove {
		removeSet = append(removeSet, r.resolveSet(sig, &findings)...)
	}
	return edges, removeSet, findings
}

// ResolveIndirect is the second annotation pass (spec.md §4.4): for every
// still-unresolved indirect callsite, look up its inline-expansion stack
// via lr, and if ANY frame's (function, file, line) matches an add
// rule's source signature, the callsite's owning function is added as a
// source for that rule (one new edge per destination) and the
// callsite's address is recorded as eliminated, so the graph rewriter
// drops the original indirect site instead of trying to resolve it
// in place.
//
// This checks every frame of the inline stack, not only the innermost
// one, so a callsite inlined several levels deep can still be matched by
// a signature naming an outer frame.
func (r *Resolver) ResolveIndirect(rs model.RuleSet, lr lineresolve.Resolver) ([]Edge, map[uint64]bool, []errs.Finding) {
	var edges []Edge
	eliminated := make(map[uint64]bool)
	var findings []errs.Finding

	if len(rs.Add) == 0 {
		return edges, eliminated, findings
	}

	for _, fn := range r.Funcs {
		for _, cs := range fn.Callsites {
			if cs.Kind != model.CallIndirect || cs.Callee != nil {
				continue
			}
			frames, err := lr.Resolve(cs.Addr, true)
			if err != nil || len(frames) == 0 {
				findings = append(findings, errs.Finding{
					Kind: errs.FindingUnresolvedIndirect, Subject: fn.String(),
					Detail: "no inline-expansion stack available for callsite",
				})
				continue
			}

			matched := -1
		frameLoop:
			for _, fr := range frames {
				for i, rule := range rs.Add {
					if matchesFrame(rule.Source, fr) {
						matched = i
						break frameLoop
					}
				}
			}
			if matched < 0 {
				findings = append(findings, errs.Finding{
					Kind: errs.FindingUnresolvedIndirect, Subject: fn.String(),
					Detail: "no annotation matched any inline frame at this callsite",
				})
				continue
			}
			for _, dstSig := range rs.Add[matched].Destinations {
				for _, dst := range r.resolveSet(dstSig, &findings) {
					edges = append(edges, Edge{Caller: fn, Callee: dst})
				}
			}
			eliminated[cs.Addr] = true
		}
	}
	return edges, eliminated, findings
}

func matchesFrame(sig model.Signature, fr lineresolve.Frame) bool {
	if stripToIdentifier(fr.Func) != sig.Name {
		return false
	}
	switch sig.Kind {
	case model.SigName:
		return true
	case model.SigNameFile:
		return samePath(fr.File, sig.Path)
	case model.SigNameFileLine:
		return samePath(fr.File, sig.Path) && fr.Line == sig.Line
	default:
		return false
	}
}
