// Package analysis implements the SCC + max-stack analyzer (C6): an
// iterative Tarjan strongly-connected-components pass folded together
// with a longest-stack-path computation, per spec.md §4.6 and the design
// note (§9) to keep Tarjan's scratch bookkeeping (index, lowlink,
// on-stack) in a side table rather than on Function itself, and to run
// iteratively so deep call graphs don't blow the Go call stack.
//
// The bound this pass computes through a cycle is NOT a sound upper bound
// — a function's contribution from a callee in its own strongly connected
// component is excluded from its max-stack computation rather than
// unrolled, and cycle membership is reported separately so callers of
// this package can flag it (spec.md §9 design note, §8 scenario 4).
package analysis

import "firmstack/internal/model"

type scratch struct {
	index, lowlink int
	onStack        bool
}

// Run computes StackMaxUsage, StackSuccessor and CycleIndex for every
// function reachable from funcs (funcs need not be only entry points —
// every function in the program is analyzed so any task's routine can be
// looked up afterward).
func Run(funcs []*model.Function) []*model.CycleGroup {
	side := make(map[*model.Function]*scratch, len(funcs))
	var groups []*model.CycleGroup
	nextGroupIndex := 1
	nextIndex := 0
	var tstack []*model.Function

	type frame struct {
		fn     *model.Function
		csIdx  int
	}

	for _, root := range funcs {
		if _, seen := side[root]; seen {
			continue
		}
		work := []*frame{{fn: root}}
		side[root] = &scratch{index: nextIndex, lowlink: nextIndex, onStack: true}
		nextIndex++
		tstack = append(tstack, root)

		for len(work) > 0 {
			top := work[len(work)-1]
			s := side[top.fn]

			advanced := false
			for top.csIdx < len(top.fn.Callsites) {
				cs := top.fn.Callsites[top.csIdx]
				top.csIdx++
				callee := cs.Callee
				if callee == nil {
					continue
				}
				cs2, seen := side[callee]
				if !seen {
					side[callee] = &scratch{index: nextIndex, lowlink: nextIndex, onStack: true}
					nextIndex++
					tstack = append(tstack, callee)
					work = append(work, &frame{fn: callee})
					advanced = true
					break
				}
				if cs2.onStack && cs2.index < s.lowlink {
					s.lowlink = cs2.index
				}
			}
			if advanced {
				continue
			}

			// top.fn is finished: pop it, propagate lowlink to parent,
			// and if it is an SCC root, pop the whole component off tstack.
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := side[work[len(work)-1].fn]
				if s.lowlink < parent.lowlink {
					parent.lowlink = s.lowlink
				}
			}
			if s.lowlink == s.index {
				var members []*model.Function
				for {
					n := len(tstack) - 1
					f := tstack[n]
					tstack = tstack[:n]
					side[f].onStack = false
					members = append(members, f)
					if f == top.fn {
						break
					}
				}
				finalizeComponent(members, &groups, &nextGroupIndex)
			}
		}
	}
	return groups
}

// finalizeComponent computes StackMaxUsage/StackSuccessor for one
// strongly connected component (size 1 unless there is real mutual or
// self recursion) and records it as a CycleGroup when it represents a
// cycle (size > 1, or a size-1 self-loop).
func finalizeComponent(members []*model.Function, groups *[]*model.CycleGroup, nextGroupIndex *int) {
	inComponent := make(map[*model.Function]bool, len(members))
	for _, m := range members {
		inComponent[m] = true
	}

	selfLoop := len(members) == 1 && callsSelf(members[0])
	isCycle := len(members) > 1 || selfLoop

	var groupIdx int
	if isCycle {
		groupIdx = *nextGroupIndex
		*nextGroupIndex++
		*groups = append(*groups, &model.CycleGroup{Index: groupIdx, Functions: members})
	}

	for _, fn := range members {
		best := fn.StackFrame
		var bestSucc *model.Function
		for _, cs := range fn.Callsites {
			callee := cs.Callee
			if callee == nil || inComponent[callee] {
				continue // unresolved, or a same-component edge: excluded, not unrolled
			}
			var candidate uint64
			if cs.TailCall {
				candidate = callee.StackMaxUsage
				if fn.StackFrame > candidate {
					candidate = fn.StackFrame
				}
			} else {
				candidate = fn.StackFrame + callee.StackMaxUsage
			}
			if candidate > best {
				best = candidate
				bestSucc = callee
			}
		}
		fn.StackMaxUsage = best
		fn.StackSuccessor = bestSucc
		fn.CycleIndex = groupIdx
	}
}

func callsSelf(fn *model.Function) bool {
	for _, cs := range fn.Callsites {
		if cs.Callee == fn {
			return true
		}
	}
	return false
}
