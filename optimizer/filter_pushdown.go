package optimizer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// FilterPushdown is an optimizer pass (spec §4.4): move predicates as close
// as possible to the scans they constrain. FilterIntoGraphRelation already
// embeds single-scan conjuncts directly onto a ViewScan wherever that
// GraphNode sits in the subtree; what is left for this pass is structural —
// a Filter sitting above a CartesianProduct whose predicate only touches one
// branch's aliases is moved down to wrap that branch alone, so the other
// branch (and anything that later joins against it) never has to flow
// through rows the predicate would have discarded anyway.
var FilterPushdown = Pass{Name: "filter_pushdown", Apply: applyFilterPushdown}

func applyFilterPushdown(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		f, ok := node.(*plan.Filter)
		if !ok {
			return node, false, nil
		}
		cp, ok := f.Child.(*plan.CartesianProduct)
		if !ok {
			return node, false, nil
		}

		var remaining []plan.FilterTag
		var intoAnchor, intoBranch []ast.Expression
		anchorAliases := boundAliases(cp.Anchor)
		branchAliases := boundAliases(cp.Branch)

		tags := f.Tags
		if tags == nil {
			for _, c := range splitConjunctsFlat(f.Predicate) {
				vars := map[string]bool{}
				plan.ExprVariables(c, vars)
				tag := plan.FilterTag{Conjunct: c}
				if len(vars) == 1 {
					for alias := range vars {
						tag.ScanAlias = alias
					}
				} else {
					tag.CrossBranch = true
				}
				tags = append(tags, tag)
			}
		}

		for _, tag := range tags {
			switch {
			case tag.ScanAlias != "" && anchorAliases[tag.ScanAlias]:
				intoAnchor = append(intoAnchor, tag.Conjunct)
			case tag.ScanAlias != "" && branchAliases[tag.ScanAlias]:
				intoBranch = append(intoBranch, tag.Conjunct)
			default:
				remaining = append(remaining, tag)
			}
		}
		if len(intoAnchor) == 0 && len(intoBranch) == 0 {
			return node, false, nil
		}

		newAnchor := cp.Anchor
		if len(intoAnchor) > 0 {
			newAnchor = &plan.Filter{Predicate: andAll(intoAnchor), Child: cp.Anchor}
		}
		newBranch := cp.Branch
		if len(intoBranch) > 0 {
			newBranch = &plan.Filter{Predicate: andAll(intoBranch), Child: cp.Branch}
		}
		newCP := *cp
		newCP.Anchor = newAnchor
		newCP.Branch = newBranch

		if len(remaining) == 0 {
			return &newCP, true, nil
		}
		var remExprs []ast.Expression
		for _, t := range remaining {
			remExprs = append(remExprs, t.Conjunct)
		}
		fcp := *f
		fcp.Child = &newCP
		fcp.Tags = remaining
		fcp.Predicate = andAll(remExprs)
		return &fcp, true, nil
	})
}

func boundAliases(n plan.Node) map[string]bool {
	out := map[string]bool{}
	plan.Inspect(n, func(node plan.Node) bool {
		if gn, ok := node.(*plan.GraphNode); ok {
			out[gn.Alias] = true
		}
		if gr, ok := node.(*plan.GraphRel); ok && gr.Alias != "" {
			out[gr.Alias] = true
		}
		return true
	})
	return out
}
