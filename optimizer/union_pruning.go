package optimizer

import "github.com/genezhang/clickgraph/plan"

// UnionPruning is an optimizer pass (spec §4.4): drop a Union branch that is
// provably unsatisfiable — the case named explicitly is a polymorphic edge's
// type discriminator conflicting with an endpoint's label constraint. A
// branch built over a GraphRel classified Polymorphic (catalog.Classify)
// carries a TypeFilter naming the one Cypher relationship type it
// represents; if the branch's own right-hand GraphNode has already been
// narrowed (by type inference) to a label the catalog does not record as
// that edge type's target label, no row can ever satisfy both, and the
// branch is replaced with Empty rather than compiled into a dead subquery.
var UnionPruning = Pass{Name: "union_pruning", Apply: applyUnionPruning}

func applyUnionPruning(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		u, ok := node.(*plan.Union)
		if !ok {
			return node, false, nil
		}
		changed := false
		newBranches := make([]plan.Node, len(u.Branches))
		for i, b := range u.Branches {
			if _, isEmpty := b.(*plan.Empty); isEmpty {
				newBranches[i] = b
				continue
			}
			if branchUnsatisfiable(b, rctx) {
				newBranches[i] = &plan.Empty{}
				changed = true
				continue
			}
			newBranches[i] = b
		}
		if !changed {
			return node, false, nil
		}
		cp := *u
		cp.Branches = newBranches
		return &cp, true, nil
	})
}

func branchUnsatisfiable(n plan.Node, rctx *RunContext) bool {
	unsat := false
	plan.Inspect(n, func(node plan.Node) bool {
		if unsat {
			return false
		}
		rel, ok := node.(*plan.GraphRel)
		if !ok || rel.Joins == nil || rel.Joins.TypeFilter == nil || len(rel.Types) == 0 {
			return true
		}
		edge, err := rctx.Catalog.Edge(rel.Types[0])
		if err != nil || edge.TypeColumn == "" {
			return true
		}
		if labelConflicts(rel.Right, edge.To.NodeLabel) || labelConflicts(rel.Left, edge.From.NodeLabel) {
			unsat = true
			return false
		}
		return true
	})
	return unsat
}

func labelConflicts(gn *plan.GraphNode, expected string) bool {
	if gn == nil || len(gn.Labels) == 0 || expected == "" {
		return false
	}
	for _, l := range gn.Labels {
		if l == expected {
			return false
		}
	}
	return true
}
