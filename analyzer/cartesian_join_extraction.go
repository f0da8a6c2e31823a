package analyzer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// CartesianJoinExtraction is analyzer pass 9 (spec §4.3): when a Filter sits
// directly over a CartesianProduct and one of its tagged conjuncts (pass 8)
// straddles both branches, promote that conjunct into the product's
// OnCondition rather than leaving it as a post-join WHERE residual. For a
// CartesianInner product this turns an implicit cross join into an explicit
// equi-join at render time; for CartesianLeftOuter it folds into the LEFT
// JOIN's ON clause, giving OPTIONAL MATCH its usual outer-join semantics.
var CartesianJoinExtraction = Pass{Name: "cartesian_join_extraction", Apply: applyCartesianJoinExtraction}

func applyCartesianJoinExtraction(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		f, ok := node.(*plan.Filter)
		if !ok || len(f.Tags) == 0 {
			return node, false, nil
		}
		cp, ok := f.Child.(*plan.CartesianProduct)
		if !ok {
			return node, false, nil
		}

		anchorAliases := boundAliases(cp.Anchor)
		branchAliases := boundAliases(cp.Branch)

		var remaining []plan.FilterTag
		var promoted []ast.Expression
		for _, tag := range f.Tags {
			if tag.CrossBranch && straddles(tag.Conjunct, anchorAliases, branchAliases) {
				promoted = append(promoted, tag.Conjunct)
				continue
			}
			remaining = append(remaining, tag)
		}
		if len(promoted) == 0 {
			return node, false, nil
		}

		newCp := *cp
		newCp.OnCondition = andAll(append(splitConjuncts(cp.OnCondition), promoted...))

		if len(remaining) == 0 {
			return &newCp, true, nil
		}
		newF := *f
		newF.Child = &newCp
		newF.Tags = remaining
		var remExprs []ast.Expression
		for _, t := range remaining {
			remExprs = append(remExprs, t.Conjunct)
		}
		newF.Predicate = andAll(remExprs)
		return &newF, true, nil
	})
}

func boundAliases(n plan.Node) map[string]bool {
	out := map[string]bool{}
	plan.Inspect(n, func(node plan.Node) bool {
		switch v := node.(type) {
		case *plan.GraphNode:
			out[v.Alias] = true
		case *plan.GraphRel:
			out[v.Alias] = true
		case *plan.WithClause:
			return false
		}
		return true
	})
	return out
}

func straddles(conjunct ast.Expression, anchor, branch map[string]bool) bool {
	vars := map[string]bool{}
	plan.ExprVariables(conjunct, vars)
	sawAnchor, sawBranch := false, false
	for v := range vars {
		if anchor[v] {
			sawAnchor = true
		}
		if branch[v] {
			sawBranch = true
		}
	}
	return sawAnchor && sawBranch
}

func andAll(exprs []ast.Expression) ast.Expression {
	var cur ast.Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if cur == nil {
			cur = e
		} else {
			cur = &ast.BinaryOp{Op: "AND", Left: cur, Right: e}
		}
	}
	return cur
}
