package analyzer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// FilterTagging is analyzer pass 8 (spec §4.3): split every Filter's
// predicate into its top-level AND conjuncts and tag each with the single
// scan alias it constrains. A conjunct referencing more than one alias is
// left untagged here and marked CrossBranch, for cartesian-join extraction
// (pass 9) to either promote into a join ON clause or leave as a
// post-cartesian WHERE residual.
var FilterTagging = Pass{Name: "filter_tagging", Apply: applyFilterTagging}

func applyFilterTagging(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		f, ok := node.(*plan.Filter)
		if !ok || f.Tags != nil {
			return node, false, nil
		}
		cp := *f
		for _, conjunct := range splitConjuncts(f.Predicate) {
			vars := map[string]bool{}
			plan.ExprVariables(conjunct, vars)
			tag := plan.FilterTag{Conjunct: conjunct}
			if len(vars) == 1 {
				for alias := range vars {
					tag.ScanAlias = alias
				}
			} else {
				tag.CrossBranch = true
			}
			cp.Tags = append(cp.Tags, tag)
		}
		return &cp, true, nil
	})
}

// splitConjuncts flattens a WHERE predicate's top-level AND chain into its
// individual conjuncts; an OR or any non-AND root is its own single
// conjunct.
func splitConjuncts(expr ast.Expression) []ast.Expression {
	bin, ok := expr.(*ast.BinaryOp)
	if !ok || bin.Op != "AND" {
		return []ast.Expression{expr}
	}
	return append(splitConjuncts(bin.Left), splitConjuncts(bin.Right)...)
}
