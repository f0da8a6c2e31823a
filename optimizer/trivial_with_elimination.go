package optimizer

import (
	"strings"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// aggregateFunctions mirrors analyzer.aggregateFunctions; duplicated rather
// than imported because the optimizer package must not depend on analyzer
// (spec §4.5: neither pipeline package knows about the other, only the
// plan/context types they share) and this pass runs before the analyzer's
// own group_by construction has had a chance to synthesize a GroupBy node
// to check for instead.
var aggregateFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"collect": true, "stdev": true, "stdevp": true, "percentilecont": true,
	"percentiledisc": true,
}

// TrivialWithElimination is an optimizer pass (spec §4.4): a WithClause that
// is a pure passthrough — an identity projection of its exported aliases,
// with no aggregation, no DISTINCT, no ordering/skip/limit, and nothing left
// to filter at this scope — is spliced away entirely rather than
// materialized as a CTE. A WithClause that still carries a Filter at this
// scope is left alone (spec §4.4: "do NOT elide WithClauses that still
// carry filters").
//
// This pass can only run after CTE schema resolution (analyzer pass 5) has
// registered every WithClause's CTE name (spec §4.5 contract); it is placed
// in the optimizer's initial-optimization group, which always runs after
// the analyzer's initial-analysis group.
var TrivialWithElimination = Pass{Name: "trivial_with_elimination", Apply: applyTrivialWithElimination}

func applyTrivialWithElimination(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		wc, ok := node.(*plan.WithClause)
		if !ok {
			return node, false, nil
		}
		proj, ok := wc.Child.(*plan.Projection)
		if !ok || proj.Distinct {
			return node, false, nil
		}
		if _, isFilter := proj.Child.(*plan.Filter); isFilter {
			return node, false, nil
		}
		if !isIdentityProjection(proj.Columns, wc.Exported) {
			return node, false, nil
		}
		if wc.Next == nil {
			return node, false, nil
		}

		spliced, found := spliceIntoEmptyLeaf(wc.Next, proj.Child)
		if !found {
			// Next has its own independent MATCH clauses rather than reading
			// straight through the placeholder left by the builder for a
			// WITH with no further reading clauses; eliminating safely here
			// would require re-deriving which of Next's scans continue this
			// WITH's bound aliases, which belongs to the plan builder, not
			// this pass.
			return node, false, nil
		}
		return spliced, true, nil
	})
}

func isIdentityProjection(cols []plan.ProjectionColumn, exported []string) bool {
	if len(cols) != len(exported) {
		return false
	}
	want := map[string]bool{}
	for _, a := range exported {
		want[a] = true
	}
	for _, c := range cols {
		if c.Computed {
			return false
		}
		v, ok := c.Expr.(*ast.Variable)
		if !ok || v.Name != c.Alias || !want[c.Alias] {
			return false
		}
		if containsAggregate(c.Expr) {
			return false
		}
	}
	return true
}

func containsAggregate(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.FunctionCall:
		if aggregateFunctions[strings.ToLower(e.Name)] {
			return true
		}
		for _, a := range e.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregate(e.Left) || containsAggregate(e.Right)
	case *ast.UnaryOp:
		return containsAggregate(e.Operand)
	case *ast.PropertyAccess:
		return containsAggregate(e.Subject)
	}
	return false
}

// spliceIntoEmptyLeaf finds the (at most one, by builder construction) bare
// *plan.Empty placeholder the plan builder leaves when a query segment has
// no reading clauses of its own, and replaces it with replacement.
func spliceIntoEmptyLeaf(n plan.Node, replacement plan.Node) (plan.Node, bool) {
	if _, ok := n.(*plan.Empty); ok {
		return replacement, true
	}
	children := n.Children()
	if len(children) == 0 {
		return n, false
	}
	newChildren := make([]plan.Node, len(children))
	found := false
	for i, c := range children {
		nc, ok := spliceIntoEmptyLeaf(c, replacement)
		newChildren[i] = nc
		found = found || ok
	}
	if !found {
		return n, false
	}
	return n.WithChildren(newChildren), true
}
