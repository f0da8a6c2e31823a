package analyzer

import (
	"strings"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// aggregateFunctions is the set of Cypher projection functions that collapse
// many rows into one and therefore require every non-aggregated sibling
// column to become a GROUP BY key (spec §4.3 pass 11).
var aggregateFunctions = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"collect": true, "stdev": true, "stdevp": true, "percentilecont": true,
	"percentiledisc": true,
}

// GroupByConstruction is analyzer pass 11 (spec §4.3): whenever a
// Projection's column list contains an aggregate function call anywhere in
// its expression tree, synthesize a GroupBy over every other column that is
// not itself aggregated.
var GroupByConstruction = Pass{Name: "groupby_construction", Apply: applyGroupByConstruction}

func applyGroupByConstruction(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		p, ok := node.(*plan.Projection)
		if !ok {
			return node, false, nil
		}
		hasAgg := false
		for _, c := range p.Columns {
			if containsAggregate(c.Expr) {
				hasAgg = true
				break
			}
		}
		if !hasAgg {
			return node, false, nil
		}

		var keys []ast.Expression
		for _, c := range p.Columns {
			if !containsAggregate(c.Expr) {
				keys = append(keys, c.Expr)
			}
		}
		if len(keys) == 0 {
			return node, false, nil
		}

		if _, already := p.Child.(*plan.GroupBy); already {
			return node, false, nil
		}
		cp := *p
		cp.Child = &plan.GroupBy{Keys: keys, Child: p.Child}
		return &cp, true, nil
	})
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
	case *ast.CaseExpr:
		if e.Subject != nil && containsAggregate(e.Subject) {
			return true
		}
		for _, w := range e.Whens {
			if containsAggregate(w.Condition) || containsAggregate(w.Result) {
				return true
			}
		}
		if e.Else != nil {
			return containsAggregate(e.Else)
		}
	}
	return false
}
