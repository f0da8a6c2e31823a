package optimizer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// ProjectionPushdown is an optimizer pass (spec §4.4): eliminate columns not
// referenced downstream. ViewScan.Projections is already minimal (analyzer
// pass 14 computed it directly from observed property reads), so the
// remaining pruning opportunity is the CTE schema a WithClause registers
// (analyzer pass 5, spec §4.6 Job 1): its NodeColumns map is seeded empty
// per exported node alias and must be narrowed to exactly the properties
// wc.Next actually reads off that alias, one namespaced column per property
// — never every property the catalog happens to know about. The identity
// column is not added here; the render plan builder adds it.
var ProjectionPushdown = Pass{Name: "projection_pushdown", Apply: applyProjectionPushdown}

func applyProjectionPushdown(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	changed := false
	plan.Inspect(n, func(node plan.Node) bool {
		wc, ok := node.(*plan.WithClause)
		if !ok || wc.CTEName == "" || wc.Next == nil {
			return true
		}
		schema, ok := rctx.Plan.CTESchema(wc.CTEName)
		if !ok {
			return true
		}
		referenced := map[string]map[string]bool{}
		for alias := range schema.NodeColumns {
			referenced[alias] = map[string]bool{}
		}
		collectPropertyReferences(wc.Next, referenced)

		for alias, props := range referenced {
			for prop := range props {
				if _, already := schema.NodeColumns[alias][prop]; already {
					continue
				}
				schema.NodeColumns[alias][prop] = alias + "_" + prop
				changed = true
			}
		}
		return true
	})
	return n, changed, nil
}

func collectPropertyReferences(n plan.Node, into map[string]map[string]bool) {
	plan.Inspect(n, func(node plan.Node) bool {
		if _, isWith := node.(*plan.WithClause); isWith && node != n {
			return false
		}
		for _, expr := range cteExprsOf(node) {
			collectPropertyAccess(expr, into)
		}
		return true
	})
}

func collectPropertyAccess(expr ast.Expression, into map[string]map[string]bool) {
	switch e := expr.(type) {
	case *ast.PropertyAccess:
		if v, ok := e.Subject.(*ast.Variable); ok {
			if props, tracked := into[v.Name]; tracked {
				props[e.Property] = true
			}
		}
		collectPropertyAccess(e.Subject, into)
	case *ast.BinaryOp:
		collectPropertyAccess(e.Left, into)
		collectPropertyAccess(e.Right, into)
	case *ast.UnaryOp:
		collectPropertyAccess(e.Operand, into)
	case *ast.FunctionCall:
		for _, a := range e.Args {
			collectPropertyAccess(a, into)
		}
	case *ast.CaseExpr:
		if e.Subject != nil {
			collectPropertyAccess(e.Subject, into)
		}
		for _, w := range e.Whens {
			collectPropertyAccess(w.Condition, into)
			collectPropertyAccess(w.Result, into)
		}
		if e.Else != nil {
			collectPropertyAccess(e.Else, into)
		}
	}
}

func cteExprsOf(node plan.Node) []ast.Expression {
	switch v := node.(type) {
	case *plan.Filter:
		return []ast.Expression{v.Predicate}
	case *plan.Projection:
		exprs := make([]ast.Expression, 0, len(v.Columns))
		for _, c := range v.Columns {
			exprs = append(exprs, c.Expr)
		}
		return exprs
	case *plan.GroupBy:
		return v.Keys
	case *plan.OrderBy:
		exprs := make([]ast.Expression, 0, len(v.Items))
		for _, it := range v.Items {
			exprs = append(exprs, it.Expr)
		}
		return exprs
	}
	return nil
}
