package analyzer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// VariableResolver is analyzer pass 12 (spec §4.3): walk every expression
// attached anywhere in the plan (filter predicates, projection columns,
// group-by keys, order-by terms) and resolve each node-property access
// against the catalog, recording alias.property -> physical column on the
// bound TableContext (spec §3.4) so the render plan builder never has to
// re-derive it. A property that does not exist on the alias's label is
// SchemaResolutionFailure (spec §7), surfaced here rather than left to fail
// silently at SQL emission time.
var VariableResolver = Pass{Name: "variable_resolver", Apply: applyVariableResolver}

func applyVariableResolver(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	var outerErr error
	plan.Inspect(n, func(node plan.Node) bool {
		if outerErr != nil {
			return false
		}
		for _, expr := range exprsOf(node) {
			if err := resolveExpr(expr, rctx); err != nil {
				outerErr = err
				return false
			}
		}
		return true
	})
	if outerErr != nil {
		return n, false, outerErr
	}
	return n, false, nil
}

// exprsOf returns every top-level expression a plan node carries, so
// VariableResolver doesn't need a case for each node kind's traversal order.
func exprsOf(node plan.Node) []ast.Expression {
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
	case *plan.Skip:
		return []ast.Expression{v.Count}
	case *plan.Limit:
		return []ast.Expression{v.Count}
	case *plan.GraphNode:
		if v.InlineFilter != nil {
			return []ast.Expression{v.InlineFilter}
		}
	}
	return nil
}

func resolveExpr(expr ast.Expression, rctx *RunContext) error {
	var walkErr error
	var walk func(ast.Expression)
	walk = func(e ast.Expression) {
		if walkErr != nil || e == nil {
			return
		}
		switch v := e.(type) {
		case *ast.PropertyAccess:
			if variable, ok := v.Subject.(*ast.Variable); ok {
				if err := resolveProperty(variable.Name, v.Property, rctx); err != nil {
					walkErr = err
					return
				}
			}
			walk(v.Subject)
		case *ast.BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryOp:
			walk(v.Operand)
		case *ast.IsNullCheck:
			walk(v.Operand)
		case *ast.FunctionCall:
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.CaseExpr:
			walk(v.Subject)
			for _, w := range v.Whens {
				walk(w.Condition)
				walk(w.Result)
			}
			walk(v.Else)
		case *ast.ListLiteral:
			for _, it := range v.Items {
				walk(it)
			}
		case *ast.MapLiteral:
			for _, val := range v.Values {
				walk(val)
			}
		case *ast.ListComprehension:
			walk(v.Source)
			walk(v.Filter)
			walk(v.Projection)
		}
	}
	walk(expr)
	return walkErr
}

func resolveProperty(alias, property string, rctx *RunContext) error {
	tc, err := rctx.Plan.Lookup(alias)
	if err != nil {
		// Not every alias a PropertyAccess names is a scope-bound node/rel
		// (e.g. map-typed parameters); only scope-bound aliases are resolved
		// here.
		return nil
	}
	kind, known := rctx.Plan.VariableKind(alias)
	if !known || kind != plan.VarNode {
		return nil
	}
	if len(tc.Labels) != 1 {
		return nil // ambiguous/unresolved label set, left to schema inference
	}
	node, err := rctx.Catalog.Node(tc.Labels[0])
	if err != nil {
		return err
	}
	col, err := node.Column(property)
	if err != nil {
		return err
	}
	tc.PropertyMapping[property] = col
	tc.Properties[property] = true
	return nil
}
