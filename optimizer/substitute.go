package optimizer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// substituteVariable rewrites every reference to the bare variable `from`
// anywhere in n's attached expressions to `to`, used by
// CollectUnwindCancellation to inline a cancelled UNWIND's bound name back
// to the expression it stood for.
func substituteVariable(n plan.Node, from string, to ast.Expression) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		switch v := node.(type) {
		case *plan.Filter:
			newPred := substituteExpr(v.Predicate, from, to)
			if newPred == v.Predicate {
				return node, false, nil
			}
			cp := *v
			cp.Predicate = newPred
			cp.Tags = nil
			return &cp, true, nil
		case *plan.Projection:
			changed := false
			newCols := make([]plan.ProjectionColumn, len(v.Columns))
			for i, c := range v.Columns {
				newExpr := substituteExpr(c.Expr, from, to)
				newCols[i] = c
				if newExpr != c.Expr {
					newCols[i].Expr = newExpr
					changed = true
				}
			}
			if !changed {
				return node, false, nil
			}
			cp := *v
			cp.Columns = newCols
			return &cp, true, nil
		case *plan.OrderBy:
			changed := false
			newItems := make([]ast.SortItem, len(v.Items))
			for i, it := range v.Items {
				newExpr := substituteExpr(it.Expr, from, to)
				newItems[i] = it
				if newExpr != it.Expr {
					newItems[i].Expr = newExpr
					changed = true
				}
			}
			if !changed {
				return node, false, nil
			}
			cp := *v
			cp.Items = newItems
			return &cp, true, nil
		case *plan.GraphNode:
			if v.InlineFilter == nil {
				return node, false, nil
			}
			newExpr := substituteExpr(v.InlineFilter, from, to)
			if newExpr == v.InlineFilter {
				return node, false, nil
			}
			cp := *v
			cp.InlineFilter = newExpr
			return &cp, true, nil
		}
		return node, false, nil
	})
}

// substituteExpr rebuilds expr with every *ast.Variable named from replaced
// by to; returns expr unchanged (same pointer) when nothing matched, so
// callers can cheaply detect a no-op.
func substituteExpr(expr ast.Expression, from string, to ast.Expression) ast.Expression {
	switch e := expr.(type) {
	case *ast.Variable:
		if e.Name == from {
			return to
		}
		return expr
	case *ast.PropertyAccess:
		newSubject := substituteExpr(e.Subject, from, to)
		if newSubject == e.Subject {
			return expr
		}
		return &ast.PropertyAccess{Subject: newSubject, Property: e.Property}
	case *ast.FunctionCall:
		changed := false
		newArgs := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			newArgs[i] = substituteExpr(a, from, to)
			if newArgs[i] != a {
				changed = true
			}
		}
		if !changed {
			return expr
		}
		return &ast.FunctionCall{Name: e.Name, Args: newArgs, Distinct: e.Distinct}
	case *ast.BinaryOp:
		newLeft := substituteExpr(e.Left, from, to)
		newRight := substituteExpr(e.Right, from, to)
		if newLeft == e.Left && newRight == e.Right {
			return expr
		}
		return &ast.BinaryOp{Op: e.Op, Left: newLeft, Right: newRight}
	case *ast.UnaryOp:
		newOperand := substituteExpr(e.Operand, from, to)
		if newOperand == e.Operand {
			return expr
		}
		return &ast.UnaryOp{Op: e.Op, Operand: newOperand}
	case *ast.IsNullCheck:
		newOperand := substituteExpr(e.Operand, from, to)
		if newOperand == e.Operand {
			return expr
		}
		return &ast.IsNullCheck{Operand: newOperand, Negated: e.Negated}
	case *ast.CaseExpr:
		changed := false
		var newSubject ast.Expression
		if e.Subject != nil {
			newSubject = substituteExpr(e.Subject, from, to)
			changed = changed || newSubject != e.Subject
		}
		newWhens := make([]ast.CaseWhen, len(e.Whens))
		for i, w := range e.Whens {
			nc := substituteExpr(w.Condition, from, to)
			nr := substituteExpr(w.Result, from, to)
			newWhens[i] = ast.CaseWhen{Condition: nc, Result: nr}
			changed = changed || nc != w.Condition || nr != w.Result
		}
		var newElse ast.Expression
		if e.Else != nil {
			newElse = substituteExpr(e.Else, from, to)
			changed = changed || newElse != e.Else
		}
		if !changed {
			return expr
		}
		return &ast.CaseExpr{Subject: newSubject, Whens: newWhens, Else: newElse}
	case *ast.ListLiteral:
		changed := false
		newItems := make([]ast.Expression, len(e.Items))
		for i, it := range e.Items {
			newItems[i] = substituteExpr(it, from, to)
			changed = changed || newItems[i] != it
		}
		if !changed {
			return expr
		}
		return &ast.ListLiteral{Items: newItems}
	case *ast.MapLiteral:
		changed := false
		newValues := make([]ast.Expression, len(e.Values))
		for i, v := range e.Values {
			newValues[i] = substituteExpr(v, from, to)
			changed = changed || newValues[i] != v
		}
		if !changed {
			return expr
		}
		return &ast.MapLiteral{Keys: e.Keys, Values: newValues}
	}
	return expr
}
