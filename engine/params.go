package engine

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
)

// substituteParams rewrites every $name reference in q into a literal drawn
// from params (spec §6, §9): it runs after parsing and before logical
// planning, so the plan builder and every later stage only ever sees
// literals, never a Parameter. Parameters are rejected outright inside
// pattern inline-property maps (spec §9: a parameterized "{id: $id}" would
// require re-planning the join/filter shape per call, which this compiler
// does not support) rather than silently left unresolved.
func substituteParams(q *ast.Query, params map[string]interface{}) (*ast.Query, error) {
	if q == nil {
		return nil, nil
	}
	if q.Union != nil {
		left, err := substituteParams(q.Union.Left, params)
		if err != nil {
			return nil, err
		}
		right, err := substituteParams(q.Union.Right, params)
		if err != nil {
			return nil, err
		}
		return &ast.Query{Union: &ast.UnionClause{Kind: q.Union.Kind, Left: left, Right: right}}, nil
	}

	clauses := make([]ast.ReadingClause, len(q.ReadingClauses))
	for i, rc := range q.ReadingClauses {
		for _, p := range rc.Patterns {
			if err := rejectParamsInPattern(p); err != nil {
				return nil, err
			}
		}
		where, err := substituteExpr(rc.Where, params)
		if err != nil {
			return nil, err
		}
		unwind, err := substituteExpr(rc.UnwindExpr, params)
		if err != nil {
			return nil, err
		}
		cp := rc
		cp.Where = where
		cp.UnwindExpr = unwind
		clauses[i] = cp
	}

	out := &ast.Query{ReadingClauses: clauses}

	if q.With != nil {
		items, err := substituteItems(q.With.Items, params)
		if err != nil {
			return nil, err
		}
		where, err := substituteExpr(q.With.Where, params)
		if err != nil {
			return nil, err
		}
		orderBy, err := substituteSortItems(q.With.OrderBy, params)
		if err != nil {
			return nil, err
		}
		skip, err := substituteExpr(q.With.Skip, params)
		if err != nil {
			return nil, err
		}
		limit, err := substituteExpr(q.With.Limit, params)
		if err != nil {
			return nil, err
		}
		next, err := substituteParams(q.With.Next, params)
		if err != nil {
			return nil, err
		}
		out.With = &ast.With{
			Distinct: q.With.Distinct, Star: q.With.Star, Items: items,
			Where: where, OrderBy: orderBy, Skip: skip, Limit: limit, Next: next,
		}
	}

	if q.Return != nil {
		items, err := substituteItems(q.Return.Items, params)
		if err != nil {
			return nil, err
		}
		orderBy, err := substituteSortItems(q.Return.OrderBy, params)
		if err != nil {
			return nil, err
		}
		skip, err := substituteExpr(q.Return.Skip, params)
		if err != nil {
			return nil, err
		}
		limit, err := substituteExpr(q.Return.Limit, params)
		if err != nil {
			return nil, err
		}
		out.Return = &ast.Return{
			Distinct: q.Return.Distinct, Star: q.Return.Star, Items: items,
			OrderBy: orderBy, Skip: skip, Limit: limit,
		}
	}

	return out, nil
}

func rejectParamsInPattern(p ast.Pattern) error {
	for _, el := range p.Elements {
		if el.Node != nil && mapHasParam(el.Node.Properties) {
			return unsupportedParamPosition("node pattern inline property")
		}
		if el.Rel != nil {
			if mapHasParam(el.Rel.Properties) {
				return unsupportedParamPosition("relationship pattern inline property")
			}
		}
		if el.To != nil && mapHasParam(el.To.Properties) {
			return unsupportedParamPosition("node pattern inline property")
		}
	}
	return nil
}

func mapHasParam(m *ast.MapLiteral) bool {
	if m == nil {
		return false
	}
	for _, v := range m.Values {
		if exprHasParam(v) {
			return true
		}
	}
	return false
}

func exprHasParam(e ast.Expression) bool {
	found := false
	_, _ = substituteExprVisit(e, func(*ast.Parameter) { found = true })
	return found
}

func unsupportedParamPosition(where string) error {
	return cgerrors.ErrUnsupportedConstruct.New(
		fmt.Sprintf("parameter reference inside a %s is not supported", where))
}

func substituteItems(items []ast.ProjectionItem, params map[string]interface{}) ([]ast.ProjectionItem, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]ast.ProjectionItem, len(items))
	for i, it := range items {
		e, err := substituteExpr(it.Expr, params)
		if err != nil {
			return nil, err
		}
		out[i] = ast.ProjectionItem{Expr: e, Alias: it.Alias}
	}
	return out, nil
}

func substituteSortItems(items []ast.SortItem, params map[string]interface{}) ([]ast.SortItem, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]ast.SortItem, len(items))
	for i, it := range items {
		e, err := substituteExpr(it.Expr, params)
		if err != nil {
			return nil, err
		}
		out[i] = ast.SortItem{Expr: e, Descending: it.Descending}
	}
	return out, nil
}

// substituteExpr rewrites every Parameter in expr into a Literal. A nil
// params map is treated as empty, so any parameter reference is reported as
// not supplied. The substituteExprVisit helper underneath it is reused by
// exprHasParam in detection-only mode (no params map, substitution is never
// reached).
func substituteExpr(e ast.Expression, params map[string]interface{}) (ast.Expression, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	return substituteExprVisit(e, nil, params)
}

// substituteExprVisit is the single recursive walker behind both
// substituteExpr (rewrite mode, params non-nil) and exprHasParam (detection
// mode: onParam records a hit and params is nil, so resolution is skipped
// and every Parameter is left as-is after triggering onParam).
func substituteExprVisit(e ast.Expression, onParam func(*ast.Parameter), params ...map[string]interface{}) (ast.Expression, error) {
	var pmap map[string]interface{}
	if len(params) > 0 {
		pmap = params[0]
	}
	if e == nil {
		return nil, nil
	}
	switch v := e.(type) {
	case *ast.Parameter:
		if onParam != nil {
			onParam(v)
		}
		if pmap == nil {
			return v, nil
		}
		val, ok := pmap[v.Name]
		if !ok {
			return nil, cgerrors.ErrUnsupportedConstruct.New(
				fmt.Sprintf("query references parameter $%s which was not supplied", v.Name))
		}
		return literalFor(val)
	case *ast.PropertyAccess:
		subj, err := substituteExprVisit(v.Subject, onParam, params...)
		if err != nil {
			return nil, err
		}
		return &ast.PropertyAccess{Subject: subj, Property: v.Property}, nil
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(v.Args))
		for i, a := range v.Args {
			s, err := substituteExprVisit(a, onParam, params...)
			if err != nil {
				return nil, err
			}
			args[i] = s
		}
		return &ast.FunctionCall{Name: v.Name, Args: args, Distinct: v.Distinct}, nil
	case *ast.BinaryOp:
		l, err := substituteExprVisit(v.Left, onParam, params...)
		if err != nil {
			return nil, err
		}
		r, err := substituteExprVisit(v.Right, onParam, params...)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: v.Op, Left: l, Right: r}, nil
	case *ast.UnaryOp:
		o, err := substituteExprVisit(v.Operand, onParam, params...)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: v.Op, Operand: o}, nil
	case *ast.IsNullCheck:
		o, err := substituteExprVisit(v.Operand, onParam, params...)
		if err != nil {
			return nil, err
		}
		return &ast.IsNullCheck{Operand: o, Negated: v.Negated}, nil
	case *ast.CaseExpr:
		var subj ast.Expression
		var err error
		if v.Subject != nil {
			subj, err = substituteExprVisit(v.Subject, onParam, params...)
			if err != nil {
				return nil, err
			}
		}
		whens := make([]ast.CaseWhen, len(v.Whens))
		for i, w := range v.Whens {
			cond, err := substituteExprVisit(w.Condition, onParam, params...)
			if err != nil {
				return nil, err
			}
			res, err := substituteExprVisit(w.Result, onParam, params...)
			if err != nil {
				return nil, err
			}
			whens[i] = ast.CaseWhen{Condition: cond, Result: res}
		}
		var els ast.Expression
		if v.Else != nil {
			els, err = substituteExprVisit(v.Else, onParam, params...)
			if err != nil {
				return nil, err
			}
		}
		return &ast.CaseExpr{Subject: subj, Whens: whens, Else: els}, nil
	case *ast.ListLiteral:
		items := make([]ast.Expression, len(v.Items))
		for i, it := range v.Items {
			s, err := substituteExprVisit(it, onParam, params...)
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		return &ast.ListLiteral{Items: items}, nil
	case *ast.MapLiteral:
		vals := make([]ast.Expression, len(v.Values))
		for i, val := range v.Values {
			s, err := substituteExprVisit(val, onParam, params...)
			if err != nil {
				return nil, err
			}
			vals[i] = s
		}
		return &ast.MapLiteral{Keys: v.Keys, Values: vals}, nil
	}
	return e, nil
}

func literalFor(val interface{}) (ast.Expression, error) {
	if val == nil {
		return &ast.Literal{Kind: ast.LitNull}, nil
	}
	switch val.(type) {
	case string:
		return &ast.Literal{Kind: ast.LitString, Value: cast.ToString(val)}, nil
	case bool:
		return &ast.Literal{Kind: ast.LitBool, Value: cast.ToBool(val)}, nil
	case float32, float64:
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return nil, cgerrors.ErrUnsupportedConstruct.New(err.Error())
		}
		return &ast.Literal{Kind: ast.LitFloat, Value: f}, nil
	default:
		i, err := cast.ToInt64E(val)
		if err != nil {
			return nil, cgerrors.ErrUnsupportedConstruct.New(
				fmt.Sprintf("parameter value %v of unsupported type %T", val, val))
		}
		return &ast.Literal{Kind: ast.LitInt, Value: i}, nil
	}
}
