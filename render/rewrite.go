package render

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// rewriteTable maps an alias exported by an already-materialized WithClause
// to where its properties now live: either a qualified (cteAlias, column)
// pair (for node-typed exports, one pair per property) or a direct
// replacement expression (for scalar exports, which collapse to a single
// column). Chained WITHs compose by nesting: building CTE N looks up
// aliases through the rewrite table left by CTE N-1 (spec §4.6 Job 1,
// "innermost-first").
type rewriteTable struct {
	nodeColumns map[string]map[string]string // alias -> property -> cte column
	nodeIDCol   map[string]string            // alias -> cte column holding identity
	scalars     map[string]string            // alias -> cte column
	cteAlias    string                       // the CTE name every column above is qualified by
}

func newRewriteTable() *rewriteTable {
	return &rewriteTable{
		nodeColumns: map[string]map[string]string{},
		nodeIDCol:   map[string]string{},
		scalars:     map[string]string{},
	}
}

// resolveExpr is the single place every logical-plan expression passes
// through on its way into the rendered SQL tree. Three independent
// rewrites compose here, checked in priority order for each alias a
// PropertyAccess/Variable names:
//
//  1. rw: the alias was exported by an already-materialized inner WithClause
//     (spec §4.6 Job 1) and is redirected to that CTE's namespaced column.
//  2. scope: the alias is bound only as a variable-length path endpoint
//     (spec §4.8/§4.9); scope is searched for the originating GraphRel so
//     the correct side (start_id vs. end_id) is picked, mirroring Job 2's
//     fallback in translateWithClause. Only the identity property survives
//     this path — anything else errors rather than silently resolving to
//     the wrong column.
//  3. the catalog's logical-property -> physical-column mapping recorded by
//     the variable_resolver analyzer pass, for a plain GraphNode-scan-backed
//     alias with no WithClause/VLP indirection at all.
//
// Every caller already has scope on hand (the untranslated plan.Node the
// expression was pulled from) since translate/translateCore still hold it
// as a local before recursing into it.
func (b *Builder) resolveExpr(rw *rewriteTable, scope plan.Node, expr ast.Expression) (ast.Expression, error) {
	if expr == nil {
		return nil, nil
	}
	switch e := expr.(type) {
	case *ast.PropertyAccess:
		if v, ok := e.Subject.(*ast.Variable); ok {
			if props, tracked := rw.nodeColumns[v.Name]; tracked {
				if col, known := props[e.Property]; known {
					return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}, nil
				}
			}
			if ref, ok, err := b.vlpPropertyRef(scope, v.Name, e.Property); err != nil {
				return nil, err
			} else if ok {
				return ref, nil
			}
			col, err := b.physicalColumn(v.Name, e.Property)
			if err != nil {
				return nil, err
			}
			return &ast.PropertyAccess{Subject: &ast.Variable{Name: v.Name}, Property: col}, nil
		}
		subj, err := b.resolveExpr(rw, scope, e.Subject)
		if err != nil {
			return nil, err
		}
		return &ast.PropertyAccess{Subject: subj, Property: e.Property}, nil
	case *ast.Variable:
		if col, ok := rw.scalars[e.Name]; ok {
			return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}, nil
		}
		return e, nil
	case *ast.FunctionCall:
		args := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			r, err := b.resolveExpr(rw, scope, a)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return &ast.FunctionCall{Name: e.Name, Args: args, Distinct: e.Distinct}, nil
	case *ast.BinaryOp:
		l, err := b.resolveExpr(rw, scope, e.Left)
		if err != nil {
			return nil, err
		}
		r, err := b.resolveExpr(rw, scope, e.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: e.Op, Left: l, Right: r}, nil
	case *ast.UnaryOp:
		o, err := b.resolveExpr(rw, scope, e.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: e.Op, Operand: o}, nil
	case *ast.IsNullCheck:
		o, err := b.resolveExpr(rw, scope, e.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.IsNullCheck{Operand: o, Negated: e.Negated}, nil
	case *ast.CaseExpr:
		var subj ast.Expression
		var err error
		if e.Subject != nil {
			subj, err = b.resolveExpr(rw, scope, e.Subject)
			if err != nil {
				return nil, err
			}
		}
		whens := make([]ast.CaseWhen, len(e.Whens))
		for i, w := range e.Whens {
			cond, err := b.resolveExpr(rw, scope, w.Condition)
			if err != nil {
				return nil, err
			}
			res, err := b.resolveExpr(rw, scope, w.Result)
			if err != nil {
				return nil, err
			}
			whens[i] = ast.CaseWhen{Condition: cond, Result: res}
		}
		var els ast.Expression
		if e.Else != nil {
			els, err = b.resolveExpr(rw, scope, e.Else)
			if err != nil {
				return nil, err
			}
		}
		return &ast.CaseExpr{Subject: subj, Whens: whens, Else: els}, nil
	case *ast.ListLiteral:
		items := make([]ast.Expression, len(e.Items))
		for i, it := range e.Items {
			r, err := b.resolveExpr(rw, scope, it)
			if err != nil {
				return nil, err
			}
			items[i] = r
		}
		return &ast.ListLiteral{Items: items}, nil
	case *ast.MapLiteral:
		vals := make([]ast.Expression, len(e.Values))
		for i, val := range e.Values {
			r, err := b.resolveExpr(rw, scope, val)
			if err != nil {
				return nil, err
			}
			vals[i] = r
		}
		return &ast.MapLiteral{Keys: e.Keys, Values: vals}, nil
	}
	return expr, nil
}

// physicalColumn resolves alias.property to its physical column via the
// catalog, for an alias bound to a real GraphNode scan. Anything that isn't
// a scope-bound node alias (a destructured map parameter, an already-
// resolved computed expression) is passed through unchanged rather than
// treated as an error, since not every PropertyAccess subject names one.
func (b *Builder) physicalColumn(alias, property string) (string, error) {
	tc, err := b.plan.Lookup(alias)
	if err != nil {
		return property, nil
	}
	kind, known := b.plan.VariableKind(alias)
	if !known || kind != plan.VarNode {
		return property, nil
	}
	if col, ok := tc.PropertyMapping[property]; ok {
		return col, nil
	}
	if len(tc.Labels) != 1 {
		return property, nil
	}
	ns, err := b.cat.Node(tc.Labels[0])
	if err != nil {
		return "", err
	}
	return ns.Column(property)
}

// vlpPropertyRef redirects a property access on a variable-length path
// endpoint alias to the recursive CTE's start_id/end_id column (spec §4.8,
// §4.9). Only the endpoint's identity property resolves this way — a VLP
// CTE carries no other column from either endpoint's table, so any other
// property errors rather than silently compiling a reference to a column
// that was never selected.
func (b *Builder) vlpPropertyRef(scope plan.Node, alias, property string) (ast.Expression, bool, error) {
	ep, ok := b.plan.VLPEndpoint(alias)
	if !ok {
		return nil, false, nil
	}
	tc, err := b.plan.Lookup(alias)
	if err != nil || len(tc.Labels) != 1 {
		return nil, false, b.err("render", "variable-length path endpoint "+alias+" has no single resolved label")
	}
	ns, err := b.cat.Node(tc.Labels[0])
	if err != nil {
		return nil, false, err
	}
	col, err := ns.Column(property)
	if err != nil {
		return nil, false, err
	}
	if len(ns.IDColumns) != 1 || col != ns.IDColumns[0] {
		return nil, false, b.err("render", "variable-length path endpoint "+alias+" exposes only its identity column outside WITH, not "+property)
	}
	idProp := ep.EndAlias
	if isLeft, found := vlpSide(scope, alias); found && isLeft {
		idProp = ep.StartAlias
	}
	return propRef(ep.RefAlias, idProp), true, nil
}

// cteRedirect applies only the rw substitution step of resolveExpr, with no
// catalog or VLP fallback. The three callers in nodeExportColumns/
// translateWithClause already hold a physical column name (looked up from the
// catalog or a VLPEndpoint directly) rather than a Cypher property name, so
// running it back through the catalog-fallback half of resolveExpr would
// misinterpret it as one.
func cteRedirect(rw *rewriteTable, expr ast.Expression) ast.Expression {
	switch e := expr.(type) {
	case *ast.PropertyAccess:
		if v, ok := e.Subject.(*ast.Variable); ok {
			if props, tracked := rw.nodeColumns[v.Name]; tracked {
				if col, known := props[e.Property]; known {
					return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}
				}
			}
			return e
		}
		return &ast.PropertyAccess{Subject: cteRedirect(rw, e.Subject), Property: e.Property}
	case *ast.Variable:
		if col, ok := rw.scalars[e.Name]; ok {
			return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}
		}
		return e
	}
	return expr
}

func rewriteSortItems(b *Builder, rw *rewriteTable, scope plan.Node, items []ast.SortItem) ([]ast.SortItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]ast.SortItem, len(items))
	for i, it := range items {
		e, err := b.resolveExpr(rw, scope, it.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = ast.SortItem{Expr: e, Descending: it.Descending}
	}
	return out, nil
}

func rewriteExprs(b *Builder, rw *rewriteTable, scope plan.Node, exprs []ast.Expression) ([]ast.Expression, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]ast.Expression, len(exprs))
	for i, e := range exprs {
		r, err := b.resolveExpr(rw, scope, e)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// attachItems distributes items onto every leaf *Select of a QueryExpr tree
// (recursing through SetOp), matching SQL's requirement that each side of a
// UNION carry its own complete column list.
func attachItems(qe QueryExpr, items []SelectItem, distinct bool) QueryExpr {
	switch v := qe.(type) {
	case *Select:
		cp := *v
		cp.Items = items
		cp.Distinct = distinct
		return &cp
	case *SetOp:
		cp := *v
		cp.Left = attachItems(v.Left, items, distinct)
		cp.Right = attachItems(v.Right, items, distinct)
		return &cp
	}
	return qe
}

func attachWhere(qe QueryExpr, extra ast.Expression) QueryExpr {
	if extra == nil {
		return qe
	}
	switch v := qe.(type) {
	case *Select:
		cp := *v
		if cp.Where == nil {
			cp.Where = extra
		} else {
			cp.Where = &ast.BinaryOp{Op: "AND", Left: cp.Where, Right: extra}
		}
		return &cp
	case *SetOp:
		cp := *v
		cp.Left = attachWhere(v.Left, extra)
		cp.Right = attachWhere(v.Right, extra)
		return &cp
	}
	return qe
}

func attachGroupBy(qe QueryExpr, keys []ast.Expression) QueryExpr {
	if len(keys) == 0 {
		return qe
	}
	switch v := qe.(type) {
	case *Select:
		cp := *v
		cp.GroupBy = keys
		return &cp
	case *SetOp:
		cp := *v
		cp.Left = attachGroupBy(v.Left, keys)
		cp.Right = attachGroupBy(v.Right, keys)
		return &cp
	}
	return qe
}

// firstSelectItemAliases walks down the leftmost branch of a QueryExpr tree
// to find the column-name list every branch shares, used to build a
// passthrough outer SELECT when ORDER BY/LIMIT must wrap a UNION ALL.
func firstSelectItemAliases(qe QueryExpr) []string {
	switch v := qe.(type) {
	case *Select:
		out := make([]string, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Alias
		}
		return out
	case *SetOp:
		return firstSelectItemAliases(v.Left)
	}
	return nil
}
