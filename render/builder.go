package render

import (
	"fmt"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/plan"
)

// Builder translates a fully analyzed/optimized logical plan into a
// RenderPlan (spec §4.6). It is the one stage downstream of the analyzer/
// optimizer lockstep that still consults the catalog directly — resolving
// the edge table for a join, or a node's identity column for Job 2 — since
// by this point no further rewriting of the logical plan itself occurs.
type Builder struct {
	cat     *catalog.Catalog
	plan    *plan.PlanContext
	queryID string

	ctes      []CTEDef
	cteNames  map[string]bool
	anonCount int
}

func NewBuilder(cat *catalog.Catalog, pc *plan.PlanContext, queryID string) *Builder {
	return &Builder{cat: cat, plan: pc, queryID: queryID, cteNames: map[string]bool{}}
}

// Build produces the complete RenderPlan for n.
func (b *Builder) Build(n plan.Node) (*RenderPlan, error) {
	root, err := b.translate(n, newRewriteTable())
	if err != nil {
		return nil, err
	}
	return &RenderPlan{CTEs: b.ctes, Root: root}, nil
}

func (b *Builder) err(stage, msg string) error {
	return cgerrors.Wrap(b.queryID, stage, cgerrors.ErrInternalInvariant.New(stage, msg), nil)
}

// translate is the general entrypoint: it handles every modifier/structural
// node and delegates the pattern-only subtree to translateCore.
func (b *Builder) translate(n plan.Node, rw *rewriteTable) (QueryExpr, error) {
	switch v := n.(type) {
	case *plan.Limit:
		inner, err := b.translate(v.Child, rw)
		if err != nil {
			return nil, err
		}
		return b.wrapOuterModifier(inner, nil, nil, v.Count)
	case *plan.Skip:
		inner, err := b.translate(v.Child, rw)
		if err != nil {
			return nil, err
		}
		return b.wrapOuterModifier(inner, nil, v.Count, nil)
	case *plan.OrderBy:
		inner, err := b.translate(v.Child, rw)
		if err != nil {
			return nil, err
		}
		items, err := rewriteSortItems(b, rw, v.Child, v.Items)
		if err != nil {
			return nil, err
		}
		return b.wrapOuterModifier(inner, items, nil, nil)
	case *plan.GroupBy:
		inner, err := b.translate(v.Child, rw)
		if err != nil {
			return nil, err
		}
		keys, err := rewriteExprs(b, rw, v.Child, v.Keys)
		if err != nil {
			return nil, err
		}
		return attachGroupBy(inner, keys), nil
	case *plan.Projection:
		inner, err := b.translate(v.Child, rw)
		if err != nil {
			return nil, err
		}
		items, err := b.projectionItems(v.Columns, rw, v.Child)
		if err != nil {
			return nil, err
		}
		return attachItems(inner, items, v.Distinct), nil
	case *plan.WithClause:
		return b.translateWithClause(v, rw)
	case *plan.Union:
		left, err := b.translate(v.Branches[0], rw)
		if err != nil {
			return nil, err
		}
		right, err := b.translate(v.Branches[1], rw)
		if err != nil {
			return nil, err
		}
		return &SetOp{Kind: v.Kind, Left: left, Right: right}, nil
	default:
		return b.translateCore(n, rw)
	}
}

// wrapOuterModifier attaches ORDER BY/SKIP/LIMIT. These apply to the
// combined result of a UNION, never per-branch, so a *SetOp is wrapped in a
// passthrough outer SELECT (spec §3.5: ORDER BY/Limit/Skip are render-plan-
// level, not per-branch).
func (b *Builder) wrapOuterModifier(qe QueryExpr, orderBy []ast.SortItem, skip, limit ast.Expression) (QueryExpr, error) {
	sel, ok := qe.(*Select)
	if !ok {
		aliases := firstSelectItemAliases(qe)
		items := make([]SelectItem, len(aliases))
		for i, a := range aliases {
			items[i] = SelectItem{Expr: &ast.Variable{Name: a}, Alias: a}
		}
		sel = &Select{From: &Subquery{Query: qe, Alias: b.freshAlias("u")}, Items: items}
	}
	cp := *sel
	if orderBy != nil {
		cp.OrderBy = orderBy
	}
	if skip != nil {
		cp.Skip = skip
	}
	if limit != nil {
		cp.Limit = limit
	}
	return &cp, nil
}

func (b *Builder) projectionItems(cols []plan.ProjectionColumn, rw *rewriteTable, scope plan.Node) ([]SelectItem, error) {
	items := make([]SelectItem, 0, len(cols))
	for _, c := range cols {
		kind, known := b.plan.VariableKind(c.Alias)
		if !c.Computed && known && kind == plan.VarNode {
			// A bare node reference in RETURN packages the whole node as
			// JSON (spec §4.7 "JSON packaging") rather than emitting one of
			// its columns arbitrarily.
			v, ok := c.Expr.(*ast.Variable)
			if !ok {
				return nil, b.err("render", "node-typed projection column "+c.Alias+" is not a bare variable reference")
			}
			jsonExpr, err := b.nodeJSONExpr(v.Name, rw, scope)
			if err != nil {
				return nil, err
			}
			items = append(items, SelectItem{Expr: jsonExpr, Alias: c.Alias, AsJSON: true})
			continue
		}
		expr, err := b.resolveExpr(rw, scope, c.Expr)
		if err != nil {
			return nil, err
		}
		items = append(items, SelectItem{Expr: expr, Alias: c.Alias})
	}
	return items, nil
}

func (b *Builder) freshAlias(prefix string) string {
	b.anonCount++
	return fmt.Sprintf("%s%d", prefix, b.anonCount)
}
