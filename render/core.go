package render

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// translateCore handles the pattern-only subtree: Filter, CartesianProduct,
// GraphRel, GraphNode, Unwind, Empty, and a bare Union of pattern branches
// (multi-label/multi-type expansion or bidirectional rewriting, spec §4.3
// passes 3 and 6). It never sees Projection/OrderBy/WithClause — those are
// translate's job.
func (b *Builder) translateCore(n plan.Node, rw *rewriteTable) (QueryExpr, error) {
	switch v := n.(type) {
	case *plan.Empty:
		return &Select{}, nil
	case *plan.Filter:
		inner, err := b.translateCore(v.Child, rw)
		if err != nil {
			return nil, err
		}
		predicate, err := b.resolveExpr(rw, v.Child, v.Predicate)
		if err != nil {
			return nil, err
		}
		return attachWhere(inner, predicate), nil
	case *plan.Union:
		left, err := b.translateCore(v.Branches[0], rw)
		if err != nil {
			return nil, err
		}
		right, err := b.translateCore(v.Branches[1], rw)
		if err != nil {
			return nil, err
		}
		return &SetOp{Kind: v.Kind, Left: left, Right: right}, nil
	case *plan.Unwind:
		inner, err := b.translateCore(v.Child, rw)
		if err != nil {
			return nil, err
		}
		sel, ok := inner.(*Select)
		if !ok {
			sel = &Select{From: &Subquery{Query: inner, Alias: b.freshAlias("u")}}
		}
		arrayExpr, err := b.resolveExpr(rw, v.Child, v.Source)
		if err != nil {
			return nil, err
		}
		cp := *sel
		cp.Joins = append(append([]Join{}, cp.Joins...), Join{
			Kind:      JoinArray,
			ArrayExpr: arrayExpr,
			ArrayAs:   v.As,
		})
		return &cp, nil
	case *plan.CartesianProduct:
		return b.translateCartesian(v, rw)
	case *plan.GraphNode:
		return b.translateGraphNode(v, rw)
	case *plan.GraphRel:
		return b.translateGraphRel(v, rw)
	}
	return nil, b.err("render", "unsupported logical plan node in pattern core")
}

func (b *Builder) translateCartesian(cp *plan.CartesianProduct, rw *rewriteTable) (QueryExpr, error) {
	anchor, err := b.translateCore(cp.Anchor, rw)
	if err != nil {
		return nil, err
	}
	branch, err := b.translateCore(cp.Branch, rw)
	if err != nil {
		return nil, err
	}
	anchorSel, ok := anchor.(*Select)
	if !ok {
		anchorSel = &Select{From: &Subquery{Query: anchor, Alias: b.freshAlias("cp")}}
	}
	kind := JoinCross
	if cp.Kind == plan.CartesianLeftOuter {
		kind = JoinLeft
	}
	var on ast.Expression
	if cp.OnCondition != nil {
		var err error
		on, err = b.resolveExpr(rw, cp, cp.OnCondition)
		if err != nil {
			return nil, err
		}
		if kind == JoinCross {
			kind = JoinInner
		}
	}
	joined, err := joinInRelation(anchorSel, branch, kind, on, b)
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// joinInRelation appends branch as a JOIN target of base. branch must
// reduce to a single relation (a *Select with no WHERE-worthy filtering of
// its own beyond what can ride in the ON clause) or gets wrapped as a
// derived table.
func joinInRelation(base *Select, branch QueryExpr, kind JoinKind, on ast.Expression, b *Builder) (*Select, error) {
	branchSel, ok := branch.(*Select)
	if !ok || len(branchSel.Joins) > 0 || branchSel.Where != nil {
		rel := &Subquery{Query: branch, Alias: b.freshAlias("b")}
		cp := *base
		cp.Joins = append(append([]Join{}, cp.Joins...), Join{Kind: kind, Relation: rel, On: on})
		return &cp, nil
	}
	cp := *base
	cp.Joins = append(append([]Join{}, cp.Joins...), branchSel.Joins...)
	cp.Joins = append(cp.Joins, Join{Kind: kind, Relation: branchSel.From, On: on})
	cp.Where = andExpr(cp.Where, branchSel.Where)
	return &cp, nil
}

func andExpr(a, c ast.Expression) ast.Expression {
	if a == nil {
		return c
	}
	if c == nil {
		return a
	}
	return &ast.BinaryOp{Op: "AND", Left: a, Right: c}
}

func (b *Builder) translateGraphNode(gn *plan.GraphNode, rw *rewriteTable) (QueryExpr, error) {
	if gn.Scan == nil {
		return nil, b.err("render", "GraphNode "+gn.Alias+" has no resolved scan (schema inference did not run)")
	}
	var where ast.Expression
	if gn.Scan.Filter != nil {
		var err error
		where, err = b.resolveExpr(rw, gn, gn.Scan.Filter)
		if err != nil {
			return nil, err
		}
	}
	return &Select{
		From:  &Table{Database: gn.Scan.Database, Table: gn.Scan.Table, Alias: gn.Alias},
		Where: where,
	}, nil
}

func (b *Builder) translateGraphRel(rel *plan.GraphRel, rw *rewriteTable) (QueryExpr, error) {
	if rel.VarLength != nil {
		return b.translateVLP(rel, rw)
	}
	if rel.Joins == nil {
		return nil, b.err("render", "GraphRel "+rel.Alias+" has no resolved joins (graph-join inference did not run)")
	}

	switch rel.Joins.Kind {
	case catalog.Denormalized:
		return b.translateDenormalizedRel(rel, rw)
	case catalog.MixedDenormalized:
		return b.translateMixedDenormalizedRel(rel, rw)
	}

	leftSel, err := b.translateGraphNode(rel.Left, rw)
	if err != nil {
		return nil, err
	}
	sel := leftSel.(*Select)
	cp := *sel

	switch rel.Joins.Kind {
	case catalog.FkEdge:
		rightSel, err := b.translateGraphNode(rel.Right, rw)
		if err != nil {
			return nil, err
		}
		rsel := rightSel.(*Select)
		cp.Joins = append(cp.Joins, Join{Kind: JoinInner, Relation: rsel.From, On: condExpr(rel.Joins.Conditions[0])})
		cp.Where = andExpr(cp.Where, rsel.Where)
	default: // Standard, Polymorphic
		edge, err := b.cat.Edge(rel.Types[0])
		if err != nil {
			return nil, err
		}
		edgeTable := &Table{Database: edge.Database, Table: edge.Table, Alias: rel.Alias}
		cp.Joins = append(cp.Joins, Join{Kind: JoinInner, Relation: edgeTable, On: condExpr(rel.Joins.Conditions[0])})
		if rel.Joins.TypeFilter != nil {
			typeFilter, err := b.resolveExpr(rw, rel, rel.Joins.TypeFilter)
			if err != nil {
				return nil, err
			}
			cp.Where = andExpr(cp.Where, typeFilter)
		}
		rightSel, err := b.translateGraphNode(rel.Right, rw)
		if err != nil {
			return nil, err
		}
		rsel := rightSel.(*Select)
		cp.Joins = append(cp.Joins, Join{Kind: JoinInner, Relation: rsel.From, On: condExpr(rel.Joins.Conditions[1])})
		cp.Where = andExpr(cp.Where, rsel.Where)
	}
	return &cp, nil
}

// translateDenormalizedRel handles the single-table case: the edge table
// itself stands in for both endpoints' identity/properties, so there is
// nothing to join (spec §4.3 pass 7 "Denormalized").
func (b *Builder) translateDenormalizedRel(rel *plan.GraphRel, rw *rewriteTable) (QueryExpr, error) {
	edge, err := b.cat.Edge(rel.Types[0])
	if err != nil {
		return nil, err
	}
	var where ast.Expression
	if rel.Joins.TypeFilter != nil {
		var err error
		where, err = b.resolveExpr(rw, rel, rel.Joins.TypeFilter)
		if err != nil {
			return nil, err
		}
	}
	return &Select{From: &Table{Database: edge.Database, Table: edge.Table, Alias: rel.Alias}, Where: where}, nil
}

// translateMixedDenormalizedRel handles one real endpoint joined against the
// edge table standing in for the other (spec §4.3 pass 7 "Mixed
// denormalized"): exactly the Standard join shape minus whichever endpoint
// has no table of its own, decided by which of Left/Right the catalog
// reports Denormalized for.
func (b *Builder) translateMixedDenormalizedRel(rel *plan.GraphRel, rw *rewriteTable) (QueryExpr, error) {
	edge, err := b.cat.Edge(rel.Types[0])
	if err != nil {
		return nil, err
	}
	edgeTable := &Table{Database: edge.Database, Table: edge.Table, Alias: rel.Alias}

	leftNode, lerr := b.cat.Node(rel.Left.Labels[0])
	if lerr != nil {
		return nil, lerr
	}
	sel := &Select{From: edgeTable}
	if rel.Joins.TypeFilter != nil {
		var err error
		sel.Where, err = b.resolveExpr(rw, rel, rel.Joins.TypeFilter)
		if err != nil {
			return nil, err
		}
	}
	if !leftNode.Denormalized {
		leftSel, err := b.translateGraphNode(rel.Left, rw)
		if err != nil {
			return nil, err
		}
		lsel := leftSel.(*Select)
		sel.Joins = append(sel.Joins, Join{Kind: JoinInner, Relation: lsel.From, On: condExpr(rel.Joins.Conditions[0])})
		sel.Where = andExpr(sel.Where, lsel.Where)
	} else {
		rightSel, err := b.translateGraphNode(rel.Right, rw)
		if err != nil {
			return nil, err
		}
		rsel := rightSel.(*Select)
		lastCond := rel.Joins.Conditions[len(rel.Joins.Conditions)-1]
		sel.Joins = append(sel.Joins, Join{Kind: JoinInner, Relation: rsel.From, On: condExpr(lastCond)})
		sel.Where = andExpr(sel.Where, rsel.Where)
	}
	return sel, nil
}

func condExpr(c plan.JoinCondition) ast.Expression {
	return &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: c.LeftAlias}, Property: c.LeftColumn},
		Right: &ast.PropertyAccess{Subject: &ast.Variable{Name: c.RightAlias}, Property: c.RightColumn},
	}
}
