package analyzer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// GraphJoinInference is analyzer pass 7 (spec §4.3): the heart of the
// compiler. For every GraphRel whose endpoints carry exactly one resolved
// label (pattern resolution, pass 3, guarantees this by the time this pass
// runs), classify the pattern via catalog.Classify and emit the join
// topology it implies, dispatched on PatternKind rather than scattered
// booleans (spec §9).
var GraphJoinInference = Pass{Name: "graph_join_inference", Apply: applyGraphJoinInference}

func applyGraphJoinInference(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		rel, ok := node.(*plan.GraphRel)
		if !ok || rel.Joins != nil || len(rel.Types) != 1 {
			return node, false, nil
		}
		fromLabel := soleLabel(rel.Left.Labels)
		toLabel := soleLabel(rel.Right.Labels)
		if fromLabel == "" || toLabel == "" {
			return node, false, nil
		}

		ctx, err := rctx.Catalog.Classify(rel.Types[0], fromLabel, toLabel)
		if err != nil {
			return node, false, err
		}

		joins, err := buildGraphJoins(ctx, rel)
		if err != nil {
			return node, false, err
		}

		cp := *rel
		cp.Joins = joins
		return &cp, true, nil
	})
}

func soleLabel(labels []string) string {
	if len(labels) != 1 {
		return ""
	}
	return labels[0]
}

// buildGraphJoins dispatches on ctx.Kind and emits the concrete join
// conditions a render-plan join (or VLP CTE step, spec §4.8) must apply for
// this pattern. Each case is grounded directly in the catalog shape spec §3.1
// defines for it.
func buildGraphJoins(ctx *catalog.PatternSchemaContext, rel *plan.GraphRel) (*plan.GraphJoins, error) {
	joins := &plan.GraphJoins{Kind: ctx.Kind}

	switch ctx.Kind {
	case catalog.Standard:
		// edge.from_id = left.id, edge.to_id = right.id: two ordinary joins
		// through the dedicated edge table.
		joins.Conditions = []plan.JoinCondition{
			{LeftAlias: rel.Left.Alias, LeftColumn: soleID(ctx.Left), RightAlias: rel.Alias, RightColumn: ctx.Edge.From.IDColumn},
			{LeftAlias: rel.Alias, LeftColumn: ctx.Edge.To.IDColumn, RightAlias: rel.Right.Alias, RightColumn: soleID(ctx.Right)},
		}

	case catalog.FkEdge:
		// No standalone edge table: the foreign key lives on whichever node
		// table JoinSide names (informational for the render stage, which
		// must skip synthesizing a separate edge scan for that alias). The
		// join formula itself uses the catalog's from_id/to_id columns
		// exactly as Standard does, with no direction-based swap (spec
		// §4.3 pass 7: "no other swap logic").
		joins.Conditions = []plan.JoinCondition{
			{LeftAlias: rel.Left.Alias, LeftColumn: ctx.Edge.From.IDColumn, RightAlias: rel.Right.Alias, RightColumn: ctx.Edge.To.IDColumn},
		}

	case catalog.Denormalized:
		// Neither endpoint has a standalone table: both nodes' properties
		// are columns on the edge table itself, so there is no join at all —
		// the GraphNode aliases resolve directly to the edge's ViewScan.
		joins.Conditions = nil

	case catalog.MixedDenormalized:
		// One endpoint is denormalized (its properties live on the edge
		// table), the other has a real table and needs an ordinary join.
		if ctx.Left.Denormalized {
			joins.Conditions = []plan.JoinCondition{
				{LeftAlias: rel.Alias, LeftColumn: ctx.Edge.To.IDColumn, RightAlias: rel.Right.Alias, RightColumn: soleID(ctx.Right)},
			}
		} else {
			joins.Conditions = []plan.JoinCondition{
				{LeftAlias: rel.Left.Alias, LeftColumn: soleID(ctx.Left), RightAlias: rel.Alias, RightColumn: ctx.Edge.From.IDColumn},
			}
		}

	case catalog.Polymorphic:
		joins.Conditions = []plan.JoinCondition{
			{LeftAlias: rel.Left.Alias, LeftColumn: soleID(ctx.Left), RightAlias: rel.Alias, RightColumn: ctx.Edge.From.IDColumn},
			{LeftAlias: rel.Alias, LeftColumn: ctx.Edge.To.IDColumn, RightAlias: rel.Right.Alias, RightColumn: soleID(ctx.Right)},
		}
		// TypeFilter must be re-applied verbatim in both the base and step
		// cases of any VLP CTE built over this edge (spec §4.3 pass 7, §4.8).
		joins.TypeFilter = &ast.BinaryOp{
			Op:    "=",
			Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: rel.Alias}, Property: ctx.Edge.TypeColumn},
			Right: &ast.Literal{Kind: ast.LitString, Value: ctx.Edge.TypeValue},
		}
	}

	return joins, nil
}

func soleID(n *catalog.NodeSchema) string {
	if len(n.IDColumns) == 0 {
		return ""
	}
	return n.IDColumns[0]
}
