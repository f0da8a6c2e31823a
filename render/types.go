// Package render implements the render plan builder (spec §4.6): the
// near-SQL IR translated from the logical plan, and the two hard jobs that
// live at this boundary — materializing WITH as CTEs with alias rewriting
// (Job 1) and resolving which CTE column holds a node's identity (Job 2).
package render

import (
	"fmt"
	"strings"

	"github.com/genezhang/clickgraph/ast"
)

// JoinKind mirrors plan.JoinKind at the render-plan level (spec §3.5).
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
	JoinUnionAll
	// JoinArray represents a ClickHouse ARRAY JOIN, the render-plan shape for
	// an UNWIND (spec §4.3 pass 5 / §3.5): ArrayExpr/ArrayAs on Join are only
	// meaningful for this kind, Relation is unused.
	JoinArray
)

// Relation is anything that can sit in a FROM clause or JOIN target.
type Relation interface{ isRelation() }

// Table is a direct physical-table reference.
type Table struct {
	Database string
	Table    string
	Alias    string
}

func (*Table) isRelation() {}

// CTERef references an already-materialized CTE by name.
type CTERef struct {
	Name  string
	Alias string
}

func (*CTERef) isRelation() {}

// Subquery wraps a nested QueryExpr in a derived table.
type Subquery struct {
	Query QueryExpr
	Alias string
}

func (*Subquery) isRelation() {}

// Join is one entry in Select.Joins.
type Join struct {
	Kind     JoinKind
	Relation Relation
	On       ast.Expression // nil for JoinCross/JoinUnionAll/JoinArray

	// ArrayExpr/ArrayAs are set only when Kind==JoinArray: the UNWIND source
	// expression and the bound element alias (spec §4.3 pass 5).
	ArrayExpr ast.Expression
	ArrayAs   string
}

// SelectItem is one output column.
type SelectItem struct {
	Expr  ast.Expression
	Alias string
	// AsJSON marks a column that must be packaged as a single JSON value
	// (spec §4.7 "JSON packaging") rather than emitted as a scalar column —
	// set when the source Cypher projection returns a whole node/path.
	AsJSON bool
}

// QueryExpr is either a *Select or a *SetOp (UNION ALL of two QueryExprs);
// both are legal as a CTE body or as the render plan's root.
type QueryExpr interface{ isQueryExpr() }

// Select is the render plan's core node (spec §3.5).
type Select struct {
	Distinct bool
	Items    []SelectItem
	From     Relation
	Joins    []Join
	Where    ast.Expression
	GroupBy  []ast.Expression
	Having   ast.Expression
	OrderBy  []ast.SortItem
	Skip     ast.Expression
	Limit    ast.Expression
}

func (*Select) isQueryExpr() {}

// SetOp combines two QueryExprs with UNION ALL (or, in principle, another
// ast.UnionKind); used both for Cypher-level UNION and for the bidirectional
// VLP "two recursive CTEs combined by UNION ALL" shape (spec §4.8).
type SetOp struct {
	Kind  ast.UnionKind
	Left  QueryExpr
	Right QueryExpr
}

func (*SetOp) isQueryExpr() {}

// CTEDef is one entry in the render plan's ordered CTE list (spec §3.5).
// Recursive CTEs set Base/Step instead of Body; the emitter combines them
// with UNION ALL inside the WITH RECURSIVE body (spec §4.8).
type CTEDef struct {
	Name      string
	Columns   []string
	Recursive bool

	Body QueryExpr // non-recursive CTEs

	Base QueryExpr // recursive CTEs: anchor member
	Step QueryExpr // recursive CTEs: self-referencing member
}

// RenderPlan is the complete output of the render plan builder: an ordered
// CTE list (outermost-emitted first) plus the final query.
type RenderPlan struct {
	CTEs []CTEDef
	Root QueryExpr
}

// Sprint renders a one-line-per-node indented dump of a RenderPlan, the
// render-plan half of the EXPLAIN-shaped introspection entry point added in
// SPEC_FULL.md (engine.CompilePlan). It mirrors plan.Sprint's shape so the
// two halves of a PlanExplanation read consistently.
func Sprint(rp *RenderPlan) string {
	var b strings.Builder
	for _, c := range rp.CTEs {
		kind := "Cte"
		if c.Recursive {
			kind = "RecursiveCte"
		}
		fmt.Fprintf(&b, "%s(%s, cols=%v)\n", kind, c.Name, c.Columns)
		if c.Recursive {
			sprintQuery(&b, c.Base, 1, "base")
			sprintQuery(&b, c.Step, 1, "step")
		} else {
			sprintQuery(&b, c.Body, 1, "")
		}
	}
	fmt.Fprint(&b, "Root\n")
	sprintQuery(&b, rp.Root, 1, "")
	return b.String()
}

func sprintQuery(b *strings.Builder, qe QueryExpr, depth int, label string) {
	indent := strings.Repeat("  ", depth)
	if label != "" {
		label = label + ": "
	}
	switch v := qe.(type) {
	case nil:
		fmt.Fprintf(b, "%s%s<nil>\n", indent, label)
	case *Select:
		fmt.Fprintf(b, "%s%sSelect(%d items, %d joins, distinct=%v)\n", indent, label, len(v.Items), len(v.Joins), v.Distinct)
	case *SetOp:
		fmt.Fprintf(b, "%s%sSetOp(%v)\n", indent, label, v.Kind)
		sprintQuery(b, v.Left, depth+1, "left")
		sprintQuery(b, v.Right, depth+1, "right")
	default:
		fmt.Fprintf(b, "%s%s%T\n", indent, label, qe)
	}
}
