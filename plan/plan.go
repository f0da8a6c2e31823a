// Package plan defines the logical plan IR (spec §3.3): a tagged tree owned
// exclusively by its parent (never a DAG), built by the logical plan builder
// from an *ast.Query and progressively enriched by the analyzer and
// optimizer pipelines. Every pass returns brand-new nodes rather than
// mutating existing ones (spec §5): "no shared mutable state... even when
// modifying a plan, passes construct replacements and return them."
package plan

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
)

// Node is implemented by every logical plan node kind.
type Node interface {
	Children() []Node
	// WithChildren returns a shallow copy of this node with its children
	// replaced, used by the generic Transform helpers below. len(children)
	// must equal len(n.Children()).
	WithChildren(children []Node) Node
	isPlanNode()
}

// Empty produces zero rows with no schema; used as a builder placeholder and
// as the result of provably-unsatisfiable union-branch pruning.
type Empty struct{}

func (*Empty) Children() []Node             { return nil }
func (*Empty) WithChildren(_ []Node) Node   { return &Empty{} }
func (*Empty) isPlanNode()                  {}

// ViewScan is a single physical-table scan: the leaf every GraphNode and
// GraphRel eventually resolves to once schema inference (§4.3 pass 1) has
// run. Projections is the minimal column set this scan must emit, computed
// last among analysis passes by the property-requirements pass (§4.3 #14);
// it starts nil and is filled in by that pass.
type ViewScan struct {
	Alias      string
	Database   string
	Table      string
	Projections []string
	Filter     ast.Expression // optimizer-embedded single-scan predicate (§4.4)
}

func (*ViewScan) Children() []Node           { return nil }
func (v *ViewScan) WithChildren(_ []Node) Node {
	cp := *v
	return &cp
}
func (*ViewScan) isPlanNode() {}

// GraphNode is a MATCH-pattern node slot prior to (or alongside) schema
// resolution: it carries the Cypher-level alias/labels and, once resolved,
// its ViewScan.
type GraphNode struct {
	Alias  string
	Labels []string
	// InlineFilter holds the pattern's inline {prop: val} map, folded to a
	// Filter by the builder.
	InlineFilter ast.Expression
	Scan         *ViewScan // nil until schema inference resolves it
	child        Node      // optional: wraps an existing scan/plan for this alias (e.g. CTE ref)
}

func (g *GraphNode) Children() []Node {
	if g.child == nil {
		return nil
	}
	return []Node{g.child}
}
func (g *GraphNode) WithChildren(children []Node) Node {
	cp := *g
	if len(children) == 1 {
		cp.child = children[0]
	}
	return &cp
}
func (*GraphNode) isPlanNode() {}

// GraphRel is one edge hop: Left is always the "from" side and Right always
// the "to" side regardless of the arrow direction the user wrote (spec §4.2
// critical invariant — the builder swaps references at construction for
// "<-" patterns; nothing downstream may re-derive this from direction).
type GraphRel struct {
	Alias     string
	Types     []string
	Direction ast.Direction // preserved only for diagnostics/printing
	VarLength *ast.VariableLengthSpec

	Left  *GraphNode
	Right *GraphNode

	// Joins is populated by graph-join inference (§4.3 pass 7); nil before
	// that pass runs.
	Joins *GraphJoins
}

func (g *GraphRel) Children() []Node {
	return []Node{g.Left, g.Right}
}
func (g *GraphRel) WithChildren(children []Node) Node {
	cp := *g
	if ln, ok := children[0].(*GraphNode); ok {
		cp.Left = ln
	}
	if rn, ok := children[1].(*GraphNode); ok {
		cp.Right = rn
	}
	return &cp
}
func (*GraphRel) isPlanNode() {}

// JoinKind distinguishes the shapes the render plan's Joins list can hold.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
	JoinUnionAll
)

// JoinCondition is one ON-clause equality, expressed in terms of
// (table_alias, column) pairs rather than a free expression, since every
// catalog-driven join condition is a column-to-column equality by
// construction (spec §4.3 pass 7).
type JoinCondition struct {
	LeftAlias, LeftColumn   string
	RightAlias, RightColumn string
}

// GraphJoins is the join topology analyzer pass 7 emits for one GraphRel,
// dispatched on the catalog's PatternSchemaContext classification rather
// than on scattered booleans (spec §4.3 pass 7, §9).
type GraphJoins struct {
	Kind       catalog.PatternKind
	Conditions []JoinCondition
	// TypeFilter is the polymorphic discriminator predicate
	// ("edge.type_column = 'E'"), set only when Kind==Polymorphic; it must
	// be re-applied verbatim in both the base and step cases of any VLP CTE
	// built over this edge (spec §4.3 pass 7, §4.8).
	TypeFilter ast.Expression
}

func (*GraphJoins) Children() []Node           { return nil }
func (j *GraphJoins) WithChildren(_ []Node) Node { cp := *j; return &cp }
func (*GraphJoins) isPlanNode()                {}

// Filter applies a WHERE predicate to its child. FilterTags (populated by
// analysis pass 8) records, per top-level conjunct, which scan/join branch
// it was traced to and its resolved (table_alias, column) form.
type Filter struct {
	Predicate ast.Expression
	Child     Node
	Tags      []FilterTag
}

// FilterTag is the per-conjunct scoping metadata attached by filter tagging
// (spec §4.3 pass 8): which scan alias the predicate constrains, and whether
// it was promoted from a cartesian-join-straddling predicate (pass 9).
type FilterTag struct {
	Conjunct     ast.Expression
	ScanAlias    string
	CrossBranch  bool
}

func (f *Filter) Children() []Node { return []Node{f.Child} }
func (f *Filter) WithChildren(children []Node) Node {
	cp := *f
	cp.Child = children[0]
	return &cp
}
func (*Filter) isPlanNode() {}

// ProjectionColumn is one output column after tagging (§4.3 pass 10):
// Expr is rewritten to reference resolved columns, Computed is true for
// anything beyond a bare column reference (function calls, arithmetic).
type ProjectionColumn struct {
	Expr     ast.Expression
	Alias    string
	Computed bool
}

// Projection is RETURN/WITH's output list.
type Projection struct {
	Columns  []ProjectionColumn
	Distinct bool
	Child    Node
}

func (p *Projection) Children() []Node { return []Node{p.Child} }
func (p *Projection) WithChildren(children []Node) Node {
	cp := *p
	cp.Child = children[0]
	return &cp
}
func (*Projection) isPlanNode() {}

// GroupBy is synthesized by analysis pass 11 whenever an aggregate function
// appears in RETURN/WITH: Keys is every non-aggregated output column.
type GroupBy struct {
	Keys  []ast.Expression
	Child Node
}

func (g *GroupBy) Children() []Node { return []Node{g.Child} }
func (g *GroupBy) WithChildren(children []Node) Node {
	cp := *g
	cp.Child = children[0]
	return &cp
}
func (*GroupBy) isPlanNode() {}

type OrderBy struct {
	Items []ast.SortItem
	Child Node
}

func (o *OrderBy) Children() []Node { return []Node{o.Child} }
func (o *OrderBy) WithChildren(children []Node) Node {
	cp := *o
	cp.Child = children[0]
	return &cp
}
func (*OrderBy) isPlanNode() {}

type Skip struct {
	Count ast.Expression
	Child Node
}

func (s *Skip) Children() []Node { return []Node{s.Child} }
func (s *Skip) WithChildren(children []Node) Node {
	cp := *s
	cp.Child = children[0]
	return &cp
}
func (*Skip) isPlanNode() {}

type Limit struct {
	Count ast.Expression
	Child Node
}

func (l *Limit) Children() []Node { return []Node{l.Child} }
func (l *Limit) WithChildren(children []Node) Node {
	cp := *l
	cp.Child = children[0]
	return &cp
}
func (*Limit) isPlanNode() {}

// Cte marks a subtree that the render plan builder will materialize as a
// named CTE (WithClause's eventual render-time shape); Name is assigned
// during render planning, not here.
type Cte struct {
	Name  string
	Child Node
}

func (c *Cte) Children() []Node { return []Node{c.Child} }
func (c *Cte) WithChildren(children []Node) Node {
	cp := *c
	cp.Child = children[0]
	return &cp
}
func (*Cte) isPlanNode() {}

type Union struct {
	Kind     ast.UnionKind
	Branches []Node
}

func (u *Union) Children() []Node { return u.Branches }
func (u *Union) WithChildren(children []Node) Node {
	cp := *u
	cp.Branches = children
	return &cp
}
func (*Union) isPlanNode() {}

// WithClause is a hard scope barrier (spec §9): Exported names every alias
// visible to Next; aliases from Child's scope not in Exported must not leak
// (spec §8 testable property).
type WithClause struct {
	Child        Node
	Exported     []string
	Distinct     bool
	Next         Node // nil until the remainder of the query is attached

	// CTEName is assigned by the CTE schema resolver (analyzer pass 5) once
	// it registers this WithClause's materialized schema in the plan
	// context; empty until that pass runs.
	CTEName string
}

func (w *WithClause) Children() []Node {
	if w.Next == nil {
		return []Node{w.Child}
	}
	return []Node{w.Child, w.Next}
}
func (w *WithClause) WithChildren(children []Node) Node {
	cp := *w
	cp.Child = children[0]
	if len(children) > 1 {
		cp.Next = children[1]
	}
	return &cp
}
func (*WithClause) isPlanNode() {}

// CartesianProductKind distinguishes a plain cross join from the
// OPTIONAL-MATCH-shaped left-outer join (spec §4.2).
type CartesianProductKind int

const (
	CartesianInner CartesianProductKind = iota
	CartesianLeftOuter
)

type CartesianProduct struct {
	Kind   CartesianProductKind
	Anchor Node
	Branch Node
	// OnCondition is populated when the analyzer's cartesian-join
	// extraction pass (analysis #9) promotes a
	// straddling predicate into an ON clause, converting this into an
	// inner join at render time.
	OnCondition ast.Expression
}

func (c *CartesianProduct) Children() []Node { return []Node{c.Anchor, c.Branch} }
func (c *CartesianProduct) WithChildren(children []Node) Node {
	cp := *c
	cp.Anchor = children[0]
	cp.Branch = children[1]
	return &cp
}
func (*CartesianProduct) isPlanNode() {}

type Unwind struct {
	Source ast.Expression
	As     string
	Child  Node
}

func (u *Unwind) Children() []Node { return []Node{u.Child} }
func (u *Unwind) WithChildren(children []Node) Node {
	cp := *u
	cp.Child = children[0]
	return &cp
}
func (*Unwind) isPlanNode() {}
