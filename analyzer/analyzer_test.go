package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// testCatalog builds the User/FOLLOWS standard-schema fixture used across
// this package's tests, plus an FK-edge and a polymorphic variant so every
// PatternKind has a home (spec §3.1 catalog shape).
func testCatalog() *catalog.Catalog {
	user := &catalog.NodeSchema{
		Label: "User", Database: "graph", Table: "users",
		IDColumns:  []string{"id"},
		Properties: map[string]string{"name": "display_name", "age": "age"},
	}
	post := &catalog.NodeSchema{
		Label: "Post", Database: "graph", Table: "posts",
		IDColumns:  []string{"id"},
		Properties: map[string]string{"title": "title"},
	}
	follows := &catalog.EdgeSchema{
		Type: "FOLLOWS", Database: "graph", Table: "follows",
		From: catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "follower_id"},
		To:   catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "followee_id"},
	}
	authored := &catalog.EdgeSchema{
		Type: "AUTHORED", Virtual: true, FKJoinSide: catalog.JoinSideRight,
		From: catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "id"},
		To:   catalog.EdgeEndpoint{NodeLabel: "Post", IDColumn: "author_id"},
	}
	return catalog.New(
		[]*catalog.NodeSchema{user, post},
		[]*catalog.EdgeSchema{follows, authored},
	)
}

func newTestRunContext(cat *catalog.Catalog) *RunContext {
	return DefaultRunContext(cat, plan.NewPlanContext(), "test-query")
}

func TestSchemaInferenceResolvesStandardTable(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rctx.Plan.Bind("u", plan.VarNode, []string{"User"})
	gn := &plan.GraphNode{Alias: "u", Labels: []string{"User"}}

	out, changed, err := Run(SchemaInference, gn, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	resolved := out.(*plan.GraphNode)
	require.NotNil(t, resolved.Scan)
	assert.Equal(t, "users", resolved.Scan.Table)
	assert.Equal(t, "graph", resolved.Scan.Database)
}

func TestTypeInferenceFillsMissingLabels(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rctx.Plan.Bind("a", plan.VarNode, nil)
	rctx.Plan.Bind("b", plan.VarNode, []string{"User"})
	rel := &plan.GraphRel{
		Alias: "r", Types: []string{"FOLLOWS"},
		Left:  &plan.GraphNode{Alias: "a"},
		Right: &plan.GraphNode{Alias: "b", Labels: []string{"User"}},
	}

	out, changed, err := Run(TypeInference, rel, rctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"User"}, out.(*plan.GraphRel).Left.Labels)
}

func TestTypeInferenceExplosionIsRejected(t *testing.T) {
	cat := testCatalog()
	rctx := newTestRunContext(cat)
	rctx.TypeInferenceCap = 0
	rel := &plan.GraphRel{
		Alias: "r", Types: []string{"FOLLOWS"},
		Left:  &plan.GraphNode{Alias: "a"},
		Right: &plan.GraphNode{Alias: "b", Labels: []string{"User"}},
	}
	_, _, err := Run(TypeInference, rel, rctx)
	assert.Error(t, err)
}

func TestBidirectionalUnionRewritesUndirectedEdge(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	left := &plan.GraphNode{Alias: "a", Labels: []string{"User"}}
	right := &plan.GraphNode{Alias: "b", Labels: []string{"User"}}
	rel := &plan.GraphRel{Alias: "r", Types: []string{"FOLLOWS"}, Direction: ast.DirUndirected, Left: left, Right: right}

	out, changed, err := Run(BidirectionalUnion, rel, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	u, ok := out.(*plan.Union)
	require.True(t, ok)
	require.Len(t, u.Branches, 2)
	outgoing := u.Branches[0].(*plan.GraphRel)
	incoming := u.Branches[1].(*plan.GraphRel)
	assert.Equal(t, ast.DirOut, outgoing.Direction)
	assert.Equal(t, "a", outgoing.Left.Alias)
	assert.Equal(t, ast.DirIn, incoming.Direction)
	assert.Equal(t, "b", incoming.Left.Alias)
}

func TestBidirectionalUnionDoesNotCrossWithBoundary(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rel := &plan.GraphRel{
		Alias: "r", Types: []string{"FOLLOWS"}, Direction: ast.DirUndirected,
		Left:  &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		Right: &plan.GraphNode{Alias: "b", Labels: []string{"User"}},
	}
	inner := &plan.WithClause{
		Child:    &plan.Projection{Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}}, Child: rel},
		Exported: []string{"a"},
	}

	out, changed, err := Run(BidirectionalUnion, inner, rctx)
	require.NoError(t, err)
	assert.True(t, changed, "the rewrite still happens inside the WithClause's own child")

	wc := out.(*plan.WithClause)
	proj := wc.Child.(*plan.Projection)
	_, isUnion := proj.Child.(*plan.Union)
	assert.True(t, isUnion)
}

func TestGraphJoinInferenceStandardPattern(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rel := &plan.GraphRel{
		Alias: "r", Types: []string{"FOLLOWS"},
		Left:  &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		Right: &plan.GraphNode{Alias: "b", Labels: []string{"User"}},
	}

	out, changed, err := Run(GraphJoinInference, rel, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	joins := out.(*plan.GraphRel).Joins
	require.NotNil(t, joins)
	assert.Equal(t, catalog.Standard, joins.Kind)
	require.Len(t, joins.Conditions, 2)
	assert.Equal(t, plan.JoinCondition{LeftAlias: "a", LeftColumn: "id", RightAlias: "r", RightColumn: "follower_id"}, joins.Conditions[0])
	assert.Equal(t, plan.JoinCondition{LeftAlias: "r", LeftColumn: "followee_id", RightAlias: "b", RightColumn: "id"}, joins.Conditions[1])
}

func TestGraphJoinInferenceFkEdgePattern(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rel := &plan.GraphRel{
		Alias: "r", Types: []string{"AUTHORED"},
		Left:  &plan.GraphNode{Alias: "u", Labels: []string{"User"}},
		Right: &plan.GraphNode{Alias: "p", Labels: []string{"Post"}},
	}

	out, _, err := Run(GraphJoinInference, rel, rctx)
	require.NoError(t, err)

	joins := out.(*plan.GraphRel).Joins
	assert.Equal(t, catalog.FkEdge, joins.Kind)
	require.Len(t, joins.Conditions, 1)
	assert.Equal(t, "u", joins.Conditions[0].LeftAlias)
	assert.Equal(t, "p", joins.Conditions[0].RightAlias)
}

func TestFilterTaggingSplitsConjunctsAndMarksCrossBranch(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	single := &ast.BinaryOp{Op: "=", Left: &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"}, Right: &ast.Literal{Kind: ast.LitString, Value: "x"}}
	cross := &ast.BinaryOp{Op: "=", Left: &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "id"}, Right: &ast.PropertyAccess{Subject: &ast.Variable{Name: "b"}, Property: "id"}}
	pred := &ast.BinaryOp{Op: "AND", Left: single, Right: cross}
	f := &plan.Filter{Predicate: pred, Child: &plan.Empty{}}

	out, changed, err := Run(FilterTagging, f, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	tags := out.(*plan.Filter).Tags
	require.Len(t, tags, 2)
	assert.Equal(t, "a", tags[0].ScanAlias)
	assert.False(t, tags[0].CrossBranch)
	assert.True(t, tags[1].CrossBranch)
}

func TestCartesianJoinExtractionPromotesStraddlingPredicate(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	anchor := &plan.GraphNode{Alias: "a", Labels: []string{"User"}}
	branch := &plan.GraphNode{Alias: "b", Labels: []string{"User"}}
	cp := &plan.CartesianProduct{Kind: plan.CartesianInner, Anchor: anchor, Branch: branch}

	cross := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "id"},
		Right: &ast.PropertyAccess{Subject: &ast.Variable{Name: "b"}, Property: "id"},
	}
	f := &plan.Filter{Predicate: cross, Child: cp, Tags: []plan.FilterTag{{Conjunct: cross, CrossBranch: true}}}

	out, changed, err := Run(CartesianJoinExtraction, f, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	promoted := out.(*plan.CartesianProduct)
	require.NotNil(t, promoted.OnCondition)
}

func TestGroupByConstructionSynthesizesKeys(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	proj := &plan.Projection{
		Columns: []plan.ProjectionColumn{
			{Expr: &ast.Variable{Name: "a"}, Alias: "a"},
			{Expr: &ast.FunctionCall{Name: "count", Args: []ast.Expression{&ast.Variable{Name: "b"}}}, Alias: "n", Computed: true},
		},
		Child: &plan.Empty{},
	}

	out, changed, err := Run(GroupByConstruction, proj, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	gb, ok := out.(*plan.Projection).Child.(*plan.GroupBy)
	require.True(t, ok)
	require.Len(t, gb.Keys, 1)
	assert.Equal(t, "a", gb.Keys[0].(*ast.Variable).Name)
}

func TestGroupByConstructionLeavesNonAggregatedProjectionAlone(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	proj := &plan.Projection{
		Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}},
		Child:   &plan.Empty{},
	}
	_, changed, err := Run(GroupByConstruction, proj, rctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestVariableResolverRecordsPropertyMapping(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	tc := rctx.Plan.Bind("u", plan.VarNode, []string{"User"})
	f := &plan.Filter{
		Predicate: &ast.BinaryOp{Op: "=",
			Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "u"}, Property: "name"},
			Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
		},
		Child: &plan.Empty{},
	}

	_, _, err := Run(VariableResolver, f, rctx)
	require.NoError(t, err)
	assert.Equal(t, "display_name", tc.PropertyMapping["name"])
	assert.True(t, tc.Properties["name"])
}

func TestVariableResolverRejectsUnknownProperty(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rctx.Plan.Bind("u", plan.VarNode, []string{"User"})
	f := &plan.Filter{
		Predicate: &ast.BinaryOp{Op: "=",
			Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "u"}, Property: "nonexistent"},
			Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
		},
		Child: &plan.Empty{},
	}
	_, _, err := Run(VariableResolver, f, rctx)
	assert.Error(t, err)
}

func TestPropertyRequirementsIncludesIDAndObservedColumns(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	tc := rctx.Plan.Bind("u", plan.VarNode, []string{"User"})
	tc.PropertyMapping["name"] = "display_name"
	scan := &plan.ViewScan{Alias: "u", Database: "graph", Table: "users"}

	out, changed, err := Run(PropertyRequirements, scan, rctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"display_name", "id"}, out.(*plan.ViewScan).Projections)
}

func TestCTESchemaResolverRegistersAndNamesCTE(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rctx.Plan.Bind("a", plan.VarNode, []string{"User"})
	wc := &plan.WithClause{
		Child: &plan.Projection{
			Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}},
			Child:   &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		},
		Exported: []string{"a"},
	}

	out, changed, err := Run(CTESchemaResolver, wc, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	resolved := out.(*plan.WithClause)
	assert.NotEmpty(t, resolved.CTEName)
	schema, ok := rctx.Plan.CTESchema(resolved.CTEName)
	require.True(t, ok)
	_, isNode := schema.NodeColumns["a"]
	assert.True(t, isNode)
}

func TestRunGroupReachesFixedPoint(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	rctx.Plan.Bind("a", plan.VarNode, []string{"User"})
	rctx.Plan.Bind("b", plan.VarNode, []string{"User"})
	gn := &plan.GraphNode{Alias: "a", Labels: []string{"User"}}

	out, err := RunGroup(InitialAnalysis, gn, rctx)
	require.NoError(t, err)
	assert.NotNil(t, out.(*plan.GraphNode).Scan)

	// running the same group again over the already-resolved plan must be a
	// true no-op (spec §8 idempotence property).
	again, err := RunGroup(InitialAnalysis, out, rctx)
	require.NoError(t, err)
	assert.Equal(t, plan.Sprint(out), plan.Sprint(again))
}
