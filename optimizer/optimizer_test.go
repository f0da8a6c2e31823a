package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// testCatalog mirrors analyzer.testCatalog: User/Post nodes, a standard
// FOLLOWS edge, an AUTHORED FK-edge, plus a polymorphic ACTIVITY edge so
// union pruning has a home.
func testCatalog() *catalog.Catalog {
	user := &catalog.NodeSchema{
		Label: "User", Database: "graph", Table: "users",
		IDColumns:  []string{"id"},
		Properties: map[string]string{"name": "display_name"},
	}
	post := &catalog.NodeSchema{
		Label: "Post", Database: "graph", Table: "posts",
		IDColumns:  []string{"id"},
		Properties: map[string]string{"title": "title"},
	}
	comment := &catalog.NodeSchema{
		Label: "Comment", Database: "graph", Table: "comments",
		IDColumns: []string{"id"},
	}
	follows := &catalog.EdgeSchema{
		Type: "FOLLOWS", Database: "graph", Table: "follows",
		From: catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "follower_id"},
		To:   catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "followee_id"},
	}
	activity := &catalog.EdgeSchema{
		Type: "LIKED", Database: "graph", Table: "activity",
		TypeColumn: "activity_type", TypeValue: "like",
		From: catalog.EdgeEndpoint{NodeLabel: "User", IDColumn: "actor_id"},
		To:   catalog.EdgeEndpoint{NodeLabel: "Post", IDColumn: "target_id"},
	}
	return catalog.New(
		[]*catalog.NodeSchema{user, post, comment},
		[]*catalog.EdgeSchema{follows, activity},
	)
}

func newTestRunContext(cat *catalog.Catalog) *RunContext {
	return DefaultRunContext(cat, plan.NewPlanContext(), "test-query")
}

func TestTrivialWithEliminationSplicesIdentityPassthrough(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	wc := &plan.WithClause{
		Child: &plan.Projection{
			Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}},
			Child:   &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		},
		Exported: []string{"a"},
		Next:     &plan.Projection{Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}}, Child: &plan.Empty{}},
	}

	out, changed, err := Run(TrivialWithElimination, wc, rctx)
	require.NoError(t, err)
	assert.True(t, changed)
	_, stillWith := out.(*plan.WithClause)
	assert.False(t, stillWith)
}

func TestTrivialWithEliminationLeavesFilteredWithAlone(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	wc := &plan.WithClause{
		Child: &plan.Projection{
			Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "a"}, Alias: "a"}},
			Child: &plan.Filter{
				Predicate: &ast.BinaryOp{Op: "=", Left: &ast.Variable{Name: "a"}, Right: &ast.Literal{Kind: ast.LitString, Value: "x"}},
				Child:     &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
			},
		},
		Exported: []string{"a"},
		Next:     &plan.Empty{},
	}

	_, changed, err := Run(TrivialWithElimination, wc, rctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCollectUnwindCancellationInlinesOriginalArgument(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	collectArg := &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"}
	wc := &plan.WithClause{
		Child: &plan.Projection{
			Columns: []plan.ProjectionColumn{
				{Expr: &ast.FunctionCall{Name: "collect", Args: []ast.Expression{collectArg}}, Alias: "tmp", Computed: true},
			},
			Child: &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		},
		Exported: []string{"tmp"},
		Next: &plan.Projection{
			Columns: []plan.ProjectionColumn{{Expr: &ast.Variable{Name: "y"}, Alias: "y"}},
			Child: &plan.Unwind{
				Source: &ast.Variable{Name: "tmp"},
				As:     "y",
				Child:  &plan.Empty{},
			},
		},
	}

	out, changed, err := Run(CollectUnwindCancellation, wc, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	cp := out.(*plan.WithClause)
	assert.Empty(t, cp.Child.(*plan.Projection).Columns)
	nextProj := cp.Next.(*plan.Projection)
	assert.Equal(t, collectArg, nextProj.Columns[0].Expr)
	_, stillUnwind := nextProj.Child.(*plan.Unwind)
	assert.False(t, stillUnwind)
}

func TestFilterIntoGraphRelationEmbedsSingleScanPredicate(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	pred := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
	}
	gn := &plan.GraphNode{Alias: "a", Labels: []string{"User"}, Scan: &plan.ViewScan{Alias: "a", Database: "graph", Table: "users"}}
	f := &plan.Filter{Predicate: pred, Child: gn, Tags: []plan.FilterTag{{Conjunct: pred, ScanAlias: "a"}}}

	out, changed, err := Run(FilterIntoGraphRelation, f, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	resolved := out.(*plan.GraphNode)
	require.NotNil(t, resolved.Scan.Filter)
}

func TestViewScanFilterCleanupDropsDuplicateConjunct(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	pred := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
	}
	gn := &plan.GraphNode{Alias: "a", Scan: &plan.ViewScan{Alias: "a", Filter: pred}}
	f := &plan.Filter{Predicate: pred, Child: gn}

	out, changed, err := Run(ViewScanFilterCleanup, f, rctx)
	require.NoError(t, err)
	assert.True(t, changed)
	_, stillFilter := out.(*plan.Filter)
	assert.False(t, stillFilter)
}

func TestFilterPushdownMovesPredicateIntoSingleBranch(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	anchor := &plan.GraphNode{Alias: "a", Labels: []string{"User"}}
	branch := &plan.GraphNode{Alias: "b", Labels: []string{"User"}}
	cp := &plan.CartesianProduct{Kind: plan.CartesianInner, Anchor: anchor, Branch: branch}
	pred := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "b"}, Property: "name"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
	}
	f := &plan.Filter{Predicate: pred, Child: cp, Tags: []plan.FilterTag{{Conjunct: pred, ScanAlias: "b"}}}

	out, changed, err := Run(FilterPushdown, f, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	resultCP := out.(*plan.CartesianProduct)
	branchFilter, ok := resultCP.Branch.(*plan.Filter)
	require.True(t, ok)
	assert.Equal(t, pred, branchFilter.Predicate)
	assert.Equal(t, anchor, resultCP.Anchor)
}

func TestProjectionPushdownNarrowsCTESchemaToReferencedProperty(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	schema := &plan.CTESchema{
		Name:        "with_cte_1",
		NodeColumns: map[string]map[string]string{"a": {}},
	}
	rctx.Plan.RegisterCTESchema(schema)

	wc := &plan.WithClause{
		CTEName:  "with_cte_1",
		Exported: []string{"a"},
		Child:    &plan.GraphNode{Alias: "a"},
		Next: &plan.Filter{
			Predicate: &ast.BinaryOp{Op: "=",
				Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"},
				Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
			},
			Child: &plan.Empty{},
		},
	}

	_, changed, err := Run(ProjectionPushdown, wc, rctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "a_name", schema.NodeColumns["a"]["name"])
}

func TestUnionPruningDropsLabelConflictingBranch(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	typeFilter := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "r"}, Property: "activity_type"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "like"},
	}
	conflicting := &plan.GraphRel{
		Alias: "r", Types: []string{"LIKED"},
		Left:  &plan.GraphNode{Alias: "a", Labels: []string{"User"}},
		Right: &plan.GraphNode{Alias: "c", Labels: []string{"Comment"}}, // LIKED targets Post, not Comment
		Joins: &plan.GraphJoins{Kind: catalog.Polymorphic, TypeFilter: typeFilter},
	}
	fine := &plan.GraphRel{
		Alias: "r2", Types: []string{"LIKED"},
		Left:  &plan.GraphNode{Alias: "a2", Labels: []string{"User"}},
		Right: &plan.GraphNode{Alias: "p2", Labels: []string{"Post"}},
		Joins: &plan.GraphJoins{Kind: catalog.Polymorphic, TypeFilter: typeFilter},
	}
	u := &plan.Union{Kind: ast.UnionAll, Branches: []plan.Node{conflicting, fine}}

	out, changed, err := Run(UnionPruning, u, rctx)
	require.NoError(t, err)
	assert.True(t, changed)

	resultU := out.(*plan.Union)
	_, isEmpty := resultU.Branches[0].(*plan.Empty)
	assert.True(t, isEmpty)
	_, stillRel := resultU.Branches[1].(*plan.GraphRel)
	assert.True(t, stillRel)
}

func TestRunGroupReachesFixedPoint(t *testing.T) {
	rctx := newTestRunContext(testCatalog())
	pred := &ast.BinaryOp{Op: "=",
		Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "name"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "x"},
	}
	gn := &plan.GraphNode{Alias: "a", Labels: []string{"User"}, Scan: &plan.ViewScan{Alias: "a", Database: "graph", Table: "users"}}
	f := &plan.Filter{Predicate: pred, Child: gn, Tags: []plan.FilterTag{{Conjunct: pred, ScanAlias: "a"}}}

	out, err := RunGroup(FinalOptimization, f, rctx)
	require.NoError(t, err)

	again, err := RunGroup(FinalOptimization, out, rctx)
	require.NoError(t, err)
	assert.Equal(t, plan.Sprint(out), plan.Sprint(again))
}
