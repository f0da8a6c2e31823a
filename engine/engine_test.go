package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/catalogfixture"
)

func testCatalog() *catalog.Catalog {
	user := &catalog.NodeSchema{
		Label: "User", Database: "graph", Table: "users",
		IDColumns:  []string{"id"},
		Properties: map[string]string{"id": "id", "name": "display_name", "age": "age"},
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

func TestCompileSQLOnlySingleNodeLookup(t *testing.T) {
	sql, err := CompileSQLOnly(`MATCH (u:User) WHERE u.age > 21 RETURN u.name`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "SELECT")
	require.Contains(t, sql, "`display_name`")
	require.Contains(t, sql, "`graph`.`users`")
	require.Contains(t, sql, "`age` > 21")
}

func TestCompileSQLOnlyRelationshipTraversal(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS]->(b:User) RETURN a.name, b.name`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "`graph`.`follows`")
	require.Contains(t, sql, "JOIN")
}

func TestCompileSQLOnlyFKEdgeTraversal(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (u:User)-[:AUTHORED]->(p:Post) RETURN p.title`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "`graph`.`posts`")
	require.Contains(t, sql, "`title`")
}

func TestCompileSQLOnlyParameterSubstitution(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (u:User) WHERE u.age > $minAge RETURN u.name`,
		testCatalog(), map[string]interface{}{"minAge": int64(30)})
	require.NoError(t, err)
	require.Contains(t, sql, "30")
	require.NotContains(t, sql, "$minAge")
}

func TestCompileSQLOnlyMissingParameterErrors(t *testing.T) {
	_, err := CompileSQLOnly(
		`MATCH (u:User) WHERE u.age > $minAge RETURN u.name`, testCatalog(), nil)
	require.Error(t, err)
}

func TestCompileSQLOnlyUnknownLabelErrors(t *testing.T) {
	_, err := CompileSQLOnly(`MATCH (x:Nonexistent) RETURN x`, testCatalog(), nil)
	require.Error(t, err)
}

func TestCompileReadsFromRegistry(t *testing.T) {
	reg := catalog.NewRegistry(testCatalog())
	res, err := Compile(`MATCH (u:User) RETURN u.name`, reg, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.SQL)
	require.NotEmpty(t, res.QueryID)
}

// TestCompileSQLOnlyVariableLengthPath exercises spec §8 S3 over the
// Standard edge shape: a bounded *1..3 traversal compiles to a single
// recursive CTE with a hop-count filter.
func TestCompileSQLOnlyVariableLengthPath(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS*1..3]->(b:User) WHERE a.id = 1 RETURN b.id`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "WITH RECURSIVE")
	require.Contains(t, sql, "UNION ALL")
	require.Contains(t, sql, "hop_count")
}

// TestCompileSQLOnlyVariableLengthPathZeroHop exercises spec §8 Boundary
// behaviour: "*0..k paths include the zero-hop case (start node equals end
// node)" — the recursive CTE's anchor member must union in a hop_count = 0
// row alongside the real hop_count = 1 row, not just start at hop one.
func TestCompileSQLOnlyVariableLengthPathZeroHop(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS*0..3]->(b:User) WHERE a.id = 1 RETURN b.id`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "WITH RECURSIVE")
	require.Contains(t, sql, "0 AS `hop_count`")
}

// TestCompileSQLOnlyWithAggregation exercises spec §8 S4: WITH a,
// count(b) AS c materializes one CTE and the outer query filters on its
// aggregate column.
func TestCompileSQLOnlyWithAggregation(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS]->(b:User) WITH a, count(b) AS c WHERE c > 1 RETURN a.name, c`,
		testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "WITH")
	require.Contains(t, sql, "count(")
	require.Contains(t, sql, "> 1")
}

// TestCompileSQLOnlyOptionalMatch exercises spec §8 S5: OPTIONAL MATCH
// becomes a left join anchored on the preceding MATCH.
func TestCompileSQLOnlyOptionalMatch(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (u:User) OPTIONAL MATCH (u)-[:FOLLOWS]->(f:User) RETURN u.name, f.name`,
		testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "LEFT JOIN")
}

// TestCompileSQLOnlyUndirectedUnion exercises spec §8 S6: an undirected
// pattern compiles to a UNION ALL of the outgoing and incoming directions.
func TestCompileSQLOnlyUndirectedUnion(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS]-(b:User) RETURN a.name, b.name`, testCatalog(), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "UNION ALL")
}

func fkEdgeVLPFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalogfixture.LoadBytes([]byte(`
nodes:
  - label: User
    database: graph
    table: users
    id_columns: [user_id]
    properties:
      user_id: user_id
      name: display_name
edges:
  - type: REPORTS_TO
    virtual: true
    fk_join_side: left
    from:
      node_label: User
      id_column: manager_id
    to:
      node_label: User
      id_column: user_id
`))
	require.NoError(t, err)
	return cat
}

// TestCompileSQLOnlyFkEdgeVariableLengthPath covers the FkEdge schema
// variant of the VLP sub-engine (spec §2 row H "across all five schema
// variants"): a self-referential foreign key (manager_id -> user_id on the
// same table) traversed *1..3 compiles to a recursive CTE with no dedicated
// edge table join.
func TestCompileSQLOnlyFkEdgeVariableLengthPath(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:User)-[:REPORTS_TO*1..3]->(b:User) WHERE a.user_id = 1 RETURN b.user_id`,
		fkEdgeVLPFixture(t), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "WITH RECURSIVE")
	require.Contains(t, sql, "manager_id")
}

func denormalizedVLPFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalogfixture.LoadBytes([]byte(`
nodes:
  - label: Tag
    denormalized: true
    properties:
      tag_id: tag_id
  - label: Photo
    denormalized: true
    properties:
      photo_id: photo_id
edges:
  - type: TAGGED
    database: graph
    table: tag_events
    from:
      node_label: Photo
      id_column: photo_id
    to:
      node_label: Tag
      id_column: tag_id
    denormalized_from_properties:
      photo_id: photo_id
    denormalized_to_properties:
      tag_id: tag_id
`))
	require.NoError(t, err)
	return cat
}

// TestCompileSQLOnlyDenormalizedVariableLengthPath covers the Denormalized
// schema variant of the VLP sub-engine: both endpoints are virtual nodes
// materialized only as edge-table projections, so the recursive CTE is a
// bare self-join of the edge table with no node tables involved.
func TestCompileSQLOnlyDenormalizedVariableLengthPath(t *testing.T) {
	sql, err := CompileSQLOnly(
		`MATCH (a:Photo)-[:TAGGED*1..3]->(b:Tag) RETURN b.tag_id`,
		denormalizedVLPFixture(t), nil)
	require.NoError(t, err)
	require.Contains(t, sql, "WITH RECURSIVE")
	require.Contains(t, sql, "`graph`.`tag_events`")
}

// TestCompileSQLOnlyMultiTypeVariableLengthPathUnsupported documents the
// one schema shape render/vlp.go does not implement (spec §9's
// heterogeneous-polymorphic open question): a VLP pattern naming more than
// one relationship type fails fast with a structured error rather than
// silently mis-compiling.
func TestCompileSQLOnlyMultiTypeVariableLengthPathUnsupported(t *testing.T) {
	_, err := CompileSQLOnly(
		`MATCH (a:User)-[:FOLLOWS|AUTHORED*1..3]->(b) RETURN b`, testCatalog(), nil)
	require.Error(t, err)
}

// TestCompilePlanMatchesCompileSQL exercises the EXPLAIN-shaped introspection
// entry point added in SPEC_FULL.md: the SQL it reports must be identical to
// what Compile/CompileSQLOnly would have produced, and both IR dumps must be
// non-empty, indented, multi-line text.
func TestCompilePlanMatchesCompileSQL(t *testing.T) {
	cat := testCatalog()
	const q = `MATCH (a:User)-[:FOLLOWS]->(b:User) RETURN a.name, b.name`

	sql, err := CompileSQLOnly(q, cat, nil)
	require.NoError(t, err)

	reg := catalog.NewRegistry(cat)
	plan, err := CompilePlan(q, reg, nil)
	require.NoError(t, err)
	require.Equal(t, sql, plan.SQL)
	require.NotEmpty(t, plan.QueryID)
	require.Contains(t, plan.LogicalPlan, "GraphJoins")
	require.Contains(t, plan.RenderPlan, "Select")
}

// TestCompileConcurrentQueriesAreIndependent drives three different queries
// through concurrent Compile calls against one Registry (spec §5: readers
// compile independently) and checks that each produced non-empty SQL and
// that no two compilations share a query id. Under the race detector a
// shared, mutated compiler-internal would also show up as a data race.
func TestCompileConcurrentQueriesAreIndependent(t *testing.T) {
	reg := catalog.NewRegistry(testCatalog())
	queries := []string{
		`MATCH (u:User) RETURN u.name`,
		`MATCH (a:User)-[:FOLLOWS]->(b:User) RETURN a.name, b.name`,
		`MATCH (u:User)-[:AUTHORED]->(p:Post) RETURN p.title`,
	}

	var g errgroup.Group
	results := make([]*Result, len(queries))
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := Compile(q, reg, nil)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for i, res := range results {
		require.NotEmpty(t, res.SQL, "query %d produced empty SQL", i)
		require.False(t, seen[res.QueryID], "query id %s reused across concurrent compiles", res.QueryID)
		seen[res.QueryID] = true
	}
}
