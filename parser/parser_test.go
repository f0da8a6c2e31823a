package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genezhang/clickgraph/ast"
)

func TestParseNodeOnlyLookup(t *testing.T) {
	q, err := Parse("MATCH (u:User) WHERE u.user_id = 1 RETURN u.name")
	require.NoError(t, err)
	require.Len(t, q.ReadingClauses, 1)
	require.Equal(t, ast.ClauseMatch, q.ReadingClauses[0].Kind)
	require.NotNil(t, q.ReadingClauses[0].Where)
	require.NotNil(t, q.Return)
	require.Len(t, q.Return.Items, 1)
}

func TestParseSingleHop(t *testing.T) {
	q, err := Parse("MATCH (a:User)-[:FOLLOWS]->(b:User) RETURN a.name, b.name")
	require.NoError(t, err)
	pat := q.ReadingClauses[0].Patterns[0]
	require.Len(t, pat.Elements, 2)
	require.Equal(t, "a", pat.Elements[0].Node.Name)
	require.Equal(t, ast.DirOut, pat.Elements[1].Rel.Direction)
	require.Equal(t, []string{"FOLLOWS"}, pat.Elements[1].Rel.Types)
	require.Equal(t, "b", pat.Elements[1].To.Name)
}

func TestParseInArrow(t *testing.T) {
	q, err := Parse("MATCH (a:User)<-[:FOLLOWS]-(b:User) RETURN a")
	require.NoError(t, err)
	pat := q.ReadingClauses[0].Patterns[0]
	require.Equal(t, ast.DirIn, pat.Elements[1].Rel.Direction)
}

func TestParseUndirected(t *testing.T) {
	q, err := Parse("MATCH (a:User)-[:FOLLOWS|LIKES]-(b) RETURN b")
	require.NoError(t, err)
	pat := q.ReadingClauses[0].Patterns[0]
	require.Equal(t, ast.DirUndirected, pat.Elements[1].Rel.Direction)
	require.Equal(t, []string{"FOLLOWS", "LIKES"}, pat.Elements[1].Rel.Types)
}

func TestParseVariableLength(t *testing.T) {
	q, err := Parse("MATCH (a:User)-[:FOLLOWS*1..3]->(b:User) WHERE a.user_id = 1 RETURN b.user_id")
	require.NoError(t, err)
	rel := q.ReadingClauses[0].Patterns[0].Elements[1].Rel
	require.NotNil(t, rel.VarLength)
	require.Equal(t, 1, rel.VarLength.Min)
	require.Equal(t, 3, rel.VarLength.Max)
}

func TestParseWithAggregation(t *testing.T) {
	q, err := Parse("MATCH (a:User)-[:FOLLOWS]->(b) WITH a, count(b) AS c WHERE c > 1 RETURN a.name, c")
	require.NoError(t, err)
	require.NotNil(t, q.With)
	require.Len(t, q.With.Items, 2)
	require.Equal(t, "c", q.With.Items[1].Alias)
	require.NotNil(t, q.With.Where)
	require.NotNil(t, q.With.Next.Return)
}

func TestParseOptionalMatch(t *testing.T) {
	q, err := Parse("MATCH (u:User) OPTIONAL MATCH (u)-[:FOLLOWS]->(f) RETURN u.name, f.name")
	require.NoError(t, err)
	require.Len(t, q.ReadingClauses, 2)
	require.Equal(t, ast.ClauseOptionalMatch, q.ReadingClauses[1].Kind)
}

func TestParseUnion(t *testing.T) {
	q, err := Parse("MATCH (a:User) RETURN a.name UNION ALL MATCH (b:User) RETURN b.name")
	require.NoError(t, err)
	require.NotNil(t, q.Union)
	require.Equal(t, ast.UnionAll, q.Union.Kind)
}

func TestParseUnwind(t *testing.T) {
	q, err := Parse("UNWIND [1,2,3] AS x RETURN x")
	require.NoError(t, err)
	require.Equal(t, ast.ClauseUnwind, q.ReadingClauses[0].Kind)
	require.Equal(t, "x", q.ReadingClauses[0].UnwindAs)
}

func TestParseTemporalAccessorDesugars(t *testing.T) {
	q, err := Parse("MATCH (a:User) RETURN a.date.year")
	require.NoError(t, err)
	call, ok := q.Return.Items[0].Expr.(*ast.FunctionCall)
	require.True(t, ok, "expected a.date.year to desugar into year(a.date)")
	require.Equal(t, "year", call.Name)
	require.Len(t, call.Args, 1)
	_, isPropAccess := call.Args[0].(*ast.PropertyAccess)
	require.True(t, isPropAccess)
}

func TestParseOperatorPrecedence(t *testing.T) {
	q, err := Parse("MATCH (a:User) WHERE a.x = 1 AND a.y = 2 OR NOT a.z = 3 RETURN a")
	require.NoError(t, err)
	top, ok := q.ReadingClauses[0].Where.(*ast.BinaryOp)
	require.True(t, ok)
	require.Equal(t, "OR", top.Op)
	left, ok := top.Left.(*ast.BinaryOp)
	require.True(t, ok)
	require.Equal(t, "AND", left.Op)
}

func TestParseOrNotPrefixOfOrder(t *testing.T) {
	q, err := Parse("MATCH (a:User) RETURN a.name ORDER BY a.name DESC LIMIT 5")
	require.NoError(t, err)
	require.Len(t, q.Return.OrderBy, 1)
	require.True(t, q.Return.OrderBy[0].Descending)
	require.NotNil(t, q.Return.Limit)
}

func TestParseIsNullVariants(t *testing.T) {
	q, err := Parse("MATCH (a:User) WHERE a.x IS NOT NULL RETURN a")
	require.NoError(t, err)
	chk, ok := q.ReadingClauses[0].Where.(*ast.IsNullCheck)
	require.True(t, ok)
	require.True(t, chk.Negated)
}

func TestParseStartsWithEndsWith(t *testing.T) {
	q, err := Parse(`MATCH (a:User) WHERE a.name STARTS WITH 'A' AND a.name ENDS WITH 'z' RETURN a`)
	require.NoError(t, err)
	require.NotNil(t, q.ReadingClauses[0].Where)
}

func TestCommentStrippingPreservesArrows(t *testing.T) {
	src := "// a leading comment\nMATCH (a:User)-->(b:User) RETURN a -- trailing comment\n"
	q, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, ast.DirOut, q.ReadingClauses[0].Patterns[0].Elements[1].Rel.Direction)
}

func TestMultiHopChainDepthBoundary(t *testing.T) {
	var b strings.Builder
	b.WriteString("MATCH (n0:User)")
	for i := 1; i <= maxChainDepth; i++ {
		b.WriteString("-[:FOLLOWS]->(n")
		b.WriteString(itoa(i))
		b.WriteString(":User)")
	}
	b.WriteString(" RETURN n0")
	_, err := Parse(b.String())
	require.NoError(t, err, "exactly maxChainDepth hops must succeed")

	var b2 strings.Builder
	b2.WriteString("MATCH (n0:User)")
	for i := 1; i <= maxChainDepth+1; i++ {
		b2.WriteString("-[:FOLLOWS]->(n")
		b2.WriteString(itoa(i))
		b2.WriteString(":User)")
	}
	b2.WriteString(" RETURN n0")
	_, err = Parse(b2.String())
	require.Error(t, err, "maxChainDepth+1 hops must fail as TooLarge")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestParseCaseExpr(t *testing.T) {
	q, err := Parse("MATCH (a:User) RETURN CASE WHEN a.x > 1 THEN 'big' ELSE 'small' END")
	require.NoError(t, err)
	c, ok := q.Return.Items[0].Expr.(*ast.CaseExpr)
	require.True(t, ok)
	require.Nil(t, c.Subject)
	require.Len(t, c.Whens, 1)
	require.NotNil(t, c.Else)
}

func TestParseExistsPattern(t *testing.T) {
	q, err := Parse("MATCH (a:User) WHERE EXISTS { (a)-[:FOLLOWS]->(:User) } RETURN a")
	require.NoError(t, err)
	_, ok := q.ReadingClauses[0].Where.(*ast.ExistsPattern)
	require.True(t, ok)
}

func TestParseListComprehension(t *testing.T) {
	q, err := Parse("MATCH (a:User) RETURN [x IN a.tags WHERE x <> '' | x]")
	require.NoError(t, err)
	_, ok := q.Return.Items[0].Expr.(*ast.ListComprehension)
	require.True(t, ok)
}

func TestParseNodeSharingAcrossHops(t *testing.T) {
	q, err := Parse("MATCH (a:User)-[:FOLLOWS]->(b:User)-[:FOLLOWS]->(c:User) RETURN a, b, c")
	require.NoError(t, err)
	pat := q.ReadingClauses[0].Patterns[0]
	require.Len(t, pat.Elements, 3)
	// "b" must appear as both the To of element 1 and implicitly the anchor
	// of element 2's edge; the parser emits it once per occurrence and the
	// logical plan builder is responsible for unifying them into one scan.
	require.Equal(t, "b", pat.Elements[1].To.Name)
}
