package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/render"
)

func TestEmitSimpleSelect(t *testing.T) {
	rp := &render.RenderPlan{
		Root: &render.Select{
			Items: []render.SelectItem{
				{Expr: &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "display_name"}, Alias: "name"},
			},
			From: &render.Table{Database: "graph", Table: "users", Alias: "a"},
			Where: &ast.BinaryOp{Op: ">",
				Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "age"},
				Right: &ast.Literal{Kind: ast.LitInt, Value: int64(21)},
			},
		},
	}
	sql, err := Emit(rp, "q1")
	require.NoError(t, err)
	require.Contains(t, sql, "SELECT `a`.`display_name` AS `name`")
	require.Contains(t, sql, "FROM `graph`.`users` AS `a`")
	require.Contains(t, sql, "WHERE (`a`.`age` > 21)")
}

func TestEmitJoinAndFunctionTranslation(t *testing.T) {
	rp := &render.RenderPlan{
		Root: &render.Select{
			Items: []render.SelectItem{
				{Expr: &ast.FunctionCall{Name: "count", Args: []ast.Expression{&ast.Variable{Name: "b"}}}, Alias: "c"},
			},
			From: &render.Table{Database: "graph", Table: "users", Alias: "a"},
			Joins: []render.Join{
				{Kind: render.JoinInner, Relation: &render.Table{Database: "graph", Table: "follows", Alias: "r"},
					On: &ast.BinaryOp{Op: "=",
						Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "id"},
						Right: &ast.PropertyAccess{Subject: &ast.Variable{Name: "r"}, Property: "follower_id"}}},
			},
			GroupBy: []ast.Expression{&ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "id"}},
		},
	}
	sql, err := Emit(rp, "q2")
	require.NoError(t, err)
	require.Contains(t, sql, "count(`b`) AS `c`")
	require.Contains(t, sql, "INNER JOIN `graph`.`follows` AS `r` ON (`a`.`id` = `r`.`follower_id`)")
	require.Contains(t, sql, "GROUP BY `a`.`id`")
}

func TestEmitRecursiveCTE(t *testing.T) {
	rp := &render.RenderPlan{
		CTEs: []render.CTEDef{
			{
				Name:      "vlp_a_b",
				Columns:   []string{"start_id", "end_id"},
				Recursive: true,
				Base: &render.Select{
					Items: []render.SelectItem{{Expr: &ast.Literal{Kind: ast.LitInt, Value: int64(1)}, Alias: "start_id"}},
					From:  &render.Table{Table: "users", Alias: "a"},
				},
				Step: &render.Select{
					Items: []render.SelectItem{{Expr: &ast.Literal{Kind: ast.LitInt, Value: int64(2)}, Alias: "start_id"}},
					From:  &render.CTERef{Name: "vlp_a_b", Alias: "t"},
				},
			},
		},
		Root: &render.Select{From: &render.CTERef{Name: "vlp_a_b", Alias: "h1"}},
	}
	sql, err := Emit(rp, "q3")
	require.NoError(t, err)
	require.Contains(t, sql, "WITH RECURSIVE")
	require.Contains(t, sql, "`vlp_a_b` (`start_id`, `end_id`) AS (")
	require.Contains(t, sql, "UNION ALL")
}

func TestEmitWholeNodeJSONPackaging(t *testing.T) {
	rp := &render.RenderPlan{
		Root: &render.Select{
			Items: []render.SelectItem{
				{Expr: &ast.MapLiteral{
					Keys:   []string{"_id", "name"},
					Values: []ast.Expression{&ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "id"}, &ast.PropertyAccess{Subject: &ast.Variable{Name: "a"}, Property: "display_name"}},
				}, Alias: "a", AsJSON: true},
			},
			From: &render.Table{Table: "users", Alias: "a"},
		},
	}
	sql, err := Emit(rp, "q4")
	require.NoError(t, err)
	require.Contains(t, sql, "toJSONString(tuple(`a`.`id` AS `_id`, `a`.`display_name` AS `name`)) AS `a`")
}

func TestFunctionCallSQLRejectsUnknownFunction(t *testing.T) {
	_, err := exprSQL(&ast.FunctionCall{Name: "nonexistentFn"}, "q5")
	require.Error(t, err)
}

func TestLiteralEscaping(t *testing.T) {
	sql, err := exprSQL(&ast.Literal{Kind: ast.LitString, Value: "O'Brien"}, "q6")
	require.NoError(t, err)
	require.Equal(t, `'O\'Brien'`, sql)
}
