package sqlgen

import (
	"strings"

	"github.com/genezhang/clickgraph/render"
)

func writeSelect(b *strings.Builder, s *render.Select, queryID string) error {
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.Items) == 0 {
		b.WriteString("*")
	}
	for i, item := range s.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := exprSQL(item.Expr, queryID)
		if err != nil {
			return err
		}
		if item.AsJSON {
			expr = "toJSONString(" + expr + ")"
		}
		b.WriteString(expr)
		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(quoteIdent(item.Alias))
		}
	}

	if s.From != nil {
		b.WriteString("\nFROM ")
		if err := writeRelation(b, s.From, queryID); err != nil {
			return err
		}
	}

	for _, j := range s.Joins {
		if err := writeJoin(b, j, queryID); err != nil {
			return err
		}
	}

	if s.Where != nil {
		where, err := exprSQL(s.Where, queryID)
		if err != nil {
			return err
		}
		b.WriteString("\nWHERE ")
		b.WriteString(where)
	}

	if len(s.GroupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		for i, k := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			expr, err := exprSQL(k, queryID)
			if err != nil {
				return err
			}
			b.WriteString(expr)
		}
	}

	if s.Having != nil {
		having, err := exprSQL(s.Having, queryID)
		if err != nil {
			return err
		}
		b.WriteString("\nHAVING ")
		b.WriteString(having)
	}

	if len(s.OrderBy) > 0 {
		b.WriteString("\nORDER BY ")
		for i, it := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			expr, err := exprSQL(it.Expr, queryID)
			if err != nil {
				return err
			}
			b.WriteString(expr)
			if it.Descending {
				b.WriteString(" DESC")
			}
		}
	}

	if s.Limit != nil {
		limit, err := exprSQL(s.Limit, queryID)
		if err != nil {
			return err
		}
		b.WriteString("\nLIMIT ")
		b.WriteString(limit)
	}
	if s.Skip != nil {
		skip, err := exprSQL(s.Skip, queryID)
		if err != nil {
			return err
		}
		b.WriteString("\nOFFSET ")
		b.WriteString(skip)
	}
	return nil
}

func writeRelation(b *strings.Builder, r render.Relation, queryID string) error {
	switch v := r.(type) {
	case *render.Table:
		if v.Database != "" {
			b.WriteString(quoteIdent(v.Database))
			b.WriteString(".")
		}
		b.WriteString(quoteIdent(v.Table))
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(v.Alias))
		return nil
	case *render.CTERef:
		b.WriteString(quoteIdent(v.Name))
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(v.Alias))
		return nil
	case *render.Subquery:
		b.WriteString("(\n")
		if err := writeQueryExpr(b, v.Query, queryID); err != nil {
			return err
		}
		b.WriteString("\n) AS ")
		b.WriteString(quoteIdent(v.Alias))
		return nil
	}
	return wrapErr(queryID, "unknown relation shape in FROM/JOIN")
}

func writeJoin(b *strings.Builder, j render.Join, queryID string) error {
	switch j.Kind {
	case render.JoinArray:
		expr, err := exprSQL(j.ArrayExpr, queryID)
		if err != nil {
			return err
		}
		b.WriteString("\nARRAY JOIN ")
		b.WriteString(expr)
		b.WriteString(" AS ")
		b.WriteString(quoteIdent(j.ArrayAs))
		return nil
	case render.JoinCross, render.JoinUnionAll:
		b.WriteString("\nCROSS JOIN ")
	case render.JoinLeft:
		b.WriteString("\nLEFT JOIN ")
	default:
		b.WriteString("\nINNER JOIN ")
	}
	if j.Kind != render.JoinArray {
		if err := writeRelation(b, j.Relation, queryID); err != nil {
			return err
		}
		if j.On != nil {
			on, err := exprSQL(j.On, queryID)
			if err != nil {
				return err
			}
			b.WriteString(" ON ")
			b.WriteString(on)
		}
	}
	return nil
}
