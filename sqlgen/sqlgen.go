// Package sqlgen turns a *render.RenderPlan into ClickHouse SQL text (spec
// §4.6 final stage / §6 compile). It is a pure string-builder: every
// structural decision (joins, CTE shape, recursive step cases, JSON
// packaging) has already been made by the render plan builder; this package
// only has to know how to print what it is given, plus the Cypher-to-
// ClickHouse function translation table (spec §4.5 "Function translation").
package sqlgen

import (
	"strings"

	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/render"
)

// Emit renders the complete SQL text for rp: a WITH clause listing every CTE
// (recursive ones prefixed accordingly, per ClickHouse's single leading
// "WITH RECURSIVE" rule) followed by the root query.
func Emit(rp *render.RenderPlan, queryID string) (string, error) {
	var b strings.Builder
	if len(rp.CTEs) > 0 {
		recursive := false
		for _, c := range rp.CTEs {
			if c.Recursive {
				recursive = true
				break
			}
		}
		if recursive {
			b.WriteString("WITH RECURSIVE\n")
		} else {
			b.WriteString("WITH\n")
		}
		for i, c := range rp.CTEs {
			if i > 0 {
				b.WriteString(",\n")
			}
			if err := writeCTE(&b, c, queryID); err != nil {
				return "", err
			}
		}
		b.WriteString("\n")
	}
	if err := writeQueryExpr(&b, rp.Root, queryID); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCTE(b *strings.Builder, c render.CTEDef, queryID string) error {
	b.WriteString(quoteIdent(c.Name))
	if len(c.Columns) > 0 {
		b.WriteString(" (")
		for i, col := range c.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quoteIdent(col))
		}
		b.WriteString(")")
	}
	b.WriteString(" AS (\n")
	if c.Recursive {
		if err := writeQueryExpr(b, c.Base, queryID); err != nil {
			return err
		}
		b.WriteString("\nUNION ALL\n")
		if err := writeQueryExpr(b, c.Step, queryID); err != nil {
			return err
		}
	} else {
		if err := writeQueryExpr(b, c.Body, queryID); err != nil {
			return err
		}
	}
	b.WriteString("\n)")
	return nil
}

func writeQueryExpr(b *strings.Builder, qe render.QueryExpr, queryID string) error {
	switch v := qe.(type) {
	case *render.Select:
		return writeSelect(b, v, queryID)
	case *render.SetOp:
		if err := writeQueryExpr(b, v.Left, queryID); err != nil {
			return err
		}
		b.WriteString("\nUNION ALL\n")
		return writeQueryExpr(b, v.Right, queryID)
	}
	return wrapErr(queryID, "render plan contains an unknown query expression shape")
}

func wrapErr(queryID, msg string) error {
	return cgerrors.Wrap(queryID, "sqlgen", cgerrors.ErrInternalInvariant.New("sqlgen", msg), nil)
}
