package render

import (
	"sort"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// translateWithClause implements spec §4.6's two hard jobs for one WithClause
// in a (possibly chained) WITH pipeline.
//
// Job 1: materialize Child as a named CTE whose column schema is
// "{alias}_{column}" for every required property of a node-typed export (plus
// its identity column) and bare "{alias}" for a scalar export; every
// reference to an exported alias in the remaining plan (Next) is then
// rewritten to read the CTE's namespaced columns instead.
//
// Job 2: resolve which CTE column holds a node alias's identity. The search
// looks for a GraphNode scan of that alias inside Child first (it knows the
// real ID column); only when none exists does it fall back to a VLP
// endpoint's start_id/end_id column. Denormalized schemas have no GraphNode
// scan at all, so the fallback is their only source; reversing this priority
// would make a standard-schema join reference a column that doesn't exist
// (spec §4.6, explicit regression warning).
func (b *Builder) translateWithClause(wc *plan.WithClause, rw *rewriteTable) (QueryExpr, error) {
	childQE, err := b.translate(wc.Child, rw)
	if err != nil {
		return nil, err
	}
	sel, ok := childQE.(*Select)
	if !ok {
		sel = &Select{From: &Subquery{Query: childQE, Alias: b.freshAlias("w")}}
	}

	cteAlias := wc.CTEName
	if cteAlias == "" {
		return nil, b.err("render", "WithClause exporting "+joinNames(wc.Exported)+" has no CTEName (cte_schema_resolver did not run)")
	}
	schema, ok := b.plan.CTESchema(cteAlias)
	if !ok {
		return nil, b.err("render", "WithClause names CTE "+cteAlias+" but no schema was registered for it")
	}

	nextRW := newRewriteTable()
	nextRW.cteAlias = cteAlias
	items := make([]SelectItem, 0, len(wc.Exported))
	colNames := make([]string, 0, len(wc.Exported))

	for _, alias := range wc.Exported {
		kind, _ := b.plan.VariableKind(alias)
		if kind == plan.VarNode {
			cols, idCTECol, err := b.nodeExportColumns(wc, alias, rw)
			if err != nil {
				return nil, err
			}
			propMap := map[string]string{}
			for _, c := range cols {
				items = append(items, SelectItem{Expr: c.expr, Alias: c.cteColumn})
				colNames = append(colNames, c.cteColumn)
				if c.property != "" {
					propMap[c.property] = c.cteColumn
				}
			}
			nextRW.nodeColumns[alias] = propMap
			nextRW.nodeIDCol[alias] = idCTECol
			schema.NodeColumns[alias] = propMap
			schema.NodeIDColumn[alias] = idCTECol
			continue
		}
		cteCol := alias
		items = append(items, SelectItem{Expr: cteRedirect(rw, &ast.Variable{Name: alias}), Alias: cteCol})
		colNames = append(colNames, cteCol)
		nextRW.scalars[alias] = cteCol
		schema.ScalarColumns[alias] = cteCol
	}

	body := attachItems(sel, items, false)
	b.ctes = append(b.ctes, CTEDef{Name: cteAlias, Columns: colNames, Body: body})

	if wc.Next == nil {
		return &Select{From: &CTERef{Name: cteAlias, Alias: cteAlias}}, nil
	}
	return b.translate(wc.Next, nextRW)
}

// exportCol is one column this WithClause's CTE materializes for a
// node-typed export: property is the Cypher property name it came from (""
// for a bare identity column not otherwise requested), cteColumn is its
// namespaced name, expr is the expression to select in the CTE's own SELECT
// list (already rewritten against the incoming rewrite table).
type exportCol struct {
	property  string
	cteColumn string
	expr      ast.Expression
}

// nodeExportColumns computes the required column set for one node-typed
// exported alias (spec §4.6 Job 1's "one per property the downstream scope
// might read, plus the ID column"). It prefers a real GraphNode scan inside
// wc.Child (Job 2's documented priority); a VLP endpoint is used only when no
// such scan exists.
func (b *Builder) nodeExportColumns(wc *plan.WithClause, alias string, rw *rewriteTable) ([]exportCol, string, error) {
	if gn, ok := findGraphNodeScan(wc.Child, alias); ok {
		label := soleLabel(gn.Labels)
		if label == "" {
			return nil, "", b.err("render", "exported node "+alias+" has no single resolved label at render time")
		}
		ns, err := b.cat.Node(label)
		if err != nil {
			return nil, "", err
		}
		idCol := ns.IDColumns[0]

		seen := map[string]bool{}
		var out []exportCol
		add := func(property, column string) {
			if seen[column] {
				return
			}
			seen[column] = true
			cteCol := alias + "_" + column
			out = append(out, exportCol{
				property:  property,
				cteColumn: cteCol,
				expr:      cteRedirect(rw, &ast.PropertyAccess{Subject: &ast.Variable{Name: alias}, Property: column}),
			})
		}

		add("", idCol)
		idCTECol := alias + "_" + idCol

		tc, err := b.plan.Lookup(alias)
		if err == nil {
			props := make([]string, 0, len(tc.PropertyMapping))
			for p := range tc.PropertyMapping {
				props = append(props, p)
			}
			sort.Strings(props)
			for _, p := range props {
				add(p, tc.PropertyMapping[p])
			}
		}
		if wholeNodeReferenced(wc.Next, alias) {
			props := make([]string, 0, len(ns.Properties))
			for p := range ns.Properties {
				props = append(props, p)
			}
			sort.Strings(props)
			for _, p := range props {
				add(p, ns.Properties[p])
			}
		}
		return out, idCTECol, nil
	}

	// Job 2 fallback: no GraphNode scan backs this alias (denormalized node,
	// or an alias bound only as a variable-length path endpoint). Only the
	// identity column is available through a VLP recursive CTE (spec §4.8);
	// a downstream property read on such an alias is therefore unsupported.
	ep, ok := b.plan.VLPEndpoint(alias)
	if !ok {
		return nil, "", b.err("render", "exported node "+alias+" has neither a resolved scan nor a VLP endpoint to source its identity column from")
	}
	idProperty := vlpEndID
	if isLeft, found := vlpSide(wc.Child, alias); found && isLeft {
		idProperty = vlpStartID
	}
	if tc, err := b.plan.Lookup(alias); err == nil && len(tc.PropertyMapping) > 0 {
		return nil, "", b.err("render", "exported node "+alias+" is a variable-length path endpoint; only its identity column can be carried through WITH, not its properties")
	}
	idCTECol := alias + "_" + idProperty
	expr := cteRedirect(rw, &ast.PropertyAccess{Subject: &ast.Variable{Name: ep.RefAlias}, Property: idProperty})
	return []exportCol{{cteColumn: idCTECol, expr: expr}}, idCTECol, nil
}

// findGraphNodeScan searches n for a *plan.GraphNode bound to alias that has
// already been resolved to a physical scan.
func findGraphNodeScan(n plan.Node, alias string) (*plan.GraphNode, bool) {
	var found *plan.GraphNode
	plan.Inspect(n, func(node plan.Node) bool {
		if found != nil {
			return false
		}
		if gn, ok := node.(*plan.GraphNode); ok && gn.Alias == alias && gn.Scan != nil {
			found = gn
			return false
		}
		return true
	})
	return found, found != nil
}

// vlpSide reports whether alias is the left (from) endpoint of a variable-
// length GraphRel found in n, so the caller knows whether its identity column
// is the recursive CTE's start_id or end_id (spec §4.8/§4.9).
func vlpSide(n plan.Node, alias string) (isLeft bool, found bool) {
	plan.Inspect(n, func(node plan.Node) bool {
		if found {
			return false
		}
		rel, ok := node.(*plan.GraphRel)
		if !ok || rel.VarLength == nil {
			return true
		}
		if rel.Left.Alias == alias {
			isLeft, found = true, true
			return false
		}
		if rel.Right.Alias == alias {
			isLeft, found = false, true
			return false
		}
		return true
	})
	return isLeft, found
}

// wholeNodeReferenced reports whether alias is ever read downstream as a bare
// node value (e.g. "RETURN a" rather than "RETURN a.name"), which requires
// packaging every catalog property rather than just the ones explicitly
// accessed (spec §4.7 "JSON packaging").
func wholeNodeReferenced(n plan.Node, alias string) bool {
	if n == nil {
		return false
	}
	found := false
	plan.Inspect(n, func(node plan.Node) bool {
		if found {
			return false
		}
		if proj, ok := node.(*plan.Projection); ok {
			for _, c := range proj.Columns {
				if v, ok := c.Expr.(*ast.Variable); ok && v.Name == alias {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
