package render

import (
	"sort"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// nodeJSONExpr builds the map literal a whole-node RETURN packages into JSON
// (spec §4.7): one entry per catalog property plus the identity column,
// redirected through rw when alias was exported by an inner WithClause so it
// reads the CTE's namespaced columns instead of the original table alias.
//
// A node bound only as a variable-length path endpoint (no GraphNode scan
// backs it once the path is compiled, spec §4.8) cannot be packaged this
// way outside of a WITH that itself re-exports it with namespaced property
// columns: the recursive CTE only ever carries the endpoint's identity, not
// its other properties.
func (b *Builder) nodeJSONExpr(alias string, rw *rewriteTable, scope plan.Node) (ast.Expression, error) {
	tc, err := b.plan.Lookup(alias)
	if err != nil || len(tc.Labels) != 1 {
		return b.resolveExpr(rw, scope, &ast.Variable{Name: alias})
	}
	ns, err := b.cat.Node(tc.Labels[0])
	if err != nil {
		return nil, err
	}
	if _, isVLPEndpoint := b.plan.VLPEndpoint(alias); isVLPEndpoint {
		if _, tracked := rw.nodeColumns[alias]; !tracked {
			return nil, b.err("render", "node "+alias+" is a variable-length path endpoint; only its identity column can be read outside WITH, not the whole node")
		}
	}

	names := make([]string, 0, len(ns.Properties)+1)
	for p := range ns.Properties {
		names = append(names, p)
	}
	sort.Strings(names)

	keys := make([]string, 0, len(names)+1)
	vals := make([]ast.Expression, 0, len(names)+1)
	seen := map[string]bool{}
	add := func(cypherKey, jsonKey, col string) {
		if seen[jsonKey] {
			return
		}
		seen[jsonKey] = true
		keys = append(keys, jsonKey)
		vals = append(vals, b.nodeJSONPropRef(rw, alias, cypherKey, col))
	}
	if len(ns.IDColumns) > 0 {
		add("", "_id", ns.IDColumns[0])
	}
	for _, p := range names {
		add(p, p, ns.Properties[p])
	}
	return &ast.MapLiteral{Keys: keys, Values: vals}, nil
}

// nodeJSONPropRef resolves one JSON-packaged property's source column:
// through the WithClause rewrite table when alias was re-exported (the
// identity column keys off nodeIDCol since it carries no Cypher property
// name of its own), otherwise straight off the physical column already
// looked up from the catalog.
func (b *Builder) nodeJSONPropRef(rw *rewriteTable, alias, cypherKey, physicalCol string) ast.Expression {
	if cypherKey == "" {
		if col, tracked := rw.nodeIDCol[alias]; tracked {
			return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}
		}
		return propRef(alias, physicalCol)
	}
	if props, tracked := rw.nodeColumns[alias]; tracked {
		if col, known := props[cypherKey]; known {
			return &ast.PropertyAccess{Subject: &ast.Variable{Name: rw.cteAlias}, Property: col}
		}
	}
	return propRef(alias, physicalCol)
}
