package analyzer

import (
	"fmt"

	"github.com/genezhang/clickgraph/plan"
)

// CTESchemaResolver is analyzer pass 5 (spec §4.3): when a WithClause is
// encountered, compute the column schema of the CTE it will materialise and
// register it in the plan context so later passes (and the render plan
// builder's Job 1, spec §4.6) can look up alias.property -> CTE column.
//
// trivial-WITH elimination (optimizer) must only run after this pass has
// registered every WITH CTE (spec §4.5 contract); this pass therefore must
// run before the optimizer's first pass over the plan.
var CTESchemaResolver = Pass{Name: "cte_schema_resolver", Apply: applyCTESchemaResolver}

func applyCTESchemaResolver(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		wc, ok := node.(*plan.WithClause)
		if !ok || wc.CTEName != "" {
			return node, false, nil
		}
		proj := findProjection(wc.Child)
		if proj == nil {
			return node, false, nil
		}
		name := fmt.Sprintf("with_cte_%d", len(rctx.Plan.AllCTENames())+1)
		schema := &plan.CTESchema{
			Name:          name,
			NodeColumns:   map[string]map[string]string{},
			NodeIDColumn:  map[string]string{},
			ScalarColumns: map[string]string{},
		}
		for _, col := range proj.Columns {
			kind, known := rctx.Plan.VariableKind(col.Alias)
			if known && kind == plan.VarNode {
				schema.NodeColumns[col.Alias] = map[string]string{}
				continue
			}
			schema.ScalarColumns[col.Alias] = col.Alias
		}
		rctx.Plan.RegisterCTESchema(schema)

		cp := *wc
		cp.CTEName = name
		return &cp, true, nil
	})
}

func findProjection(n plan.Node) *plan.Projection {
	var found *plan.Projection
	plan.Inspect(n, func(node plan.Node) bool {
		if p, ok := node.(*plan.Projection); ok && found == nil {
			found = p
			return false
		}
		return true
	})
	return found
}
