package analyzer

import (
	"sort"

	"github.com/genezhang/clickgraph/plan"
)

// PropertyRequirements is analyzer pass 14 (spec §4.3), and must run last
// among the analysis passes (spec §4.5): every prior pass has finished
// recording which properties were actually read off each alias (variable
// resolution, pass 12, populates TableContext.Properties/PropertyMapping),
// so this pass now fills in each ViewScan's minimal column projection —
// identity columns always included, plus whatever properties were observed.
var PropertyRequirements = Pass{Name: "property_requirements", Apply: applyPropertyRequirements}

func applyPropertyRequirements(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		switch v := node.(type) {
		case *plan.ViewScan:
			// A bare ViewScan only ever appears as the tree root in unit
			// tests exercising this pass in isolation; the builder always
			// embeds the scan on GraphNode.Scan instead (see the *GraphNode
			// case below), which is why both are handled here.
			names, ok := requiredColumns(v.Alias, v.Projections, rctx)
			if !ok {
				return node, false, nil
			}
			cp := *v
			cp.Projections = names
			return &cp, true, nil
		case *plan.GraphNode:
			if v.Scan == nil {
				return node, false, nil
			}
			names, ok := requiredColumns(v.Alias, v.Scan.Projections, rctx)
			if !ok {
				return node, false, nil
			}
			cp := *v
			scanCopy := *v.Scan
			scanCopy.Projections = names
			cp.Scan = &scanCopy
			return &cp, true, nil
		}
		return node, false, nil
	})
}

// requiredColumns computes the minimal projection list for alias: its
// identity column(s) plus every property observed on it (spec §4.3 pass 14).
// The second return value is false when there is nothing to compute (already
// filled, or alias is not a scope-bound node/relationship — e.g. a VLP
// recursive CTE's internal scan, left to the sub-engine that created it).
func requiredColumns(alias string, existing []string, rctx *RunContext) ([]string, bool) {
	if existing != nil {
		return nil, false
	}
	tc, err := rctx.Plan.Lookup(alias)
	if err != nil {
		return nil, false
	}

	cols := map[string]bool{}
	if len(tc.Labels) == 1 {
		if node, err := rctx.Catalog.Node(tc.Labels[0]); err == nil {
			for _, idCol := range node.IDColumns {
				cols[idCol] = true
			}
		}
	}
	for _, col := range tc.PropertyMapping {
		cols[col] = true
	}
	if len(cols) == 0 {
		return nil, false
	}

	names := make([]string, 0, len(cols))
	for c := range cols {
		names = append(names, c)
	}
	sort.Strings(names)
	return names, true
}
