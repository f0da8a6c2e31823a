package analyzer

import (
	"github.com/genezhang/clickgraph/plan"
)

// SchemaInference is analyzer pass 1 (spec §4.3): for every GraphNode scan
// of a labeled variable, look up the physical table and annotate the scan.
// A node with more than one label becomes a polymorphic placeholder (a
// ViewScan is still attached using the first resolvable label; Pattern
// Resolution, pass 3, is responsible for expanding the remaining
// alternatives into a Union).
var SchemaInference = Pass{Name: "schema_inference", Apply: applySchemaInference}

func applySchemaInference(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	out, changed, err := plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		gn, ok := node.(*plan.GraphNode)
		if !ok || gn.Scan != nil || len(gn.Labels) == 0 {
			return node, false, nil
		}
		// schema_inference always resolves against the first label; any
		// additional alternatives are left to pattern resolution to expand.
		label := gn.Labels[0]
		ns, err := rctx.Catalog.Node(label)
		if err != nil {
			return node, false, err
		}
		cp := *gn
		if ns.Denormalized {
			// virtual node: no standalone table to scan, so no scan is
			// attached and the plan is left unchanged. The render plan
			// builder reads this node's columns off the edge table.
			return node, false, nil
		}
		cp.Scan = &plan.ViewScan{
			Alias:    gn.Alias,
			Database: ns.Database,
			Table:    ns.Table,
		}
		rctx.Log.WithField("alias", gn.Alias).WithField("table", ns.Table).Debug("resolved node scan")
		return &cp, true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}
