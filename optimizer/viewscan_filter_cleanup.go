package optimizer

import (
	"github.com/mitchellh/hashstructure"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// ViewScanFilterCleanup deduplicates predicates that now appear both
// embedded on a ViewScan (by FilterIntoGraphRelation) and still listed in an
// enclosing Filter — a residual from a fixed-point re-run of the optimizer
// group rather than a distinct constraint (spec §4.4).
var ViewScanFilterCleanup = Pass{Name: "viewscan_filter_cleanup", Apply: applyViewScanFilterCleanup}

func applyViewScanFilterCleanup(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		f, ok := node.(*plan.Filter)
		if !ok {
			return node, false, nil
		}
		embedded := collectScanFilterHashes(f.Child)
		if len(embedded) == 0 {
			return node, false, nil
		}

		conjuncts := splitConjunctsFlat(f.Predicate)
		var keep []ast.Expression
		removedAny := false
		for _, c := range conjuncts {
			h, err := hashstructure.Hash(c, nil)
			if err == nil && embedded[h] {
				removedAny = true
				continue
			}
			keep = append(keep, c)
		}
		if !removedAny {
			return node, false, nil
		}
		if len(keep) == 0 {
			return f.Child, true, nil
		}
		cp := *f
		cp.Predicate = andAll(keep)
		cp.Tags = nil
		return &cp, true, nil
	})
}

func collectScanFilterHashes(n plan.Node) map[uint64]bool {
	out := map[uint64]bool{}
	plan.Inspect(n, func(node plan.Node) bool {
		gn, ok := node.(*plan.GraphNode)
		if !ok || gn.Scan == nil || gn.Scan.Filter == nil {
			return true
		}
		for _, c := range splitConjunctsFlat(gn.Scan.Filter) {
			if h, err := hashstructure.Hash(c, nil); err == nil {
				out[h] = true
			}
		}
		return true
	})
	return out
}

func splitConjunctsFlat(expr ast.Expression) []ast.Expression {
	bin, ok := expr.(*ast.BinaryOp)
	if !ok || bin.Op != "AND" {
		if expr == nil {
			return nil
		}
		return []ast.Expression{expr}
	}
	return append(splitConjunctsFlat(bin.Left), splitConjunctsFlat(bin.Right)...)
}
