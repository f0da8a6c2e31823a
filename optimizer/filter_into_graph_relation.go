package optimizer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// FilterIntoGraphRelation embeds single-scan predicates into the GraphNode's
// ViewScan so the emitter attaches them to the inner-most scan's WHERE
// clause rather than a wrapping Filter (spec §4.4). Must not run before
// analyzer pass 9 (cartesian-join extraction) has already promoted any
// cross-branch conjunct out of the Filter's tag list — embedding one of
// those into a single scan here would silently drop half of what it
// constrained (spec §4.4 explicit warning).
var FilterIntoGraphRelation = Pass{Name: "filter_into_graph_relation", Apply: applyFilterIntoGraphRelation}

func applyFilterIntoGraphRelation(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		f, ok := node.(*plan.Filter)
		if !ok || len(f.Tags) == 0 {
			return node, false, nil
		}

		var remaining []plan.FilterTag
		embeddable := map[string][]ast.Expression{}
		for _, tag := range f.Tags {
			if tag.CrossBranch || tag.ScanAlias == "" {
				remaining = append(remaining, tag)
				continue
			}
			embeddable[tag.ScanAlias] = append(embeddable[tag.ScanAlias], tag.Conjunct)
		}
		if len(embeddable) == 0 {
			return node, false, nil
		}

		newChild, embedded := embedIntoScans(f.Child, embeddable)
		if len(embedded) == 0 {
			return node, false, nil
		}
		remaining = nil
		for _, tag := range f.Tags {
			if tag.CrossBranch || tag.ScanAlias == "" || !embedded[tag.ScanAlias] {
				remaining = append(remaining, tag)
			}
		}

		if len(remaining) == 0 {
			return newChild, true, nil
		}
		var remExprs []ast.Expression
		for _, t := range remaining {
			remExprs = append(remExprs, t.Conjunct)
		}
		cp := *f
		cp.Child = newChild
		cp.Tags = remaining
		cp.Predicate = andAll(remExprs)
		return &cp, true, nil
	})
}

// embedIntoScans walks child looking for a GraphNode whose alias has a
// pending predicate, attaching it to that GraphNode's ViewScan.Filter
// (AND-combined with whatever is already there). Reports which aliases had
// their predicates embedded so the caller can decide, tag by tag, whether to
// keep or drop it.
func embedIntoScans(child plan.Node, pending map[string][]ast.Expression) (plan.Node, map[string]bool) {
	embedded := map[string]bool{}
	out, _, _ := plan.Transform(child, func(node plan.Node) (plan.Node, bool, error) {
		gn, ok := node.(*plan.GraphNode)
		if !ok || gn.Scan == nil {
			return node, false, nil
		}
		exprs, ok := pending[gn.Alias]
		if !ok {
			return node, false, nil
		}
		scanCp := *gn.Scan
		scanCp.Filter = andAll(append(splitPredicate(scanCp.Filter), exprs...))
		gnCp := *gn
		gnCp.Scan = &scanCp
		embedded[gn.Alias] = true
		return &gnCp, true, nil
	})
	return out, embedded
}

func splitPredicate(e ast.Expression) []ast.Expression {
	if e == nil {
		return nil
	}
	return []ast.Expression{e}
}

func andAll(exprs []ast.Expression) ast.Expression {
	var cur ast.Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if cur == nil {
			cur = e
		} else {
			cur = &ast.BinaryOp{Op: "AND", Left: cur, Right: e}
		}
	}
	return cur
}
