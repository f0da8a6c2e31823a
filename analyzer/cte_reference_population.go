package analyzer

import "github.com/genezhang/clickgraph/plan"

// CTEReferencePopulation is analyzer pass 13 (spec §4.3): once every
// WithClause has a materialized CTE name (pass 5), walk the plan in source
// order and, for each WithClause, mark its Exported aliases as CTE
// references before descending into Next. This both narrows the scope chain
// to exactly the exported set (spec §3.4, §8: "no alias from a prior scope
// leaks") and gives the render plan builder (§4.6 Job 2) a direct
// TableContext.CTEName to resolve a node's identity column through, instead
// of re-deriving it from the WithClause tree shape.
var CTEReferencePopulation = Pass{Name: "cte_reference_population", Apply: applyCTEReferencePopulation}

func applyCTEReferencePopulation(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	if err := populateScope(n, rctx); err != nil {
		return n, false, err
	}
	return n, false, nil
}

func populateScope(n plan.Node, rctx *RunContext) error {
	wc, ok := n.(*plan.WithClause)
	if !ok {
		for _, c := range n.Children() {
			if err := populateScope(c, rctx); err != nil {
				return err
			}
		}
		return nil
	}

	if err := populateScope(wc.Child, rctx); err != nil {
		return err
	}
	if err := rctx.Plan.OpenScope(wc.Exported); err != nil {
		return err
	}
	for _, alias := range wc.Exported {
		tc, err := rctx.Plan.Lookup(alias)
		if err != nil {
			return err
		}
		tc.IsCTERef = true
		tc.CTEName = wc.CTEName
	}
	if wc.Next != nil {
		if err := populateScope(wc.Next, rctx); err != nil {
			rctx.Plan.CloseScope()
			return err
		}
	}
	rctx.Plan.CloseScope()
	return nil
}
