package optimizer

import (
	"strings"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// CollectUnwindCancellation is an optimizer pass (spec §4.4): "UNWIND
// collect(x) AS y" with no intervening transformation collapses to the
// original sequence of x values — materializing the collection and
// immediately re-exploding it is a no-op for a read-only query. The shape
// this recognizes is the one the plan builder actually produces for
// `WITH ..., collect(x) AS tmp ... UNWIND tmp AS y ...`: a WithClause whose
// projection has a `collect(x) AS tmp` column, and whose Next subtree
// contains (without crossing into a nested WithClause scope) an Unwind node
// reading that same `tmp` alias.
var CollectUnwindCancellation = Pass{Name: "collect_unwind_cancellation", Apply: applyCollectUnwindCancellation}

func applyCollectUnwindCancellation(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return cancelCollectUnwind(n)
}

func cancelCollectUnwind(n plan.Node) (plan.Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	children := n.Children()
	newChildren := make([]plan.Node, len(children))
	changedAny := false
	for i, c := range children {
		nc, changed, err := cancelCollectUnwind(c)
		if err != nil {
			return nil, false, err
		}
		newChildren[i] = nc
		changedAny = changedAny || changed
	}
	cur := n
	if changedAny {
		cur = n.WithChildren(newChildren)
	}

	wc, ok := cur.(*plan.WithClause)
	if !ok || wc.Next == nil {
		return cur, changedAny, nil
	}
	proj, ok := wc.Child.(*plan.Projection)
	if !ok {
		return cur, changedAny, nil
	}

	for i, col := range proj.Columns {
		call, ok := col.Expr.(*ast.FunctionCall)
		if !ok || strings.ToLower(call.Name) != "collect" || len(call.Args) != 1 {
			continue
		}
		tmpAlias := col.Alias
		nextWithoutUnwind, unwindAs, found := removeMatchingUnwind(wc.Next, tmpAlias)
		if !found {
			continue
		}
		rewritten, _, err := substituteVariable(nextWithoutUnwind, unwindAs, call.Args[0])
		if err != nil {
			return nil, false, err
		}

		newCols := make([]plan.ProjectionColumn, 0, len(proj.Columns)-1)
		newCols = append(newCols, proj.Columns[:i]...)
		newCols = append(newCols, proj.Columns[i+1:]...)
		newProj := *proj
		newProj.Columns = newCols

		newExported := make([]string, 0, len(wc.Exported))
		for _, a := range wc.Exported {
			if a != tmpAlias {
				newExported = append(newExported, a)
			}
		}

		cp := *wc
		cp.Child = &newProj
		cp.Exported = newExported
		cp.Next = rewritten
		return &cp, true, nil
	}

	return cur, changedAny, nil
}

// removeMatchingUnwind searches n (not crossing into a nested WithClause's
// Next/Child scope) for the first Unwind whose Source is a bare Variable
// named alias, and splices it out in favor of its own Child.
func removeMatchingUnwind(n plan.Node, alias string) (plan.Node, string, bool) {
	if _, ok := n.(*plan.WithClause); ok {
		return n, "", false
	}
	if u, ok := n.(*plan.Unwind); ok {
		if v, ok := u.Source.(*ast.Variable); ok && v.Name == alias {
			return u.Child, u.As, true
		}
	}
	children := n.Children()
	newChildren := make([]plan.Node, len(children))
	var as string
	found := false
	for i, c := range children {
		if !found {
			nc, a, ok := removeMatchingUnwind(c, alias)
			if ok {
				newChildren[i] = nc
				as = a
				found = true
				continue
			}
		}
		newChildren[i] = c
	}
	if !found {
		return n, "", false
	}
	return n.WithChildren(newChildren), as, true
}
