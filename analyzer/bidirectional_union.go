package analyzer

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// BidirectionalUnion is analyzer pass 6 (spec §4.3): for undirected "-[r]-",
// rewrite as Union(outgoing, incoming). Must not cross a WithClause boundary
// (spec §9 scope-boundary rule), hence the use of TransformScoped rather
// than plain Transform.
var BidirectionalUnion = Pass{Name: "bidirectional_union", Apply: applyBidirectionalUnion}

func applyBidirectionalUnion(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	var crossScope func(*plan.WithClause) (plan.Node, bool, error)
	var fn func(plan.Node) (plan.Node, bool, error)

	fn = func(node plan.Node) (plan.Node, bool, error) {
		rel, ok := node.(*plan.GraphRel)
		if !ok || rel.Direction != ast.DirUndirected {
			return node, false, nil
		}
		outgoing := *rel
		outgoing.Direction = ast.DirOut

		incoming := *rel
		incoming.Direction = ast.DirIn
		incoming.Left, incoming.Right = rel.Right, rel.Left

		return &plan.Union{Kind: ast.UnionAll, Branches: []plan.Node{&outgoing, &incoming}}, true, nil
	}

	crossScope = func(w *plan.WithClause) (plan.Node, bool, error) {
		newChild, changedChild, err := plan.TransformScoped(w.Child, fn, crossScope)
		if err != nil {
			return nil, false, err
		}
		var newNext plan.Node
		changedNext := false
		if w.Next != nil {
			newNext, changedNext, err = plan.TransformScoped(w.Next, fn, crossScope)
			if err != nil {
				return nil, false, err
			}
		}
		cp := *w
		cp.Child = newChild
		cp.Next = newNext
		return &cp, changedChild || changedNext, nil
	}

	return plan.TransformScoped(n, fn, crossScope)
}
