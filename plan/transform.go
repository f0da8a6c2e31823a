package plan

// Transform applies fn bottom-up to every node in the tree rooted at n,
// rebuilding parents via WithChildren when a child changed. This is the one
// mechanism every analyzer/optimizer pass uses to "modify" a plan: it never
// mutates n in place, it returns a new tree (spec §5).
func Transform(n Node, fn func(Node) (Node, bool, error)) (Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	children := n.Children()
	changedAny := false
	newChildren := make([]Node, len(children))
	for i, c := range children {
		nc, changed, err := Transform(c, fn)
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
	out, changed, err := fn(cur)
	if err != nil {
		return nil, false, err
	}
	return out, changed || changedAny, nil
}

// Inspect walks the tree top-down calling fn on every node; fn returns
// false to stop descending into that node's children. Used by passes that
// need read-only traversal without rebuilding (e.g. property-requirements
// collection).
func Inspect(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, fn)
	}
}

// TransformScoped is like Transform but halts descent at a WithClause
// boundary unless enter is true, then recurses into the WithClause's Child
// with a fresh invocation of crossScope. This is the scope-aware visitor
// spec §9 requires for passes (bidirectional expansion, property pushdown)
// that must not look "through" a WITH barrier by accident.
func TransformScoped(n Node, fn func(Node) (Node, bool, error), crossScope func(*WithClause) (Node, bool, error)) (Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	if w, ok := n.(*WithClause); ok {
		return crossScope(w)
	}
	children := n.Children()
	changedAny := false
	newChildren := make([]Node, len(children))
	for i, c := range children {
		nc, changed, err := TransformScoped(c, fn, crossScope)
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
	out, changed, err := fn(cur)
	if err != nil {
		return nil, false, err
	}
	return out, changed || changedAny, nil
}
