package plan

import (
	"fmt"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
)

// Builder translates an *ast.Query into an initial (pre-analysis) logical
// plan tree (spec §4.2, component C). It performs no catalog lookups: that
// is schema inference's job (spec §4.3 pass 1). It does perform the one
// structural normalization downstream code depends on absolutely -
// GraphRel.Left is always the "from" side - because that decision belongs
// to AST-to-plan translation, not to any later pass (spec §4.2).
type Builder struct {
	ctx       *PlanContext
	anonCount int
}

func NewBuilder(ctx *PlanContext) *Builder {
	return &Builder{ctx: ctx}
}

// Build converts the whole query into a logical plan rooted at the
// outermost Projection/OrderBy/Skip/Limit (or Union).
func (b *Builder) Build(q *ast.Query) (Node, error) {
	if q.Union != nil {
		left, err := b.Build(q.Union.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.Build(q.Union.Right)
		if err != nil {
			return nil, err
		}
		kind := q.Union.Kind
		return &Union{Kind: kind, Branches: []Node{left, right}}, nil
	}
	return b.buildSingleQuery(q)
}

func (b *Builder) buildSingleQuery(q *ast.Query) (Node, error) {
	var cur Node = &Empty{}
	haveAnchor := false

	for _, rc := range q.ReadingClauses {
		switch rc.Kind {
		case ast.ClauseMatch:
			patNode, err := b.buildPatterns(rc.Patterns)
			if err != nil {
				return nil, err
			}
			if rc.Where != nil {
				patNode = &Filter{Predicate: rc.Where, Child: patNode}
			}
			if !haveAnchor {
				cur = patNode
				haveAnchor = true
			} else {
				cur = &CartesianProduct{Kind: CartesianInner, Anchor: cur, Branch: patNode}
			}
		case ast.ClauseOptionalMatch:
			patNode, err := b.buildPatterns(rc.Patterns)
			if err != nil {
				return nil, err
			}
			if rc.Where != nil {
				patNode = &Filter{Predicate: rc.Where, Child: patNode}
			}
			// OPTIONAL MATCH becomes a left-outer CartesianProduct anchored
			// on the plan built so far (spec §4.2).
			cur = &CartesianProduct{Kind: CartesianLeftOuter, Anchor: cur, Branch: patNode}
			haveAnchor = true
		case ast.ClauseUnwind:
			cur = &Unwind{Source: rc.UnwindExpr, As: rc.UnwindAs, Child: cur}
			haveAnchor = true
		}
	}

	if q.With != nil {
		exported := projectionAliases(q.With.Items, q.With.Star)
		withChild := cur
		if q.With.Where != nil {
			withChild = &Filter{Predicate: q.With.Where, Child: withChild}
		}
		proj, err := b.buildProjectionLayer(withChild, q.With.Items, q.With.Star, q.With.Distinct, q.With.OrderBy, q.With.Skip, q.With.Limit)
		if err != nil {
			return nil, err
		}
		wc := &WithClause{Child: proj, Exported: exported}
		next, err := b.buildSingleQuery(q.With.Next)
		if err != nil {
			return nil, err
		}
		wc.Next = next
		return wc, nil
	}

	if q.Return != nil {
		return b.buildProjectionLayer(cur, q.Return.Items, q.Return.Star, q.Return.Distinct, q.Return.OrderBy, q.Return.Skip, q.Return.Limit)
	}

	return nil, cgerrors.ErrInternalInvariant.New("plan.Builder", "query has neither WITH nor RETURN")
}

func (b *Builder) buildProjectionLayer(child Node, items []ast.ProjectionItem, star, distinct bool, orderBy []ast.SortItem, skip, limit ast.Expression) (Node, error) {
	var cols []ProjectionColumn
	if !star {
		for _, it := range items {
			alias := it.Alias
			if alias == "" {
				alias = naturalName(it.Expr)
			}
			cols = append(cols, ProjectionColumn{Expr: it.Expr, Alias: alias, Computed: !isBareReference(it.Expr)})
		}
	}
	// star==true is expanded later by projection tagging (§4.3 pass 10);
	// here we leave Columns empty and rely on that pass to fill it in from
	// the plan context's bound aliases.
	node := Node(&Projection{Columns: cols, Distinct: distinct, Child: child})
	if len(orderBy) > 0 {
		node = &OrderBy{Items: orderBy, Child: node}
	}
	if skip != nil {
		node = &Skip{Count: skip, Child: node}
	}
	if limit != nil {
		node = &Limit{Count: limit, Child: node}
	}
	return node, nil
}

// buildPatterns builds one (possibly multi-pattern, comma-separated) MATCH
// body into a tree of GraphRel/GraphNode nodes, cross-joining independent
// patterns and sharing GraphNode instances across hops within one pattern
// (spec §4.1 "node sharing").
func (b *Builder) buildPatterns(patterns []ast.Pattern) (Node, error) {
	var result Node
	for _, pat := range patterns {
		n, err := b.buildOnePattern(pat)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = n
		} else {
			result = &CartesianProduct{Kind: CartesianInner, Anchor: result, Branch: n}
		}
	}
	if result == nil {
		return &Empty{}, nil
	}
	return result, nil
}

func (b *Builder) buildOnePattern(pat ast.Pattern) (Node, error) {
	if len(pat.Elements) == 0 {
		return &Empty{}, nil
	}
	// shared map so that a node alias appearing more than once within this
	// pattern resolves to the SAME *GraphNode instance (spec §4.1 node
	// sharing: "(a)-[]->(b)-[]->(c)": b must be one logical entity).
	nodes := map[string]*GraphNode{}
	getNode := func(np *ast.NodePattern) *GraphNode {
		alias := np.Name
		if alias == "" {
			alias = b.freshAnon()
		}
		if existing, ok := nodes[alias]; ok {
			if len(np.Labels) > 0 {
				existing.Labels = mergeLabels(existing.Labels, np.Labels)
			}
			return existing
		}
		gn := &GraphNode{Alias: alias, Labels: np.Labels}
		if np.Properties != nil {
			gn.InlineFilter = inlinePropsToFilter(alias, np.Properties)
		}
		nodes[alias] = gn
		b.ctx.Bind(alias, VarNode, np.Labels)
		return gn
	}

	anchor := getNode(pat.Elements[0].Node)
	var cur Node = anchor
	var filters []ast.Expression
	if anchor.InlineFilter != nil {
		filters = append(filters, anchor.InlineFilter)
	}

	left := anchor
	for _, el := range pat.Elements[1:] {
		right := getNode(el.To)
		if right.InlineFilter != nil {
			filters = append(filters, right.InlineFilter)
		}
		relAlias := el.Rel.Name
		if relAlias == "" {
			relAlias = b.freshAnon()
		}
		b.ctx.Bind(relAlias, VarRelationship, el.Rel.Types)

		// Critical invariant (spec §4.2): GraphRel.Left is always the "from"
		// side. For "<-" patterns, swap left/right here, once, so nothing
		// downstream ever needs to re-derive this from direction.
		from, to := left, right
		if el.Rel.Direction == ast.DirIn {
			from, to = right, left
		}

		rel := &GraphRel{
			Alias:     relAlias,
			Types:     el.Rel.Types,
			Direction: el.Rel.Direction,
			VarLength: el.Rel.VarLength,
			Left:      from,
			Right:     to,
		}
		if el.Rel.Properties != nil {
			filters = append(filters, inlinePropsToFilter(relAlias, el.Rel.Properties))
		}

		cur = rel
		left = right
	}

	for _, f := range filters {
		cur = &Filter{Predicate: f, Child: cur}
	}
	return cur, nil
}

func (b *Builder) freshAnon() string {
	b.anonCount++
	return fmt.Sprintf("__anon%d", b.anonCount)
}

func inlinePropsToFilter(alias string, m *ast.MapLiteral) ast.Expression {
	var cur ast.Expression
	for i, k := range m.Keys {
		eq := &ast.BinaryOp{
			Op:    "=",
			Left:  &ast.PropertyAccess{Subject: &ast.Variable{Name: alias}, Property: k},
			Right: m.Values[i],
		}
		if cur == nil {
			cur = eq
		} else {
			cur = &ast.BinaryOp{Op: "AND", Left: cur, Right: eq}
		}
	}
	return cur
}

func mergeLabels(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range append(append([]string{}, a...), b...) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func projectionAliases(items []ast.ProjectionItem, star bool) []string {
	if star {
		return nil // resolved later once the bound-alias set is known
	}
	var out []string
	for _, it := range items {
		alias := it.Alias
		if alias == "" {
			alias = naturalName(it.Expr)
		}
		out = append(out, alias)
	}
	return out
}

func naturalName(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.Variable:
		return v.Name
	case *ast.PropertyAccess:
		return naturalName(v.Subject) + "." + v.Property
	case *ast.FunctionCall:
		return v.Name
	default:
		return ""
	}
}

func isBareReference(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Variable, *ast.PropertyAccess:
		return true
	default:
		return false
	}
}
