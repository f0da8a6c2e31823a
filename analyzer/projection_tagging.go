package analyzer

import (
	"sort"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/plan"
)

// ProjectionTagging is analyzer pass 10 (spec §4.3): expand a bare "RETURN *"
// / "WITH *" (Columns left empty by the builder, spec §4.2) into one column
// per alias bound in scope, in alphabetical order; each expanded column is a
// bare reference and is not Computed. A projection that already has columns
// is left as the builder built it, Computed flags included.
var ProjectionTagging = Pass{Name: "projection_tagging", Apply: applyProjectionTagging}

func applyProjectionTagging(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		p, ok := node.(*plan.Projection)
		if !ok {
			return node, false, nil
		}
		if len(p.Columns) > 0 {
			return node, false, nil
		}
		aliases := boundAliases(p.Child)
		if len(aliases) == 0 {
			return node, false, nil
		}
		names := make([]string, 0, len(aliases))
		for a := range aliases {
			names = append(names, a)
		}
		sort.Strings(names) // binding order isn't tracked structurally; alphabetical keeps this deterministic

		cp := *p
		for _, a := range names {
			cp.Columns = append(cp.Columns, plan.ProjectionColumn{
				Expr:     &ast.Variable{Name: a},
				Alias:    a,
				Computed: false,
			})
		}
		return &cp, true, nil
	})
}
