package plan

import (
	"fmt"
	"strings"
)

// Sprint renders a one-line-per-node, indented dump of the plan tree,
// matching the teacher's tree-printer idiom (sql.TreePrinter) used for plan
// introspection and for the EXPLAIN-shaped entry point added in
// SPEC_FULL.md. It is also used internally as a cheap structural
// fingerprint input for hashstructure-based Changed verification.
func Sprint(n Node) string {
	var b strings.Builder
	sprintNode(&b, n, 0)
	return b.String()
}

func sprintNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n == nil {
		fmt.Fprintf(b, "%s<nil>\n", indent)
		return
	}
	fmt.Fprintf(b, "%s%s\n", indent, describeNode(n))
	for _, c := range n.Children() {
		sprintNode(b, c, depth+1)
	}
}

func describeNode(n Node) string {
	switch v := n.(type) {
	case *Empty:
		return "Empty"
	case *ViewScan:
		return fmt.Sprintf("ViewScan(%s.%s AS %s, cols=%v)", v.Database, v.Table, v.Alias, v.Projections)
	case *GraphNode:
		return fmt.Sprintf("GraphNode(%s:%v)", v.Alias, v.Labels)
	case *GraphRel:
		return fmt.Sprintf("GraphRel(%s:%v left=%s right=%s)", v.Alias, v.Types, v.Left.Alias, v.Right.Alias)
	case *GraphJoins:
		return fmt.Sprintf("GraphJoins(%s, %d conds)", v.Kind, len(v.Conditions))
	case *Filter:
		return "Filter"
	case *Projection:
		return fmt.Sprintf("Projection(%d cols, distinct=%v)", len(v.Columns), v.Distinct)
	case *GroupBy:
		return fmt.Sprintf("GroupBy(%d keys)", len(v.Keys))
	case *OrderBy:
		return fmt.Sprintf("OrderBy(%d items)", len(v.Items))
	case *Skip:
		return "Skip"
	case *Limit:
		return "Limit"
	case *Cte:
		return fmt.Sprintf("Cte(%s)", v.Name)
	case *Union:
		return fmt.Sprintf("Union(%v, %d branches)", v.Kind, len(v.Branches))
	case *WithClause:
		return fmt.Sprintf("WithClause(exports=%v)", v.Exported)
	case *CartesianProduct:
		return fmt.Sprintf("CartesianProduct(%v)", v.Kind)
	case *Unwind:
		return fmt.Sprintf("Unwind(AS %s)", v.As)
	default:
		return fmt.Sprintf("%T", n)
	}
}
