package analyzer

import (
	"fmt"

	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/plan"
)

// VLPTransitivityCheck is analyzer pass 4 (spec §4.3): reject non-sensical
// variable-length bounds (a negative minimum, a minimum above the maximum
// such as *3..2, or a maximum above
// RunContext.MaxVarLength) with ErrInvalidVariableLengthPath rather than
// silently clamping, and fail on a relationship type the catalog does not
// know. A pattern with no upper bound ("*", "*2..") gets MaxVarLength as its
// maximum. The endpoint labels are not compared with the edge type's from/to
// labels.
var VLPTransitivityCheck = Pass{Name: "vlp_transitivity_check", Apply: applyVLPTransitivityCheck}

func applyVLPTransitivityCheck(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		rel, ok := node.(*plan.GraphRel)
		if !ok || rel.VarLength == nil {
			return node, false, nil
		}
		vl := rel.VarLength
		if vl.Min < 0 {
			return node, false, cgerrors.ErrInvalidVariableLengthPath.New(
				fmt.Sprintf("negative minimum hop count %d", vl.Min))
		}
		if !vl.Unbounded && vl.Max < vl.Min {
			return node, false, cgerrors.ErrInvalidVariableLengthPath.New(
				fmt.Sprintf("minimum %d exceeds maximum %d", vl.Min, vl.Max))
		}
		if vl.Max > rctx.MaxVarLength {
			return node, false, cgerrors.ErrInvalidVariableLengthPath.New(
				fmt.Sprintf("maximum hop count %d exceeds cap %d", vl.Max, rctx.MaxVarLength))
		}
		for _, et := range rel.Types {
			if _, err := rctx.Catalog.Edge(et); err != nil {
				return node, false, err
			}
		}
		if vl.Unbounded {
			resolved := *vl
			resolved.Max = rctx.MaxVarLength
			resolved.Unbounded = false
			cp := *rel
			cp.VarLength = &resolved
			return &cp, true, nil
		}
		return node, false, nil
	})
}
