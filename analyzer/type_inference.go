package analyzer

import (
	"fmt"

	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/plan"
)

// TypeInference is analyzer pass 2 (spec §4.3): for any node/edge with a
// missing label/type, infer the set of compatible labels from neighbourhood
// constraints (the edge types connected to it). If the inferred set's
// cardinality exceeds RunContext.TypeInferenceCap, the query is rejected
// with TypeInferenceExplosion (modeled here as cgerrors.ErrTypeInference,
// taxonomy §7).
var TypeInference = Pass{Name: "type_inference", Apply: applyTypeInference}

func applyTypeInference(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		rel, ok := node.(*plan.GraphRel)
		if !ok {
			return node, false, nil
		}
		changed := false
		cp := *rel

		if len(rel.Left.Labels) == 0 && len(rel.Types) > 0 {
			labels, err := inferCompatibleLabels(rctx, rel.Types, "", true)
			if err != nil {
				return node, false, err
			}
			leftCp := *rel.Left
			leftCp.Labels = labels
			cp.Left = &leftCp
			changed = true
		}
		if len(rel.Right.Labels) == 0 && len(rel.Types) > 0 {
			labels, err := inferCompatibleLabels(rctx, rel.Types, "", false)
			if err != nil {
				return node, false, err
			}
			rightCp := *rel.Right
			rightCp.Labels = labels
			cp.Right = &rightCp
			changed = true
		}
		if !changed {
			return node, false, nil
		}
		return &cp, true, nil
	})
}

func inferCompatibleLabels(rctx *RunContext, edgeTypes []string, knownOther string, wantFromSide bool) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, et := range edgeTypes {
		var candidates []string
		if wantFromSide {
			for _, e := range rctx.Catalog.EdgesBetween("", "") {
				if e.Type == et {
					candidates = append(candidates, e.From.NodeLabel)
				}
			}
		} else {
			for _, e := range rctx.Catalog.EdgesBetween("", "") {
				if e.Type == et {
					candidates = append(candidates, e.To.NodeLabel)
				}
			}
		}
		for _, c := range candidates {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	if len(out) > rctx.TypeInferenceCap {
		return nil, typeInferenceExplosion(len(out), rctx.TypeInferenceCap)
	}
	return out, nil
}

func typeInferenceExplosion(got, cap int) error {
	return cgerrors.ErrTypeInference.New(
		fmt.Sprintf("type inference explosion: %d candidate labels exceeds cap %d", got, cap))
}
