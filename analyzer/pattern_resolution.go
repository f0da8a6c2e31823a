package analyzer

import (
	"fmt"

	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/plan"
)

// PatternResolution is analyzer pass 3 (spec §4.3): expand multi-label or
// multi-type patterns into a Union of single-label/single-type plans when
// the underlying physical tables differ. Bounded by RunContext.PatternBranchCap
// (PatternExpansionOverflow, spec §7, if exceeded).
//
// This pass implements the Open Question decision recorded in DESIGN.md:
// multiple relationship types in non-VLP patterns get FULL support via
// Union, not the partial support the reference implementation had.
var PatternResolution = Pass{Name: "pattern_resolution", Apply: applyPatternResolution}

func applyPatternResolution(n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	return plan.Transform(n, func(node plan.Node) (plan.Node, bool, error) {
		rel, ok := node.(*plan.GraphRel)
		if !ok {
			return node, false, nil
		}
		if len(rel.Types) <= 1 && len(rel.Left.Labels) <= 1 && len(rel.Right.Labels) <= 1 {
			return node, false, nil
		}
		if rel.VarLength != nil {
			// VLP multi-type handling belongs to the sub-engine's
			// heterogeneous-path support (spec §4.8/§9), not here.
			return node, false, nil
		}

		branchCount := max1(len(rel.Types)) * max1(len(rel.Left.Labels)) * max1(len(rel.Right.Labels))
		if branchCount > rctx.PatternBranchCap {
			return node, false, cgerrors.ErrPatternExpansionOverflow.New(
				fmt.Sprintf("pattern expands to %d branches, exceeds cap %d", branchCount, rctx.PatternBranchCap))
		}

		edgeTypes := rel.Types
		if len(edgeTypes) == 0 {
			edgeTypes = []string{""}
		}
		leftLabels := rel.Left.Labels
		if len(leftLabels) == 0 {
			leftLabels = []string{""}
		}
		rightLabels := rel.Right.Labels
		if len(rightLabels) == 0 {
			rightLabels = []string{""}
		}

		var branches []plan.Node
		for _, et := range edgeTypes {
			for _, ll := range leftLabels {
				for _, rl := range rightLabels {
					leftCp := *rel.Left
					if ll != "" {
						leftCp.Labels = []string{ll}
					}
					rightCp := *rel.Right
					if rl != "" {
						rightCp.Labels = []string{rl}
					}
					branchRel := *rel
					branchRel.Left = &leftCp
					branchRel.Right = &rightCp
					if et != "" {
						branchRel.Types = []string{et}
					}
					branches = append(branches, &branchRel)
				}
			}
		}
		if len(branches) == 1 {
			return branches[0], true, nil
		}
		return &plan.Union{Kind: ast.UnionAll, Branches: branches}, true, nil
	})
}

func max1(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
