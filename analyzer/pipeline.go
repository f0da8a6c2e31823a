package analyzer

import "github.com/genezhang/clickgraph/plan"

// The analyzer and optimizer run in three-phase lockstep (spec §4.5):
// (initial analysis) -> (initial optimization) -> (intermediate analysis) ->
// (final analysis) -> (final optimization); optimizer/pipeline.go explains
// why final analysis runs before final optimization. Package analyzer owns only the
// three analysis groups; the engine package owns interleaving them with the
// optimizer package's two groups, since neither analyzer nor optimizer may
// import the other (spec §3.5 "compiler, not a framework" — passes don't
// know about each other's packages, only the plan/context types they share).
//
// Group boundaries encode three load-bearing orderings (spec §4.5 contract):
//   - property_requirements must run last among ALL analysis passes, so it
//     is the sole member of FinalAnalysis.
//   - cte_schema_resolver must register every WITH CTE before trivial-WITH
//     elimination (an optimizer pass) runs; putting it in InitialAnalysis,
//     the group that always precedes the optimizer's first pass, guarantees
//     this regardless of what the optimizer does with its own ordering.
//   - graph_join_inference, filter_tagging and cartesian_join_extraction
//     must all complete before the optimizer's filter-into-graph-relation
//     pass runs (spec §4.4: "must not be run before cartesian-join-
//     extraction"), so they live in IntermediateAnalysis, which the engine
//     runs before FinalOptimization.
var (
	InitialAnalysis = []Pass{
		SchemaInference,
		TypeInference,
		PatternResolution,
		VLPTransitivityCheck,
		CTESchemaResolver,
		BidirectionalUnion,
	}

	IntermediateAnalysis = []Pass{
		GraphJoinInference,
		FilterTagging,
		CartesianJoinExtraction,
		ProjectionTagging,
		GroupByConstruction,
		VariableResolver,
		CTEReferencePopulation,
	}

	FinalAnalysis = []Pass{
		PropertyRequirements,
	}
)

// maxFixedPointIterations bounds the fixed-point loop RunGroup performs over
// a pass group so it can never loop forever; a group that hasn't converged
// by then stops iterating and RunGroup returns the plan as it stands, with
// no error.
const maxFixedPointIterations = 8

// RunGroup runs every pass in group, in order, once per iteration, looping
// until a full pass over the group reports no change (or the iteration cap
// is hit). Passes within intermediate/final analysis groups can re-trigger
// each other (e.g. pattern resolution exposing a new GraphRel for graph-join
// inference to classify), so a single top-to-bottom pass is not always
// sufficient.
func RunGroup(group []Pass, n plan.Node, rctx *RunContext) (plan.Node, error) {
	cur := n
	for i := 0; i < maxFixedPointIterations; i++ {
		anyChanged := false
		for _, p := range group {
			out, changed, err := Run(p, cur, rctx)
			if err != nil {
				return nil, err
			}
			cur = out
			anyChanged = anyChanged || changed
		}
		if !anyChanged {
			break
		}
	}
	return cur, nil
}
