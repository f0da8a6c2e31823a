package optimizer

// The optimizer owns two of the five lockstep groups described in
// analyzer.InitialAnalysis's doc comment (spec §4.5): InitialOptimization
// runs immediately after the analyzer's InitialAnalysis group, and
// FinalOptimization runs after the analyzer's IntermediateAnalysis and
// FinalAnalysis groups have both completed.
//
// Read literally, spec §4.5's five phase names order as (initial analysis)
// -> (initial optimization) -> (intermediate analysis) -> (final
// optimization) -> (final analysis), which would put FinalOptimization
// before property_requirements (the sole FinalAnalysis pass). But
// ProjectionPushdown's whole job is narrowing a CTE schema to the columns
// property_requirements-equivalent reasoning says are actually read, and the
// §4.4 entry for it reads "per the property requirements computed in
// analysis" — it needs that pass to have already run. The engine package,
// which owns interleaving these groups, resolves this by running
// analyzer.FinalAnalysis before optimizer.FinalOptimization: this still
// satisfies the one hard contract spec §4.5 actually states for
// property_requirements ("must run last among ALL analysis passes" — it
// remains the last analysis pass to run, full stop), while letting the last
// optimizer group see its output.
var (
	InitialOptimization = []Pass{
		TrivialWithElimination,
		CollectUnwindCancellation,
	}

	FinalOptimization = []Pass{
		FilterIntoGraphRelation,
		ViewScanFilterCleanup,
		FilterPushdown,
		ProjectionPushdown,
		UnionPruning,
	}
)
