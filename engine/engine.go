// Package engine wires the compilation stages (catalog, parser, plan
// builder, analyzer/optimizer lockstep, render, SQL emission) into the two
// entrypoints spec §6 names: Compile and CompileSQLOnly. It is the only
// package permitted to import every other package in this module — every
// other stage only knows its neighbors.
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/genezhang/clickgraph/analyzer"
	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/cgerrors"
	"github.com/genezhang/clickgraph/optimizer"
	"github.com/genezhang/clickgraph/parser"
	"github.com/genezhang/clickgraph/plan"
	"github.com/genezhang/clickgraph/render"
	"github.com/genezhang/clickgraph/sqlgen"
)

// Result is what Compile returns: the emitted SQL text plus the correlation
// id every error/log line raised during this compilation was tagged with.
type Result struct {
	SQL     string
	QueryID string
}

// PlanExplanation is the output of CompilePlan (SPEC_FULL.md "EXPLAIN-shaped
// introspection"): a textual, indented dump of both IRs the compiler builds
// on the way to SQL, useful for verifying pass ordering (spec §4.5) and join
// topology (spec §8) without executing anything.
type PlanExplanation struct {
	QueryID     string
	LogicalPlan string
	RenderPlan  string
	SQL         string
}

// CompilePlan runs the same pipeline as Compile but additionally captures the
// fully analyzed/optimized logical plan and the render plan as indented text
// dumps (plan.Sprint / render.Sprint), rather than discarding them once SQL
// is emitted. It is a read-only introspection entry point alongside the two
// spec §6 entrypoints, not a third compilation contract: the emitted SQL is
// identical to what Compile would have produced for the same input.
func CompilePlan(query string, reg *catalog.Registry, params map[string]interface{}) (*PlanExplanation, error) {
	return compilePlan(query, reg.Current(), params)
}

func compilePlan(query string, cat *catalog.Catalog, params map[string]interface{}) (*PlanExplanation, error) {
	queryID := cgerrors.NewQueryID()
	log := logrus.WithField("query_id", queryID)
	log.WithField("query", query).Debug("compiling query (explain)")

	q, err := parser.Parse(query)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "parser", err, nil)
	}

	q, err = substituteParams(q, params)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "engine", err, nil)
	}

	pc := plan.NewPlanContext()
	logical, err := plan.NewBuilder(pc).Build(q)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "plan", err, nil)
	}

	logical, err = runLockstep(logical, cat, pc, queryID)
	if err != nil {
		return nil, err
	}

	rp, err := render.NewBuilder(cat, pc, queryID).Build(logical)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "render", err, nil)
	}

	sql, err := sqlgen.Emit(rp, queryID)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "sqlgen", err, nil)
	}

	return &PlanExplanation{
		QueryID:     queryID,
		LogicalPlan: plan.Sprint(logical),
		RenderPlan:  render.Sprint(rp),
		SQL:         sql,
	}, nil
}

// Compile runs the full pipeline over query text against the catalog held by
// reg, substituting params, and returns the ClickHouse SQL text (spec §6
// "compile"). reg is read once via Current(), so a concurrent schema reload
// cannot affect an in-flight compilation (spec §5).
func Compile(query string, reg *catalog.Registry, params map[string]interface{}) (*Result, error) {
	return compile(query, reg.Current(), params)
}

// CompileSQLOnly is identical to Compile but takes an already-resolved
// *catalog.Catalog directly, for callers (tests, tooling) that don't want to
// go through a Registry (spec §6 "compile_sql_only").
func CompileSQLOnly(query string, cat *catalog.Catalog, params map[string]interface{}) (string, error) {
	res, err := compile(query, cat, params)
	if err != nil {
		return "", err
	}
	return res.SQL, nil
}

func compile(query string, cat *catalog.Catalog, params map[string]interface{}) (*Result, error) {
	logrus.WithField("query", query).Debug("compiling query")
	explained, err := compilePlan(query, cat, params)
	if err != nil {
		return nil, err
	}
	logrus.WithField("query_id", explained.QueryID).WithField("sql", explained.SQL).Debug("compiled query")
	return &Result{SQL: explained.SQL, QueryID: explained.QueryID}, nil
}

// runLockstep drives the three-phase analyzer/optimizer interleaving (spec
// §4.5): InitialAnalysis -> InitialOptimization -> IntermediateAnalysis ->
// FinalAnalysis -> FinalOptimization. See the doc comment in
// optimizer/pipeline.go for why FinalAnalysis is run before
// FinalOptimization despite the spec text's literal phase-name ordering.
func runLockstep(n plan.Node, cat *catalog.Catalog, pc *plan.PlanContext, queryID string) (plan.Node, error) {
	actx := analyzer.DefaultRunContext(cat, pc, queryID)
	octx := optimizer.DefaultRunContext(cat, pc, queryID)

	n, err := analyzer.RunGroup(analyzer.InitialAnalysis, n, actx)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "analyzer", err, nil)
	}
	n, err = optimizer.RunGroup(optimizer.InitialOptimization, n, octx)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "optimizer", err, nil)
	}
	n, err = analyzer.RunGroup(analyzer.IntermediateAnalysis, n, actx)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "analyzer", err, nil)
	}
	n, err = analyzer.RunGroup(analyzer.FinalAnalysis, n, actx)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "analyzer", err, nil)
	}
	n, err = optimizer.RunGroup(optimizer.FinalOptimization, n, octx)
	if err != nil {
		return nil, cgerrors.Wrap(queryID, "optimizer", err, nil)
	}
	return n, nil
}
