// Package analyzer implements the ordered sequence of passes that enrich a
// freshly-built logical plan with schema, type, join-topology, and scoping
// information (spec §4.3). Every pass is a pure function
// (plan, ctx) -> (plan', ctx', changed?); order is load-bearing (spec §4.3,
// §4.5) and encoded by Pipeline, not left to caller discretion.
package analyzer

import (
	"github.com/mitchellh/hashstructure"
	"github.com/sirupsen/logrus"

	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// RunContext bundles everything a pass may read besides the plan itself:
// the immutable catalog, the per-query plan context (scope chain, variable
// registry, CTE schemas, VLP endpoints), and tunable caps referenced by
// spec §4.3 (type-inference explosion, pattern-expansion branch count,
// variable-length path bound).
type RunContext struct {
	Catalog *catalog.Catalog
	Plan    *plan.PlanContext
	QueryID string

	TypeInferenceCap int
	PatternBranchCap int
	MaxVarLength     int

	Log *logrus.Entry
}

func DefaultRunContext(cat *catalog.Catalog, pc *plan.PlanContext, queryID string) *RunContext {
	return &RunContext{
		Catalog:          cat,
		Plan:             pc,
		QueryID:          queryID,
		TypeInferenceCap: 16,
		PatternBranchCap: 32,
		MaxVarLength:     50,
		Log:              logrus.WithField("query_id", queryID),
	}
}

// Pass is one named, ordered analyzer transformation.
type Pass struct {
	Name  string
	Apply func(plan.Node, *RunContext) (plan.Node, bool, error)
}

// Run applies one pass and cross-checks its reported Changed flag against a
// structural hash of the before/after tree (domain-stack use of
// hashstructure): a pass that reports Changed=false but produced a
// structurally different tree is logged as a warning; no error is returned
// (spec §8 idempotence property: "a pass that finds nothing to change must
// return Changed=false").
func Run(p Pass, n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	before, _ := hashstructure.Hash(describe(n), nil)
	out, changed, err := p.Apply(n, rctx)
	if err != nil {
		rctx.Log.WithField("pass", p.Name).WithError(err).Debug("analyzer pass failed")
		return nil, false, err
	}
	after, _ := hashstructure.Hash(describe(out), nil)
	if !changed && before != after {
		rctx.Log.WithField("pass", p.Name).Warn("pass reported no change but tree hash differs")
	}
	rctx.Log.WithField("pass", p.Name).WithField("changed", changed).Debug("analyzer pass complete")
	return out, changed, nil
}

// describe produces a hash-stable structural summary of n; hashstructure
// cannot hash the plan.Node interface tree directly (unexported fields,
// interface values), so each pass run hashes a cheap printed form instead.
func describe(n plan.Node) string {
	return plan.Sprint(n)
}
