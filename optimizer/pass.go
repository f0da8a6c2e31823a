// Package optimizer implements the purely rewrite-driven second half of the
// compilation pipeline (spec §4.4): no new information is derived here, but
// the plan is reshaped for SQL efficiency and for the correctness of
// downstream analyzer passes run in the next lockstep phase (spec §4.5).
// Passes never mutate a tree in place; each returns a replacement built via
// plan.Transform, matching the analyzer package's convention (spec §5).
package optimizer

import (
	"github.com/mitchellh/hashstructure"
	"github.com/sirupsen/logrus"

	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/plan"
)

// RunContext mirrors analyzer.RunContext: the catalog is read-only and
// shared, and a *plan.PlanContext carries the scope chain and registries
// built up during analysis.
type RunContext struct {
	Catalog *catalog.Catalog
	Plan    *plan.PlanContext
	QueryID string

	Log *logrus.Entry
}

func DefaultRunContext(cat *catalog.Catalog, pc *plan.PlanContext, queryID string) *RunContext {
	return &RunContext{
		Catalog: cat,
		Plan:    pc,
		QueryID: queryID,
		Log:     logrus.WithField("query_id", queryID),
	}
}

type Pass struct {
	Name  string
	Apply func(plan.Node, *RunContext) (plan.Node, bool, error)
}

// Run mirrors analyzer.Run's idempotence cross-check (spec §8: "a pass that
// finds nothing to change must return Changed=false").
func Run(p Pass, n plan.Node, rctx *RunContext) (plan.Node, bool, error) {
	before, _ := hashstructure.Hash(plan.Sprint(n), nil)
	out, changed, err := p.Apply(n, rctx)
	if err != nil {
		rctx.Log.WithField("pass", p.Name).WithError(err).Debug("optimizer pass failed")
		return nil, false, err
	}
	after, _ := hashstructure.Hash(plan.Sprint(out), nil)
	if !changed && before != after {
		rctx.Log.WithField("pass", p.Name).Warn("pass reported no change but tree hash differs")
	}
	rctx.Log.WithField("pass", p.Name).WithField("changed", changed).Debug("optimizer pass complete")
	return out, changed, nil
}

const maxFixedPointIterations = 8

// RunGroup mirrors analyzer.RunGroup: iterate the group to a fixed point
// (bounded), since e.g. filter pushdown exposing a smaller single-scan
// predicate can make union pruning newly applicable.
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
