package sqlgen

import (
	"strings"

	"github.com/genezhang/clickgraph/ast"
)

// functionSpec is one entry in the Cypher-to-ClickHouse function translation
// registry (spec §4.5 "Function translation"): name is the ClickHouse
// function to emit, wrap lets a function (range) reshape the call rather
// than just rename it. count(*) is special-cased in functionCallSQL.
type functionSpec struct {
	name string
	wrap func(args []string) string
}

// functionRegistry holds arity-agnostic direct renames plus the small set of
// functions whose ClickHouse shape differs enough from Cypher's to need a
// custom wrap (range, whose upper bound ClickHouse treats as exclusive).
// Aggregates such as collect -> groupArray are plain renames.
var functionRegistry = map[string]functionSpec{
	"count":      {name: "count"},
	"sum":        {name: "sum"},
	"avg":        {name: "avg"},
	"min":        {name: "min"},
	"max":        {name: "max"},
	"collect":    {name: "groupArray"},
	"tolower":    {name: "lower"},
	"toupper":    {name: "upper"},
	"tostring":   {name: "toString"},
	"tointeger":  {name: "toInt64OrNull"},
	"tofloat":    {name: "toFloat64OrNull"},
	"toboolean":  {name: "toBool"},
	"abs":        {name: "abs"},
	"ceil":       {name: "ceil"},
	"floor":      {name: "floor"},
	"round":      {name: "round"},
	"sqrt":       {name: "sqrt"},
	"trim":       {name: "trimBoth"},
	"ltrim":      {name: "trimLeft"},
	"rtrim":      {name: "trimRight"},
	"replace":    {name: "replaceAll"},
	"substring":  {name: "substring"},
	"left":       {name: "substring"},
	"coalesce":   {name: "coalesce"},
	"reverse":    {name: "reverse"},
	"split":      {name: "splitByString"},
	"year":       {name: "toYear"},
	"month":      {name: "toMonth"},
	"day":        {name: "toDayOfMonth"},
	"range": {name: "range", wrap: func(args []string) string {
		// Cypher range() is inclusive of both bounds; ClickHouse's range()
		// excludes the upper bound, so widen it by one when a stop is given.
		if len(args) == 2 {
			return "range(" + args[0] + ", (" + args[1] + ") + 1)"
		}
		if len(args) == 3 {
			return "range(" + args[0] + ", (" + args[1] + ") + 1, " + args[2] + ")"
		}
		return "range(" + strings.Join(args, ", ") + ")"
	}},
}

// lengthOrSize renames functions whose Cypher arity collapses onto a
// ClickHouse function named differently depending on the subject's runtime
// shape (string length vs. collection length both spell "size"/"length" in
// Cypher but split into two ClickHouse functions). Render hands the emitter
// no static type, so both resolve to ClickHouse's overload-agnostic
// `length`, which already dispatches on argument type.
func lengthOrSize(args []string) string {
	return "length(" + strings.Join(args, ", ") + ")"
}

func functionCallSQL(v *ast.FunctionCall, queryID string) (string, error) {
	name := strings.ToLower(v.Name)
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		s, err := exprSQL(a, queryID)
		if err != nil {
			return "", err
		}
		args[i] = s
	}

	if name == "length" || name == "size" {
		return lengthOrSize(args), nil
	}
	if name == "count" && len(v.Args) == 1 {
		if star, ok := v.Args[0].(*ast.Variable); ok && star.Name == "*" {
			return "count()", nil
		}
	}

	spec, ok := functionRegistry[name]
	if !ok {
		return "", wrapErrExpr(queryID, "function "+v.Name+" has no ClickHouse translation")
	}
	if spec.wrap != nil {
		return spec.wrap(args), nil
	}
	prefix := ""
	if v.Distinct {
		prefix = "DISTINCT "
	}
	return spec.name + "(" + prefix + strings.Join(args, ", ") + ")", nil
}
