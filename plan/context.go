package plan

import (
	"github.com/genezhang/clickgraph/ast"
	"github.com/genezhang/clickgraph/cgerrors"
)

// VariableKind types every alias bound anywhere in the query (spec §3.4).
type VariableKind int

const (
	VarNode VariableKind = iota
	VarRelationship
	VarScalar
	VarPath
	VarCollection
)

// TableContext is one scope-chain record: everything known about one
// variable alias (spec §3.4).
type TableContext struct {
	Alias      string
	Labels     []string
	Properties map[string]bool // properties observed (read) on this alias
	PropertyMapping map[string]string // Cypher property -> physical column, once resolved
	IsCTERef   bool
	CTEName    string
}

// CTESchema records the column names and derivations of one materialized
// CTE (spec §3.4, §4.6 Job 1): NodeColumns maps an exported node alias to
// its namespaced {alias}_{column} columns (one per required property plus
// the id column), ScalarColumns maps a scalar alias directly to its single
// {alias} column.
type CTESchema struct {
	Name          string
	NodeColumns   map[string]map[string]string // alias -> (property -> cte column)
	NodeIDColumn  map[string]string            // alias -> cte column holding identity
	ScalarColumns map[string]string            // alias -> cte column
}

// VLPEndpoint records the start/end column names a variable-length path's
// recursive CTE exposes for one bound alias, used as the Job 2 fallback
// source of a node alias's identity column when no GraphNode scan exists
// for it (spec §4.6 Job 2, §4.9 VLP naming).
type VLPEndpoint struct {
	CTEName    string
	StartAlias string
	EndAlias   string
	// RefAlias is the table alias the render plan gave the CTE reference in
	// the FROM clause it built (e.g. "h1" in "FROM vlp_a_b AS h1"); Job 2
	// qualifies StartAlias/EndAlias with it to build a column reference.
	RefAlias string
}

// scope is one WITH-bounded link in the scope chain (spec §3.4): lookup
// halts at the nearest enclosing WithClause boundary.
type scope struct {
	tables  map[string]*TableContext
	parent  *scope
	barrier bool // true if this scope was opened by a WithClause
}

// PlanContext is the process-wide-per-query side table threaded alongside
// the logical plan (spec §3.4). It is created fresh at the start of
// evaluate and discarded after SQL emission (spec §3.6); it is never
// shared across compilations.
type PlanContext struct {
	current    *scope
	variables  map[string]VariableKind
	cteSchemas map[string]*CTESchema
	vlpEndpoints map[string]*VLPEndpoint
}

// NewPlanContext opens the root (non-WITH-bounded) scope.
func NewPlanContext() *PlanContext {
	return &PlanContext{
		current:      &scope{tables: map[string]*TableContext{}},
		variables:    map[string]VariableKind{},
		cteSchemas:   map[string]*CTESchema{},
		vlpEndpoints: map[string]*VLPEndpoint{},
	}
}

// OpenScope pushes a new WITH-bounded scope containing exactly the given
// exported aliases, carried over from the enclosing scope (spec §3.4, §8:
// "the set of aliases visible downstream equals exactly its
// exported_aliases; no alias from a prior scope leaks").
func (pc *PlanContext) OpenScope(exported []string) error {
	next := &scope{tables: map[string]*TableContext{}, parent: pc.current, barrier: true}
	for _, alias := range exported {
		tc, err := pc.Lookup(alias)
		if err != nil {
			return err
		}
		next.tables[alias] = tc
	}
	pc.current = next
	return nil
}

// CloseScope pops back to the enclosing scope; used when a pass needs to
// process a WithClause's Next subtree and then return to processing Child.
func (pc *PlanContext) CloseScope() {
	if pc.current.parent != nil {
		pc.current = pc.current.parent
	}
}

// Bind registers a new alias in the current scope.
func (pc *PlanContext) Bind(alias string, kind VariableKind, labels []string) *TableContext {
	tc := &TableContext{Alias: alias, Labels: labels, Properties: map[string]bool{}, PropertyMapping: map[string]string{}}
	pc.current.tables[alias] = tc
	pc.variables[alias] = kind
	return tc
}

// Lookup resolves alias in the current scope only (does not cross the
// nearest WITH boundary upward past a barrier, per spec §3.4's "variable
// lookup halts at the nearest enclosing WITH boundary" — the current scope
// already contains exactly the carried-over exported set, so a single-level
// lookup here enforces the halt).
func (pc *PlanContext) Lookup(alias string) (*TableContext, error) {
	if tc, ok := pc.current.tables[alias]; ok {
		return tc, nil
	}
	return nil, cgerrors.ErrScope.New("alias " + alias + " is not visible in the enclosing scope")
}

func (pc *PlanContext) VariableKind(alias string) (VariableKind, bool) {
	k, ok := pc.variables[alias]
	return k, ok
}

func (pc *PlanContext) RegisterCTESchema(s *CTESchema) { pc.cteSchemas[s.Name] = s }
func (pc *PlanContext) CTESchema(name string) (*CTESchema, bool) {
	s, ok := pc.cteSchemas[name]
	return s, ok
}

// AllCTENames returns every CTE name registered so far, used to mint
// disambiguated names for newly-materialized CTEs.
func (pc *PlanContext) AllCTENames() []string {
	names := make([]string, 0, len(pc.cteSchemas))
	for name := range pc.cteSchemas {
		names = append(names, name)
	}
	return names
}

func (pc *PlanContext) RegisterVLPEndpoint(alias string, ep *VLPEndpoint) { pc.vlpEndpoints[alias] = ep }
func (pc *PlanContext) VLPEndpoint(alias string) (*VLPEndpoint, bool) {
	ep, ok := pc.vlpEndpoints[alias]
	return ep, ok
}

// exprVariables collects every Variable name referenced anywhere inside expr,
// used by several analyzer passes (scope resolution, property-requirements).
func ExprVariables(expr ast.Expression, into map[string]bool) {
	switch e := expr.(type) {
	case *ast.Variable:
		into[e.Name] = true
	case *ast.PropertyAccess:
		ExprVariables(e.Subject, into)
	case *ast.FunctionCall:
		for _, a := range e.Args {
			ExprVariables(a, into)
		}
	case *ast.BinaryOp:
		ExprVariables(e.Left, into)
		ExprVariables(e.Right, into)
	case *ast.UnaryOp:
		ExprVariables(e.Operand, into)
	case *ast.IsNullCheck:
		ExprVariables(e.Operand, into)
	case *ast.CaseExpr:
		if e.Subject != nil {
			ExprVariables(e.Subject, into)
		}
		for _, w := range e.Whens {
			ExprVariables(w.Condition, into)
			ExprVariables(w.Result, into)
		}
		if e.Else != nil {
			ExprVariables(e.Else, into)
		}
	case *ast.ListLiteral:
		for _, it := range e.Items {
			ExprVariables(it, into)
		}
	case *ast.MapLiteral:
		for _, v := range e.Values {
			ExprVariables(v, into)
		}
	case *ast.ListComprehension:
		ExprVariables(e.Source, into)
	}
}
