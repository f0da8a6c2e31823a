// Package catalog holds the graph schema and resolves Cypher labels and
// property names to the physical tables and columns that back them. Every
// later stage of the pipeline treats a *Catalog as an immutable, read-only,
// long-lived dependency (spec §3.1, §5): it is safe to share across
// concurrent compilations without locking, and reloaded only via a wholesale
// atomic swap performed outside of any in-flight query (see Registry below).
package catalog

import (
	"fmt"

	"github.com/genezhang/clickgraph/cgerrors"
)

// JoinSide names which endpoint of an FK-edge pattern is itself the edge
// table (spec §3.1, §4.3 pass 7).
type JoinSide int

const (
	JoinSideNone JoinSide = iota
	JoinSideLeft
	JoinSideRight
)

// NodeSchema describes a labeled node type: its physical table (unless it is
// Denormalized, in which case it has none) and its property mapping.
type NodeSchema struct {
	Label      string
	Database   string
	Table      string
	IDColumns  []string // composite identity allowed; usually len==1
	Properties map[string]string // Cypher property name -> physical column

	// Denormalized is true when this label has no standalone table: its
	// instances materialize only as a projection of some edge table
	// (virtual node, spec §3.1).
	Denormalized bool
}

// CompositeIdentity reports whether this node's identity spans more than one
// physical column (spec §1 "Composite node identity").
func (n *NodeSchema) CompositeIdentity() bool { return len(n.IDColumns) > 1 }

// Column resolves a Cypher property name to its physical column, satisfying
// catalog invariant (a): every property used in a query must resolve via
// property_mapping to a physical column.
func (n *NodeSchema) Column(property string) (string, error) {
	col, ok := n.Properties[property]
	if !ok {
		return "", cgerrors.ErrSchemaResolution.New(
			fmt.Sprintf("label %q has no property %q", n.Label, property))
	}
	return col, nil
}

// EdgeEndpoint names one side of a relationship: the node label it connects
// to and the column on the edge (or FK-carrying node) table that holds the
// foreign key.
type EdgeEndpoint struct {
	NodeLabel string
	IDColumn  string
}

// EdgeSchema describes a relationship type. Virtual is true for FK-edges:
// there is no dedicated edge table, and the foreign key instead lives on one
// of the node tables (spec §3.1).
type EdgeSchema struct {
	Type     string
	Database string
	Table    string
	Virtual  bool

	From EdgeEndpoint
	To   EdgeEndpoint

	// TypeColumn is set for polymorphic edges: one physical table carries
	// many Cypher relationship types, discriminated by this column's value
	// (spec §3.1).
	TypeColumn string
	TypeValue  string

	// DenormalizedFromProperties / DenormalizedToProperties map Cypher
	// property names on the endpoint nodes to columns on this edge table,
	// when that endpoint is itself denormalized/virtual.
	DenormalizedFromProperties map[string]string
	DenormalizedToProperties   map[string]string

	// FKJoinSide is meaningful only when Virtual is true: it names which
	// endpoint node's table literally carries the foreign key column, i.e.
	// which endpoint IS the "edge table" for join-emission purposes.
	FKJoinSide JoinSide
}

func (e *EdgeSchema) Polymorphic() bool { return e.TypeColumn != "" }

// Catalog is the read-only, process-wide schema handle threaded through
// every pipeline stage.
type Catalog struct {
	nodes map[string]*NodeSchema
	edges map[string]*EdgeSchema
}

// New builds a Catalog from already-resolved node/edge schemas. Production
// and test loaders (catalogfixture) build these slices from YAML and call
// New; the production schema-YAML loader itself is an external collaborator
// out of scope for this module (spec §1).
func New(nodes []*NodeSchema, edges []*EdgeSchema) *Catalog {
	c := &Catalog{
		nodes: make(map[string]*NodeSchema, len(nodes)),
		edges: make(map[string]*EdgeSchema, len(edges)),
	}
	for _, n := range nodes {
		c.nodes[n.Label] = n
	}
	for _, e := range edges {
		c.edges[e.Type] = e
	}
	return c
}

func (c *Catalog) Node(label string) (*NodeSchema, error) {
	n, ok := c.nodes[label]
	if !ok {
		return nil, cgerrors.ErrSchemaResolution.New(fmt.Sprintf("unknown label %q", label))
	}
	return n, nil
}

func (c *Catalog) Edge(edgeType string) (*EdgeSchema, error) {
	e, ok := c.edges[edgeType]
	if !ok {
		return nil, cgerrors.ErrSchemaResolution.New(fmt.Sprintf("unknown relationship type %q", edgeType))
	}
	return e, nil
}

// EdgesBetween returns every edge type whose endpoints are compatible with
// the given (possibly empty) from/to label constraints, used by type
// inference (spec §4.3 pass 2) and pattern resolution (pass 3).
func (c *Catalog) EdgesBetween(fromLabel, toLabel string) []*EdgeSchema {
	var out []*EdgeSchema
	for _, e := range c.edges {
		if fromLabel != "" && e.From.NodeLabel != fromLabel {
			continue
		}
		if toLabel != "" && e.To.NodeLabel != toLabel {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Registry is an atomically-swappable Catalog holder: concurrent
// compilations read through Registry.Current() without locking; a schema
// reload calls Swap with a wholesale new Catalog (spec §5 "Schema reload is
// a wholesale atomic swap performed outside of any in-flight query").
type Registry struct {
	ptr atomicCatalogPtr
}

func NewRegistry(initial *Catalog) *Registry {
	r := &Registry{}
	r.ptr.store(initial)
	return r
}

func (r *Registry) Current() *Catalog { return r.ptr.load() }
func (r *Registry) Swap(next *Catalog) { r.ptr.store(next) }
