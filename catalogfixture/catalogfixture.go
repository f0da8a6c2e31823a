// Package catalogfixture loads a *catalog.Catalog from YAML, for tests that
// want to describe a schema variant (Standard, FkEdge, Denormalized,
// Polymorphic, MixedDenormalized) declaratively rather than constructing
// *catalog.NodeSchema/*catalog.EdgeSchema literals by hand.
package catalogfixture

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/genezhang/clickgraph/catalog"
	"github.com/genezhang/clickgraph/cgerrors"
)

type document struct {
	Nodes []nodeDoc `yaml:"nodes"`
	Edges []edgeDoc `yaml:"edges"`
}

type nodeDoc struct {
	Label        string            `yaml:"label"`
	Database     string            `yaml:"database"`
	Table        string            `yaml:"table"`
	IDColumns    []string          `yaml:"id_columns"`
	Properties   map[string]string `yaml:"properties"`
	Denormalized bool              `yaml:"denormalized"`
}

type edgeEndpointDoc struct {
	NodeLabel string `yaml:"node_label"`
	IDColumn  string `yaml:"id_column"`
}

type edgeDoc struct {
	Type     string `yaml:"type"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	Virtual  bool   `yaml:"virtual"`

	From edgeEndpointDoc `yaml:"from"`
	To   edgeEndpointDoc `yaml:"to"`

	TypeColumn string `yaml:"type_column"`
	TypeValue  string `yaml:"type_value"`

	DenormalizedFromProperties map[string]string `yaml:"denormalized_from_properties"`
	DenormalizedToProperties   map[string]string `yaml:"denormalized_to_properties"`

	// FKJoinSide is "left" or "right"; meaningful only when virtual is true.
	FKJoinSide string `yaml:"fk_join_side"`
}

// Load reads a YAML schema fixture from path and builds a *catalog.Catalog.
func Load(path string) (*catalog.Catalog, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, cgerrors.ErrSchemaResolution.New(err.Error())
	}
	return LoadBytes(data)
}

// LoadBytes builds a *catalog.Catalog from an in-memory YAML schema document
// (spec §3.1's node/edge schema shapes), used by tests that embed fixture
// YAML as a Go string literal rather than reading a file.
func LoadBytes(data []byte) (*catalog.Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cgerrors.ErrSchemaResolution.New(err.Error())
	}

	nodes := make([]*catalog.NodeSchema, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodes = append(nodes, &catalog.NodeSchema{
			Label:        n.Label,
			Database:     n.Database,
			Table:        n.Table,
			IDColumns:    n.IDColumns,
			Properties:   n.Properties,
			Denormalized: n.Denormalized,
		})
	}

	edges := make([]*catalog.EdgeSchema, 0, len(doc.Edges))
	for _, e := range doc.Edges {
		side := catalog.JoinSideNone
		switch e.FKJoinSide {
		case "left":
			side = catalog.JoinSideLeft
		case "right":
			side = catalog.JoinSideRight
		}
		edges = append(edges, &catalog.EdgeSchema{
			Type:     e.Type,
			Database: e.Database,
			Table:    e.Table,
			Virtual:  e.Virtual,
			From:     catalog.EdgeEndpoint{NodeLabel: e.From.NodeLabel, IDColumn: e.From.IDColumn},
			To:       catalog.EdgeEndpoint{NodeLabel: e.To.NodeLabel, IDColumn: e.To.IDColumn},

			TypeColumn: e.TypeColumn,
			TypeValue:  e.TypeValue,

			DenormalizedFromProperties: e.DenormalizedFromProperties,
			DenormalizedToProperties:   e.DenormalizedToProperties,

			FKJoinSide: side,
		})
	}

	return catalog.New(nodes, edges), nil
}
