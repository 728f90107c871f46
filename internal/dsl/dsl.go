// Package dsl reads and writes the YAML diagram format, a compact
// alternative to BPMN XML for hand-written workflows:
//
//	title: review
//	nodes:
//	  - {id: start, kind: start}
//	  - {id: draft, kind: task, name: Draft}
//	  - {id: end, kind: end}
//	flows:
//	  - {source: start, target: draft}
//	  - {source: draft, target: end}
package dsl

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/validation"
	"github.com/rendis/flowreader/pkg/schema"
)

// KindGateway is an exclusive gateway whose direction is inferred from its
// flow counts.
const KindGateway = "gateway"

// Document is the YAML structure.
type Document struct {
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Nodes       []NodeYAML `yaml:"nodes" json:"nodes"`
	Flows       []FlowYAML `yaml:"flows" json:"flows"`
}

type NodeYAML struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Kind string `yaml:"kind" json:"kind"`
}

type FlowYAML struct {
	ID        string `yaml:"id,omitempty" json:"id,omitempty"`
	Source    string `yaml:"source" json:"source"`
	Target    string `yaml:"target" json:"target"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
	Default   bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

var documentValidator = sync.OnceValues(func() (validation.Validator, error) {
	return validation.NewJSONSchemaValidator()
})

// Decode parses and validates a YAML document and builds the diagram.
func Decode(data []byte) (*diagram.Diagram, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Diagram()
}

// Parse parses a YAML document and validates it against the document
// schema, without building the diagram.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "invalid YAML").WithCause(err)
	}

	v, err := documentValidator()
	if err != nil {
		return nil, fmt.Errorf("load document schema: %w", err)
	}
	if err := v.ValidateDocument(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "invalid YAML").WithCause(err)
	}
	return &doc, nil
}

// Diagram builds the diagram model from the document.
func (doc *Document) Diagram() (*diagram.Diagram, error) {
	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for _, f := range doc.Flows {
		incoming[f.Target]++
		outgoing[f.Source]++
	}

	b := diagram.NewBuilder(doc.Title)
	for _, n := range doc.Nodes {
		kind := diagram.NodeKind(n.Kind)
		if n.Kind == KindGateway {
			kind = diagram.GatewayKind(incoming[n.ID], outgoing[n.ID])
		}
		b.AddNode(diagram.Node{ID: n.ID, Name: n.Name, Kind: kind, Element: n.Kind})
	}
	for _, f := range doc.Flows {
		b.AddFlow(diagram.Flow{ID: f.ID, Source: f.Source, Target: f.Target, Condition: f.Condition, Default: f.Default})
	}
	return b.Build()
}

// FromDiagram converts a diagram back into a document. Unsupported nodes
// cannot be expressed in YAML and are rejected.
func FromDiagram(d *diagram.Diagram) (*Document, error) {
	doc := &Document{Title: d.Title()}
	for _, n := range d.Nodes() {
		if n.Kind == diagram.NodeKindUnsupported {
			return nil, schema.NewErrorf(schema.ErrCodeUnsupportedBranch,
				"element %s (%s) has no YAML representation", n.ID, n.Element).WithTask(n.ID)
		}
		doc.Nodes = append(doc.Nodes, NodeYAML{ID: n.ID, Name: n.Name, Kind: string(n.Kind)})
	}
	for _, f := range d.Flows() {
		doc.Flows = append(doc.Flows, FlowYAML{ID: f.ID, Source: f.Source, Target: f.Target, Condition: f.Condition, Default: f.Default})
	}
	return doc, nil
}

// Encode renders a diagram as a YAML document.
func Encode(d *diagram.Diagram) ([]byte, error) {
	doc, err := FromDiagram(d)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}
