// Package bpmn decodes BPMN 2.0 XML documents into the diagram model.
package bpmn

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/pkg/schema"
)

// element is a generic XML element. BPMN nests many optional extension
// elements, so the decoder walks a raw tree instead of binding every type.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (e *element) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (e *element) child(local string) *element {
	for i := range e.Children {
		if e.Children[i].XMLName.Local == local {
			return &e.Children[i]
		}
	}
	return nil
}

var taskElements = map[string]diagram.NodeKind{
	"task":             diagram.NodeKindTask,
	"userTask":         diagram.NodeKindTask,
	"manualTask":       diagram.NodeKindTask,
	"serviceTask":      diagram.NodeKindTask,
	"sendTask":         diagram.NodeKindTask,
	"receiveTask":      diagram.NodeKindTask,
	"businessRuleTask": diagram.NodeKindTask,
	"scriptTask":       diagram.NodeKindScriptTask,
}

// Flow nodes that exist in BPMN but cannot run on a sequential engine.
var unsupportedElements = map[string]bool{
	"parallelGateway":        true,
	"inclusiveGateway":       true,
	"eventBasedGateway":      true,
	"complexGateway":         true,
	"subProcess":             true,
	"adHocSubProcess":        true,
	"transaction":            true,
	"callActivity":           true,
	"intermediateCatchEvent": true,
	"intermediateThrowEvent": true,
	"boundaryEvent":          true,
}

// Decode parses a BPMN 2.0 document. The executable process (or the first
// process when none is marked executable) becomes the diagram; its name is
// the diagram title.
func Decode(data []byte) (*diagram.Diagram, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode over an io.Reader.
func DecodeReader(r io.Reader) (*diagram.Diagram, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "invalid BPMN XML").WithCause(err)
	}
	if root.XMLName.Local != "definitions" {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "expected <definitions> root element, got <%s>", root.XMLName.Local)
	}

	proc := pickProcess(&root)
	if proc == nil {
		return nil, schema.NewError(schema.ErrCodeParse, "document contains no <process> element")
	}
	return decodeProcess(proc)
}

func pickProcess(root *element) *element {
	var first *element
	for i := range root.Children {
		c := &root.Children[i]
		if c.XMLName.Local != "process" {
			continue
		}
		if c.attr("isExecutable") == "true" {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

func decodeProcess(proc *element) (*diagram.Diagram, error) {
	b := diagram.NewBuilder(strings.TrimSpace(proc.attr("name")))

	// Defaults and flow counts are needed before gateways can be classified.
	defaults := make(map[string]bool)
	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for i := range proc.Children {
		c := &proc.Children[i]
		if c.XMLName.Local == "sequenceFlow" {
			incoming[c.attr("targetRef")]++
			outgoing[c.attr("sourceRef")]++
			continue
		}
		if d := c.attr("default"); d != "" {
			defaults[d] = true
		}
	}

	for i := range proc.Children {
		c := &proc.Children[i]
		local := c.XMLName.Local
		id := c.attr("id")
		name := strings.TrimSpace(c.attr("name"))

		switch {
		case local == "startEvent":
			b.AddNode(diagram.Node{ID: id, Name: name, Kind: diagram.NodeKindStart, Element: local})
		case local == "endEvent":
			b.AddNode(diagram.Node{ID: id, Name: name, Kind: diagram.NodeKindEnd, Element: local})
		case taskElements[local] != "":
			kind := taskElements[local]
			if c.child("standardLoopCharacteristics") != nil || c.child("multiInstanceLoopCharacteristics") != nil {
				kind = diagram.NodeKindUnsupported
			}
			b.AddNode(diagram.Node{ID: id, Name: name, Kind: kind, Element: local})
		case local == "exclusiveGateway":
			b.AddNode(diagram.Node{ID: id, Name: name, Kind: gatewayKind(c, incoming[id], outgoing[id]), Element: local})
		case unsupportedElements[local]:
			b.AddNode(diagram.Node{ID: id, Name: name, Kind: diagram.NodeKindUnsupported, Element: local})
		case local == "sequenceFlow":
			f := diagram.Flow{
				ID:      id,
				Source:  c.attr("sourceRef"),
				Target:  c.attr("targetRef"),
				Default: defaults[id],
			}
			if cond := c.child("conditionExpression"); cond != nil {
				f.Condition = strings.TrimSpace(cond.Text)
			}
			b.AddFlow(f)
		}
	}

	return b.Build()
}

// gatewayKind honours an explicit gatewayDirection and otherwise infers the
// direction from the flow counts.
func gatewayKind(e *element, in, out int) diagram.NodeKind {
	switch e.attr("gatewayDirection") {
	case "Diverging":
		return diagram.NodeKindDivergingGateway
	case "Converging":
		return diagram.NodeKindConvergingGateway
	case "Mixed":
		return diagram.NodeKindUnsupported
	}
	return diagram.GatewayKind(in, out)
}
