package diagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/flowreader/pkg/schema"
)

// ImageFormat selects the graphviz output format.
type ImageFormat string

const (
	ImagePNG ImageFormat = "png"
	ImageSVG ImageFormat = "svg"
)

// RenderImage renders a diagram with graphviz. Task nodes are annotated from
// tasks when it is not nil.
func RenderImage(ctx context.Context, d *Diagram, tasks *schema.TaskTable, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case ImagePNG, "":
		gvFormat = graphviz.PNG
	case ImageSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if d.Title() != "" {
		graph.SetLabel(d.Title())
	}

	gvNodes := make(map[string]*cgraph.Node)
	for _, n := range d.Nodes() {
		gvNode, nErr := graph.CreateNodeByName(n.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", n.ID, nErr)
		}
		gvNode.SetLabel(strings.Join(nodeLines(n, tasks), "\n"))
		applyNodeStyle(gvNode, n, tasks)
		gvNodes[n.ID] = gvNode
	}

	for _, f := range d.Flows() {
		e, eErr := graph.CreateEdgeByName(f.ID, gvNodes[f.Source], gvNodes[f.Target])
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s: %w", f.ID, eErr)
		}
		if l := flowLabel(f); l != "" {
			e.SetLabel(l)
		}
		if f.Default {
			e.SetStyle(cgraph.DashedEdgeStyle)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// applyNodeStyle sets the shape by kind and highlights last and unsupported
// nodes.
func applyNodeStyle(gvNode *cgraph.Node, n Node, tasks *schema.TaskTable) {
	switch n.Kind {
	case NodeKindTask:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindScriptTask:
		gvNode.SetShape(cgraph.Box3DShape)
	case NodeKindDivergingGateway, NodeKindConvergingGateway:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindStart:
		gvNode.SetShape(cgraph.CircleShape)
	case NodeKindEnd:
		gvNode.SetShape(cgraph.DoubleCircleShape)
	case NodeKindUnsupported:
		gvNode.SetShape(cgraph.OctagonShape)
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	}

	if tasks == nil || !n.Kind.IsTask() {
		return
	}
	if info, ok := tasks.Get(n.ID); ok && info.Last {
		gvNode.SetPenWidth(3)
		gvNode.SetColor("#2d6a2d")
	}
}
