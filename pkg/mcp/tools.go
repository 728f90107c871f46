package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowreader/internal/diagram"
	"github.com/rendis/flowreader/internal/engine"
	"github.com/rendis/flowreader/internal/logging"
	"github.com/rendis/flowreader/internal/reader"
	"github.com/rendis/flowreader/internal/store"
	"github.com/rendis/flowreader/pkg/schema"
)

// handleRead reads a stored diagram into a workflow.
func (s *FlowServer) handleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}

	wf, readErr := s.reader.Read(ctx, id)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", readErr)), nil
	}
	return marshalResult(wf)
}

// handleRender draws a stored diagram, annotated with its task table when
// the diagram reads cleanly.
func (s *FlowServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	annotate := mcp.ParseBoolean(req, "annotate", true)

	ctx = logging.WithDiagramID(ctx, id)
	d, loadErr := s.reader.Load(ctx, id)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", loadErr)), nil
	}

	var tasks *schema.TaskTable
	if annotate {
		wf, readErr := reader.ReadDiagram(d)
		if readErr != nil {
			s.logger.DebugContext(ctx, "rendering without annotations", slog.String("error", readErr.Error()))
		} else {
			tasks = wf.Tasks
		}
	}

	switch format {
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(d, tasks)), nil
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(d, tasks)), nil
	case "png", "svg":
		img, imgErr := diagram.RenderImage(ctx, d, tasks, diagram.ImageFormat(format))
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		if format == "svg" {
			return mcp.NewToolResultText(string(img)), nil
		}
		return mcp.NewToolResultImage(id, base64.StdEncoding.EncodeToString(img), "image/png"), nil
	default:
		return mcp.NewToolResultError("format must be mermaid, ascii, png or svg"), nil
	}
}

// handleLint reports structural warnings, read errors and condition
// problems of a stored diagram.
func (s *FlowServer) handleLint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}

	ctx = logging.WithDiagramID(ctx, id)
	d, loadErr := s.reader.Load(ctx, id)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", loadErr)), nil
	}

	result := reader.Lint(d, s.conditions)
	return marshalResult(map[string]any{
		"diagram_id": id,
		"valid":      result.Valid(),
		"errors":     result.Errors,
		"warnings":   result.Warnings,
	})
}

// handleDefine stores a diagram once it decodes and reads cleanly.
func (s *FlowServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content is required"), nil
	}

	d, decErr := s.reader.Decode(store.Format(format), []byte(content))
	if decErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid diagram: %v", decErr)), nil
	}
	wf, readErr := reader.ReadDiagram(d)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid diagram: %v", readErr)), nil
	}

	doc := &store.Diagram{ID: id, Format: store.Format(format), Content: []byte(content)}
	if putErr := s.store.PutDiagram(ctx, doc); putErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store diagram: %v", putErr)), nil
	}
	s.logger.InfoContext(logging.WithDiagramID(ctx, id), "diagram defined",
		slog.String("format", format),
		slog.Int("tasks", wf.Tasks.Len()),
	)

	return marshalResult(map[string]any{
		"diagram_id": id,
		"format":     format,
		"title":      wf.Title,
		"tasks":      wf.Tasks.Len(),
	})
}

// handleList lists stored diagrams.
func (s *FlowServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.DiagramFilter{
		Prefix: req.GetString("prefix", ""),
		Format: store.Format(req.GetString("format", "")),
		Limit:  mcp.ParseInt(req, "limit", 100),
	}

	infos, err := s.store.ListDiagrams(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"diagrams": infos})
}

// handleRoute resolves the route of a process instance through a diagram.
func (s *FlowServer) handleRoute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}
	vars := mcp.ParseStringMap(req, "vars", nil)

	wf, readErr := s.reader.Read(ctx, id)
	if readErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", readErr)), nil
	}
	plan, planErr := engine.BuildPlan(wf.Tasks, s.conditions)
	if planErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan failed: %v", planErr)), nil
	}
	route, routeErr := plan.Route(ctx, vars)
	if routeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("route failed: %v", routeErr)), nil
	}

	return marshalResult(map[string]any{
		"diagram_id": id,
		"route":      route,
		"levels":     plan.Levels,
	})
}

// handleReadDiagrams serves the diagram listing resource.
func (s *FlowServer) handleReadDiagrams(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	infos, err := s.store.ListDiagrams(ctx, store.DiagramFilter{})
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal diagrams: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
