package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowreader/internal/expressions"
	"github.com/rendis/flowreader/internal/logging"
	"github.com/rendis/flowreader/internal/reader"
	"github.com/rendis/flowreader/internal/store"
)

// DiagramsURI is the resource listing every stored diagram.
const DiagramsURI = "flowreader://diagrams"

// FlowServerDeps holds the dependencies for creating a FlowServer.
type FlowServerDeps struct {
	Reader     *reader.Reader
	Store      store.DiagramStore
	Conditions *expressions.Conditions
	Logger     *slog.Logger
}

// FlowServer exposes the diagram reader as MCP tools.
type FlowServer struct {
	reader     *reader.Reader
	store      store.DiagramStore
	conditions *expressions.Conditions
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewFlowServer creates a FlowServer with all tools and resources registered.
// A nil Reader is built over Store; nil Conditions fall back to expr.
func NewFlowServer(deps FlowServerDeps) *FlowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(logging.NewCorrelationHandler(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
	rd := deps.Reader
	if rd == nil {
		rd = reader.New(reader.Deps{Store: deps.Store, Logger: logger})
	}
	conds := deps.Conditions
	if conds == nil {
		// "expr" is always registered by NewConditions.
		conds, _ = expressions.NewConditions("expr")
	}

	s := &FlowServer{
		reader:     rd,
		store:      deps.Store,
		conditions: conds,
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowreader",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("flowreader reads process diagrams into ordered task tables. Use flow.list to find diagrams, flow.read to get task ordering, conditions and last tasks, flow.lint to check a diagram, flow.render to draw it, flow.define to store a new diagram and flow.route to resolve the tasks a set of process variables would run."),
	)

	mcpSrv.AddTools(s.tools()...)
	mcpSrv.AddResource(mcp.NewResource(
		DiagramsURI,
		"Stored diagrams",
		mcp.WithResourceDescription("Every diagram in the configured source with its format and size"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadDiagrams)

	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: readTool(), Handler: s.handleRead},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: lintTool(), Handler: s.handleLint},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: routeTool(), Handler: s.handleRoute},
	}
}

// --- Tool definitions ---

func readTool() mcp.Tool {
	return mcp.NewTool("flow.read",
		mcp.WithDescription("Read a diagram into its title and ordered task table"),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("ID of the stored diagram")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("flow.render",
		mcp.WithDescription("Render a diagram as Mermaid, ASCII or an image"),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("ID of the stored diagram")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("mermaid", "ascii", "png", "svg"),
			mcp.Description("Output format"),
		),
		mcp.WithBoolean("annotate", mcp.Description("Annotate tasks with ordering, condition and last flag (default: true)")),
	)
}

func lintTool() mcp.Tool {
	return mcp.NewTool("flow.lint",
		mcp.WithDescription("Check a diagram's structure and branch conditions"),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("ID of the stored diagram")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("flow.define",
		mcp.WithDescription("Store a diagram after checking that it reads cleanly"),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("ID to store the diagram under")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("bpmn", "yaml"),
			mcp.Description("Document format"),
		),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document content")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("flow.list",
		mcp.WithDescription("List stored diagrams"),
		mcp.WithString("prefix", mcp.Description("Only IDs starting with this prefix")),
		mcp.WithString("format", mcp.Enum("bpmn", "yaml"), mcp.Description("Only diagrams in this format")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default: 100)")),
	)
}

func routeTool() mcp.Tool {
	return mcp.NewTool("flow.route",
		mcp.WithDescription("Resolve the tasks a process instance with the given variables would run"),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("ID of the stored diagram")),
		mcp.WithObject("vars", mcp.Description("Process variables the branch conditions are evaluated against")),
	)
}
