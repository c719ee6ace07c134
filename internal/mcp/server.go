package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/josephgoksu/TodoBuilder/internal/app"
)

// handler is the shape shared by every tool handler in this package.
type handler[P any] func(ctx context.Context, a *app.App, params P) (*ToolResult, error)

// respond converts a handler result into an MCP tool result. Correctable
// failures are returned with IsError so the model can see them and retry.
func respond(res *ToolResult, err error) (*mcpsdk.CallToolResultFor[any], error) {
	if err != nil {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: FormatError(err.Error())}},
			IsError: true,
		}, nil
	}
	if res.Error != "" {
		text := FormatError(res.Error)
		if res.Content != "" {
			text += "\n\n" + res.Content
		}
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			IsError: true,
		}, nil
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
	}, nil
}

func addTool[P any](server *mcpsdk.Server, a *app.App, tool *mcpsdk.Tool, h handler[P]) {
	mcpsdk.AddTool(server, tool, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[P]) (*mcpsdk.CallToolResultFor[any], error) {
		a.Logger.Debug("mcp tool call", "tool", tool.Name)
		return respond(h(ctx, a, params.Arguments))
	})
}

// NewServer registers the registry tools on a new MCP server.
func NewServer(a *app.App, version string) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    "todobuilder-mcp",
		Version: version,
	}
	logger := a.Logger.With("component", "mcp")
	server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{
		InitializedHandler: func(context.Context, *mcpsdk.ServerSession, *mcpsdk.InitializedParams) {
			logger.Info("client initialized")
		},
	})

	addTool(server, a, &mcpsdk.Tool{
		Name:        ToolListFeatures,
		Description: "List registered features with their version and enabled state. Set active_only to list enabled features only.",
	}, HandleListFeatures)
	addTool(server, a, &mcpsdk.Tool{
		Name:        ToolDependencies,
		Description: "Show what a feature depends on and which features depend on it. Requires feature_id.",
	}, HandleDependencies)
	addTool(server, a, &mcpsdk.Tool{
		Name:        ToolCanDisable,
		Description: "Check whether a feature can be disabled. Lists the enabled features that require it. Requires feature_id.",
	}, HandleCanDisable)
	addTool(server, a, &mcpsdk.Tool{
		Name:        ToolSetEnabled,
		Description: "Enable or disable a feature. Disabling fails while enabled features require it. Requires feature_id and enabled.",
	}, HandleSetEnabled)
	addTool(server, a, &mcpsdk.Tool{
		Name:        ToolAddDependency,
		Description: "Record that feature_id depends on depends_on. type is required (default) or optional. Required edges may not form a cycle.",
	}, HandleAddDependency)

	return server
}

// Serve runs the server over stdio until the client disconnects.
// stdout carries JSON-RPC only; logs must go to stderr.
func Serve(ctx context.Context, a *app.App, version string) error {
	if err := NewServer(a, version).Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

