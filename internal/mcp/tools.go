package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/descriptor"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// defaultResultTimeout bounds the wait for a control request result when
// the tool call carries no deadline.
const defaultResultTimeout = 10 * time.Second

// Tool names.
const (
	ToolListRoutes         = "list_routes"
	ToolSelectRoute        = "select_route"
	ToolUnselectRoute      = "unselect_route"
	ToolSetRouteVolume     = "set_route_volume"
	ToolUpdateRouteVolume  = "update_route_volume"
	ToolSendControlRequest = "send_control_request"
	ToolReleaseRoute       = "release_route"
)

// Provider is the part of a media route provider the tools read.
type Provider interface {
	IsConnected(ctx context.Context) (bool, error)
	Descriptor(ctx context.Context) (*descriptor.ProviderDescriptor, error)
}

// Controller is the part of a route controller the tools drive.
type Controller interface {
	Select(ctx context.Context) error
	Unselect(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
	UpdateVolume(ctx context.Context, delta int) error
	SendControlRequest(ctx context.Context, req *channel.ControlRequest, callback protocol.ControlRequestCallback) error
	Release(ctx context.Context) error
}

// ControllerFactory creates a controller for a route of the current descriptor.
type ControllerFactory func(ctx context.Context, routeID string) (Controller, error)

// routeTool holds tool metadata and handler.
type routeTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// RouteTools serves provider routes as MCP tools.
type RouteTools struct {
	log      *slog.Logger
	name     string
	version  string
	provider Provider
	create   ControllerFactory

	tools map[string]*routeTool

	mu          sync.Mutex
	controllers map[string]Controller
}

// NewRouteTools creates the tool set for provider. Controllers are created
// with create on first use of a route and kept until released.
func NewRouteTools(
	log *slog.Logger,
	name, version string,
	provider Provider,
	create ControllerFactory,
) *RouteTools {
	t := &RouteTools{
		log:         log.With("component", "mcp"),
		name:        name,
		version:     version,
		provider:    provider,
		create:      create,
		tools:       make(map[string]*routeTool, 8),
		controllers: make(map[string]Controller, 4),
	}

	routeOnly := SimpleSchema(map[string]string{"route_id": "string"})

	t.add(ToolListRoutes, "Lists the routes the provider currently publishes.",
		&jsonschema.Schema{Type: "object"}, t.listRoutes)
	t.add(ToolSelectRoute, "Selects a route.", routeOnly, t.routeAction(Controller.Select))
	t.add(ToolUnselectRoute, "Unselects a route.", routeOnly, t.routeAction(Controller.Unselect))
	t.add(ToolSetRouteVolume, "Sets the absolute volume of a route.",
		SimpleSchema(map[string]string{"route_id": "string", "volume": "int"}), t.setVolume)
	t.add(ToolUpdateRouteVolume, "Changes the volume of a route by a delta.",
		SimpleSchema(map[string]string{"route_id": "string", "delta": "int"}), t.updateVolume)
	t.add(ToolSendControlRequest, "Sends a control request to a route and waits for its result.",
		&jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"route_id":   goTypeToJSONSchema("string"),
				"action":     goTypeToJSONSchema("string"),
				"categories": goTypeToJSONSchema("[]string"),
				"extras":     goTypeToJSONSchema("object"),
			},
			Required: []string{"route_id", "action"},
		}, t.sendControlRequest)
	t.add(ToolReleaseRoute, "Releases the controller of a route.", routeOnly, t.release)

	return t
}

func (t *RouteTools) add(name, description string, schema *jsonschema.Schema, handler mcp.ToolHandler) {
	t.tools[name] = &routeTool{
		tool:    &mcp.Tool{Name: name, Description: description, InputSchema: schema},
		handler: handler,
	}
}

// Tools returns the tool definitions sorted by name.
func (t *RouteTools) Tools() []*mcp.Tool {
	names := slices.Sorted(maps.Keys(t.tools))

	out := make([]*mcp.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, t.tools[name].tool)
	}

	return out
}

// CallTool runs the named tool. Tool failures are reported in the result,
// not as an error.
func (t *RouteTools) CallTool(ctx context.Context, req *mcp.CallToolRequest) *mcp.CallToolResult {
	if req == nil || req.Params == nil {
		return ErrorResult("missing tool call parameters")
	}

	rt, ok := t.tools[req.Params.Name]
	if !ok {
		return ErrorResult("Tool not found: " + req.Params.Name)
	}

	result, err := rt.handler(ctx, req)
	if err != nil {
		return ErrorResult("Tool execution failed: " + err.Error())
	}

	return result
}

// Server returns an MCP server with every tool registered.
func (t *RouteTools) Server() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: t.name, Version: t.version}, nil)

	for _, tool := range t.Tools() {
		server.AddTool(tool, t.tools[tool.Name].handler)
	}

	return server
}

// Serve runs an MCP server on transport until the client disconnects or
// ctx is cancelled.
func (t *RouteTools) Serve(ctx context.Context, transport mcp.Transport) error {
	t.log.Info("Serving route tools", "tools", len(t.tools))

	if err := t.Server().Run(ctx, transport); err != nil {
		return fmt.Errorf("serve route tools: %w", err)
	}

	return nil
}

// Close releases every controller the tools created.
func (t *RouteTools) Close(ctx context.Context) error {
	t.mu.Lock()
	controllers := t.controllers
	t.controllers = make(map[string]Controller, 4)
	t.mu.Unlock()

	var firstErr error

	for routeID, c := range controllers {
		if err := c.Release(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release route %q: %w", routeID, err)
		}
	}

	return firstErr
}

func (t *RouteTools) controller(ctx context.Context, routeID string) (Controller, error) {
	if routeID == "" {
		return nil, fmt.Errorf("route_id is required")
	}

	t.mu.Lock()
	c, ok := t.controllers[routeID]
	t.mu.Unlock()

	if ok {
		return c, nil
	}

	// Creating waits on the provider; other tool calls must not queue behind it.
	created, err := t.create(ctx, routeID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	c, ok = t.controllers[routeID]
	if !ok {
		t.controllers[routeID] = created
	}
	t.mu.Unlock()

	if ok {
		// A concurrent call won the race.
		_ = created.Release(ctx)

		return c, nil
	}

	t.log.Debug("Created route controller", "route_id", routeID)

	return created, nil
}

type routeArgs struct {
	RouteID string `json:"route_id"`
}

type routeSummary struct {
	Connected bool                          `json:"connected"`
	Routes    []*descriptor.RouteDescriptor `json:"routes"`
}

func (t *RouteTools) listRoutes(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connected, err := t.provider.IsConnected(ctx)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	d, err := t.provider.Descriptor(ctx)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	summary := routeSummary{Connected: connected, Routes: []*descriptor.RouteDescriptor{}}
	if d != nil {
		summary.Routes = d.Routes
	}

	return JSONResult(summary), nil
}

func (t *RouteTools) routeAction(action func(Controller, context.Context) error) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args routeArgs
		if err := decodeArguments(req, &args); err != nil {
			return ErrorResult(err.Error()), nil
		}

		c, err := t.controller(ctx, args.RouteID)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		if err := action(c, ctx); err != nil {
			return ErrorResult(err.Error()), nil
		}

		return TextResult("ok"), nil
	}
}

func (t *RouteTools) setVolume(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		RouteID string `json:"route_id"`
		Volume  int    `json:"volume"`
	}

	if err := decodeArguments(req, &args); err != nil {
		return ErrorResult(err.Error()), nil
	}

	c, err := t.controller(ctx, args.RouteID)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if err := c.SetVolume(ctx, args.Volume); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return TextResult("ok"), nil
}

func (t *RouteTools) updateVolume(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		RouteID string `json:"route_id"`
		Delta   int    `json:"delta"`
	}

	if err := decodeArguments(req, &args); err != nil {
		return ErrorResult(err.Error()), nil
	}

	c, err := t.controller(ctx, args.RouteID)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if err := c.UpdateVolume(ctx, args.Delta); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return TextResult("ok"), nil
}

type controlOutcome struct {
	Code int            `json:"code"`
	Data channel.Bundle `json:"data,omitempty"`
}

func (t *RouteTools) sendControlRequest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		RouteID    string         `json:"route_id"`
		Action     string         `json:"action"`
		Categories []string       `json:"categories"`
		Extras     channel.Bundle `json:"extras"`
	}

	if err := decodeArguments(req, &args); err != nil {
		return ErrorResult(err.Error()), nil
	}

	if args.Action == "" {
		return ErrorResult("action is required"), nil
	}

	c, err := t.controller(ctx, args.RouteID)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	results := make(chan protocol.ControlResult, 1)

	err = c.SendControlRequest(ctx, &channel.ControlRequest{
		Action:     args.Action,
		Categories: args.Categories,
		Extras:     args.Extras,
	}, func(result protocol.ControlResult) {
		results <- result
	})
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, defaultResultTimeout)
		defer cancel()
	}

	select {
	case result := <-results:
		out := JSONResult(controlOutcome{Code: result.Code, Data: result.Data})
		out.IsError = result.Failed()

		return out, nil
	case <-ctx.Done():
		return ErrorResult("waiting for control result: " + ctx.Err().Error()), nil
	}
}

func (t *RouteTools) release(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args routeArgs
	if err := decodeArguments(req, &args); err != nil {
		return ErrorResult(err.Error()), nil
	}

	t.mu.Lock()
	c, ok := t.controllers[args.RouteID]
	delete(t.controllers, args.RouteID)
	t.mu.Unlock()

	if !ok {
		return ErrorResult(fmt.Sprintf("no controller for route %q", args.RouteID)), nil
	}

	if err := c.Release(ctx); err != nil {
		return ErrorResult(err.Error()), nil
	}

	return TextResult("released"), nil
}
