package mediaroute

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/mediaroute-go/internal/mcp"
)

// RouteTools exposes the routes of a Provider as Model Context Protocol
// tools: list_routes, select_route, unselect_route, set_route_volume,
// update_route_volume, send_control_request and release_route.
type RouteTools = internalmcp.RouteTools

// CallToolResult is the result of a tool call.
type CallToolResult = mcp.CallToolResult

// NewRouteTools creates route tools for p. Controllers are created on first
// use of a route. Call Close on the result to release them.
//
// Example:
//
//	tools := mediaroute.NewRouteTools(p, "routectl", "1.0.0")
//	defer tools.Close(ctx)
//
//	err := tools.Serve(ctx, &mcp.StdioTransport{})
func NewRouteTools(p Provider, name, version string, opts ...Option) *RouteTools {
	log := loggerOrNop(applyOptions(opts))

	return internalmcp.NewRouteTools(log, name, version, p,
		func(ctx context.Context, routeID string) (internalmcp.Controller, error) {
			c, err := p.CreateRouteController(ctx, routeID)
			if err != nil {
				return nil, err
			}

			return c, nil
		})
}
