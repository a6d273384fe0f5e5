// Package mcp exposes the routes of a media route provider as Model
// Context Protocol tools.
//
// RouteTools keeps one route controller per route id and maps each tool
// call onto it: listing routes, selecting, changing volume and forwarding
// control requests. The tools can be called directly with CallTool or
// served to an MCP client over any transport of the official SDK:
//
//	tools := mcp.NewRouteTools(log, "routectl", "1.0.0", provider, createController)
//	defer tools.Close(ctx)
//
//	err := tools.Serve(ctx, &sdk.StdioTransport{})
package mcp
