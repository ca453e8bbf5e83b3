// Package facade exposes the engine's public operations as MCP tools.
//
// This layer is deliberately thin: each handler validates arguments, calls
// one engine operation, and serializes the result. No cache logic lives
// here and none should be added.
package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/fleetcache/internal/query"
	"github.com/agentic-research/fleetcache/internal/refresh"
)

// NewServer builds the MCP server with every fleetcache tool registered.
func NewServer(sched *refresh.Scheduler, q *query.Service, version string) *server.MCPServer {
	s := server.NewMCPServer("fleetcache", version)

	s.AddTool(
		mcp.NewTool("start_build",
			mcp.WithDescription("Start an asynchronous cache rebuild for a profile. Returns the task ID to poll."),
			mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			profileName, err := req.RequireString("profile")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t, err := sched.StartBuild(profileName)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(t)
		},
	)

	s.AddTool(
		mcp.NewTool("task_status",
			mcp.WithDescription("Get the state, progress, and error of a refresh task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID from start_build")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t, err := sched.TaskStatus(id)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(t)
		},
	)

	s.AddTool(
		mcp.NewTool("fleet_summary",
			mcp.WithDescription("Resource totals by compartment and kind, plus snapshot age, for a cached profile."),
			mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			profileName, err := req.RequireString("profile")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			sum, err := q.FleetSummary(profileName)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(sum)
		},
	)

	s.AddTool(
		mcp.NewTool("search_resources",
			mcp.WithDescription("Case-insensitive substring search over resource display names. Empty pattern returns all."),
			mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
			mcp.WithString("pattern", mcp.Description("Substring to match; empty for all resources")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			profileName, err := req.RequireString("profile")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := q.Search(profileName, req.GetString("pattern", ""))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(res)
		},
	)

	s.AddTool(
		mcp.NewTool("resources_in_compartment",
			mcp.WithDescription("All resources owned transitively by a compartment subtree, by name or ID."),
			mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
			mcp.WithString("compartment", mcp.Required(), mcp.Description("Compartment display name or ID")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			profileName, err := req.RequireString("profile")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			comp, err := req.RequireString("compartment")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := q.ByCompartment(profileName, comp)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(res)
		},
	)

	s.AddTool(
		mcp.NewTool("list_compartments",
			mcp.WithDescription("All compartments in the profile's current snapshot."),
			mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			profileName, err := req.RequireString("profile")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			comps, err := q.ListCompartments(profileName)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return jsonResult(comps)
		},
	)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
