// Package mcpserver exposes a running mpool.Module over the Model
// Context Protocol, so an AI assistant can introspect and exercise the
// allocator (create and destroy pools, read stats) without a
// custom client. Grounded in the teacher's MCP server: one
// *mcp.Server, one AddTool call per operation, JSON request/response
// bodies.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rageworx/mpool/internal/metrics"
	"github.com/rageworx/mpool/internal/mpool"
	"github.com/rageworx/mpool/internal/version"
)

// Server wraps a live Module and its MCP transport.
type Server struct {
	module *mpool.Module
	server *mcp.Server

	mu      sync.Mutex
	handles map[string]mpool.Handle
}

// NewServer builds an MCP server over module, registering the
// pool_stats, pool_create, and pool_destroy tools. module must already
// be Init'd.
func NewServer(module *mpool.Module) *Server {
	s := &Server{
		module:  module,
		handles: make(map[string]mpool.Handle),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "mpool-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "pool_stats",
		Description: "Return a snapshot of occupancy and traffic counters for every pool in the module.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handlePoolStats)

	s.server.AddTool(&mcp.Tool{
		Name:        "pool_create",
		Description: "Create a new single-size pool under a named parent (or the module's global pool if parent is omitted) and return a handle name for it.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Name to register the resulting handle under",
				},
				"object_size": {
					Type:        "integer",
					Description: "Fixed object size in bytes for this pool",
				},
				"sync": {
					Type:        "boolean",
					Description: "Whether the pool should guard its own operations with a mutex",
				},
				"parent": {
					Type:        "string",
					Description: "Name of a previously created pool to nest this one under; omitted or empty means the module's global pool",
				},
			},
			Required: []string{"name", "object_size"},
		},
	}, s.handlePoolCreate)

	s.server.AddTool(&mcp.Tool{
		Name:        "pool_destroy",
		Description: "Destroy a previously created pool (and its subtree) by handle name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "Handle name passed to pool_create",
				},
			},
			Required: []string{"name"},
		},
	}, s.handlePoolDestroy)
}

func jsonResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

func errorResponse(op string, err error) (*mcp.CallToolResult, error) {
	return jsonResponse(map[string]any{
		"success":   false,
		"operation": op,
		"error":     err.Error(),
	})
}

func (s *Server) handlePoolStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.module.Snapshot()
	report := metrics.NewReport(stats)
	return jsonResponse(report.FormatAsJSON())
}

type poolCreateParams struct {
	Name       string `json:"name"`
	ObjectSize int    `json:"object_size"`
	Sync       bool   `json:"sync"`
	Parent     string `json:"parent"`
}

func (s *Server) handlePoolCreate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params poolCreateParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("pool_create", fmt.Errorf("invalid parameters: %w", err))
	}

	var parent mpool.Handle
	if params.Parent != "" {
		s.mu.Lock()
		registered, ok := s.handles[params.Parent]
		s.mu.Unlock()
		if !ok {
			return errorResponse("pool_create", fmt.Errorf("no handle registered under parent name %q", params.Parent))
		}
		parent = registered
	}

	var (
		h   mpool.Handle
		err error
	)
	if params.Sync {
		h, err = s.module.CreateSync(parent, params.ObjectSize, nil, nil)
	} else {
		h, err = s.module.Create(parent, params.ObjectSize, nil, nil)
	}
	if err != nil {
		return errorResponse("pool_create", err)
	}

	s.mu.Lock()
	s.handles[params.Name] = h
	s.mu.Unlock()

	return jsonResponse(map[string]any{
		"success":     true,
		"name":        params.Name,
		"object_size": params.ObjectSize,
		"parent":      params.Parent,
	})
}

type poolDestroyParams struct {
	Name string `json:"name"`
}

func (s *Server) handlePoolDestroy(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params poolDestroyParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("pool_destroy", fmt.Errorf("invalid parameters: %w", err))
	}

	s.mu.Lock()
	h, ok := s.handles[params.Name]
	delete(s.handles, params.Name)
	s.mu.Unlock()

	if !ok {
		return errorResponse("pool_destroy", fmt.Errorf("no handle registered under name %q", params.Name))
	}
	if err := s.module.Destroy(h); err != nil {
		return errorResponse("pool_destroy", err)
	}
	return jsonResponse(map[string]any{"success": true, "name": params.Name})
}
