//go:build !mcp

package mcpserver

import (
	"context"
	"errors"

	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/probe"
)

// Server is a placeholder MCP server when the mcp build tag is not set.
// It allows the rest of the repo to compile without the SDK.
type Server struct{}

type Option func(*Server)

// New creates a new MCP server (no-op without mcp tag).
func New(_ context.Context, _ ...Option) (*Server, error) { return &Server{}, nil }

// RegisterProbes is a no-op that would export probes to the MCP server.
func (s *Server) RegisterProbes(_ *probe.Registry, _ map[string]bool, _ flows.ValidateFunc) error {
	return nil
}

// Serve starts the MCP server (no-op without mcp tag).
func (s *Server) Serve(_ context.Context, _ string) error {
	return errors.New("mcp server not enabled in this build")
}
