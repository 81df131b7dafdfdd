//go:build mcp

package mcpserver

import (
	"context"
	"net"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/probe"
)

type Server struct {
	srv *mcp.Server
}

type Option func(*Server)

func New(ctx context.Context, _ ...Option) (*Server, error) {
	return &Server{srv: mcp.NewServer()}, nil
}

// RegisterProbes exports the registry's probes as MCP tools. Every call goes
// through SafeRun so schema and permission enforcement match the HTTP path.
func (s *Server) RegisterProbes(reg *probe.Registry, allowed map[string]bool, validate flows.ValidateFunc) error {
	for _, name := range reg.Names() {
		p, ok := reg.Resolve(name)
		if !ok {
			continue
		}
		desc := p.Describe()
		_ = s.srv.RegisterTool(mcp.Tool{
			Name:         desc.Name,
			Description:  desc.Description,
			InputSchema:  desc.InputSchema,
			OutputSchema: desc.OutputSchema,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return probe.SafeRun(ctx, p, args, allowed, validate)
			},
		})
	}
	return nil
}

// Serve accepts TCP connections and serves the MCP protocol on each.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() { _ = s.srv.Serve(ctx, conn) }()
	}
}

// ServeConn serves a single pre-established connection.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	return s.srv.Serve(ctx, conn)
}
