package server

import (
	"context"
	"encoding/json"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

// CompleteHandler answers completion/complete for one reference kind.
type CompleteHandler func(ctx context.Context, ref mcp.CompleteReference, arg mcp.CompleteArgument) (*mcp.CompleteResult, error)

// SetCompletionHandler installs the handler for completion/complete.
// Capabilities.Completions must be set for the method to be reachable.
func (s *Server) SetCompletionHandler(h CompleteHandler) {
	s.completeMu.Lock()
	s.completeHandler = h
	s.completeMu.Unlock()
}

func (s *Server) registerCompletionHandler() {
	s.proto.RegisterRequestHandler("completion/complete",
		func() bool { return s.config.Capabilities.Completions != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.CompleteParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.completeMu.Lock()
			h := s.completeHandler
			s.completeMu.Unlock()
			if h == nil {
				return nil, mcp.MethodNotFound("completion/complete")
			}
			return h(ctx, p.Ref, p.Argument)
		})
}
