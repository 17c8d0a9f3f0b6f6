package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

// PromptHandler renders a prompt template with the given arguments.
type PromptHandler func(ctx context.Context, arguments map[string]string) (*mcp.GetPromptResult, error)

type registeredPrompt struct {
	def     mcp.Prompt
	handler PromptHandler
}

// RegisterPrompt adds a prompt to the registry. Returns an error if a
// prompt with this name is already registered.
func (s *Server) RegisterPrompt(def mcp.Prompt, handler PromptHandler) error {
	s.promptsMu.Lock()
	defer s.promptsMu.Unlock()
	if _, exists := s.prompts[def.Name]; exists {
		return fmt.Errorf("server: prompt %q is already registered", def.Name)
	}
	s.prompts[def.Name] = &registeredPrompt{def: def, handler: handler}
	return nil
}

func (s *Server) registerPromptHandlers() {
	s.proto.RegisterRequestHandler("prompts/list",
		func() bool { return s.config.Capabilities.Prompts != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			s.promptsMu.RLock()
			defer s.promptsMu.RUnlock()
			list := make([]mcp.Prompt, 0, len(s.prompts))
			for _, p := range s.prompts {
				list = append(list, p.def)
			}
			return mcp.ListPromptsResult{Prompts: list}, nil
		})

	s.proto.RegisterRequestHandler("prompts/get",
		func() bool { return s.config.Capabilities.Prompts != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.GetPromptParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.promptsMu.RLock()
			rp, ok := s.prompts[p.Name]
			s.promptsMu.RUnlock()
			if !ok {
				return nil, mcp.InvalidParams(fmt.Sprintf("unknown prompt %q", p.Name))
			}
			for _, arg := range rp.def.Arguments {
				if arg.Required {
					if _, present := p.Arguments[arg.Name]; !present {
						return nil, mcp.InvalidParams(fmt.Sprintf("missing required argument %q", arg.Name))
					}
				}
			}
			return rp.handler(ctx, p.Arguments)
		})
}
