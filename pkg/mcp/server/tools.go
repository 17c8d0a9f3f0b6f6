package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/schema"
	"github.com/gomcp/mcpcore/pkg/mcp/task"
)

// ToolHandler executes a tool call. extra exposes the caller's
// progress/cancellation signal; when the call is task-backed, ctx
// carries a task.Session for client-bound requests (reachable via
// task.SessionFromContext).
type ToolHandler func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error)

type registeredTool struct {
	def         mcp.Tool
	schema      schema.Schema
	handler     ToolHandler
	taskCapable bool
}

// RegisterTool adds a tool to the registry. def.InputSchema must
// already be the serialized form of s (callers typically build s and
// pass schema.Serialize(s) as def.InputSchema). Returns an error if a
// tool with this name is already registered.
func (s *Server) RegisterTool(def mcp.Tool, sch schema.Schema, handler ToolHandler) error {
	s.toolsMu.Lock()
	defer s.toolsMu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("server: tool %q is already registered", def.Name)
	}
	s.tools[def.Name] = &registeredTool{def: def, schema: sch, handler: handler}
	s.order = append(s.order, def.Name)
	return nil
}

// RegisterTaskTool is like RegisterTool but additionally allows the
// caller to request task-backed execution via
// CallToolParams._meta.requestTask.
func (s *Server) RegisterTaskTool(def mcp.Tool, sch schema.Schema, handler ToolHandler) error {
	s.toolsMu.Lock()
	defer s.toolsMu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("server: tool %q is already registered", def.Name)
	}
	s.tools[def.Name] = &registeredTool{def: def, schema: sch, handler: handler, taskCapable: true}
	s.order = append(s.order, def.Name)
	return nil
}

// TaskStore exposes the server's task registry, e.g. for a tasks/get
// implementation shared across connections.
func (s *Server) TaskStore() *task.Store { return s.taskStore }

func (s *Server) registerToolHandlers() {
	s.proto.RegisterRequestHandler("tools/list",
		func() bool { return s.config.Capabilities.Tools != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			s.toolsMu.RLock()
			defer s.toolsMu.RUnlock()
			tools := make([]mcp.Tool, 0, len(s.order))
			for _, name := range s.order {
				tools = append(tools, s.tools[name].def)
			}
			return mcp.ListToolsResult{Tools: tools}, nil
		})

	s.proto.RegisterRequestHandler("tools/call",
		func() bool { return s.config.Capabilities.Tools != nil },
		s.handleCallTool)
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
	var p mcp.CallToolParams
	if err := decode(params, &p); err != nil {
		return nil, mcp.InvalidParams(err.Error())
	}

	s.toolsMu.RLock()
	rt, ok := s.tools[p.Name]
	s.toolsMu.RUnlock()
	if !ok {
		return nil, mcp.InvalidParams(fmt.Sprintf("unknown tool %q", p.Name))
	}

	if rt.schema != nil {
		args := interface{}(p.Arguments)
		if args == nil {
			args = map[string]interface{}{}
		}
		if err := schema.Validate(rt.schema, args); err != nil {
			return nil, mcp.InvalidParams(fmt.Sprintf("arguments for %q: %v", p.Name, err))
		}
	}

	requestTask := p.Meta != nil && p.Meta.RequestTask
	if requestTask && rt.taskCapable {
		return s.runAsTask(rt, p)
	}

	return rt.handler(ctx, p.Arguments, extra)
}

func (s *Server) runAsTask(rt *registeredTool, p mcp.CallToolParams) (*mcp.CallToolResult, error) {
	t := s.taskStore.Create(p.Name, p.Arguments, nil)

	go func() {
		session := task.NewSession(t.TaskID, s.taskStore)
		ctx := task.WithSession(context.Background(), session)
		extra := &protocol.RequestExtra{
			SendRequest: func(ctx context.Context, method string, params interface{}, result interface{}) error {
				return s.proto.SendRequest(ctx, method, params, result, nil)
			},
		}

		result, err := rt.handler(ctx, p.Arguments, extra)
		if err != nil {
			s.taskStore.Fail(t.TaskID, asTaskError(err))
			return
		}
		s.taskStore.Complete(t.TaskID, result)
	}()

	return &mcp.CallToolResult{
		Content: []mcp.ContentPart{},
		Meta:    &mcp.CallToolResultMeta{RelatedTask: &mcp.RelatedTask{TaskID: t.TaskID}},
	}, nil
}

func asTaskError(err error) *mcp.Error {
	if rpcErr, ok := err.(*mcp.Error); ok {
		return rpcErr
	}
	return mcp.InternalError(err.Error())
}
