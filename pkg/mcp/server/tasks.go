package server

import (
	"context"
	"encoding/json"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

func (s *Server) registerTaskHandlers() {
	s.proto.RegisterRequestHandler("tasks/get", nil,
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.GetTaskParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			t, ok := s.taskStore.Get(p.TaskID)
			if !ok {
				return nil, mcp.InvalidParams("unknown task " + p.TaskID)
			}
			return t, nil
		})

	s.proto.RegisterRequestHandler("tasks/result", nil,
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.TaskResultParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			result, rpcErr, err := s.taskResult.Handle(ctx, p.TaskID)
			if err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			if rpcErr != nil {
				return nil, rpcErr
			}
			return result, nil
		})

	s.proto.RegisterRequestHandler("tasks/cancel", nil,
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.CancelTaskParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			if !s.taskStore.Cancel(p.TaskID) {
				return nil, mcp.InvalidRequest("task " + p.TaskID + " is not cancellable")
			}
			return struct{}{}, nil
		})

	s.proto.RegisterRequestHandler("tasks/list", nil,
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			return mcp.ListTasksResult{Tasks: s.taskStore.List()}, nil
		})
}
