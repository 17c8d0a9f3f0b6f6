package server

import (
	"context"
	"encoding/json"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

func (s *Server) registerLoggingHandlers() {
	s.proto.RegisterRequestHandler("logging/setLevel",
		func() bool { return s.config.Capabilities.Logging != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.SetLevelParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.logMu.Lock()
			s.logLevel = p.Level
			s.logMu.Unlock()
			return struct{}{}, nil
		})
}

// SendLoggingMessage emits a log message to the client if level is at
// or above the threshold the client last set via logging/setLevel.
func (s *Server) SendLoggingMessage(ctx context.Context, level mcp.LogLevel, logger string, data interface{}) error {
	s.logMu.Lock()
	threshold := s.logLevel
	s.logMu.Unlock()

	if !level.AtLeast(threshold) {
		return nil
	}
	return s.proto.SendNotification(ctx, "notifications/message", mcp.LoggingMessageParams{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
}
