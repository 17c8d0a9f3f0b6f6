// Package server implements the Server façade: capability-gated method
// dispatch over a protocol.Protocol, plus the tool/resource/prompt
// registries and the task subsystem wiring for task-backed tool calls.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/task"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// Config configures a Server.
type Config struct {
	Name         string
	Version      string
	Instructions string

	// Capabilities declared to the client during initialize. A
	// capability with a nil pointer is never advertised, and its
	// methods are rejected with InvalidRequest regardless of whether a
	// handler happens to be registered for them.
	Capabilities mcp.ServerCapabilities

	// TaskSweepInterval controls how often completed tasks past their
	// TTL are reclaimed. Zero uses task.DefaultSweepInterval.
	TaskSweepInterval int64 // milliseconds, 0 = default

	protocol.Options
}

// Server is one MCP connection's capability surface: it owns the
// tool/resource/prompt registries and answers every non-lifecycle
// method the connection's ServerCapabilities declare.
type Server struct {
	proto  *protocol.Protocol
	config Config

	mu                 sync.RWMutex
	clientCapabilities mcp.ClientCapabilities
	clientInfo         mcp.ClientInfo

	toolsMu sync.RWMutex
	tools   map[string]*registeredTool
	order   []string

	resourcesMu   sync.RWMutex
	resources     map[string]mcp.Resource
	templates     []mcp.ResourceTemplate
	resourceReads map[string]ResourceHandler
	subscriptions map[string]struct{}

	promptsMu sync.RWMutex
	prompts   map[string]*registeredPrompt

	logMu    sync.Mutex
	logLevel mcp.LogLevel

	completeMu      sync.Mutex
	completeHandler CompleteHandler

	taskStore  *task.Store
	taskResult *task.ResultHandler
}

// New creates a Server bound to t. Call Connect to start serving.
func New(t transport.Transport, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "mcpcore-server"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	sweep := time.Duration(cfg.TaskSweepInterval) * time.Millisecond

	s := &Server{
		proto:         protocol.New(t, cfg.Options),
		config:        cfg,
		tools:         make(map[string]*registeredTool),
		resources:     make(map[string]mcp.Resource),
		resourceReads: make(map[string]ResourceHandler),
		subscriptions: make(map[string]struct{}),
		prompts:       make(map[string]*registeredPrompt),
		logLevel:      mcp.LogLevelInfo,
	}
	s.taskStore = task.NewStore(sweep)
	s.taskResult = task.NewResultHandler(s.taskStore, s.proto)
	s.registerHandlers()
	return s
}

// Connect starts the transport and waits to serve. The initialize
// handshake is driven by the client and answered by the "initialize"
// handler registered in registerHandlers; Connect itself only needs to
// start the transport.
func (s *Server) Connect(ctx context.Context) error {
	return s.proto.Connect(ctx)
}

// Close tears down the connection and stops the task store's sweep loop.
func (s *Server) Close() error {
	s.taskStore.Close()
	return s.proto.Close()
}

// Protocol exposes the underlying engine, e.g. for a caller that wants
// to emit ad hoc notifications tied to this connection.
func (s *Server) Protocol() *protocol.Protocol { return s.proto }

// ClientInfo returns the connected client's self-description, valid
// once initialize has completed.
func (s *Server) ClientInfo() mcp.ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// ClientCapabilities returns the connected client's declared capabilities.
func (s *Server) ClientCapabilities() mcp.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCapabilities
}

func (s *Server) registerHandlers() {
	s.proto.RegisterRequestHandler("initialize", nil, s.handleInitialize)
	s.proto.RegisterNotificationHandler("notifications/initialized", func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) {
		s.proto.MarkInitialized()
	})
	s.proto.RegisterRequestHandler("ping", nil, func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
		return struct{}{}, nil
	})

	s.registerToolHandlers()
	s.registerResourceHandlers()
	s.registerPromptHandlers()
	s.registerLoggingHandlers()
	s.registerTaskHandlers()
	s.registerCompletionHandler()
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
	var p mcp.InitializeParams
	if err := decode(params, &p); err != nil {
		return nil, mcp.InvalidParams(err.Error())
	}
	// An unsupported protocolVersion is not a request error: the server
	// still answers, with its own current version in the result, so
	// the client can decide for itself whether to continue or close.

	s.mu.Lock()
	s.clientCapabilities = p.Capabilities
	s.clientInfo = p.ClientInfo
	s.mu.Unlock()

	return mcp.InitializeResult{
		ProtocolVersion: mcp.CurrentVersion,
		Capabilities:    s.config.Capabilities,
		ServerInfo:      mcp.ServerInfo{Name: s.config.Name, Version: s.config.Version},
		Instructions:    s.config.Instructions,
	}, nil
}

func decode(raw []byte, v interface{}) error {
	return mcp.DecodeParams(&mcp.Message{Params: raw}, v)
}
