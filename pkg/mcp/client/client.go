// Package client implements the Client façade: the initialize
// handshake, typed wrappers over every server-exposed method, and the
// server-initiated request slots (sampling, elicitation, roots) a host
// application fills in to service them.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// Config configures a Client.
type Config struct {
	Name    string
	Version string

	Capabilities mcp.ClientCapabilities

	// OnSamplingRequest services sampling/createMessage. Required if
	// Capabilities.Sampling is set.
	OnSamplingRequest func(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error)

	// OnElicitationRequest services elicitation/create. Required if
	// Capabilities.Elicitation is set.
	OnElicitationRequest func(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error)

	// OnListRootsRequest services roots/list. Required if
	// Capabilities.Roots is set.
	OnListRootsRequest func(ctx context.Context) (*mcp.ListRootsResult, error)

	// OnLoggingMessage, if set, is called for every inbound
	// notifications/message.
	OnLoggingMessage func(params mcp.LoggingMessageParams)

	protocol.Options
}

// Client is one connection to an MCP server.
type Client struct {
	proto  *protocol.Protocol
	config Config

	mu               sync.RWMutex
	serverInfo       mcp.ServerInfo
	serverCapability mcp.ServerCapabilities
}

// New creates a Client bound to t. Call Connect to run the handshake.
func New(t transport.Transport, cfg Config) *Client {
	if cfg.Name == "" {
		cfg.Name = "mcpcore-client"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	c := &Client{
		proto:  protocol.New(t, cfg.Options),
		config: cfg,
	}
	c.registerHandlers()
	return c
}

func (c *Client) registerHandlers() {
	c.proto.RegisterRequestHandler("sampling/createMessage",
		func() bool { return c.config.Capabilities.Sampling != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			if c.config.OnSamplingRequest == nil {
				return nil, mcp.MethodNotFound("sampling/createMessage")
			}
			var p mcp.CreateMessageParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			return c.config.OnSamplingRequest(ctx, p)
		})

	c.proto.RegisterRequestHandler("elicitation/create",
		func() bool { return c.config.Capabilities.Elicitation != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			if c.config.OnElicitationRequest == nil {
				return nil, mcp.MethodNotFound("elicitation/create")
			}
			var p mcp.ElicitParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			return c.config.OnElicitationRequest(ctx, p)
		})

	c.proto.RegisterRequestHandler("roots/list",
		func() bool { return c.config.Capabilities.Roots != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			if c.config.OnListRootsRequest == nil {
				return nil, mcp.MethodNotFound("roots/list")
			}
			return c.config.OnListRootsRequest(ctx)
		})

	c.proto.RegisterNotificationHandler("notifications/message",
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) {
			if c.config.OnLoggingMessage == nil {
				return
			}
			var p mcp.LoggingMessageParams
			if err := decode(params, &p); err == nil {
				c.config.OnLoggingMessage(p)
			}
		})
}

// Connect starts the transport and runs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.proto.Connect(ctx); err != nil {
		return err
	}

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.CurrentVersion,
		Capabilities:    c.config.Capabilities,
		ClientInfo:      mcp.ClientInfo{Name: c.config.Name, Version: c.config.Version},
	}
	var result mcp.InitializeResult
	if err := c.proto.SendRequest(ctx, "initialize", params, &result, nil); err != nil {
		return fmt.Errorf("client: initialize: %w", err)
	}
	if !mcp.IsSupportedVersion(result.ProtocolVersion) {
		return fmt.Errorf("client: server speaks unsupported protocol version %q", result.ProtocolVersion)
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.serverCapability = result.Capabilities
	c.mu.Unlock()

	if err := c.proto.SendNotification(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("client: send initialized: %w", err)
	}
	c.proto.MarkInitialized()
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error { return c.proto.Close() }

// ServerInfo returns the connected server's self-description.
func (c *Client) ServerInfo() mcp.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the connected server's declared capabilities.
func (c *Client) ServerCapabilities() mcp.ServerCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverCapability
}

func decode(raw []byte, v interface{}) error {
	return mcp.DecodeParams(&mcp.Message{Params: raw}, v)
}
