package server

import (
	"context"
	"testing"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/client"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/schema"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/stretchr/testify/require"
)

func newConnectedPair(t *testing.T, srvCfg Config, cliCfg client.Config) (*client.Client, *Server) {
	t.Helper()
	ct, st := transport.NewMemoryPair()

	srv := New(st, srvCfg)
	cli := client.New(ct, cliCfg)

	done := make(chan error, 1)
	go func() { done <- srv.Connect(context.Background()) }()
	require.NoError(t, cli.Connect(context.Background()))
	require.NoError(t, <-done)

	t.Cleanup(func() {
		cli.Close()
		srv.Close()
	})
	return cli, srv
}

func TestToolCallRoundTrip(t *testing.T) {
	t.Parallel()
	srvCfg := Config{Capabilities: mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}}}
	cli, srv := newConnectedPair(t, srvCfg, client.Config{})

	echoSchema := schema.Object{
		Properties: map[string]schema.Schema{"message": schema.String{}},
		Required:   []string{"message"},
	}
	require.NoError(t, srv.RegisterTool(mcp.Tool{
		Name:        "echo",
		InputSchema: schema.Serialize(echoSchema),
	}, echoSchema, func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent(arguments["message"].(string))}}, nil
	}))

	list, err := cli.ListTools(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list.Tools, 1)
	require.Equal(t, "echo", list.Tools[0].Name)

	result, err := cli.CallTool(context.Background(), "echo", map[string]interface{}{"message": "hi"}, nil)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Content[0].Text)
}

func TestCallToolRejectsInvalidArguments(t *testing.T) {
	t.Parallel()
	srvCfg := Config{Capabilities: mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}}}
	cli, srv := newConnectedPair(t, srvCfg, client.Config{})

	echoSchema := schema.Object{
		Properties: map[string]schema.Schema{"message": schema.String{}},
		Required:   []string{"message"},
	}
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "echo", InputSchema: schema.Serialize(echoSchema)}, echoSchema,
		func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent(arguments["message"].(string))}}, nil
		}))

	_, err := cli.CallTool(context.Background(), "echo", map[string]interface{}{}, nil)
	require.Error(t, err)
	var rpcErr *mcp.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, mcp.CodeInvalidParams, rpcErr.Code)
}

func TestInitializeSucceedsOnUnsupportedClientVersion(t *testing.T) {
	t.Parallel()
	ct, st := transport.NewMemoryPair()
	srv := New(st, Config{})

	done := make(chan error, 1)
	go func() { done <- srv.Connect(context.Background()) }()

	raw := protocol.New(ct, protocol.Options{})
	require.NoError(t, raw.Connect(context.Background()))
	t.Cleanup(func() {
		raw.Close()
		srv.Close()
	})
	require.NoError(t, <-done)

	var result mcp.InitializeResult
	err := raw.SendRequest(context.Background(), "initialize", mcp.InitializeParams{
		ProtocolVersion: "1999-01-01",
		ClientInfo:      mcp.ClientInfo{Name: "ancient-client", Version: "0.0.1"},
	}, &result, &protocol.RequestOptions{Timeout: time.Second})

	require.NoError(t, err, "an unsupported protocolVersion must still produce a result, not an RPC error")
	require.Equal(t, mcp.CurrentVersion, result.ProtocolVersion)
}

func TestCapabilityGateHidesUndeclaredMethods(t *testing.T) {
	t.Parallel()
	// Tools capability intentionally left nil.
	cli, srv := newConnectedPair(t, Config{}, client.Config{})
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "echo"}, nil,
		func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
			return nil, nil
		}))

	_, err := cli.ListTools(context.Background(), "")
	require.Error(t, err)
	var rpcErr *mcp.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, mcp.CodeInvalidRequest, rpcErr.Code)
}

func TestTaskBackedToolCall(t *testing.T) {
	t.Parallel()
	srvCfg := Config{Capabilities: mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}}}
	cli, srv := newConnectedPair(t, srvCfg, client.Config{})

	require.NoError(t, srv.RegisterTaskTool(mcp.Tool{Name: "slow-echo"}, nil,
		func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
			time.Sleep(10 * time.Millisecond)
			return &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent("done")}}, nil
		}))

	result, err := cli.CallToolAsTask(context.Background(), "slow-echo", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Meta)
	require.NotNil(t, result.Meta.RelatedTask)

	taskID := result.Meta.RelatedTask.TaskID
	final, err := cli.GetTaskResult(context.Background(), taskID)
	require.NoError(t, err)
	require.Equal(t, "done", final.Content[0].Text)
}

func TestDuplicateToolRegistrationRejected(t *testing.T) {
	t.Parallel()
	_, st := transport.NewMemoryPair()
	srv := New(st, Config{})
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "x"}, nil, nil))
	require.Error(t, srv.RegisterTool(mcp.Tool{Name: "x"}, nil, nil))
}
