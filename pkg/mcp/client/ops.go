package client

import (
	"context"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

// CallOptions lets a caller attach progress reporting to a single request.
type CallOptions struct {
	OnProgress protocol.ProgressHandler
}

func (c *Client) opts(o *CallOptions) *protocol.RequestOptions {
	if o == nil || o.OnProgress == nil {
		return nil
	}
	return &protocol.RequestOptions{OnProgress: o.OnProgress}
}

// ListTools lists the server's available tools.
func (c *Client) ListTools(ctx context.Context, cursor string) (*mcp.ListToolsResult, error) {
	var result mcp.ListToolsResult
	if err := c.proto.SendRequest(ctx, "tools/list", mcp.ListToolsParams{Cursor: cursor}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: list tools: %w", err)
	}
	return &result, nil
}

// CallTool invokes a tool by name. When opts.OnProgress is set, the
// request carries a progress token and progress notifications are
// routed to it for the call's duration.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}, opts *CallOptions) (*mcp.CallToolResult, error) {
	params := mcp.CallToolParams{Name: name, Arguments: arguments}
	var result mcp.CallToolResult
	if err := c.proto.SendRequest(ctx, "tools/call", params, &result, c.opts(opts)); err != nil {
		return nil, fmt.Errorf("client: call tool %q: %w", name, err)
	}
	return &result, nil
}

// CallToolAsTask invokes a tool and asks the server to run it as a
// task, returning as soon as the server has created the task.
func (c *Client) CallToolAsTask(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	params := mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
		Meta:      &mcp.CallToolMeta{RequestTask: true},
	}
	var result mcp.CallToolResult
	if err := c.proto.SendRequest(ctx, "tools/call", params, &result, nil); err != nil {
		return nil, fmt.Errorf("client: call tool %q as task: %w", name, err)
	}
	return &result, nil
}

// ListResources lists the server's available resources.
func (c *Client) ListResources(ctx context.Context, cursor string) (*mcp.ListResourcesResult, error) {
	var result mcp.ListResourcesResult
	if err := c.proto.SendRequest(ctx, "resources/list", mcp.ListResourcesParams{Cursor: cursor}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: list resources: %w", err)
	}
	return &result, nil
}

// ListResourceTemplates lists the server's URI templates.
func (c *Client) ListResourceTemplates(ctx context.Context) (*mcp.ListResourceTemplatesResult, error) {
	var result mcp.ListResourceTemplatesResult
	if err := c.proto.SendRequest(ctx, "resources/templates/list", nil, &result, nil); err != nil {
		return nil, fmt.Errorf("client: list resource templates: %w", err)
	}
	return &result, nil
}

// ReadResource fetches one resource's contents.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	var result mcp.ReadResourceResult
	if err := c.proto.SendRequest(ctx, "resources/read", mcp.ReadResourceParams{URI: uri}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: read resource %q: %w", uri, err)
	}
	return &result, nil
}

// SubscribeResource asks the server to notify this client of updates to uri.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	if err := c.proto.SendRequest(ctx, "resources/subscribe", mcp.SubscribeParams{URI: uri}, nil, nil); err != nil {
		return fmt.Errorf("client: subscribe to %q: %w", uri, err)
	}
	return nil
}

// UnsubscribeResource cancels a prior SubscribeResource.
func (c *Client) UnsubscribeResource(ctx context.Context, uri string) error {
	if err := c.proto.SendRequest(ctx, "resources/unsubscribe", mcp.UnsubscribeParams{URI: uri}, nil, nil); err != nil {
		return fmt.Errorf("client: unsubscribe from %q: %w", uri, err)
	}
	return nil
}

// ListPrompts lists the server's available prompts.
func (c *Client) ListPrompts(ctx context.Context, cursor string) (*mcp.ListPromptsResult, error) {
	var result mcp.ListPromptsResult
	if err := c.proto.SendRequest(ctx, "prompts/list", mcp.ListPromptsParams{Cursor: cursor}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: list prompts: %w", err)
	}
	return &result, nil
}

// GetPrompt renders a named prompt template.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*mcp.GetPromptResult, error) {
	params := mcp.GetPromptParams{Name: name, Arguments: arguments}
	var result mcp.GetPromptResult
	if err := c.proto.SendRequest(ctx, "prompts/get", params, &result, nil); err != nil {
		return nil, fmt.Errorf("client: get prompt %q: %w", name, err)
	}
	return &result, nil
}

// SetLoggingLevel asks the server to only emit log messages at or
// above level from now on.
func (c *Client) SetLoggingLevel(ctx context.Context, level mcp.LogLevel) error {
	if err := c.proto.SendRequest(ctx, "logging/setLevel", mcp.SetLevelParams{Level: level}, nil, nil); err != nil {
		return fmt.Errorf("client: set logging level: %w", err)
	}
	return nil
}

// Complete asks the server for completion suggestions for a prompt or
// resource argument.
func (c *Client) Complete(ctx context.Context, ref mcp.CompleteReference, arg mcp.CompleteArgument) (*mcp.CompleteResult, error) {
	params := mcp.CompleteParams{Ref: ref, Argument: arg}
	var result mcp.CompleteResult
	if err := c.proto.SendRequest(ctx, "completion/complete", params, &result, nil); err != nil {
		return nil, fmt.Errorf("client: complete: %w", err)
	}
	return &result, nil
}

// GetTask polls the status of a server-side task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*mcp.Task, error) {
	var result mcp.Task
	if err := c.proto.SendRequest(ctx, "tasks/get", mcp.GetTaskParams{TaskID: taskID}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: get task %q: %w", taskID, err)
	}
	return &result, nil
}

// GetTaskResult blocks (server-side) until taskID reaches a terminal
// state and returns its tool result.
func (c *Client) GetTaskResult(ctx context.Context, taskID string) (*mcp.CallToolResult, error) {
	var result mcp.CallToolResult
	if err := c.proto.SendRequest(ctx, "tasks/result", mcp.TaskResultParams{TaskID: taskID}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: get task result %q: %w", taskID, err)
	}
	return &result, nil
}

// CancelTask asks the server to cancel a running task.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	if err := c.proto.SendRequest(ctx, "tasks/cancel", mcp.CancelTaskParams{TaskID: taskID}, nil, nil); err != nil {
		return fmt.Errorf("client: cancel task %q: %w", taskID, err)
	}
	return nil
}

// ListTasks lists tasks retained by the server.
func (c *Client) ListTasks(ctx context.Context, cursor string) (*mcp.ListTasksResult, error) {
	var result mcp.ListTasksResult
	if err := c.proto.SendRequest(ctx, "tasks/list", mcp.ListTasksParams{Cursor: cursor}, &result, nil); err != nil {
		return nil, fmt.Errorf("client: list tasks: %w", err)
	}
	return &result, nil
}

// Ping round-trips a no-op request to confirm liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.proto.SendRequest(ctx, "ping", nil, nil, nil)
}
