package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (*Protocol, *Protocol) {
	t.Helper()
	ct, st := transport.NewMemoryPair()
	client := New(ct, Options{})
	server := New(st, Options{})
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, server.Connect(context.Background()))
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestRequestResponseRoundTrip(t *testing.T) {
	t.Parallel()
	client, server := newPair(t)

	server.RegisterRequestHandler("ping", nil, func(ctx context.Context, params json.RawMessage, extra *RequestExtra) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})

	var result map[string]string
	err := client.SendRequest(context.Background(), "ping", nil, &result, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", result["pong"])
}

func TestMethodNotFoundProducesError(t *testing.T) {
	t.Parallel()
	client, _ := newPair(t)

	err := client.SendRequest(context.Background(), "nonexistent", nil, nil, &RequestOptions{Timeout: time.Second})
	require.Error(t, err)
	var rpcErr *mcp.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, mcp.CodeMethodNotFound, rpcErr.Code)
}

func TestCapabilityGateRejectsWhenUndeclared(t *testing.T) {
	t.Parallel()
	client, server := newPair(t)

	server.RegisterRequestHandler("tools/call", func() bool { return false }, func(ctx context.Context, params json.RawMessage, extra *RequestExtra) (interface{}, error) {
		return nil, nil
	})

	err := client.SendRequest(context.Background(), "tools/call", nil, nil, &RequestOptions{Timeout: time.Second})
	require.Error(t, err)
	var rpcErr *mcp.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, mcp.CodeInvalidRequest, rpcErr.Code)
}

func TestNotificationDispatch(t *testing.T) {
	t.Parallel()
	client, server := newPair(t)

	received := make(chan string, 1)
	client.RegisterNotificationHandler("notifications/message", func(ctx context.Context, params json.RawMessage, extra *RequestExtra) {
		received <- string(params)
	})

	require.NoError(t, server.SendNotification(context.Background(), "notifications/message", map[string]string{"hello": "world"}))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("notification not received")
	}
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()
	client, server := newPair(t)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	server.RegisterRequestHandler("slow", nil, func(ctx context.Context, params json.RawMessage, extra *RequestExtra) (interface{}, error) {
		<-block
		return nil, nil
	})

	err := client.SendRequest(context.Background(), "slow", nil, nil, &RequestOptions{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	var rpcErr *mcp.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, mcp.CodeRequestTimeout, rpcErr.Code)
}

func TestContextCancellationPropagates(t *testing.T) {
	t.Parallel()
	client, server := newPair(t)

	cancelled := make(chan struct{}, 1)
	started := make(chan struct{})
	server.RegisterRequestHandler("long", nil, func(ctx context.Context, params json.RawMessage, extra *RequestExtra) (interface{}, error) {
		close(started)
		<-extra.Signal
		cancelled <- struct{}{}
		return nil, &mcp.CancelledError{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.SendRequest(ctx, "long", nil, nil, nil)
	}()

	<-started
	cancel()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("server handler was not cancelled")
	}
	<-done
}
