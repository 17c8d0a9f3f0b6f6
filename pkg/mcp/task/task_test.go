package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()
	s := NewStore(time.Hour)
	defer s.Close()

	tsk := s.Create("do-thing", map[string]interface{}{"x": 1}, nil)
	require.Equal(t, mcp.TaskWorking, tsk.Status)

	got, ok := s.Get(tsk.TaskID)
	require.True(t, ok)
	require.Equal(t, mcp.TaskWorking, got.Status)

	s.Complete(tsk.TaskID, &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent("done")}})

	result, rpcErr, ok := s.Result(tsk.TaskID)
	require.True(t, ok)
	require.Nil(t, rpcErr)
	require.Equal(t, "done", result.Content[0].Text)

	require.False(t, s.UpdateStatus(tsk.TaskID, mcp.TaskCancelled, "too late"), "terminal tasks must never transition further")
}

func TestResultHandlerBlocksUntilTerminal(t *testing.T) {
	t.Parallel()
	s := NewStore(time.Hour)
	defer s.Close()
	h := NewResultHandler(s, nil)

	tsk := s.Create("slow-thing", nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, rpcErr, err := h.Handle(context.Background(), tsk.TaskID)
		require.NoError(t, err)
		require.Nil(t, rpcErr)
		require.Equal(t, "finished", result.Content[0].Text)
	}()

	time.Sleep(20 * time.Millisecond) // let Handle reach its first subscribe
	s.Complete(tsk.TaskID, &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent("finished")}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not observe completion")
	}
}

func TestResultHandlerReturnsImmediatelyWhenAlreadyTerminal(t *testing.T) {
	t.Parallel()
	s := NewStore(time.Hour)
	defer s.Close()
	h := NewResultHandler(s, nil)

	tsk := s.Create("already-done", nil, nil)
	s.Fail(tsk.TaskID, mcp.InternalError("boom"))

	result, rpcErr, err := h.Handle(context.Background(), tsk.TaskID)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, "boom", rpcErr.Message)
}

func TestResultHandlerUnknownTask(t *testing.T) {
	t.Parallel()
	s := NewStore(time.Hour)
	defer s.Close()
	h := NewResultHandler(s, nil)

	_, _, err := h.Handle(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestSweepReclaimsExpiredTerminalTasks(t *testing.T) {
	t.Parallel()
	s := NewStore(10 * time.Millisecond)
	defer s.Close()

	ttl := int64(5) // ms
	tsk := s.Create("short-lived", nil, &ttl)
	s.Complete(tsk.TaskID, &mcp.CallToolResult{})

	require.Eventually(t, func() bool {
		_, ok := s.Get(tsk.TaskID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

// TestElicitationWaitsForPoll is the pull-based guarantee the task
// subsystem exists for: a session's Elicit call must not put anything
// on the wire until a client actually polls tasks/result, and the poll
// is what dispatches it.
func TestElicitationWaitsForPoll(t *testing.T) {
	t.Parallel()
	s := NewStore(time.Hour)
	defer s.Close()

	clientTransport, serverTransport := transport.NewMemoryPair()
	serverProto := protocol.New(serverTransport, protocol.Options{})
	clientProto := protocol.New(clientTransport, protocol.Options{})
	require.NoError(t, serverProto.Connect(context.Background()))
	require.NoError(t, clientProto.Connect(context.Background()))
	t.Cleanup(func() {
		serverProto.Close()
		clientProto.Close()
	})

	answered := make(chan struct{})
	clientProto.RegisterRequestHandler("elicitation/create", nil,
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			close(answered)
			return mcp.ElicitResult{Action: "accept"}, nil
		})

	h := NewResultHandler(s, serverProto)
	tsk := s.Create("survey", nil, nil)
	sess := NewSession(tsk.TaskID, s)

	go func() {
		_, err := sess.Elicit(context.Background(), mcp.ElicitParams{Message: "name?"})
		if err != nil {
			s.Fail(tsk.TaskID, mcp.InternalError(err.Error()))
			return
		}
		s.Complete(tsk.TaskID, &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent("done")}})
	}()

	require.Eventually(t, func() bool {
		got, ok := s.Get(tsk.TaskID)
		return ok && got.Status == mcp.TaskInputRequired
	}, time.Second, 5*time.Millisecond, "task must flip to inputRequired before anything is dispatched")

	select {
	case <-answered:
		t.Fatal("elicitation/create must not be dispatched before a tasks/result poll drains the queue")
	case <-time.After(50 * time.Millisecond):
	}

	result, rpcErr, err := h.Handle(context.Background(), tsk.TaskID)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	require.Equal(t, "done", result.Content[0].Text)

	select {
	case <-answered:
	default:
		t.Fatal("poll did not drain and dispatch the queued elicitation/create")
	}
}
