package task

import (
	"context"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// Session is attached to a task-backed tool handler's context, alongside
// its RequestExtra, adding the ability to make client-bound requests
// (elicitation, sampling) mid-execution. Each such call flips the
// task's status to "inputRequired" and enqueues the request onto the
// task's TaskMessageQueue; it does not reach the wire until a
// ResultHandler, driven by the client's own tasks/result poll,
// drains and dispatches it. The status flips back to "working" once
// the client's answer comes back.
type Session struct {
	TaskID string

	store *Store
}

// NewSession binds a task to the store tracking it.
func NewSession(taskID string, store *Store) *Session {
	return &Session{TaskID: taskID, store: store}
}

type sessionKey struct{}

// WithSession attaches sess to ctx for a task-backed tool handler to
// retrieve via SessionFromContext.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the task Session a handler is running
// under, or nil if this call was not task-backed.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}

// Elicit asks the client to collect structured input from the user.
func (s *Session) Elicit(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error) {
	var result mcp.ElicitResult
	if err := s.roundTrip(ctx, "elicitation/create", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateMessage asks the client to sample from its configured model.
func (s *Session) CreateMessage(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error) {
	var result mcp.CreateMessageResult
	if err := s.roundTrip(ctx, "sampling/createMessage", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// roundTrip enqueues a client-bound request and suspends the task
// goroutine until a ResultHandler drains and dispatches it (or ctx
// ends, or the task is cancelled from under it).
func (s *Session) roundTrip(ctx context.Context, method string, params, result interface{}) error {
	if !s.store.UpdateStatus(s.TaskID, mcp.TaskInputRequired, "") {
		return fmt.Errorf("task: %s is no longer working", s.TaskID)
	}

	pm := s.store.Messages().Enqueue(s.TaskID, method, params, result)

	var err error
	select {
	case err = <-pm.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if t, ok := s.store.Get(s.TaskID); ok && t.Status == mcp.TaskInputRequired {
		s.store.UpdateStatus(s.TaskID, mcp.TaskWorking, "")
	}
	return err
}
