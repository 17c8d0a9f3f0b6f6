package task

import (
	"context"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

// ResultHandler answers tasks/result by blocking until the named task
// reaches a terminal state (or ctx is done), without missing an update
// that lands between the status check and the wait. On every pass it
// also drains the task's TaskMessageQueue, dispatching any client-bound
// request a task session raised onto the real connection: this is the
// only place that happens, so a task nobody polls never sends anything.
type ResultHandler struct {
	store *Store
	proto *protocol.Protocol
}

// NewResultHandler binds a handler to store, dispatching drained
// messages over proto. proto may be nil if the store's tasks never
// make client-bound requests (e.g. in tests exercising only status/
// result plumbing).
func NewResultHandler(store *Store, proto *protocol.Protocol) *ResultHandler {
	return &ResultHandler{store: store, proto: proto}
}

// Handle blocks until taskID is terminal, then returns its result or
// error. If the task was already terminal when called, it returns
// immediately.
func (h *ResultHandler) Handle(ctx context.Context, taskID string) (*mcp.CallToolResult, *mcp.Error, error) {
	for {
		// Subscribe before reading current state: a status update
		// published between the read and the subscribe would
		// otherwise be missed and this call would block forever.
		updates := h.store.Queue().Subscribe(taskID)

		h.drain(ctx, taskID)

		if result, rpcErr, ok := h.store.Result(taskID); ok {
			h.store.Queue().Unsubscribe(taskID, updates)
			return result, rpcErr, nil
		}
		if _, ok := h.store.Get(taskID); !ok {
			h.store.Queue().Unsubscribe(taskID, updates)
			return nil, nil, NewUnknownTaskError(taskID)
		}

		select {
		case t := <-updates:
			if t.Status.IsTerminal() {
				result, rpcErr, _ := h.store.Result(taskID)
				return result, rpcErr, nil
			}
			// Non-terminal update (e.g. inputRequired -> working);
			// loop and subscribe again for the next one.
		case <-ctx.Done():
			h.store.Queue().Unsubscribe(taskID, updates)
			return nil, nil, ctx.Err()
		}
	}
}

// drain dispatches every client-bound request taskID has queued since
// the last call, synchronously, in FIFO order, over this connection.
func (h *ResultHandler) drain(ctx context.Context, taskID string) {
	msgs := h.store.Messages().Drain(taskID)
	if len(msgs) == 0 {
		return
	}
	for _, pm := range msgs {
		if h.proto == nil {
			pm.done <- fmt.Errorf("task: %s has no connection to dispatch %s on", taskID, pm.method)
			continue
		}
		pm.done <- h.proto.SendRequest(ctx, pm.method, pm.params, pm.result, nil)
	}
}
