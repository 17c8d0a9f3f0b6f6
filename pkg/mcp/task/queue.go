package task

import (
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// MessageQueue fans out task status updates to subscribers. Callers
// that want to block until the next update must call Subscribe BEFORE
// reading the task's current snapshot from Store, or a publish racing
// between the read and the subscribe is silently missed.
type MessageQueue struct {
	mu   sync.Mutex
	subs map[string][]chan mcp.Task
}

// NewMessageQueue returns an empty queue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{subs: make(map[string][]chan mcp.Task)}
}

// Subscribe registers a one-shot listener for the next update to
// taskID. The returned channel receives at most one value (none, if
// Unsubscribe is called first; it is never closed) and must be drained
// by the caller or passed to Unsubscribe to avoid leaking it.
func (q *MessageQueue) Subscribe(taskID string) chan mcp.Task {
	ch := make(chan mcp.Task, 1)
	q.mu.Lock()
	q.subs[taskID] = append(q.subs[taskID], ch)
	q.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from taskID's listener list without closing
// it, safe to call whether or not ch already fired.
func (q *MessageQueue) Unsubscribe(taskID string, ch chan mcp.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	subs := q.subs[taskID]
	for i, c := range subs {
		if c == ch {
			q.subs[taskID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(q.subs[taskID]) == 0 {
		delete(q.subs, taskID)
	}
}

// Publish delivers snapshot to every current subscriber of taskID and
// clears the subscriber list (each subscription is one-shot).
func (q *MessageQueue) Publish(taskID string, snapshot mcp.Task) {
	q.mu.Lock()
	subs := q.subs[taskID]
	delete(q.subs, taskID)
	q.mu.Unlock()

	for _, ch := range subs {
		ch <- snapshot
	}
}
