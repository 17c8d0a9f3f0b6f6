// Package task implements the Task subsystem: long-running,
// server-initiated operations that outlive a single request/response
// pair, plus the client-bound request path (elicitation, sampling)
// that a task-backed tool handler can use while it runs.
package task

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// DefaultTTL is how long a terminal task's record is retained before
// the sweep reclaims it, absent a caller-supplied TTL.
const DefaultTTL = 30 * time.Second

// DefaultSweepInterval is how often Store reclaims expired tasks.
const DefaultSweepInterval = 30 * time.Second

type entry struct {
	task   mcp.Task
	result *mcp.CallToolResult
	err    *mcp.Error
	expiry time.Time
}

// Store holds every task's current status and eventual result,
// in-memory, with TTL-based reclamation of terminal entries.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*entry
	queue *MessageQueue
	msgs  *TaskMessageQueue

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewStore starts a Store with a background sweep goroutine. Call
// Close to stop it.
func NewStore(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &Store{
		tasks:         make(map[string]*entry),
		queue:         NewMessageQueue(),
		msgs:          NewTaskMessageQueue(),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Queue returns the status-update pub/sub ResultHandler.Handle waits on.
func (s *Store) Queue() *MessageQueue { return s.queue }

// Messages returns the pending client-bound request queue a task
// session enqueues into and ResultHandler drains from.
func (s *Store) Messages() *TaskMessageQueue { return s.msgs }

// Create registers a new task in the "working" state and returns it.
func (s *Store) Create(name string, input map[string]interface{}, ttl *int64) mcp.Task {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	ttlMillis := int64(DefaultTTL / time.Millisecond)
	if ttl != nil {
		ttlMillis = *ttl
	}

	t := mcp.Task{
		TaskID:        id,
		Status:        mcp.TaskWorking,
		TTLMillis:     &ttlMillis,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Meta:          &mcp.TaskMeta{Name: name, Input: input},
	}

	s.mu.Lock()
	s.tasks[id] = &entry{task: t}
	s.mu.Unlock()
	return t
}

// Get returns the current snapshot of a task.
func (s *Store) Get(taskID string) (mcp.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return mcp.Task{}, false
	}
	return e.task, true
}

// UpdateStatus transitions a task's status and publishes the change to
// any waiters. Returns false if the task is unknown or already
// terminal (terminal states never transition further).
func (s *Store) UpdateStatus(taskID string, status mcp.TaskStatus, statusMessage string) bool {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	if !ok || e.task.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	e.task.Status = status
	e.task.StatusMessage = statusMessage
	e.task.LastUpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if status.IsTerminal() {
		ttl := DefaultTTL
		if e.task.TTLMillis != nil {
			ttl = time.Duration(*e.task.TTLMillis) * time.Millisecond
		}
		e.expiry = time.Now().Add(ttl)
	}
	snapshot := e.task
	s.mu.Unlock()

	s.queue.Publish(taskID, snapshot)
	return true
}

// Complete stores the final tool result and marks the task completed.
func (s *Store) Complete(taskID string, result *mcp.CallToolResult) {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	if ok {
		e.result = result
	}
	s.mu.Unlock()
	s.UpdateStatus(taskID, mcp.TaskCompleted, "")
}

// Fail stores the terminal error and marks the task failed.
func (s *Store) Fail(taskID string, rpcErr *mcp.Error) {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	if ok {
		e.err = rpcErr
	}
	s.mu.Unlock()
	s.UpdateStatus(taskID, mcp.TaskFailed, rpcErr.Message)
}

// Cancel marks a task cancelled and fails any client-bound request that
// was queued but never drained. Returns false if it was already terminal.
func (s *Store) Cancel(taskID string) bool {
	ok := s.UpdateStatus(taskID, mcp.TaskCancelled, "cancelled by client")
	if ok {
		s.msgs.Fail(taskID, fmt.Errorf("task: %s was cancelled", taskID))
	}
	return ok
}

// Result returns the task's stored result/error. ok is false until the
// task reaches a terminal state.
func (s *Store) Result(taskID string) (result *mcp.CallToolResult, rpcErr *mcp.Error, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.tasks[taskID]
	if !found || !e.task.Status.IsTerminal() {
		return nil, nil, false
	}
	return e.result, e.err, true
}

// List returns every currently retained task, newest first.
func (s *Store) List() []mcp.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcp.Task, 0, len(s.tasks))
	for _, e := range s.tasks {
		out = append(out, e.task)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339Nano, out[i].CreatedAt)
		tj, _ := time.Parse(time.RFC3339Nano, out[j].CreatedAt)
		return ti.After(tj)
	})
	return out
}

// Close stops the sweep goroutine.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.tasks {
		if e.task.Status.IsTerminal() && !e.expiry.IsZero() && now.After(e.expiry) {
			delete(s.tasks, id)
		}
	}
}

// NewUnknownTaskError reports that a taskId does not match any retained task.
func NewUnknownTaskError(taskID string) error {
	return fmt.Errorf("task: unknown task %q", taskID)
}
