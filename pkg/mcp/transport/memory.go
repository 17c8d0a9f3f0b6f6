package transport

import (
	"context"
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// Memory is an in-process Transport endpoint. Two endpoints created by
// NewMemoryPair are wired directly to each other's onMessage, with no
// serialization — useful for tests and same-process hosts.
type Memory struct {
	mu        sync.Mutex
	peer      *Memory
	connected bool

	onMessage func(*mcp.Message, *Extra)
	onError   func(error)
	onClose   func()
}

// NewMemoryPair returns two endpoints, each delivering Send calls to
// the other's onMessage handler.
func NewMemoryPair() (client, server *Memory) {
	a := &Memory{}
	b := &Memory{}
	a.peer = b
	b.peer = a
	return a, b
}

func (m *Memory) SetHandlers(onMessage func(*mcp.Message, *Extra), onError func(error), onClose func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = onMessage
	m.onError = onError
	m.onClose = onClose
}

func (m *Memory) SessionID() string { return "" }

func (m *Memory) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Memory) Send(ctx context.Context, msg *mcp.Message, _ *SendOptions) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return mcp.NewTransportError("not connected", nil)
	}
	peer := m.peer
	m.mu.Unlock()

	peer.mu.Lock()
	handler := peer.onMessage
	connected := peer.connected
	peer.mu.Unlock()

	if !connected || handler == nil {
		return nil
	}

	// Dispatched on its own goroutine so a peer that blocks while
	// handling msg (e.g. a slow tool call) cannot wedge the sender
	// inside Send, matching how a real network transport behaves.
	go handler(msg, &Extra{})
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	already := !m.connected
	m.connected = false
	closeFn := m.onClose
	m.mu.Unlock()

	if already {
		return nil
	}
	if closeFn != nil {
		closeFn()
	}
	return nil
}
