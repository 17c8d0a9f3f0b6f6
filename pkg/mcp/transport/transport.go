// Package transport defines the Transport contract shared by every MCP
// wire binding (stdio, in-memory, streamable-HTTP) and provides the
// stdio and in-memory implementations.
package transport

import (
	"context"

	"github.com/gomcp/mcpcore/pkg/mcp"
)

// Extra carries transport-specific metadata delivered alongside an
// inbound message: bearer auth info, the session id it arrived on, and
// (for resumable transports) the resumption token the peer offered.
type Extra struct {
	SessionID       string
	AuthInfo        interface{}
	ResumptionToken string
}

// SendOptions configures an outbound Send call. RelatedRequestID binds
// the message to the SSE stream opened for a specific inbound request,
// used by the streamable-HTTP transport; other transports ignore it.
type SendOptions struct {
	RelatedRequestID *mcp.ID
}

// Transport is a bidirectional, byte-framed channel carrying
// JSON-encoded MCP messages. Implementations must preserve send order
// per direction; concurrent Send calls may be serialized internally.
type Transport interface {
	// Start begins receiving and returns once the transport is ready,
	// or fails with a *mcp.TransportError.
	Start(ctx context.Context) error

	// Send writes one JSON-RPC envelope.
	Send(ctx context.Context, msg *mcp.Message, opts *SendOptions) error

	// Close releases resources and triggers OnClose.
	Close() error

	// SetHandlers installs the event sinks. Must be called before Start.
	SetHandlers(onMessage func(*mcp.Message, *Extra), onError func(error), onClose func())

	// SessionID returns the opaque session correlator, or "" if the
	// transport has none (e.g. a pipe transport).
	SessionID() string
}
