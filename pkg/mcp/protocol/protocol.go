// Package protocol implements the bidirectional JSON-RPC request/
// response/notification engine that mediates between a Transport and
// the Server/Client façades: correlation, cancellation, progress, and
// capability-gated dispatch.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/gomcp/mcpcore/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// State is the lifecycle state of a Protocol instance (spec §3 Lifecycles).
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateInitialized
	StateClosed
)

// RequestHandler answers an inbound request. Returning a non-nil error
// wraps it as the response's error member (via asProtocolError); the
// result, when error is nil, becomes the response's result member.
type RequestHandler func(ctx context.Context, params json.RawMessage, extra *RequestExtra) (interface{}, error)

// NotificationHandler reacts to an inbound notification.
type NotificationHandler func(ctx context.Context, params json.RawMessage, extra *RequestExtra)

// RequestExtra is passed to every inbound request/notification handler.
type RequestExtra struct {
	RequestID       mcp.ID
	SessionID       string
	AuthInfo        interface{}
	ResumptionToken string

	// Signal is closed when the peer cancels this request (inbound
	// notifications/cancelled matching RequestID), or when the
	// Protocol closes.
	Signal <-chan struct{}

	// SendNotification emits a server/client-initiated notification on
	// this connection. Progress notifications are automatically
	// stamped with the progress token carried on the original request,
	// if any.
	SendNotification func(ctx context.Context, method string, params interface{}) error

	// SendRequest issues a request to the peer over the same
	// connection (e.g. a server asking the client for sampling).
	SendRequest func(ctx context.Context, method string, params interface{}, result interface{}) error
}

// CapabilityCheck reports whether the local side has declared the
// capability a method requires. Registered per-method alongside its handler.
type CapabilityCheck func() bool

type handlerEntry struct {
	handler    RequestHandler
	capability CapabilityCheck
}

// Options configures a new Protocol instance.
type Options struct {
	Logger         *slog.Logger
	Tracer         trace.Tracer
	DefaultTimeout time.Duration // 0 = no default timeout
}

// Protocol is one end of a bidirectional MCP connection. It is created
// unstarted and connected to a Transport via Connect; the Client/Server
// façades drive the initialize handshake and call MarkInitialized when
// it completes. State records that lifecycle only: inbound requests and
// notifications are dispatched in every state, including before the
// handshake has completed.
type Protocol struct {
	transport transport.Transport
	logger    *slog.Logger
	tracer    trace.Tracer
	defaultTO time.Duration

	mu    sync.Mutex
	state State

	nextID  uint64
	pending map[string]*pendingRequest

	progressMu sync.Mutex
	progress   map[string]func(progress float64, total *float64, message string)

	cancelMu      sync.Mutex
	cancelFuncs   map[string]context.CancelFunc
	requestHandlers     map[string]handlerEntry
	notificationHandlers map[string]NotificationHandler
	fallbackNotification NotificationHandler

	closeOnce sync.Once
	closed    chan struct{}
}

type pendingRequest struct {
	resultCh chan *mcp.Message
}

// New creates a Protocol instance bound to transport t. Call Connect to
// start receiving.
func New(t transport.Transport, opts Options) *Protocol {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer(telemetry.DefaultSettings())
	}
	return &Protocol{
		transport:            t,
		logger:               logger,
		tracer:               tracer,
		defaultTO:            opts.DefaultTimeout,
		state:                StateCreated,
		pending:              make(map[string]*pendingRequest),
		progress:             make(map[string]func(float64, *float64, string)),
		cancelFuncs:          make(map[string]context.CancelFunc),
		requestHandlers:      make(map[string]handlerEntry),
		notificationHandlers: make(map[string]NotificationHandler),
		closed:               make(chan struct{}),
	}
}

// RegisterRequestHandler installs the handler for method. cap may be
// nil, meaning the method requires no capability gate (e.g. "ping").
func (p *Protocol) RegisterRequestHandler(method string, cap CapabilityCheck, h RequestHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestHandlers[method] = handlerEntry{handler: h, capability: cap}
}

// RegisterNotificationHandler installs the handler for method.
func (p *Protocol) RegisterNotificationHandler(method string, h NotificationHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notificationHandlers[method] = h
}

// SetFallbackNotificationHandler installs the handler invoked for
// notifications with no registered method handler.
func (p *Protocol) SetFallbackNotificationHandler(h NotificationHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallbackNotification = h
}

// State returns the current lifecycle state.
func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Protocol) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Connect starts the transport and begins dispatching inbound messages.
func (p *Protocol) Connect(ctx context.Context) error {
	p.transport.SetHandlers(p.onMessage, p.onError, p.onClose)
	if err := p.transport.Start(ctx); err != nil {
		return fmt.Errorf("protocol: start transport: %w", err)
	}
	p.setState(StateInitializing)
	return nil
}

// MarkInitialized transitions the instance to the initialized state.
// Called by the Client/Server façade once the initialize handshake
// (initialize + notifications/initialized) completes.
func (p *Protocol) MarkInitialized() {
	p.setState(StateInitialized)
}

// SessionID returns the underlying transport's session correlator.
func (p *Protocol) SessionID() string { return p.transport.SessionID() }

// Close tears down the transport and fails every pending waiter with
// ClosedError. Idempotent.
func (p *Protocol) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.setState(StateClosed)
		close(p.closed)

		p.mu.Lock()
		for _, pr := range p.pending {
			select {
			case pr.resultCh <- nil:
			default:
			}
		}
		p.pending = make(map[string]*pendingRequest)
		p.mu.Unlock()

		err = p.transport.Close()
	})
	return err
}

func (p *Protocol) onError(err error) {
	p.logger.Error("mcp protocol transport error", "error", err)
}

func (p *Protocol) onClose() {
	p.Close()
}

func (p *Protocol) onMessage(msg *mcp.Message, extra *transport.Extra) {
	switch {
	case msg.IsResponse():
		p.handleResponse(msg)
	case msg.IsNotification():
		p.dispatchNotification(msg, extra)
	case msg.IsRequest():
		p.dispatchRequest(msg, extra)
	}
}

func (p *Protocol) nextRequestID() mcp.ID {
	n := atomic.AddUint64(&p.nextID, 1)
	return mcp.NewID(int64(n))
}
