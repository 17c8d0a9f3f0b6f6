package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/gomcp/mcpcore/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// ProgressHandler receives progress notifications correlated to a
// specific outbound request via its progress token.
type ProgressHandler func(progress float64, total *float64, message string)

// RequestOptions configures a single outbound request.
type RequestOptions struct {
	// Timeout overrides the Protocol's default. Zero means "use default".
	Timeout time.Duration

	// OnProgress, if set, causes a progress token to be stamped onto
	// the outgoing request's _meta and routes matching progress
	// notifications here.
	OnProgress ProgressHandler

	// ResetTimeoutOnProgress extends the deadline by Timeout each time
	// a progress notification for this request arrives, up to
	// MaxTotalTimeout.
	ResetTimeoutOnProgress bool
	MaxTotalTimeout        time.Duration

	// RelatedRequestID binds the outbound message to the SSE stream
	// opened for an inbound request the caller is currently handling
	// (streamable-HTTP only).
	RelatedRequestID *mcp.ID
}

// SendRequest issues method/params to the peer, waits for the matching
// response, and decodes its result into result (a pointer, or nil to
// discard). It returns a *mcp.Error if the peer replied with an error
// member, ctx.Err() if ctx is cancelled first, or a RequestTimeout
// *mcp.Error if the configured deadline elapses first.
func (p *Protocol) SendRequest(ctx context.Context, method string, params interface{}, result interface{}, opts *RequestOptions) error {
	if opts == nil {
		opts = &RequestOptions{}
	}

	id := p.nextRequestID()
	finalParams := params

	var progressCh chan struct{}
	if opts.OnProgress != nil || opts.ResetTimeoutOnProgress {
		stamped, err := stampProgressToken(params, id.String())
		if err != nil {
			return fmt.Errorf("protocol: stamp progress token: %w", err)
		}
		finalParams = stamped

		if opts.ResetTimeoutOnProgress {
			progressCh = make(chan struct{}, 1)
		}
		userHandler := opts.OnProgress
		p.progressMu.Lock()
		p.progress[id.String()] = func(progress float64, total *float64, message string) {
			if userHandler != nil {
				userHandler(progress, total, message)
			}
			if progressCh != nil {
				select {
				case progressCh <- struct{}{}:
				default:
				}
			}
		}
		p.progressMu.Unlock()
		defer func() {
			p.progressMu.Lock()
			delete(p.progress, id.String())
			p.progressMu.Unlock()
		}()
	}

	msg, err := mcp.NewRequest(id, method, finalParams)
	if err != nil {
		return fmt.Errorf("protocol: build request: %w", err)
	}

	resultCh := make(chan *mcp.Message, 1)
	p.mu.Lock()
	p.pending[id.String()] = &pendingRequest{resultCh: resultCh}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id.String())
		p.mu.Unlock()
	}()

	_, err = telemetry.RecordSpan(ctx, p.tracer, telemetry.SpanOptions{
		Name:        "mcp.request " + method,
		Attributes:  telemetry.GetBaseAttributes(method, id.String(), nil, p.transport.SessionID()),
		EndWhenDone: true,
	}, func(ctx context.Context, _ trace.Span) (struct{}, error) {
		return struct{}{}, p.awaitResponse(ctx, id, method, msg, resultCh, progressCh, result, opts)
	})
	return err
}

func (p *Protocol) awaitResponse(ctx context.Context, id mcp.ID, method string, msg *mcp.Message, resultCh chan *mcp.Message, progressCh <-chan struct{}, result interface{}, opts *RequestOptions) error {
	var sendOpts *transport.SendOptions
	if opts.RelatedRequestID != nil {
		sendOpts = &transport.SendOptions{RelatedRequestID: opts.RelatedRequestID}
	}
	if err := p.transport.Send(ctx, msg, sendOpts); err != nil {
		return fmt.Errorf("protocol: send %s: %w", method, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.defaultTO
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerCh = timer.C
	}

	// deadline is the absolute wall-clock ceiling a progress-driven
	// reset may never push the timer past. Zero means no ceiling.
	var deadline time.Time
	if timer != nil && opts.ResetTimeoutOnProgress && opts.MaxTotalTimeout > 0 {
		deadline = time.Now().Add(opts.MaxTotalTimeout)
	}

	for {
		select {
		case resp := <-resultCh:
			if resp == nil {
				return &mcp.ClosedError{}
			}
			if resp.Error != nil {
				return resp.Error
			}
			if result != nil {
				if err := mcp.DecodeResult(resp, result); err != nil {
					return fmt.Errorf("protocol: decode result of %s: %w", method, err)
				}
			}
			return nil

		case <-progressCh:
			if timer == nil || !opts.ResetTimeoutOnProgress {
				continue
			}
			next := timeout
			if !deadline.IsZero() {
				if remaining := time.Until(deadline); remaining < next {
					next = remaining
				}
				if next < 0 {
					next = 0
				}
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(next)

		case <-timerCh:
			p.sendCancelled(id, "timeout")
			return mcp.RequestTimeout(method)

		case <-ctx.Done():
			p.sendCancelled(id, "client cancelled")
			return ctx.Err()

		case <-p.closed:
			return &mcp.ClosedError{}
		}
	}
}

func (p *Protocol) sendCancelled(id mcp.ID, reason string) {
	notif, err := mcp.NewNotification("notifications/cancelled", mcp.CancelledParams{RequestID: id, Reason: reason})
	if err != nil {
		return
	}
	_ = p.transport.Send(context.Background(), notif, nil)
}

// SendNotification emits a one-way message with no response expected.
func (p *Protocol) SendNotification(ctx context.Context, method string, params interface{}) error {
	msg, err := mcp.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("protocol: build notification: %w", err)
	}
	if err := p.transport.Send(ctx, msg, nil); err != nil {
		return fmt.Errorf("protocol: send %s: %w", method, err)
	}
	return nil
}

func (p *Protocol) handleResponse(msg *mcp.Message) {
	if msg.ID == nil {
		return
	}
	p.mu.Lock()
	pr, ok := p.pending[msg.ID.String()]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case pr.resultCh <- msg:
	default:
	}
}

// stampProgressToken returns params with _meta.progressToken set to
// token, preserving any other fields already present.
func stampProgressToken(params interface{}, token string) (interface{}, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	meta, _ := m["_meta"].(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["progressToken"] = token
	m["_meta"] = meta
	return m, nil
}
