package protocol

import (
	"context"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
	"github.com/gomcp/mcpcore/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

func (p *Protocol) dispatchRequest(msg *mcp.Message, extra *transport.Extra) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	p.cancelMu.Lock()
	p.cancelFuncs[msg.ID.String()] = cancel
	p.cancelMu.Unlock()
	defer func() {
		p.cancelMu.Lock()
		delete(p.cancelFuncs, msg.ID.String())
		p.cancelMu.Unlock()
	}()

	p.mu.Lock()
	entry, ok := p.requestHandlers[msg.Method]
	p.mu.Unlock()

	if !ok {
		p.reply(ctx, *msg.ID, nil, mcp.MethodNotFound(msg.Method))
		return
	}
	if entry.capability != nil && !entry.capability() {
		p.reply(ctx, *msg.ID, nil, mcp.InvalidRequest(fmt.Sprintf("capability not declared for method %q", msg.Method)))
		return
	}

	reqExtra := p.buildExtra(*msg.ID, msg, extra, ctx.Done())

	result, err := telemetry.RecordSpan(ctx, p.tracer, telemetry.SpanOptions{
		Name:        "mcp.handle " + msg.Method,
		Attributes:  telemetry.GetBaseAttributes(msg.Method, msg.ID.String(), nil, p.transport.SessionID()),
		EndWhenDone: true,
	}, func(ctx context.Context, _ trace.Span) (interface{}, error) {
		return entry.handler(ctx, msg.Params, reqExtra)
	})

	if err != nil {
		p.reply(ctx, *msg.ID, nil, asProtocolError(err))
		return
	}
	p.reply(ctx, *msg.ID, result, nil)
}

func (p *Protocol) reply(ctx context.Context, id mcp.ID, result interface{}, rpcErr *mcp.Error) {
	var resp *mcp.Message
	var err error
	if rpcErr != nil {
		resp = mcp.NewErrorResponse(id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	} else {
		resp, err = mcp.NewResponse(id, result)
		if err != nil {
			resp = mcp.NewErrorResponse(id, mcp.CodeInternalError, err.Error(), nil)
		}
	}
	if sendErr := p.transport.Send(ctx, resp, nil); sendErr != nil {
		p.logger.Error("mcp protocol: failed to send response", "method_id", id.String(), "error", sendErr)
	}
}

// asProtocolError converts a handler error into the wire *mcp.Error,
// preserving code/data if the handler already returned one.
func asProtocolError(err error) *mcp.Error {
	if rpcErr, ok := err.(*mcp.Error); ok {
		return rpcErr
	}
	return mcp.InternalError(err.Error())
}

func (p *Protocol) dispatchNotification(msg *mcp.Message, extra *transport.Extra) {
	switch msg.Method {
	case "notifications/cancelled":
		var params mcp.CancelledParams
		if err := mcp.DecodeParams(msg, &params); err != nil {
			return
		}
		p.cancelMu.Lock()
		cancel, ok := p.cancelFuncs[params.RequestID.String()]
		p.cancelMu.Unlock()
		if ok {
			cancel()
		}
		return

	case "notifications/progress":
		var params mcp.ProgressParams
		if err := mcp.DecodeParams(msg, &params); err != nil {
			return
		}
		token := fmt.Sprint(params.ProgressToken)
		p.progressMu.Lock()
		sink, ok := p.progress[token]
		p.progressMu.Unlock()
		if ok {
			sink(params.Progress, params.Total, params.Message)
		}
		return
	}

	p.mu.Lock()
	handler := p.notificationHandlers[msg.Method]
	fallback := p.fallbackNotification
	p.mu.Unlock()

	reqExtra := p.buildExtra(mcp.ID{}, msg, extra, nil)

	if handler != nil {
		handler(context.Background(), msg.Params, reqExtra)
		return
	}
	if fallback != nil {
		fallback(context.Background(), msg.Params, reqExtra)
	}
}

func (p *Protocol) buildExtra(id mcp.ID, msg *mcp.Message, extra *transport.Extra, signal <-chan struct{}) *RequestExtra {
	if signal == nil {
		signal = p.closed
	}

	progressToken := extractProgressToken(msg.Params)

	re := &RequestExtra{
		RequestID: id,
		Signal:    signal,
	}
	if extra != nil {
		re.SessionID = extra.SessionID
		re.AuthInfo = extra.AuthInfo
		re.ResumptionToken = extra.ResumptionToken
	}

	re.SendNotification = func(ctx context.Context, method string, params interface{}) error {
		if method == "notifications/progress" && progressToken != nil {
			stamped, err := stampField(params, "progressToken", progressToken)
			if err == nil {
				params = stamped
			}
		}
		return p.SendNotification(ctx, method, params)
	}
	re.SendRequest = func(ctx context.Context, method string, params interface{}, result interface{}) error {
		return p.SendRequest(ctx, method, params, result, nil)
	}
	return re
}

// extractProgressToken reads _meta.progressToken from a request's raw
// params, if present, so inbound notifications/progress sent back to
// the caller can be correlated without the handler threading it through.
func extractProgressToken(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var withMeta struct {
		Meta struct {
			ProgressToken interface{} `json:"progressToken"`
		} `json:"_meta"`
	}
	if err := jsonUnmarshal(raw, &withMeta); err != nil {
		return nil
	}
	return withMeta.Meta.ProgressToken
}
