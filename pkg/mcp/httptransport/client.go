package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/auth"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// ClientConfig configures a ClientTransport.
type ClientConfig struct {
	// URL is the server's "/mcp" endpoint.
	URL string

	// HTTPClient is used for every request. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth attaches bearer credentials to every POST/GET/DELETE. A POST
	// rejected with 401/403 is retried once after Auth.Refresh; the GET
	// stream is not retried. Nil means the server requires no
	// authorization.
	Auth auth.AuthProvider

	// Header is sent on every request in addition to the ones the
	// transport manages itself (Content-Type, Accept, Authorization,
	// Mcp-Session-Id).
	Header http.Header
}

// ClientTransport is the client half of the streamable-HTTP transport
// implemented server-side by Router: it POSTs every outbound message to
// a single "/mcp" endpoint, accepting either a plain JSON response or an
// SSE stream of one-or-more frames, and opens a standing GET stream for
// messages the server raises outside of any request (e.g. a task's
// elicitation/create). It is the only consumer of auth.AuthProvider in
// this module, attaching its token to every request and retrying a POST
// once, after a refresh, on 401/403.
type ClientTransport struct {
	cfg ClientConfig

	mu        sync.Mutex
	sessionID string
	connected bool
	lastEvent uint64

	streamCancel context.CancelFunc

	handlersMu sync.Mutex
	onMessage  func(*mcp.Message, *transport.Extra)
	onError    func(error)
	onClose    func()
}

// NewClientTransport builds a client transport bound to cfg.URL.
func NewClientTransport(cfg ClientConfig) *ClientTransport {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &ClientTransport{cfg: cfg}
}

func (t *ClientTransport) SetHandlers(onMessage func(*mcp.Message, *transport.Extra), onError func(error), onClose func()) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.onMessage = onMessage
	t.onError = onError
	t.onClose = onClose
}

// Start marks the transport ready. The session itself is established
// lazily by the first POST (an "initialize" call, per the router), so
// there is nothing to dial yet.
func (t *ClientTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *ClientTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	sessID := t.sessionID
	cancel := t.streamCancel
	t.streamCancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if sessID != "" {
		req, err := t.newRequest(context.Background(), http.MethodDelete, nil)
		if err == nil {
			req.Header.Set(SessionHeader, sessID)
			resp, err := t.cfg.HTTPClient.Do(req)
			if err == nil {
				resp.Body.Close()
			}
		}
	}

	t.handlersMu.Lock()
	closeFn := t.onClose
	t.handlersMu.Unlock()
	if closeFn != nil {
		closeFn()
	}
	return nil
}

// Send POSTs msg and dispatches every message the response carries
// (one JSON body, or a sequence of SSE frames) to the installed
// onMessage handler. A notification gets a bare 202 back and nothing is
// dispatched.
func (t *ClientTransport) Send(ctx context.Context, msg *mcp.Message, opts *transport.SendOptions) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return mcp.NewTransportError("failed to marshal message", err)
	}

	resp, err := t.post(ctx, data, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return mcp.NewTransportError(fmt.Sprintf("http %d: %s", resp.StatusCode, string(body)), nil)
	}

	if sessID := resp.Header.Get(SessionHeader); sessID != "" {
		t.mu.Lock()
		isNew := t.sessionID == ""
		t.sessionID = sessID
		t.mu.Unlock()
		if isNew {
			go t.openStream()
		}
	}

	extra := &transport.Extra{SessionID: t.SessionID()}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return t.consumeSSE(resp.Body, extra)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcp.NewTransportError("failed to read response", err)
	}
	if len(body) == 0 {
		return nil
	}
	var reply mcp.Message
	if err := json.Unmarshal(body, &reply); err != nil {
		return mcp.NewTransportError("failed to unmarshal response", err)
	}
	t.dispatch(&reply, extra)
	return nil
}

// post issues one POST attempt, retrying exactly once after a forced
// token refresh if the first attempt is rejected as unauthorized.
func (t *ClientTransport) post(ctx context.Context, data []byte, retryOnAuthFailure bool) (*http.Response, error) {
	req, err := t.newRequest(ctx, http.MethodPost, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, mcp.NewTransportError("http request failed", err)
	}

	if retryOnAuthFailure && t.cfg.Auth != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		resp.Body.Close()
		if err := t.cfg.Auth.Refresh(ctx); err != nil {
			return nil, mcp.NewTransportError("not authorized: "+err.Error(), err)
		}
		return t.post(ctx, data, false)
	}
	return resp, nil
}

func (t *ClientTransport) newRequest(ctx context.Context, method string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.URL, reader)
	if err != nil {
		return nil, mcp.NewTransportError("failed to build request", err)
	}

	for k, vs := range t.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if sessID := t.SessionID(); sessID != "" {
		req.Header.Set(SessionHeader, sessID)
	}
	if t.cfg.Auth != nil {
		tok, err := t.cfg.Auth.Token(ctx)
		if err != nil {
			return nil, mcp.NewTransportError("not authorized: "+err.Error(), err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// openStream opens the standing GET stream a session uses to carry
// messages the server raises outside of any in-flight POST (a task's
// elicitation/create, a resource update notification, ...). It runs for
// the transport's lifetime; a dropped connection is not retried here,
// matching the single-attempt transports elsewhere in this module.
func (t *ClientTransport) openStream() {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		cancel()
		return
	}
	t.streamCancel = cancel
	t.mu.Unlock()

	req, err := t.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		t.reportError(err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		t.reportError(mcp.NewTransportError("failed to open event stream", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.reportError(mcp.NewTransportError(fmt.Sprintf("event stream http %d: %s", resp.StatusCode, string(body)), nil))
		return
	}

	extra := &transport.Extra{SessionID: t.SessionID()}
	if err := t.consumeSSE(resp.Body, extra); err != nil && ctx.Err() == nil {
		t.reportError(err)
	}
}

// consumeSSE reads "id: N\ndata: ...\n\n" frames as emitted by Router
// and dispatches each data payload as a message.
func (t *ClientTransport) consumeSSE(r io.Reader, extra *transport.Extra) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			var id uint64
			fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "id:")), "%d", &id)
			t.mu.Lock()
			t.lastEvent = id
			t.mu.Unlock()
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
			data = strings.TrimPrefix(data, " ")
		case line == "":
			if data == "" {
				continue
			}
			var msg mcp.Message
			if err := json.Unmarshal([]byte(data), &msg); err == nil {
				t.dispatch(&msg, extra)
			}
			data = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return mcp.NewTransportError("event stream read failed", err)
	}
	return nil
}

func (t *ClientTransport) dispatch(msg *mcp.Message, extra *transport.Extra) {
	t.handlersMu.Lock()
	handler := t.onMessage
	t.handlersMu.Unlock()
	if handler != nil {
		handler(msg, extra)
	}
}

func (t *ClientTransport) reportError(err error) {
	t.handlersMu.Lock()
	handler := t.onError
	t.handlersMu.Unlock()
	if handler != nil {
		handler(err)
	}
}
