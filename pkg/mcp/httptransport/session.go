package httptransport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// frame is one queued SSE payload plus the event id it was recorded
// under, so a subscriber can report the last id it forwarded.
type frame struct {
	id   uint64
	data []byte
}

// session is the Transport a streamable-HTTP connection hands to
// protocol.New. Every inbound POST/GET/DELETE for one Mcp-Session-Id
// shares one session; Send fans a message out to whichever SSE stream
// is listening for it (the request-scoped stream opened by the POST
// that triggered it, falling back to the standing GET stream), and
// records it in the EventStore for Last-Event-ID replay.
type session struct {
	id    string
	store EventStore

	mu        sync.Mutex
	connected bool
	onMessage func(*mcp.Message, *transport.Extra)
	onError   func(error)
	onClose   func()

	subsMu sync.Mutex
	subs   map[string][]chan frame
}

func newSession(id string, store EventStore) *session {
	return &session{
		id:    id,
		store: store,
		subs:  make(map[string][]chan frame),
	}
}

func (s *session) SessionID() string { return s.id }

func (s *session) SetHandlers(onMessage func(*mcp.Message, *transport.Extra), onError func(error), onClose func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = onMessage
	s.onError = onError
	s.onClose = onClose
}

func (s *session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// deliver feeds an inbound HTTP body message into the protocol engine,
// tagged with this session's id and, when the router authenticated the
// request, the resulting authInfo so handlers can see both via RequestExtra.
func (s *session) deliver(msg *mcp.Message, authInfo interface{}) {
	s.mu.Lock()
	handler := s.onMessage
	connected := s.connected
	s.mu.Unlock()
	if connected && handler != nil {
		handler(msg, &transport.Extra{SessionID: s.id, AuthInfo: authInfo})
	}
}

func (s *session) Send(ctx context.Context, msg *mcp.Message, opts *transport.SendOptions) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return mcp.NewTransportError("failed to marshal message", err)
	}

	streamID := defaultStream
	if opts != nil && opts.RelatedRequestID != nil {
		streamID = opts.RelatedRequestID.String()
	}

	id := s.store.Append(streamID, data)
	f := frame{id: id, data: data}

	if !s.publish(streamID, f) && streamID != defaultStream {
		// No one is listening on the request-scoped stream (the POST
		// that opened it may already have returned) - fall back to the
		// session's standing GET stream so the message isn't dropped.
		s.publish(defaultStream, f)
	}
	return nil
}

// publish delivers f to every current subscriber of streamID and
// reports whether there was at least one.
func (s *session) publish(streamID string, f frame) bool {
	s.subsMu.Lock()
	chans := append([]chan frame(nil), s.subs[streamID]...)
	s.subsMu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- f:
		default:
			// Slow subscriber: drop rather than block Send, matching
			// the in-memory Transport's async dispatch discipline.
		}
	}
	return len(chans) > 0
}

// subscribe registers ch to receive frames published on streamID until
// unsubscribe is called. Replay of earlier events is the caller's
// responsibility (via EventStore.Replay) after calling subscribe, so a
// publish landing between the two is not lost.
func (s *session) subscribe(streamID string, ch chan frame) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[streamID] = append(s.subs[streamID], ch)
}

func (s *session) unsubscribe(streamID string, ch chan frame) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	list := s.subs[streamID]
	for i, c := range list {
		if c == ch {
			s.subs[streamID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.subs[streamID]) == 0 {
		delete(s.subs, streamID)
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	already := !s.connected
	s.connected = false
	closeFn := s.onClose
	s.mu.Unlock()
	if already {
		return nil
	}
	if closeFn != nil {
		closeFn()
	}
	return nil
}

// defaultStream is the streamID for the session's standing GET stream,
// carrying messages not tied to any single in-flight POST request.
const defaultStream = ""
