// Package httptransport implements the streamable-HTTP transport: a
// single "/mcp" endpoint speaking POST (client request/notification
// in, response or SSE stream out), GET (a standing SSE stream for
// server-initiated traffic) and DELETE (explicit session teardown),
// correlated by an Mcp-Session-Id header.
package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// SessionHeader is the header carrying the streamable-HTTP session id,
// issued by the server on the response to the initializing POST.
const SessionHeader = "Mcp-Session-Id"

// NewServerFunc builds the façade (typically a *server.Server) bound to
// t for a newly created session. Returning an error rejects the
// initializing request with 500.
type NewServerFunc func(t transport.Transport) (Connectable, error)

// Connectable is the subset of *server.Server that the router drives.
// *server.Server satisfies this directly.
type Connectable interface {
	Connect(ctx context.Context) error
}

// Config configures the streamable-HTTP router.
type Config struct {
	NewServer NewServerFunc

	// EventStoreCap bounds how many SSE events are retained for
	// Last-Event-ID replay. 0 disables resumability.
	EventStoreCap int

	// RateLimit and RateBurst throttle POST intake per session via a
	// token bucket. Zero RateLimit disables throttling.
	RateLimit rate.Limit
	RateBurst int

	// CORSOrigins is passed through to go-chi/cors. Defaults to "*".
	CORSOrigins []string

	// Authenticate, if set, runs on every POST/GET before the message
	// reaches the session. Its return value becomes RequestExtra.AuthInfo
	// for requests; a non-nil error rejects the call with 401.
	Authenticate func(r *http.Request) (interface{}, error)
}

// Router serves the streamable-HTTP transport over chi.
type Router struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*session

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	http.Handler
}

// NewRouter builds the chi-backed http.Handler for "/mcp".
func NewRouter(cfg Config) *Router {
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}

	rt := &Router{
		cfg:      cfg,
		sessions: make(map[string]*session),
		limiters: make(map[string]*rate.Limiter),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", SessionHeader, "Last-Event-ID"},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
	}))

	r.Route("/mcp", func(r chi.Router) {
		r.Post("/", rt.handlePost)
		r.Get("/", rt.handleGet)
		r.Delete("/", rt.handleDelete)
	})

	rt.Handler = r
	return rt
}

func (rt *Router) session(id string) (*session, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	s, ok := rt.sessions[id]
	return s, ok
}

func (rt *Router) limiterFor(id string) *rate.Limiter {
	rt.limitersMu.Lock()
	defer rt.limitersMu.Unlock()
	l, ok := rt.limiters[id]
	if !ok {
		l = rate.NewLimiter(rt.cfg.RateLimit, rt.cfg.RateBurst)
		rt.limiters[id] = l
	}
	return l
}

func (rt *Router) handlePost(w http.ResponseWriter, r *http.Request) {
	var msg mcp.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, fmt.Sprintf("malformed json-rpc envelope: %v", err), http.StatusBadRequest)
		return
	}

	sessID := r.Header.Get(SessionHeader)
	var sess *session
	var isNewSession bool

	if sessID == "" {
		if msg.Method != "initialize" {
			http.Error(w, "missing "+SessionHeader, http.StatusBadRequest)
			return
		}
		sessID = uuid.NewString()
		isNewSession = true
		store := EventStore(noopEventStore{})
		if rt.cfg.EventStoreCap > 0 {
			store = NewMemoryEventStore(rt.cfg.EventStoreCap)
		}
		sess = newSession(sessID, store)

		conn, err := rt.cfg.NewServer(sess)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to initialize session: %v", err), http.StatusInternalServerError)
			return
		}
		if err := conn.Connect(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("failed to start session: %v", err), http.StatusInternalServerError)
			return
		}

		rt.mu.Lock()
		rt.sessions[sessID] = sess
		rt.mu.Unlock()
	} else {
		var ok bool
		sess, ok = rt.session(sessID)
		if !ok {
			http.Error(w, "unknown "+SessionHeader, http.StatusNotFound)
			return
		}
	}

	if rt.cfg.RateLimit > 0 && !rt.limiterFor(sessID).Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var authInfo interface{}
	if rt.cfg.Authenticate != nil {
		info, err := rt.cfg.Authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		authInfo = info
	}

	if msg.IsNotification() {
		sess.deliver(&msg, authInfo)
		if isNewSession {
			w.Header().Set(SessionHeader, sessID)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// A request: subscribe to its response stream BEFORE delivering,
	// so a fast handler's reply can never race ahead of the subscribe.
	streamID := msg.ID.String()
	ch := make(chan frame, 8)
	sess.subscribe(streamID, ch)
	defer sess.unsubscribe(streamID, ch)

	sess.deliver(&msg, authInfo)

	wantsStream := acceptsEventStream(r)
	if isNewSession {
		w.Header().Set(SessionHeader, sessID)
	}

	if !wantsStream {
		select {
		case f := <-ch:
			w.Header().Set("Content-Type", "application/json")
			w.Write(f.data)
		case <-r.Context().Done():
		}
		return
	}

	streamSSE(w, r, ch, func(f frame) bool {
		return isFinalResponse(f.data, streamID)
	})
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.Authenticate != nil {
		if _, err := rt.cfg.Authenticate(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	sessID := r.Header.Get(SessionHeader)
	sess, ok := rt.session(sessID)
	if !ok {
		http.Error(w, "unknown "+SessionHeader, http.StatusNotFound)
		return
	}

	ch := make(chan frame, 32)
	sess.subscribe(defaultStream, ch)
	defer sess.unsubscribe(defaultStream, ch)

	if lastID, err := parseLastEventID(r); err == nil && lastID > 0 {
		for _, ev := range sess.store.Replay(defaultStream, lastID) {
			select {
			case ch <- frame{id: ev.ID, data: ev.Data}:
			default:
			}
		}
	}

	streamSSE(w, r, ch, func(frame) bool { return false })
}

func (rt *Router) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessID := r.Header.Get(SessionHeader)
	rt.mu.Lock()
	sess, ok := rt.sessions[sessID]
	delete(rt.sessions, sessID)
	rt.mu.Unlock()
	if !ok {
		http.Error(w, "unknown "+SessionHeader, http.StatusNotFound)
		return
	}
	sess.Close()

	rt.limitersMu.Lock()
	delete(rt.limiters, sessID)
	rt.limitersMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// streamSSE writes frames from ch as they arrive until the request
// context ends or done(f) reports the stream has reached its natural
// end (the final response frame for a request-scoped stream).
func streamSSE(w http.ResponseWriter, r *http.Request, ch chan frame, done func(frame) bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case f := <-ch:
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", f.id, f.data)
			flusher.Flush()
			if done(f) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func acceptsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func parseLastEventID(r *http.Request) (uint64, error) {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

// isFinalResponse reports whether data is a response (result or error)
// whose id matches streamID, meaning no further frames for this
// request-scoped stream are coming.
func isFinalResponse(data []byte, streamID string) bool {
	var m mcp.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	return m.IsResponse() && m.ID.String() == streamID
}

// noopEventStore is used when EventStoreCap is 0: Send still works,
// replay after a reconnect is simply empty.
type noopEventStore struct{}

func (noopEventStore) Append(string, []byte) uint64  { return 0 }
func (noopEventStore) Replay(string, uint64) []Event { return nil }
