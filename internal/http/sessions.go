package httpapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/session"
	"github.com/alphabot-ai/feedline/internal/store"
	"github.com/alphabot-ai/feedline/internal/view"
)

const SessionCookie = "feedline_session"

// Factory builds the controller for one browser session.
type Factory func(id string) *session.Controller

type Deps struct {
	KV           store.KV
	API          *client.Client
	Backend      view.Backend
	Sealer       *auth.Sealer
	StrictRender bool
	Location     *time.Location
	Log          *slog.Logger
}

// ControllerFactory gives every browser session its own token storage,
// scoped by session id inside the shared backend.
func ControllerFactory(d Deps) Factory {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return func(id string) *session.Controller {
		opts := []auth.Option{auth.WithLogger(d.Log)}
		if d.Sealer != nil {
			opts = append(opts, auth.WithSealer(d.Sealer))
		}
		tokens := auth.NewTokenStore(store.Scoped(d.KV, id), opts...)
		return session.New(session.Config{
			API:          d.API.WithTokens(tokens),
			Tokens:       tokens,
			Backend:      d.Backend,
			StrictRender: d.StrictRender,
			Location:     d.Location,
			Log:          d.Log.With("session", id[:8]),
		})
	}
}

type entry struct {
	ctrl     *session.Controller
	lastSeen time.Time
}

// Sessions maps session cookies to live controllers. A controller evicted
// from memory is rebuilt from its stored tokens on the next request.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]*entry
	factory Factory
	secure  bool
}

func NewSessions(factory Factory, secureCookie bool) *Sessions {
	return &Sessions{byID: make(map[string]*entry), factory: factory, secure: secureCookie}
}

// Resolve returns the caller's controller, issuing a cookie and running the
// startup decision for sessions this process has not seen yet.
func (s *Sessions) Resolve(w http.ResponseWriter, r *http.Request) (*session.Controller, error) {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	s.mu.Lock()
	e, ok := s.byID[id]
	if ok {
		e.lastSeen = time.Now()
		s.mu.Unlock()
		return e.ctrl, nil
	}
	e = &entry{ctrl: s.factory(id), lastSeen: time.Now()}
	s.byID[id] = e
	s.mu.Unlock()

	if err := e.ctrl.Start(r.Context()); err != nil {
		s.mu.Lock()
		if s.byID[id] == e {
			delete(s.byID, id)
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("start session: %w", err)
	}
	return e.ctrl, nil
}

// Sweep forgets controllers idle for longer than maxIdle. Stored tokens are
// kept.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for id, e := range s.byID {
		if e.lastSeen.Before(cutoff) {
			delete(s.byID, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval, maxIdle time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				log.Debug("swept idle sessions", "count", n)
			}
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
