// Package session decides what a client shows: the auth prompt while no
// token is held, the home feed once one is.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/alphabot-ai/feedline/internal/actions"
	"github.com/alphabot-ai/feedline/internal/view"
)

const (
	StateUnauthenticated = "unauthenticated"
	StateAuthenticated   = "authenticated"

	EventLogin  = "login"
	EventLogout = "logout"
)

type API interface {
	view.API
	actions.API
}

type Tokens interface {
	actions.Tokens
	Clear(ctx context.Context) error
}

type Config struct {
	API     API
	Tokens  Tokens
	Backend view.Backend
	// StrictRender discards posts renders overtaken by a newer one.
	StrictRender bool
	Location     *time.Location
	Log          *slog.Logger
}

type Controller struct {
	cfg   Config
	state *fsm.FSM

	mu       sync.RWMutex
	renderer *view.Renderer
	handlers *actions.Handlers
}

func New(cfg Config) *Controller {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	c := &Controller{cfg: cfg}
	c.state = fsm.NewFSM(
		StateUnauthenticated,
		fsm.Events{
			{Name: EventLogin, Src: []string{StateUnauthenticated}, Dst: StateAuthenticated},
			{Name: EventLogout, Src: []string{StateUnauthenticated, StateAuthenticated}, Dst: StateUnauthenticated},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				cfg.Log.Debug("session state", "from", e.Src, "to", e.Dst, "event", e.Event)
			},
		},
	)
	c.reset()
	return c
}

func (c *Controller) reset() {
	page := view.NewPage(c.cfg.StrictRender)
	r := view.NewRenderer(page, c.cfg.Backend, c.cfg.API, c.cfg.Tokens,
		view.WithLocation(c.cfg.Location),
		view.WithLogger(c.cfg.Log),
	)
	c.mu.Lock()
	c.renderer = r
	c.handlers = actions.New(c.cfg.API, c.cfg.Tokens, r, c.cfg.Log)
	c.mu.Unlock()
}

// Start makes the startup decision from token presence alone. Token expiry
// is only discovered when a request fails.
func (c *Controller) Start(ctx context.Context) error {
	token, err := c.cfg.Tokens.Get(ctx)
	if err != nil {
		c.cfg.Log.Warn("read token at startup", "error", err)
	}
	if token == "" {
		c.state.SetState(StateUnauthenticated)
		return c.Renderer().RenderAuthPrompt(view.LoginMode)
	}
	c.state.SetState(StateAuthenticated)
	return c.Renderer().RenderHomeFeed(ctx)
}

func (c *Controller) State() string { return c.state.Current() }

func (c *Controller) Renderer() *view.Renderer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.renderer
}

func (c *Controller) Actions() *actions.Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

func (c *Controller) Page() *view.Page { return c.Renderer().Page() }

// Login runs the login action and, on success, moves to authenticated.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if err := c.Actions().Login(ctx, username, password); err != nil {
		return err
	}
	return c.fire(ctx, EventLogin)
}

// Logout clears both tokens and reloads: all displayed state is dropped and
// the startup decision runs again.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.cfg.Tokens.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := c.fire(ctx, EventLogout); err != nil {
		return err
	}
	return c.Reload(ctx)
}

// Reload discards the page and starts over.
func (c *Controller) Reload(ctx context.Context) error {
	c.reset()
	return c.Start(ctx)
}

// Document renders the current page, consuming pending notices.
func (c *Controller) Document(ctx context.Context) (string, error) {
	return c.Renderer().Document(ctx)
}

func (c *Controller) fire(ctx context.Context, event string) error {
	err := c.state.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err == nil || errors.As(err, &noTransition) {
		return nil
	}
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		// logging in twice keeps the session authenticated
		c.cfg.Log.Debug("ignoring event", "event", event, "state", c.state.Current())
		return nil
	}
	return fmt.Errorf("session %s: %w", event, err)
}
