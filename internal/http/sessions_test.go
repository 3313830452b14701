package httpapp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/session"
	"github.com/alphabot-ai/feedline/internal/store/memory"
	"github.com/alphabot-ai/feedline/internal/view"
)

// flakyBackend fails the first auth prompt it is asked for.
type flakyBackend struct {
	view.Backend
	calls atomic.Int32
}

func (f *flakyBackend) AuthPrompt(mode view.AuthMode) (string, error) {
	if f.calls.Add(1) == 1 {
		return "", errors.New("template exploded")
	}
	return f.Backend.AuthPrompt(mode)
}

func TestFailedStartIsNotCached(t *testing.T) {
	html, err := view.NewHTML()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	backend := &flakyBackend{Backend: html}
	var built atomic.Int32
	inner := ControllerFactory(Deps{
		KV:      memory.New(),
		API:     client.New("http://127.0.0.1:1/api/", nil),
		Backend: backend,
	})
	sessions := NewSessions(func(id string) *session.Controller {
		built.Add(1)
		return inner(id)
	}, false)

	rec := httptest.NewRecorder()
	if _, err := sessions.Resolve(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatalf("expected first start to fail")
	}
	if n := sessions.Len(); n != 0 {
		t.Fatalf("expected failed session to be dropped, have %d", n)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	ctrl, err := sessions.Resolve(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if got := ctrl.Page().View().String(); got != "auth" {
		t.Fatalf("expected auth prompt, got view %s", got)
	}
	if n := built.Load(); n != 2 {
		t.Fatalf("expected a fresh controller, factory ran %d times", n)
	}
}
