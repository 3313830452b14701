package httpapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/config"
	"github.com/alphabot-ai/feedline/internal/fakeapi"
	"github.com/alphabot-ai/feedline/internal/store/memory"
	"github.com/alphabot-ai/feedline/internal/view"
)

type allowAllLimiter struct{}

func (a allowAllLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	return true, 0
}

func newUnitServer(t *testing.T) *Server {
	t.Helper()
	api := httptest.NewServer(fakeapi.New())
	t.Cleanup(api.Close)

	backend, err := view.NewHTML()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	factory := ControllerFactory(Deps{
		KV:      memory.New(),
		API:     client.New(api.URL+"/api/", nil),
		Backend: backend,
	})
	cfg := config.Config{RateLimits: config.RateLimits{LoginPerMinute: 100}}
	return NewServer(NewSessions(factory, false), allowAllLimiter{}, cfg, nil)
}

func TestHealth(t *testing.T) {
	server := newUnitServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("json parse: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload)
	}
}

func TestFreshSessionSeesLoginPrompt(t *testing.T) {
	server := newUnitServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var cookie *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected an http-only session cookie, got %v", resp.Result().Cookies())
	}
	body := resp.Body.String()
	if !strings.Contains(body, `id="login-form"`) {
		t.Fatalf("expected login form, got %s", body)
	}
	if strings.Contains(body, `id="logout"`) {
		t.Fatalf("expected no logout button for anonymous session")
	}
}

func TestActionsRedirectToPage(t *testing.T) {
	server := newUnitServer(t)

	for _, path := range []string{"/login", "/register", "/logout", "/posts", "/posts/1/like", "/posts/1/comments", "/users/1/follow"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, req)
		if resp.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, resp.Code)
		}
		if loc := resp.Header().Get("Location"); loc != "/" {
			t.Fatalf("%s: expected redirect to /, got %q", path, loc)
		}
	}
}

func TestUnknownRoutes(t *testing.T) {
	server := newUnitServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts/abc/like", nil)
	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-numeric id, got %d", resp.Code)
	}
}

func TestStylesheet(t *testing.T) {
	server := newUnitServer(t)
	req := httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/css") {
		t.Fatalf("expected css, got %d %q", resp.Code, resp.Header().Get("Content-Type"))
	}
}
