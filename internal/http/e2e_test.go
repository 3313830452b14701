package httpapp_test

import (
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/config"
	"github.com/alphabot-ai/feedline/internal/fakeapi"
	httpapp "github.com/alphabot-ai/feedline/internal/http"
	"github.com/alphabot-ai/feedline/internal/rate"
	"github.com/alphabot-ai/feedline/internal/store/sqlite"
	"github.com/alphabot-ai/feedline/internal/view"
)

func serve(t *testing.T, handler http.Handler) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	httpServer := &http.Server{Handler: handler}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	t.Cleanup(func() { _ = httpServer.Close() })
	return "http://" + listener.Addr().String()
}

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	api := fakeapi.New()
	api.AddUser("e2e", "secret")
	apiURL := serve(t, api) + "/api/"

	sealer, err := auth.NewSealer("e2e-storage-key")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	backend, err := view.NewHTML()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	cfg := config.Config{
		Addr:       ":0",
		APIURL:     apiURL,
		RateLimits: config.RateLimits{LoginPerMinute: 1000},
	}
	sessions := httpapp.NewSessions(httpapp.ControllerFactory(httpapp.Deps{
		KV:      st,
		API:     client.New(cfg.APIURL, nil),
		Backend: backend,
		Sealer:  sealer,
	}), false)
	baseURL := serve(t, httpapp.NewServer(sessions, rate.NewMemory(), cfg, nil))

	jar, _ := cookiejar.New(nil)
	browser := &http.Client{Jar: jar}

	resp, err := browser.PostForm(baseURL+"/login", url.Values{"username": {"e2e"}, "password": {"secret"}})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode, string(body))
	}
	if !strings.Contains(string(body), `id="post-form"`) {
		t.Fatalf("expected home feed after login: %s", string(body))
	}

	resp, err = browser.PostForm(baseURL+"/posts", url.Values{"content": {"E2E post"}})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "E2E post") {
		t.Fatalf("expected post in feed: %s", string(body))
	}

	for _, req := range api.Requests() {
		if req.Path == "/api/posts/" && !strings.HasPrefix(req.Authorization, "Bearer ") {
			t.Fatalf("expected bearer token on %s %s", req.Method, req.Path)
		}
	}
}
