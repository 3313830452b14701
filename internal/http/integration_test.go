package httpapp

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/config"
	"github.com/alphabot-ai/feedline/internal/fakeapi"
	"github.com/alphabot-ai/feedline/internal/rate"
	"github.com/alphabot-ai/feedline/internal/store/sqlite"
	"github.com/alphabot-ai/feedline/internal/view"
)

type testClient struct {
	server   *httptest.Server
	api      *fakeapi.Server
	sessions *Sessions
}

// browser is one cookie jar talking to the front end.
type browser struct {
	tc     *testClient
	client *http.Client
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	return newTestClientWithConfig(t, config.Config{RateLimits: config.RateLimits{LoginPerMinute: 1000}})
}

func newTestClientWithConfig(t *testing.T, cfg config.Config) *testClient {
	t.Helper()
	api := fakeapi.New()
	apiServer := httptest.NewServer(api)

	dsnName := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	backend, err := view.NewHTML()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	sessions := NewSessions(ControllerFactory(Deps{
		KV:           st,
		API:          client.New(apiServer.URL+"/api/", nil),
		Backend:      backend,
		StrictRender: cfg.StrictRender,
	}), false)
	server := NewServer(sessions, rate.NewMemory(), cfg, nil)
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		apiServer.Close()
		_ = st.Close()
	})
	return &testClient{server: ts, api: api, sessions: sessions}
}

func (tc *testClient) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &browser{tc: tc, client: &http.Client{Jar: jar}}
}

func (b *browser) get(t *testing.T, path string) *goquery.Document {
	t.Helper()
	resp, err := b.client.Get(b.tc.server.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return readPage(t, resp)
}

func (b *browser) postForm(t *testing.T, path string, form url.Values) *goquery.Document {
	t.Helper()
	resp, err := b.client.PostForm(b.tc.server.URL+path, form)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return readPage(t, resp)
}

func readPage(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after redirect, got %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func (b *browser) login(t *testing.T, username, password string) *goquery.Document {
	t.Helper()
	return b.postForm(t, "/login", url.Values{"username": {username}, "password": {password}})
}

func notices(doc *goquery.Document) []string {
	var out []string
	doc.Find(".notice").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func TestRegisterLoginPostFlow(t *testing.T) {
	tc := newTestClient(t)
	b := tc.newBrowser(t)

	doc := b.get(t, "/auth/register")
	if _, hidden := doc.Find("#register-form").Attr("hidden"); hidden {
		t.Fatalf("expected register form visible")
	}

	doc = b.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {"pw"}, "email": {"a@example.com"}})
	if got := notices(doc); len(got) != 1 || got[0] != "Registration successful! Please log in." {
		t.Fatalf("unexpected notices %v", got)
	}
	if _, hidden := doc.Find("#login-form").Attr("hidden"); hidden {
		t.Fatalf("expected login form visible after registering")
	}

	doc = b.login(t, "alice", "pw")
	if doc.Find("#post-form").Length() != 1 {
		t.Fatalf("expected home feed after login")
	}
	if doc.Find("#logout").Length() != 1 {
		t.Fatalf("expected logout button")
	}

	doc = b.postForm(t, "/posts", url.Values{"content": {"hello from the web"}})
	if got := doc.Find(".post-content").Text(); got != "hello from the web" {
		t.Fatalf("expected new post in feed, got %q", got)
	}
	if got := doc.Find(".like-btn").Text(); got != "Like (0)" {
		t.Fatalf("expected Like (0), got %q", got)
	}

	postID, _ := doc.Find("article.post").Attr("data-post-id")
	doc = b.postForm(t, "/posts/"+postID+"/like", nil)
	if got := doc.Find(".like-btn").Text(); got != "Like (1)" {
		t.Fatalf("expected Like (1), got %q", got)
	}

	doc = b.postForm(t, "/posts/"+postID+"/comments", url.Values{"content": {"first!"}})
	if got := doc.Find(".comments li").Text(); got != "alice: first!" {
		t.Fatalf("expected comment, got %q", got)
	}
}

func TestBrowsersAreIsolated(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")

	alice := tc.newBrowser(t)
	alice.login(t, "alice", "pw")

	other := tc.newBrowser(t)
	doc := other.get(t, "/")
	if doc.Find("#login-form").Length() != 1 || doc.Find("#logout").Length() != 0 {
		t.Fatalf("second browser must not share the first one's session")
	}
}

func TestProfileAndFollow(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")
	bob := tc.api.AddUser("bob", "pw")
	tc.api.AddPost(bob, "bob here")

	b := tc.newBrowser(t)
	b.login(t, "alice", "pw")

	doc := b.get(t, fmt.Sprintf("/users/%d", bob))
	if got := doc.Find(".profile-username").Text(); got != "bob" {
		t.Fatalf("expected bob's profile, got %q", got)
	}
	if got := doc.Find("#follow-btn").Text(); got != "Follow" {
		t.Fatalf("expected Follow, got %q", got)
	}

	doc = b.postForm(t, fmt.Sprintf("/users/%d/follow", bob), nil)
	if got := doc.Find("#follow-btn").Text(); got != "Unfollow" {
		t.Fatalf("expected Unfollow, got %q", got)
	}

	doc = b.get(t, "/me")
	if got := doc.Find(".profile-username").Text(); got != "alice" {
		t.Fatalf("expected own profile, got %q", got)
	}
	if doc.Find("#follow-btn").Length() != 0 {
		t.Fatalf("own profile must not offer follow")
	}

	doc = b.get(t, "/home")
	if doc.Find("#post-form").Length() != 1 {
		t.Fatalf("expected home feed")
	}
}

func TestAuthorLinkRequiresDisplayedAuthor(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")
	carol := tc.api.AddUser("carol", "pw")

	b := tc.newBrowser(t)
	b.login(t, "alice", "pw")
	tc.api.ResetRequests()

	doc := b.get(t, fmt.Sprintf("/users/%d", carol))
	if doc.Find("#post-form").Length() != 1 {
		t.Fatalf("expected to stay on the home feed")
	}
	if n := tc.api.Count(http.MethodGet, fmt.Sprintf("/api/users/%d/", carol)); n != 0 {
		t.Fatalf("expected no profile request, got %d", n)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")

	b := tc.newBrowser(t)
	b.login(t, "alice", "pw")
	doc := b.postForm(t, "/logout", nil)
	if doc.Find("#login-form").Length() != 1 {
		t.Fatalf("expected login prompt after logout")
	}

	doc = b.postForm(t, "/posts", url.Values{"content": {"ghost"}})
	if doc.Find("article.post").Length() != 0 {
		t.Fatalf("expected no posts after logout")
	}
}

func TestFailedLikeShowsNotice(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")
	bob := tc.api.AddUser("bob", "pw")
	postID := tc.api.AddPost(bob, "hi")

	b := tc.newBrowser(t)
	b.login(t, "alice", "pw")
	tc.api.Inject(http.MethodPost, fmt.Sprintf("/api/posts/%d/like/", postID), http.StatusInternalServerError, `{"error":"try later"}`)

	doc := b.postForm(t, fmt.Sprintf("/posts/%d/like", postID), nil)
	got := notices(doc)
	if len(got) != 1 || !strings.Contains(got[0], "try later") {
		t.Fatalf("expected failure notice, got %v", got)
	}
	if label := doc.Find(".like-btn").Text(); label != "Like (0)" {
		t.Fatalf("expected feed unchanged, got %q", label)
	}

	doc = b.get(t, "/")
	if len(notices(doc)) != 0 {
		t.Fatalf("notices must be shown once")
	}
}

func TestLoginThrottle(t *testing.T) {
	tc := newTestClientWithConfig(t, config.Config{RateLimits: config.RateLimits{LoginPerMinute: 2}})
	tc.api.AddUser("alice", "pw")
	b := tc.newBrowser(t)

	b.login(t, "alice", "wrong")
	b.login(t, "alice", "wrong")
	doc := b.login(t, "alice", "pw")
	got := notices(doc)
	if len(got) != 1 || !strings.HasPrefix(got[0], "Too many login attempts") {
		t.Fatalf("expected throttle notice, got %v", got)
	}
	if doc.Find("#login-form").Length() != 1 {
		t.Fatalf("expected to remain logged out")
	}
}

func TestSessionSurvivesEviction(t *testing.T) {
	tc := newTestClient(t)
	tc.api.AddUser("alice", "pw")
	b := tc.newBrowser(t)
	b.login(t, "alice", "pw")

	if n := tc.sessions.Sweep(0); n != 1 {
		t.Fatalf("expected one swept session, got %d", n)
	}
	doc := b.get(t, "/")
	if doc.Find("#post-form").Length() != 1 {
		t.Fatalf("expected stored tokens to restore the home feed")
	}
}
