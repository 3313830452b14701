package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/model"
)

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesDecodableTokens(t *testing.T) {
	s := New()
	id := s.AddUser("alice", "pw")

	rec := do(t, s, http.MethodPost, "/api/token/", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens model.Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	got, ok := auth.UserIDFromToken(tokens.Access)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.NotEmpty(t, tokens.Refresh)

	rec = do(t, s, http.MethodPost, "/api/token/", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := New()
	rec := do(t, s, http.MethodGet, "/api/posts/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/posts/", "a.b.c", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLikeAndFollowToggle(t *testing.T) {
	s := New()
	alice := s.AddUser("alice", "pw")
	bob := s.AddUser("bob", "pw")
	postID := s.AddPost(bob, "hello")
	token := s.IssueToken(alice)

	do(t, s, http.MethodPost, "/api/posts/1/like/", token, nil)
	rec := do(t, s, http.MethodGet, "/api/posts/", token, nil)
	var posts []model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, postID, posts[0].ID)
	assert.Equal(t, 1, posts[0].LikesCount)

	do(t, s, http.MethodPost, "/api/posts/1/like/", token, nil)
	rec = do(t, s, http.MethodGet, "/api/posts/", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	assert.Equal(t, 0, posts[0].LikesCount)

	do(t, s, http.MethodPost, "/api/users/2/follow/", token, nil)
	rec = do(t, s, http.MethodGet, "/api/users/2/", token, nil)
	var profile model.UserProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, bob, profile.ID)
	assert.Equal(t, 1, profile.FollowersCount)
	assert.Nil(t, profile.IsFollowing)

	rec = do(t, s, http.MethodPost, "/api/users/1/follow/", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInjectAndRecord(t *testing.T) {
	s := New()
	s.Inject(http.MethodGet, "/api/posts/", http.StatusInternalServerError, `{"error":"boom"}`)

	rec := do(t, s, http.MethodGet, "/api/posts/", "x.y.z", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer x.y.z", reqs[0].Authorization)
	assert.Equal(t, 1, s.Count(http.MethodGet, "/api/posts/"))

	s.Clear()
	rec = do(t, s, http.MethodGet, "/api/posts/", "x.y.z", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordsStoredHashed(t *testing.T) {
	s := New()
	rec := do(t, s, http.MethodPost, "/api/register/", "", map[string]string{"username": "bob", "password": "hunter2", "email": "b@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	s.mu.Lock()
	hash := s.users[s.byName["bob"]].hash
	s.mu.Unlock()
	assert.NotContains(t, string(hash), "hunter2")

	rec = do(t, s, http.MethodPost, "/api/token/", "", map[string]string{"username": "bob", "password": "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/token/", "", map[string]string{"username": "bob", "password": "hunter3"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
