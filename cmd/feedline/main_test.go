package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/feedline/internal/fakeapi"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupCLI(t *testing.T) *fakeapi.Server {
	t.Helper()
	api := fakeapi.New()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("FEEDLINE_API_URL", srv.URL+"/api/")
	t.Setenv("FEEDLINE_STORAGE", "sqlite")
	t.Setenv("FEEDLINE_STORAGE_DSN", filepath.Join(t.TempDir(), "cli.db"))
	return api
}

func TestCLISessionPersistsBetweenCommands(t *testing.T) {
	api := setupCLI(t)
	bob := api.AddUser("bob", "pw")
	postID := api.AddPost(bob, "hello from bob")

	out, err := execute(t, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "feedline login")

	out, err = execute(t, "register", "alice", "pw", "--email", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful! Please log in.")

	out, err = execute(t, "login", "alice", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "hello from bob")

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "user ")

	out, err = execute(t, "like", fmt.Sprint(postID))
	require.NoError(t, err)
	assert.Contains(t, out, "Like (1)")

	out, err = execute(t, "comment", fmt.Sprint(postID), "nice", "one")
	require.NoError(t, err)
	assert.Contains(t, out, "alice: nice one")

	out, err = execute(t, "follow", fmt.Sprint(bob))
	require.NoError(t, err)
	assert.Contains(t, out, "[Unfollow]")

	_, err = execute(t, "logout")
	require.NoError(t, err)
	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")
}

func TestCLILikeRequiresPostInFeed(t *testing.T) {
	api := setupCLI(t)
	api.AddUser("alice", "pw")

	_, err := execute(t, "login", "alice", "pw")
	require.NoError(t, err)

	_, err = execute(t, "like", "999")
	require.Error(t, err)
	assert.Zero(t, api.Count("POST", "/api/posts/999/like/"))
}

func TestCLILoginFailure(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "login", "nobody", "pw")
	require.Error(t, err)
	assert.Contains(t, out, "Login failed")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
