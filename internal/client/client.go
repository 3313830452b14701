// Package client provides a Go client for the social feed REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alphabot-ai/feedline/internal/model"
)

// Operation names one endpoint of the remote API.
type Operation string

const (
	OpRegister     Operation = "register"
	OpLogin        Operation = "login"
	OpListPosts    Operation = "listPosts"
	OpCreatePost   Operation = "createPost"
	OpToggleLike   Operation = "toggleLike"
	OpAddComment   Operation = "addComment"
	OpToggleFollow Operation = "toggleFollow"
	OpGetUser      Operation = "getUser"
	OpGetUserPosts Operation = "getUserPosts"
)

// LoginFailedMessage replaces whatever the server says on a failed login.
const LoginFailedMessage = "Login failed. Please check your username and password."

type route struct {
	method string
	path   string
	public bool
}

var routes = map[Operation]route{
	OpRegister:     {http.MethodPost, "register/", true},
	OpLogin:        {http.MethodPost, "token/", true},
	OpListPosts:    {http.MethodGet, "posts/", false},
	OpCreatePost:   {http.MethodPost, "posts/", false},
	OpToggleLike:   {http.MethodPost, "posts/%d/like/", false},
	OpAddComment:   {http.MethodPost, "posts/%d/comments/", false},
	OpToggleFollow: {http.MethodPost, "users/%d/follow/", false},
	OpGetUser:      {http.MethodGet, "users/%d/", false},
	OpGetUserPosts: {http.MethodGet, "users/%d/posts/", false},
}

// TokenSource supplies the bearer token for authenticated operations. An
// empty token means the request goes out without an Authorization header.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a social feed API client. It never retries and never refreshes
// tokens.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Log        *slog.Logger
}

// Params carries the path parameters of an operation.
type Params struct {
	ID int64
}

// New creates a new client. No request timeout is set.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Tokens:     tokens,
		Log:        slog.Default(),
	}
}

// WithTokens returns a copy of the client that reads tokens from src.
func (c *Client) WithTokens(src TokenSource) *Client {
	cp := *c
	cp.Tokens = src
	return &cp
}

// Do performs one operation and normalizes the outcome.
func (c *Client) Do(ctx context.Context, op Operation, params Params, body any) Result {
	rt, ok := routes[op]
	if !ok {
		return Result{Op: op, Outcome: Unreachable, Cause: fmt.Errorf("unknown operation %q", op)}
	}
	path := rt.path
	if strings.Contains(path, "%d") {
		path = fmt.Sprintf(path, params.ID)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return Result{Op: op, Outcome: Unreachable, Cause: err}
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, rt.method, c.url(path), bodyReader)
	if err != nil {
		return Result{Op: op, Outcome: Unreachable, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if !rt.public && c.Tokens != nil {
		token, err := c.Tokens.AccessToken(ctx)
		if err != nil {
			c.logger().Warn("token unavailable, sending unauthenticated", "op", op, "error", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger().Debug("api unreachable", "op", op, "error", err)
		return Result{Op: op, Outcome: Unreachable, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Op: op, Outcome: Unreachable, Status: resp.StatusCode, Cause: err}
	}
	c.logger().Debug("api call",
		"op", op,
		"method", rt.method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Op:      op,
			Outcome: Failed,
			Status:  resp.StatusCode,
			Message: serverMessage(resp.StatusCode, respBody),
			Body:    respBody,
		}
	}
	return Result{Op: op, Outcome: Ok, Status: resp.StatusCode, Body: respBody}
}

// Register creates an account. It never logs in.
func (c *Client) Register(ctx context.Context, username, password, email string) Result {
	return c.Do(ctx, OpRegister, Params{}, map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	})
}

// Login exchanges credentials for a token pair. Every non-2xx is reported as
// invalid credentials.
func (c *Client) Login(ctx context.Context, username, password string) (model.Tokens, Result) {
	res := c.Do(ctx, OpLogin, Params{}, map[string]string{
		"username": username,
		"password": password,
	})
	if res.Outcome == Failed {
		res.Message = LoginFailedMessage
		return model.Tokens{}, res
	}
	var tokens model.Tokens
	res = res.decode(&tokens)
	return tokens, res
}

// ListPosts fetches the global feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]model.Post, Result) {
	var posts []model.Post
	res := c.Do(ctx, OpListPosts, Params{}, nil).decode(&posts)
	return posts, res
}

// CreatePost publishes a post as the logged-in user.
func (c *Client) CreatePost(ctx context.Context, content string) Result {
	return c.Do(ctx, OpCreatePost, Params{}, map[string]string{"content": content})
}

// ToggleLike likes or unlikes; the server decides from prior state.
func (c *Client) ToggleLike(ctx context.Context, postID int64) Result {
	return c.Do(ctx, OpToggleLike, Params{ID: postID}, nil)
}

// AddComment appends a comment to a post.
func (c *Client) AddComment(ctx context.Context, postID int64, content string) Result {
	return c.Do(ctx, OpAddComment, Params{ID: postID}, map[string]string{"content": content})
}

// ToggleFollow follows or unfollows; the server decides from prior state.
func (c *Client) ToggleFollow(ctx context.Context, userID int64) Result {
	return c.Do(ctx, OpToggleFollow, Params{ID: userID}, nil)
}

// GetUser fetches a user's profile.
func (c *Client) GetUser(ctx context.Context, userID int64) (model.UserProfile, Result) {
	var user model.UserProfile
	res := c.Do(ctx, OpGetUser, Params{ID: userID}, nil).decode(&user)
	return user, res
}

// GetUserPosts fetches the posts written by one user.
func (c *Client) GetUserPosts(ctx context.Context, userID int64) ([]model.Post, Result) {
	var posts []model.Post
	res := c.Do(ctx, OpGetUserPosts, Params{ID: userID}, nil).decode(&posts)
	return posts, res
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + path
}

func (c *Client) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

func serverMessage(status int, body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return truncate(trimmed, maxMessageLen)
	}
	return http.StatusText(status)
}

const maxMessageLen = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
