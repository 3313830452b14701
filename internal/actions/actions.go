// Package actions handles user interactions: validate locally, call the API,
// then re-fetch just what changed. Every failure becomes a notice on the page
// and leaves the displayed view as it was.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/model"
	"github.com/alphabot-ai/feedline/internal/view"
)

const (
	MsgRegistered     = "Registration successful! Please log in."
	MsgLoginRequired  = "Please log in to create a post."
	MsgSessionNeeded  = "Please log in first."
	msgCredentials    = "Username and password are required."
	msgEmptyPost      = "Post content cannot be empty."
	msgPostFailed     = "Failed to create post"
	msgLikeFailed     = "Failed to like/unlike post"
	msgCommentFailed  = "Failed to post comment"
	msgFollowFailed   = "Failed to follow/unfollow user"
	msgRegisterFailed = "Registration failed"
)

// ValidationError blocks a call before anything is sent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type API interface {
	Login(ctx context.Context, username, password string) (model.Tokens, client.Result)
	Register(ctx context.Context, username, password, email string) client.Result
	CreatePost(ctx context.Context, content string) client.Result
	ToggleLike(ctx context.Context, postID int64) client.Result
	AddComment(ctx context.Context, postID int64, content string) client.Result
	ToggleFollow(ctx context.Context, userID int64) client.Result
}

type Tokens interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, access, refresh string) error
	CurrentUserID(ctx context.Context) (int64, bool)
}

type Handlers struct {
	api    API
	tokens Tokens
	view   *view.Renderer
	log    *slog.Logger
}

func New(api API, tokens Tokens, r *view.Renderer, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{api: api, tokens: tokens, view: r, log: log}
}

// Login stores the issued tokens and switches to the home feed.
func (h *Handlers) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return h.fail("login", &ValidationError{Msg: msgCredentials}, msgCredentials)
	}
	tokens, res := h.api.Login(ctx, username, password)
	if !res.OK() {
		msg := res.Message
		if res.Outcome == client.Unreachable {
			msg = client.LoginFailedMessage
		}
		return h.fail("login", res.Err(), msg)
	}
	if err := h.tokens.Set(ctx, tokens.Access, tokens.Refresh); err != nil {
		return h.fail("login", err, client.LoginFailedMessage)
	}
	h.log.Info("logged in", "username", username)
	return h.view.RenderHomeFeed(ctx)
}

// Register creates the account and moves the prompt to its login sub-view.
// It never logs in.
func (h *Handlers) Register(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return h.fail("register", &ValidationError{Msg: msgCredentials}, msgCredentials)
	}
	res := h.api.Register(ctx, username, password, strings.TrimSpace(email))
	if !res.OK() {
		return h.fail("register", res.Err(), msgRegisterFailed+": "+reason(res))
	}
	h.view.Page().Notify(view.LevelInfo, MsgRegistered)
	return h.view.ToggleAuth(view.LoginMode)
}

// CreatePost publishes content and re-fetches the feed.
func (h *Handlers) CreatePost(ctx context.Context, content string) error {
	if !h.bound(view.PostFormKey) {
		return nil
	}
	if !h.hasToken(ctx) {
		return h.fail("create post", &ValidationError{Msg: MsgLoginRequired}, MsgLoginRequired)
	}
	if strings.TrimSpace(content) == "" {
		return h.fail("create post", &ValidationError{Msg: msgEmptyPost}, msgEmptyPost)
	}
	res := h.api.CreatePost(ctx, content)
	if !res.OK() {
		return h.fail("create post", res.Err(), msgPostFailed+": "+reason(res))
	}
	return h.view.LoadPosts(ctx)
}

// ToggleLike asks the server to flip the like; the count shown afterwards is
// whatever the re-fetch returns.
func (h *Handlers) ToggleLike(ctx context.Context, postID int64) error {
	if !h.bound(view.LikeKey(postID)) {
		return nil
	}
	if !h.hasToken(ctx) {
		return h.fail("like", &ValidationError{Msg: MsgSessionNeeded}, MsgSessionNeeded)
	}
	res := h.api.ToggleLike(ctx, postID)
	if !res.OK() {
		return h.fail("like", res.Err(), msgLikeFailed+": "+reason(res))
	}
	return h.view.LoadPosts(ctx)
}

// AddComment does nothing for empty text.
func (h *Handlers) AddComment(ctx context.Context, postID int64, content string) error {
	if !h.bound(view.CommentKey(postID)) {
		return nil
	}
	if content == "" {
		return nil
	}
	if !h.hasToken(ctx) {
		return h.fail("comment", &ValidationError{Msg: MsgSessionNeeded}, MsgSessionNeeded)
	}
	res := h.api.AddComment(ctx, postID, content)
	if !res.OK() {
		return h.fail("comment", res.Err(), msgCommentFailed+": "+reason(res))
	}
	return h.view.LoadPosts(ctx)
}

// ToggleFollow flips the relationship and re-renders that user's profile.
func (h *Handlers) ToggleFollow(ctx context.Context, userID int64) error {
	if !h.bound(view.FollowKey(userID)) {
		return nil
	}
	if !h.hasToken(ctx) {
		return h.fail("follow", &ValidationError{Msg: MsgSessionNeeded}, MsgSessionNeeded)
	}
	res := h.api.ToggleFollow(ctx, userID)
	if !res.OK() {
		return h.fail("follow", res.Err(), msgFollowFailed+": "+reason(res))
	}
	return h.view.RenderProfile(ctx, userID)
}

// ShowHome navigates to the home feed.
func (h *Handlers) ShowHome(ctx context.Context) error {
	return h.view.RenderHomeFeed(ctx)
}

// ShowMyProfile navigates to the logged-in user's profile. Without a
// derivable identity it does nothing.
func (h *Handlers) ShowMyProfile(ctx context.Context) error {
	id, ok := h.tokens.CurrentUserID(ctx)
	if !ok {
		h.log.Debug("no identity in token, ignoring profile link")
		return nil
	}
	return h.view.RenderProfile(ctx, id)
}

// ShowAuthor follows an author link on a displayed post.
func (h *Handlers) ShowAuthor(ctx context.Context, userID int64) error {
	if !h.bound(view.AuthorKey(userID)) {
		return nil
	}
	return h.view.RenderProfile(ctx, userID)
}

// ShowProfile navigates directly to a profile by id.
func (h *Handlers) ShowProfile(ctx context.Context, userID int64) error {
	return h.view.RenderProfile(ctx, userID)
}

func (h *Handlers) bound(key string) bool {
	if h.view.Page().Bound(key) {
		return true
	}
	h.log.Info("discarding action on element that is not displayed", "element", key)
	return false
}

func (h *Handlers) hasToken(ctx context.Context) bool {
	token, err := h.tokens.Get(ctx)
	if err != nil {
		h.log.Warn("read token", "error", err)
	}
	return token != ""
}

func (h *Handlers) fail(action string, err error, notice string) error {
	h.log.Warn(action+" failed", "error", err)
	h.view.Page().Notify(view.LevelAlert, notice)
	if err == nil {
		err = errors.New(notice)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func reason(res client.Result) string {
	if res.Outcome == client.Unreachable {
		return "server unreachable"
	}
	return res.Message
}
