// Package view owns the displayed page: which view is active, the markup of
// its regions, and the interactive elements that markup created.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/model"
)

const (
	MsgLoadingPosts = "Loading posts..."
	MsgPostsError   = "Error loading posts. Please try again."
	MsgProfileError = "Error loading profile."
)

// API is the subset of the remote API the renderer reads from.
type API interface {
	ListPosts(ctx context.Context) ([]model.Post, client.Result)
	GetUser(ctx context.Context, userID int64) (model.UserProfile, client.Result)
	GetUserPosts(ctx context.Context, userID int64) ([]model.Post, client.Result)
}

// Identity answers who is logged in.
type Identity interface {
	Get(ctx context.Context) (string, error)
	CurrentUserID(ctx context.Context) (int64, bool)
}

type Renderer struct {
	page    *Page
	backend Backend
	api     API
	ident   Identity
	loc     *time.Location
	log     *slog.Logger
}

type Option func(*Renderer)

// WithLocation sets the zone timestamps are displayed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) { r.loc = loc }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

func NewRenderer(page *Page, backend Backend, api API, ident Identity, opts ...Option) *Renderer {
	r := &Renderer{
		page:    page,
		backend: backend,
		api:     api,
		ident:   ident,
		loc:     time.Local,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Page() *Page { return r.page }

// RenderAuthPrompt shows the login/register pair with mode visible.
func (r *Renderer) RenderAuthPrompt(mode AuthMode) error {
	markup, err := r.backend.AuthPrompt(mode)
	if err != nil {
		return fmt.Errorf("render auth prompt: %w", err)
	}
	t := r.page.Navigate()
	r.page.SetAuthMode(mode)
	r.page.CommitMain(t, model.View{Kind: model.ViewAuthPrompt}, Fragment{Markup: markup}, Fragment{})
	return nil
}

// ToggleAuth switches the visible auth sub-view. It does nothing unless the
// auth prompt is displayed.
func (r *Renderer) ToggleAuth(mode AuthMode) error {
	if r.page.View().Kind != model.ViewAuthPrompt {
		return nil
	}
	return r.RenderAuthPrompt(mode)
}

// RenderHomeFeed shows the composition form and the posts container, then
// fills the container from the feed.
func (r *Renderer) RenderHomeFeed(ctx context.Context) error {
	markup, err := r.backend.HomeFeed()
	if err != nil {
		return fmt.Errorf("render home feed: %w", err)
	}
	loading, err := r.backend.Message(MsgLoadingPosts)
	if err != nil {
		return fmt.Errorf("render home feed: %w", err)
	}
	t := r.page.Navigate()
	main := Fragment{Markup: markup, Bindings: []string{PostFormKey}}
	if !r.page.CommitMain(t, model.View{Kind: model.ViewHomeFeed}, main, Fragment{Markup: loading}) {
		return nil
	}
	return r.LoadPosts(ctx)
}

// LoadPosts re-fetches the posts of the displayed view into its posts
// region. Without a token nothing is fetched.
func (r *Renderer) LoadPosts(ctx context.Context) error {
	if k := r.page.View().Kind; k != model.ViewHomeFeed && k != model.ViewProfile {
		return nil
	}
	token, err := r.ident.Get(ctx)
	if err != nil {
		r.log.Warn("read token", "error", err)
	}
	if token == "" {
		return nil
	}

	// target view and ticket come from one snapshot
	t, v := r.page.BeginPosts()
	if v.Kind != model.ViewHomeFeed && v.Kind != model.ViewProfile {
		return nil
	}
	var (
		posts []model.Post
		res   client.Result
	)
	if v.Kind == model.ViewProfile {
		posts, res = r.api.GetUserPosts(ctx, v.UserID)
	} else {
		posts, res = r.api.ListPosts(ctx)
	}

	var frag Fragment
	if !res.OK() {
		r.log.Warn("load posts failed", "view", v.String(), "error", res.Err())
		markup, err := r.backend.Message(MsgPostsError)
		if err != nil {
			return fmt.Errorf("render posts error: %w", err)
		}
		frag = Fragment{Markup: markup}
	} else {
		frag, err = r.postsFragment(posts)
		if err != nil {
			return err
		}
	}
	if !r.page.CommitPosts(t, frag) {
		r.log.Debug("discarding stale posts render", "view", v.String())
	}
	return nil
}

// RenderPosts replaces the posts container of the displayed view.
func (r *Renderer) RenderPosts(posts []model.Post) error {
	t, _ := r.page.BeginPosts()
	frag, err := r.postsFragment(posts)
	if err != nil {
		return err
	}
	r.page.CommitPosts(t, frag)
	return nil
}

// RenderProfile fetches the user and their posts concurrently. If either
// fetch fails only an error message is shown.
func (r *Renderer) RenderProfile(ctx context.Context, userID int64) error {
	t := r.page.Navigate()
	target := model.View{Kind: model.ViewProfile, UserID: userID}

	var (
		user  model.UserProfile
		posts []model.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var res client.Result
		user, res = r.api.GetUser(gctx, userID)
		return res.Err()
	})
	g.Go(func() error {
		var res client.Result
		posts, res = r.api.GetUserPosts(gctx, userID)
		return res.Err()
	})
	if err := g.Wait(); err != nil {
		r.log.Warn("load profile failed", "user_id", userID, "error", err)
		markup, err := r.backend.Message(MsgProfileError)
		if err != nil {
			return fmt.Errorf("render profile error: %w", err)
		}
		r.commitMain(t, target, Fragment{Markup: markup}, Fragment{})
		return nil
	}

	data := ProfileData{
		ID:             userID,
		Username:       user.Username,
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
		FollowLabel:    followLabel(user),
	}
	current, known := r.ident.CurrentUserID(ctx)
	data.ShowFollow = !known || current != userID

	markup, err := r.backend.Profile(data)
	if err != nil {
		return fmt.Errorf("render profile: %w", err)
	}
	postsFrag, err := r.postsFragment(posts)
	if err != nil {
		return err
	}
	main := Fragment{Markup: markup}
	if data.ShowFollow {
		main.Bindings = []string{FollowKey(userID)}
	}
	r.commitMain(t, target, main, postsFrag)
	return nil
}

func (r *Renderer) commitMain(t Ticket, v model.View, main, posts Fragment) {
	if !r.page.CommitMain(t, v, main, posts) {
		r.log.Debug("discarding stale view render", "view", v.String())
	}
}

func (r *Renderer) postsFragment(posts []model.Post) (Fragment, error) {
	data := make([]PostData, 0, len(posts))
	bindings := make([]string, 0, len(posts)*3)
	for _, p := range posts {
		pd := PostData{
			ID:         p.ID,
			AuthorID:   p.Author.ID,
			AuthorName: p.Author.Username,
			Timestamp:  formatTime(p.CreatedAt, r.loc),
			Content:    p.Content,
			LikeLabel:  likeLabel(p.LikesCount),
			Comments:   make([]CommentData, 0, len(p.Comments)),
		}
		for _, c := range p.Comments {
			pd.Comments = append(pd.Comments, CommentData{
				AuthorID:   c.Author.ID,
				AuthorName: c.Author.Username,
				Content:    c.Content,
			})
		}
		data = append(data, pd)
		bindings = append(bindings, LikeKey(p.ID), CommentKey(p.ID), AuthorKey(p.Author.ID))
	}
	markup, err := r.backend.Posts(data)
	if err != nil {
		return Fragment{}, fmt.Errorf("render posts: %w", err)
	}
	return Fragment{Markup: markup, Bindings: bindings}, nil
}

// Document renders the whole page and consumes pending notices.
func (r *Renderer) Document(ctx context.Context) (string, error) {
	token, err := r.ident.Get(ctx)
	if err != nil {
		r.log.Warn("read token", "error", err)
	}
	out, err := r.backend.Document(DocumentData{
		Authenticated: token != "",
		View:          r.page.View(),
		Notices:       r.page.TakeNotices(),
		Body:          r.page.Body(),
	})
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return out, nil
}
