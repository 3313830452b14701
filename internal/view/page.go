package view

import (
	"strings"
	"sync"

	"github.com/alphabot-ai/feedline/internal/model"
)

// PostsSlot marks where the posts region sits inside the main region's
// markup. Backends must emit it exactly once in views that list posts.
const PostsSlot = "<!--feedline:posts-->"

type Region int

const (
	MainRegion Region = iota
	PostsRegion
)

type AuthMode string

const (
	LoginMode    AuthMode = "login"
	RegisterMode AuthMode = "register"
)

// ParseAuthMode defaults anything unknown to the login sub-view.
func ParseAuthMode(s string) AuthMode {
	if AuthMode(s) == RegisterMode {
		return RegisterMode
	}
	return LoginMode
}

// Fragment is rendered markup together with the interactive elements it
// created. Replacing a fragment drops its bindings.
type Fragment struct {
	Markup   string
	Bindings []string
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelAlert Level = "alert"
)

type Notice struct {
	Level Level
	Text  string
}

// Ticket is taken before a render starts and presented when it commits.
type Ticket struct {
	Region Region
	epoch  uint64
	gen    uint64
	view   model.View
}

type region struct {
	frag     Fragment
	started  uint64
	bindings map[string]bool
}

func (r *region) replace(f Fragment) {
	r.frag = f
	r.bindings = make(map[string]bool, len(f.Bindings))
	for _, b := range f.Bindings {
		r.bindings[b] = true
	}
}

// Page is the single view region of one client plus its pending notices.
// All methods are safe for concurrent use.
type Page struct {
	mu       sync.Mutex
	strict   bool
	view     model.View
	authMode AuthMode
	epoch    uint64
	main     region
	posts    region
	notices  []Notice
}

// NewPage returns an empty page. With strict set, a posts render that started
// before another posts render of the same view is discarded instead of
// overwriting it.
func NewPage(strict bool) *Page {
	return &Page{strict: strict, authMode: LoginMode}
}

func (p *Page) View() model.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *Page) AuthMode() AuthMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authMode
}

// Navigate starts a main-region render. Every posts render begun before it
// becomes stale, and so does every earlier Navigate ticket.
func (p *Page) Navigate() Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch++
	return Ticket{Region: MainRegion, epoch: p.epoch}
}

// BeginPosts starts a render of the posts region and returns the view the
// render belongs to, read under the same lock as the ticket.
func (p *Page) BeginPosts() (Ticket, model.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts.started++
	return Ticket{Region: PostsRegion, epoch: p.epoch, gen: p.posts.started, view: p.view}, p.view
}

// CommitMain replaces the main region and, with it, the nested posts region.
// It reports false when a later navigation superseded the ticket.
func (p *Page) CommitMain(t Ticket, v model.View, main, posts Fragment) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.Region != MainRegion || t.epoch != p.epoch {
		return false
	}
	p.view = v
	p.main.replace(main)
	p.posts.replace(posts)
	return true
}

// CommitPosts replaces the posts region if the ticket still belongs to the
// displayed view.
func (p *Page) CommitPosts(t Ticket, posts Fragment) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.Region != PostsRegion || t.epoch != p.epoch || t.view != p.view {
		return false
	}
	if !strings.Contains(p.main.frag.Markup, PostsSlot) {
		return false
	}
	if p.strict && t.gen != p.posts.started {
		return false
	}
	p.posts.replace(posts)
	return true
}

// SetAuthMode records the visible auth sub-view.
func (p *Page) SetAuthMode(m AuthMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authMode = m
}

// Bound reports whether an interactive element with the given key is part of
// what is currently displayed.
func (p *Page) Bound(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.main.bindings[key] {
		return true
	}
	return strings.Contains(p.main.frag.Markup, PostsSlot) && p.posts.bindings[key]
}

func (p *Page) Notify(level Level, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, Notice{Level: level, Text: text})
}

// TakeNotices returns and forgets the pending notices.
func (p *Page) TakeNotices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.notices
	p.notices = nil
	return out
}

// Body composes the main region with the posts region spliced into its slot.
func (p *Page) Body() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Replace(p.main.frag.Markup, PostsSlot, p.posts.frag.Markup, 1)
}

// PostsMarkup returns only the posts region.
func (p *Page) PostsMarkup() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.posts.frag.Markup
}
