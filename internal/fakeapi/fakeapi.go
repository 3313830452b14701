// Package fakeapi is an in-memory implementation of the social feed REST API.
// It backs the client, action and web tests and the `feedline fakeapi`
// development server.
//
// Tokens it issues are JWT-shaped (three dot-separated segments, base64url
// JSON payload with a numeric user_id) but carry no signature.
package fakeapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/feedline/internal/model"
)

// Request is one request as the server saw it.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Body          string
}

type user struct {
	id        int64
	username  string
	hash      []byte
	email     string
	followers map[int64]bool
	following map[int64]bool
}

type post struct {
	id        int64
	authorID  int64
	content   string
	createdAt time.Time
	likes     map[int64]bool
	comments  []model.Comment
}

type injected struct {
	status int
	body   string
}

type Server struct {
	// Now stamps created posts and comments.
	Now func() time.Time
	// ReportFollowing adds is_following to user profiles.
	ReportFollowing bool

	mu          sync.Mutex
	users       map[int64]*user
	byName      map[string]int64
	posts       map[int64]*post
	tokens      map[string]int64
	nextUser    int64
	nextPost    int64
	nextComment int64
	requests    []Request
	failures    map[string]injected

	router *mux.Router
}

func New() *Server {
	s := &Server{
		Now:      time.Now,
		users:    make(map[int64]*user),
		byName:   make(map[string]int64),
		posts:    make(map[int64]*post),
		tokens:   make(map[string]int64),
		failures: make(map[string]injected),
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register/", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/token/", s.handleToken).Methods(http.MethodPost)
	api.HandleFunc("/posts/", s.requireAuth(s.handleListPosts)).Methods(http.MethodGet)
	api.HandleFunc("/posts/", s.requireAuth(s.handleCreatePost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/like/", s.requireAuth(s.handleToggleLike)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/comments/", s.requireAuth(s.handleAddComment)).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/", s.requireAuth(s.handleGetUser)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/posts/", s.requireAuth(s.handleUserPosts)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/follow/", s.requireAuth(s.handleToggleFollow)).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          string(body),
	})
	fail, ok := s.failures[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fail.status)
		_, _ = io.WriteString(w, fail.body)
		return
	}
	s.router.ServeHTTP(w, r)
}

// Inject makes every request matching method and path answer with status and
// the raw body until Clear is called.
func (s *Server) Inject(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = injected{status: status, body: body}
}

func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]injected)
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count reports how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// AddUser registers a user directly and returns its id.
// It panics if the password cannot be hashed.
func (s *Server) AddUser(username, password string) int64 {
	hash, err := hashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: add user %s: %v", username, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, hash, "")
}

// AddPost creates a post directly and returns its id.
func (s *Server) AddPost(authorID int64, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPostLocked(authorID, content)
}

// IssueToken returns a valid access token for the user.
func (s *Server) IssueToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(userID, "access")
}

func (s *Server) addUserLocked(username string, hash []byte, email string) int64 {
	s.nextUser++
	u := &user{
		id:        s.nextUser,
		username:  username,
		hash:      hash,
		email:     email,
		followers: make(map[int64]bool),
		following: make(map[int64]bool),
	}
	s.users[u.id] = u
	s.byName[username] = u.id
	return u.id
}

func (s *Server) addPostLocked(authorID int64, content string) int64 {
	s.nextPost++
	s.posts[s.nextPost] = &post{
		id:        s.nextPost,
		authorID:  authorID,
		content:   content,
		createdAt: s.Now().UTC(),
		likes:     make(map[int64]bool),
	}
	return s.nextPost
}

func (s *Server) mintLocked(userID int64, kind string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]any{
		"token_type": kind,
		"user_id":    userID,
		"jti":        uuid.NewString(),
	})
	token := header + "." + base64.RawURLEncoding.EncodeToString(claims) + ".unsigned"
	if kind == "access" {
		s.tokens[token] = userID
	}
	return token
}

type authedHandler func(w http.ResponseWriter, r *http.Request, viewer int64)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		bearer := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		s.mu.Lock()
		viewer, ok := s.tokens[bearer]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		next(w, r, viewer)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username and password required"))
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[req.Username]; taken {
		writeError(w, http.StatusBadRequest, errors.New("A user with that username already exists."))
		return
	}
	id := s.addUserLocked(req.Username, hash, req.Email)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "username": req.Username, "email": req.Email})
}

// hashPassword hashes at the minimum bcrypt cost.
func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[req.Username]
	if !ok || bcrypt.CompareHashAndPassword(s.users[id].hash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	writeJSON(w, http.StatusOK, model.Tokens{
		Access:  s.mintLocked(id, "access"),
		Refresh: s.mintLocked(id, "refresh"),
	})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request, _ int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.postsLocked(func(*post) bool { return true }))
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, viewer int64) {
	var req struct {
		Content string `json:"content"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, errors.New("content required"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addPostLocked(viewer, req.Content)
	writeJSON(w, http.StatusCreated, s.renderLocked(s.posts[id]))
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request, viewer int64) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	status := "liked"
	if p.likes[viewer] {
		delete(p.likes, viewer)
		status = "unliked"
	} else {
		p.likes[viewer] = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "likes_count": len(p.likes)})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, viewer int64) {
	id := pathID(r)
	var req struct {
		Content string `json:"content"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, errors.New("content required"))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	s.nextComment++
	c := model.Comment{
		ID:        s.nextComment,
		Author:    s.authorLocked(viewer),
		Content:   req.Content,
		CreatedAt: s.Now().UTC(),
	}
	p.comments = append(p.comments, c)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, viewer int64) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	profile := model.UserProfile{
		ID:             u.id,
		Username:       u.username,
		Email:          u.email,
		FollowersCount: len(u.followers),
		FollowingCount: len(u.following),
	}
	if s.ReportFollowing {
		following := u.followers[viewer]
		profile.IsFollowing = &following
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request, _ int64) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, s.postsLocked(func(p *post) bool { return p.authorID == id }))
}

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request, viewer int64) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if id == viewer {
		writeError(w, http.StatusBadRequest, errors.New("You cannot follow yourself."))
		return
	}
	me := s.users[viewer]
	status := "followed"
	if target.followers[viewer] {
		delete(target.followers, viewer)
		delete(me.following, id)
		status = "unfollowed"
	} else {
		target.followers[viewer] = true
		me.following[id] = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

// postsLocked returns matching posts newest first.
func (s *Server) postsLocked(keep func(*post) bool) []model.Post {
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, s.renderLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Server) renderLocked(p *post) model.Post {
	comments := make([]model.Comment, len(p.comments))
	copy(comments, p.comments)
	return model.Post{
		ID:         p.id,
		Author:     s.authorLocked(p.authorID),
		Content:    p.content,
		CreatedAt:  p.createdAt,
		LikesCount: len(p.likes),
		Comments:   comments,
	}
}

func (s *Server) authorLocked(id int64) model.Author {
	if u, ok := s.users[id]; ok {
		return model.Author{ID: u.id, Username: u.username}
	}
	return model.Author{ID: id, Username: fmt.Sprintf("user%d", id)}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}
