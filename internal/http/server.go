package httpapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/alphabot-ai/feedline/internal/config"
	"github.com/alphabot-ai/feedline/internal/rate"
	"github.com/alphabot-ai/feedline/internal/session"
	"github.com/alphabot-ai/feedline/internal/view"
)

type Server struct {
	sessions *Sessions
	limiter  rate.Limiter
	cfg      config.Config
	log      *slog.Logger
	router   *mux.Router
}

func NewServer(sessions *Sessions, limiter rate.Limiter, cfg config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{sessions: sessions, limiter: limiter, cfg: cfg, log: log}

	r := mux.NewRouter()
	r.Use(s.withLogging)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/static/style.css", serveStyle).Methods(http.MethodGet)

	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/auth/{mode:login|register}", s.handleAuthMode).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	r.HandleFunc("/home", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}", s.handleAuthor).Methods(http.MethodGet)

	r.HandleFunc("/posts", s.handleCreatePost).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id:[0-9]+}/like", s.handleLike).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id:[0-9]+}/comments", s.handleComment).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/follow", s.handleFollow).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.resolve(w, r)
	if !ok {
		return
	}
	doc, err := ctrl.Document(r.Context())
	if err != nil {
		s.log.Error("render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleAuthMode(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Renderer().ToggleAuth(view.ParseAuthMode(mux.Vars(r)["mode"]))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		if ok, retry := s.allowLogin(r); !ok {
			ctrl.Page().Notify(view.LevelAlert,
				fmt.Sprintf("Too many login attempts. Try again in %d seconds.", int(retry.Seconds())+1))
			return nil
		}
		return ctrl.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().Register(r.Context(),
			r.PostFormValue("username"), r.PostFormValue("password"), r.PostFormValue("email"))
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Logout(r.Context())
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().ShowHome(r.Context())
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().ShowMyProfile(r.Context())
	})
}

func (s *Server) handleAuthor(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().ShowAuthor(r.Context(), id)
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().CreatePost(r.Context(), r.PostFormValue("content"))
	})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().ToggleLike(r.Context(), id)
	})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().AddComment(r.Context(), id, r.PostFormValue("content"))
	})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	s.act(w, r, func(ctrl *session.Controller) error {
		return ctrl.Actions().ToggleFollow(r.Context(), id)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

// act runs fn against the caller's session and answers with a redirect to
// the page. Failures were already turned into notices by the handlers.
func (s *Server) act(w http.ResponseWriter, r *http.Request, fn func(*session.Controller) error) {
	ctrl, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if err := fn(ctrl); err != nil {
		s.log.Debug("action failed", "path", r.URL.Path, "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, err := s.sessions.Resolve(w, r)
	if err != nil {
		s.log.Error("resolve session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) allowLogin(r *http.Request) (bool, time.Duration) {
	limit := s.cfg.RateLimits.LoginPerMinute
	if limit <= 0 || s.limiter == nil {
		return true, 0
	}
	return s.limiter.Allow("login:ip:"+clientIP(r), limit, time.Minute)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
