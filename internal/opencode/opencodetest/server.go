// Package opencodetest provides an in-memory OpenCode server for tests.
package opencodetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Request is one message or command body received for a session.
type Request struct {
	SessionID string
	Path      string
	Body      json.RawMessage
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	username string
	password string
	reply    func(sessionID string, body map[string]any) map[string]any
	sessions []Session
	requests []Request
	commands []map[string]string
	fail     map[string]int
}

func NewServer() *Server {
	s := &Server{fail: map[string]int{}}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Get("/global/health", s.health)
	r.Get("/session", s.listSessions)
	r.Post("/session", s.createSession)
	r.Get("/session/{id}", s.getSession)
	r.Delete("/session/{id}", s.deleteSession)
	r.Post("/session/{id}/message", s.message)
	r.Get("/session/{id}/message", s.listMessages)
	r.Post("/session/{id}/command", s.message)
	r.Get("/command", s.listCommands)

	s.Server = httptest.NewServer(r)
	return s
}

// SetAuth requires HTTP basic credentials on every request.
func (s *Server) SetAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = username, password
}

// SetReply overrides the message and command response, which defaults to an echo.
func (s *Server) SetReply(fn func(sessionID string, body map[string]any) map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// FailNext makes the next request whose path has the given prefix answer with status.
func (s *Server) FailNext(pathPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[pathPrefix] = status
}

func (s *Server) SetCommands(cmds ...map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = cmds
}

// AddSession registers a session as if created out of band.
func (s *Server) AddSession(title string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(title)
}

func (s *Server) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Session(nil), s.sessions...)
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) addLocked(title string) Session {
	sess := Session{
		ID:        "ses_" + uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.sessions = append(s.sessions, sess)
	return sess
}

func (s *Server) findLocked(id string) (Session, bool) {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.password != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				s.mu.Unlock()
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		for prefix, status := range s.fail {
			if strings.HasPrefix(r.URL.Path, prefix) {
				delete(s.fail, prefix)
				s.mu.Unlock()
				http.Error(w, "injected failure", status)
				return
			}
		}
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"healthy": true, "version": "0.0.0-test"})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Sessions())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	sess := s.addLocked(body.Title)
	s.mu.Unlock()

	writeJSON(w, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess, ok := s.findLocked(chi.URLParam(r, "id"))
	s.mu.Unlock()

	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			writeJSON(w, true)
			return
		}
	}
	http.Error(w, "session not found", http.StatusNotFound)
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.findLocked(id)
	if ok {
		s.requests = append(s.requests, Request{SessionID: id, Path: r.URL.Path, Body: raw})
	}
	reply := s.reply
	s.mu.Unlock()

	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	if reply != nil {
		writeJSON(w, reply(id, body))
		return
	}
	writeJSON(w, echo(body))
}

func echo(body map[string]any) map[string]any {
	text := ""
	if parts, ok := body["parts"].([]any); ok && len(parts) > 0 {
		if p, ok := parts[0].(map[string]any); ok {
			text, _ = p["text"].(string)
		}
	}
	if cmd, ok := body["command"].(string); ok {
		text = "ran " + cmd
	}
	return map[string]any{
		"parts": []map[string]any{{"type": "text", "text": "echo: " + text}},
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	var out []json.RawMessage
	for _, req := range s.requests {
		if req.SessionID == id {
			out = append(out, req.Body)
		}
	}
	s.mu.Unlock()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		if len(out) > n {
			out = out[len(out)-n:]
		}
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	writeJSON(w, out)
}

func (s *Server) listCommands(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	cmds := append([]map[string]string{}, s.commands...)
	s.mu.Unlock()
	writeJSON(w, cmds)
}
