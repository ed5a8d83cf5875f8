// Package linkstest runs an in-process links backend and Keycloak token endpoint for tests.
package linkstest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/the-homeless-god/links/pkg/core/domain"
)

const (
	Realm    = "links-app"
	ClientID = "links-backend"
)

// Override replaces the response of a matching request when it returns ok.
type Override func(r *http.Request) (status int, body string, ok bool)

// RecordedRequest is what the server saw of an /api request.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	jwtSecret []byte
	users     map[string]string
	links     []domain.Link
	nextID    int
	override  Override
	requests  []RecordedRequest
	// deleteStatus, when set, is returned by DELETE after the link is removed.
	deleteStatus int
}

// New starts a server with the user "alice"/"secret" and registers its shutdown on t.
func New(t testing.TB) *Server {
	s := &Server{
		jwtSecret: []byte("linkstest"),
		users:     map[string]string{"alice": "secret"},
		nextID:    1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/realms/{realm}/protocol/openid-connect/token", s.token)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/links", s.list)
	api.HandleFunc("POST /api/links", s.create)
	api.HandleFunc("PUT /api/links/{id}", s.update)
	api.HandleFunc("DELETE /api/links/{id}", s.delete)
	mux.Handle("/api/", s.record(s.auth(api)))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Token mints a valid access token for username.
func (s *Server) Token(t testing.TB, username string) string {
	t.Helper()
	token, err := s.sign(username)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func (s *Server) sign(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":                "id-" + username,
		"user_id":            "id-" + username,
		"preferred_username": username,
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) SetOverride(o Override) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = o
}

func (s *Server) SetDeleteStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteStatus = status
}

// Seed stores links as if they had been created, assigning ids.
func (s *Server) Seed(links ...domain.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		l.ID = strconv.Itoa(s.nextID)
		s.nextID++
		s.links = append(s.links, l)
	}
}

func (s *Server) Links() []domain.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Link(nil), s.links...)
}

func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("realm") != Realm {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Realm does not exist"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("client_id") != ClientID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unauthorized_client"})
		return
	}

	username := r.PostForm.Get("username")
	s.mu.Lock()
	want, ok := s.users[username]
	s.mu.Unlock()
	if !ok || want != r.PostForm.Get("password") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})
		return
	}

	token, err := s.sign(username)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   300,
	})
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		override := s.override
		s.mu.Unlock()

		if override != nil {
			if status, payload, ok := override(r); ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(payload))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// auth accepts a bearer token signed by this server or the guest marker header.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Guest-Token") == domain.GuestToken {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Links())
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req domain.LinkPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body", "message": "Invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "name_required", "message": "name_required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexByName(req.Name, "") >= 0 {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   domain.ConflictCode,
			"message": "Link name already taken: " + domain.ConflictCode,
		})
		return
	}

	link := domain.Link{
		ID:          strconv.Itoa(s.nextID),
		Name:        req.Name,
		URL:         req.URL,
		Description: req.Description,
		GroupID:     req.GroupID,
		IsPublic:    req.IsPublic,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.nextID++
	s.links = append(s.links, link)
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req domain.LinkPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body", "message": "Invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByID(id)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	if s.indexByName(req.Name, id) >= 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": domain.ConflictCode})
		return
	}

	l := &s.links[i]
	l.Name, l.URL, l.Description, l.GroupID, l.IsPublic = req.Name, req.URL, req.Description, req.GroupID, req.IsPublic
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexByID(r.PathValue("id"))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	s.links = append(s.links[:i], s.links[i+1:]...)

	if s.deleteStatus != 0 {
		w.WriteHeader(s.deleteStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) indexByID(id string) int {
	for i, l := range s.links {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) indexByName(name, exceptID string) int {
	for i, l := range s.links {
		if l.Name == name && l.ID != exceptID {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
