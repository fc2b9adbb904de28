package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/auth"
	"github.com/2611006/TeamUp26/internal/service/profile"
	"github.com/2611006/TeamUp26/pkg/config"
	jwtpkg "github.com/2611006/TeamUp26/pkg/jwt"
)

func TestHandleHealthzReportsOK(t *testing.T) {
	router := &Router{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbHealth: func(ctx context.Context) error { return nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.handleHealthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status field %q", payload["status"])
	}
}

func TestHandleHealthzReportsDegradedDatabase(t *testing.T) {
	router := &Router{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbHealth: func(ctx context.Context) error { return errors.New("connection refused") },
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.handleHealthz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["status"] != "degraded" {
		t.Fatalf("unexpected status field %q", payload["status"])
	}
	if payload["database"] != "connection refused" {
		t.Fatalf("unexpected database field %q", payload["database"])
	}
}

func TestHandleHealthzRejectsPost(t *testing.T) {
	router := &Router{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.handleHealthz(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	handler := router.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if msg := decodeError(t, rr.Body.String()); msg != "authentication required" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	handler := router.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler must not run with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if msg := decodeError(t, rr.Body.String()); msg != "authentication failed" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestRequireAuthEnrichesContext(t *testing.T) {
	router, token := setupAuthedRouter(t)

	var got authInfo
	handler := router.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		info, ok := authInfoFromContext(req.Context())
		if !ok {
			t.Fatal("auth info missing from context")
		}
		got = info
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got.UserID != "user-123" {
		t.Fatalf("unexpected user id %q", got.UserID)
	}
	if got.TeamID != "team-9" {
		t.Fatalf("unexpected team id %q", got.TeamID)
	}
}

func TestUserSubroutesUnknownUserReturns404(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/missing-user", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextKeyAuth, authInfo{UserID: "user-123"}))
	rr := httptest.NewRecorder()
	router.handleUserSubroutes(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestUserSubroutesMeReturnsProfile(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextKeyAuth, authInfo{UserID: "user-123"}))
	rr := httptest.NewRecorder()
	router.handleUserSubroutes(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["id"] != "user-123" {
		t.Fatalf("unexpected id %v", payload["id"])
	}
	if payload["email"] != "user@example.com" {
		t.Fatalf("unexpected email %v", payload["email"])
	}
	if _, leaked := payload["password_hash"]; leaked {
		t.Fatal("password hash must never appear in responses")
	}
}

func TestUserSubroutesMissingAuthContextIs500(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rr := httptest.NewRecorder()
	router.handleUserSubroutes(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if msg := decodeError(t, rr.Body.String()); msg != "authorization context missing" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestSignupRouteRejectsGet(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/signup", nil)
	rr := httptest.NewRecorder()
	router.handleSignup(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestSignupRouteRejectsMalformedBody(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	router.handleSignup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr.Body.String()); msg != "invalid JSON body" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestUserSearchRequiresSkill(t *testing.T) {
	router, _ := setupAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(context.WithValue(req.Context(), contextKeyAuth, authInfo{UserID: "user-123"}))
	rr := httptest.NewRecorder()
	router.handleUserSearch(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

// setupAuthedRouter builds a router with real auth and profile services over an
// in-memory user store, plus a signed token for user-123.
func setupAuthedRouter(t *testing.T) (*Router, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := newUserStoreStub()
	users.put(&domain.User{ID: "user-123", Email: "user@example.com", Name: "Dana"})

	cfg := config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}

	router := &Router{
		logger:   logger,
		auth:     auth.New(users, logger, cfg),
		profiles: profile.New(users, logger),
	}

	token, err := jwtpkg.GenerateToken("user-123", "team-9", cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return router, token
}

func decodeError(t *testing.T, body string) string {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	msg, _ := payload["error"].(string)
	return msg
}

type userStoreStub struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{users: make(map[string]*domain.User)}
}

func (s *userStoreStub) put(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
}

func (s *userStoreStub) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *userStoreStub) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStoreStub) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *userStoreStub) UpdateProfile(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *userStoreStub) SetUserTeam(_ context.Context, userID string, teamID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.TeamID = teamID
	return nil
}

func (s *userStoreStub) SearchUsersBySkill(_ context.Context, skill string, teamless bool, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, user := range s.users {
		for _, have := range user.Skills {
			if have == skill {
				out = append(out, *user)
				break
			}
		}
	}
	return out, nil
}
