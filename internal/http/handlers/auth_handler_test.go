package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/http/middleware"
)

func TestRegister_CreatesAgent(t *testing.T) {
	s := newTestStack(t)

	w := doJSON(s.r, http.MethodPost, "/auth/register", RegisterRequest{
		Name:     " John   Doe ",
		Email:    "John@Example.com",
		Password: "password123",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	resp := decode[RegisterResponse](t, w)
	if resp.UserID == 0 || resp.Name != "John Doe" || resp.Email != "john@example.com" || resp.Message == "" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestRegister_Rejections(t *testing.T) {
	s := newTestStack(t)
	s.registerAndLogin(t, "Jane Smith", "jane@example.com")

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed", `{"email":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"duplicate email any case", RegisterRequest{Name: "J", Email: "JANE@example.com", Password: "password123"}, http.StatusConflict, ErrCodeEmailTaken},
		{"short password", RegisterRequest{Name: "J", Email: "j2@example.com", Password: "12345"}, http.StatusBadRequest, ErrCodeValidation},
		{"bad email", RegisterRequest{Name: "J", Email: "nope", Password: "password123"}, http.StatusBadRequest, ErrCodeValidation},
		{"missing name", RegisterRequest{Email: "j3@example.com", Password: "password123"}, http.StatusBadRequest, ErrCodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(s.r, http.MethodPost, "/auth/register", tc.body, nil)
			if w.Code != tc.status || decode[ErrorResponse](t, w).Code != tc.code {
				t.Fatalf("got %d %s; want %d %s", w.Code, w.Body.String(), tc.status, tc.code)
			}
		})
	}
}

func TestLogin_IssuesWorkingToken(t *testing.T) {
	s := newTestStack(t)
	s.registerAndLogin(t, "John Doe", "john@example.com")

	w := doJSON(s.r, http.MethodPost, "/auth/login", LoginRequest{Email: "JOHN@example.com", Password: "password123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	resp := decode[LoginResponse](t, w)
	if resp.Token == "" || resp.User.Email != "john@example.com" || resp.User.Name != "John Doe" || resp.ExpiresAt.IsZero() {
		t.Fatalf("unexpected login body: %+v", resp)
	}
	if containsPasswordHash(w.Body.String()) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}

	if w := doJSON(s.r, http.MethodGet, "/leads/mine", nil, bearer(resp.Token)); w.Code != http.StatusOK {
		t.Fatalf("token should authenticate, got %d", w.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestStack(t)
	s.registerAndLogin(t, "John Doe", "john@example.com")

	for name, body := range map[string]LoginRequest{
		"wrong password": {Email: "john@example.com", Password: "password124"},
		"unknown email":  {Email: "nobody@example.com", Password: "password123"},
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(s.r, http.MethodPost, "/auth/login", body, nil)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			// Same answer either way so emails cannot be enumerated.
			er := decode[ErrorResponse](t, w)
			if er.Code != ErrCodeInvalidCredentials || er.Message != "Invalid email or password" {
				t.Fatalf("unexpected envelope: %+v", er)
			}
		})
	}

	if w := doJSON(s.r, http.MethodPost, "/auth/login", `not json`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestAuthHandlers_StorageFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(stubLeads{}, stubClaims{}, stubAgents{err: errBoom}, nil)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	w := doJSON(r, http.MethodPost, "/auth/register", RegisterRequest{Name: "A", Email: "a@example.com", Password: "password123"}, nil)
	if w.Code != http.StatusInternalServerError || decode[ErrorResponse](t, w).Code != ErrCodeStorage {
		t.Fatalf("register: got %d %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodPost, "/auth/login", LoginRequest{Email: "a@example.com", Password: "password123"}, nil)
	if w.Code != http.StatusInternalServerError || decode[ErrorResponse](t, w).Code != ErrCodeStorage {
		t.Fatalf("login: got %d %s", w.Code, w.Body.String())
	}
}

func containsPasswordHash(body string) bool {
	// bcrypt hashes start with $2a$, $2b$ or $2y$.
	for _, p := range []string{"$2a$", "$2b$", "$2y$", "password_hash", "PasswordHash"} {
		if strings.Contains(body, p) {
			return true
		}
	}
	return false
}
