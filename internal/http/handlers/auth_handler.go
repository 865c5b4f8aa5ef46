// Auth HTTP handlers: agent registration and login.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lead-intake/internal/services"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name" example:"John Doe"`
	Email    string `json:"email" example:"john@example.com"`
	Password string `json:"password" example:"password123"`
}

// RegisterResponse describes the newly created agent.
type RegisterResponse struct {
	Message string `json:"message" example:"Account registered successfully. You can now log in."`
	UserID  uint   `json:"user_id" example:"1"`
	Name    string `json:"name" example:"John Doe"`
	Email   string `json:"email" example:"john@example.com"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" example:"john@example.com"`
	Password string `json:"password" example:"password123"`
}

// UserSummary is the public view of an agent.
type UserSummary struct {
	ID    uint   `json:"id" example:"1"`
	Name  string `json:"name" example:"John Doe"`
	Email string `json:"email" example:"john@example.com"`
}

// LoginResponse carries the bearer token used on agent routes.
type LoginResponse struct {
	Message   string      `json:"message" example:"Login successful."`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// Register godoc
// @ID          register
// @Summary     Register an agent
// @Description Creates an agent account. Emails are case-insensitive and unique.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     201  {object}  handlers.RegisterResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	a, err := h.agentSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrCodeEmailTaken, "Email already registered")
		case errors.Is(err, services.ErrWeakPassword):
			fail(c, http.StatusBadRequest, ErrCodeValidation, services.ErrWeakPassword.Error())
		case errors.Is(err, services.ErrInvalidAgent):
			fail(c, http.StatusBadRequest, ErrCodeValidation, "name and a valid email are required")
		default:
			storageFail(c, err)
		}
		return
	}

	ok(c, http.StatusCreated, RegisterResponse{
		Message: "Account registered successfully. You can now log in.",
		UserID:  a.ID,
		Name:    a.Name,
		Email:   a.Email,
	})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges email and password for a bearer token (HS256 JWT, 24h by default).
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid email or password"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.agentSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			fail(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
		default:
			storageFail(c, err)
		}
		return
	}

	ok(c, http.StatusOK, LoginResponse{
		Message:   "Login successful.",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      UserSummary{ID: res.Agent.ID, Name: res.Agent.Name, Email: res.Agent.Email},
	})
}
