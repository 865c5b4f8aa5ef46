// Package services – AgentService
//
// AgentService is the directory of agents who may claim leads. It handles
// registration (bcrypt-hashed passwords), login (HS256 JWT issuance) and
// token verification for the auth middleware, and answers existence checks
// for the claim path.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/repo"
)

// AgentRepo defines the repository contract required by AgentService.
type AgentRepo interface {
	CreateAgent(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.Agent, error)
	GetAgentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Agent, error)
	AgentExists(ctx context.Context, db *gorm.DB, id uint) (bool, error)
}

// LoginResult bundles the token and agent returned after a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Agent     *domain.Agent
}

// AgentService registers, authenticates and looks up agents.
type AgentService struct {
	DB   *gorm.DB
	Repo AgentRepo

	secret []byte

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// MinPasswordLen is the minimum accepted password length in bytes.
	MinPasswordLen int
	// BcryptCost is the hashing cost for new passwords.
	BcryptCost int
	// Now is the clock used for issuing and verifying tokens.
	Now func() time.Time
}

// NewAgentService constructs an AgentService signing tokens with secret.
func NewAgentService(db *gorm.DB, r AgentRepo, secret string, ttl time.Duration) *AgentService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AgentService{
		DB:             db,
		Repo:           r,
		secret:         []byte(secret),
		TokenTTL:       ttl,
		MinPasswordLen: 6,
		BcryptCost:     bcrypt.DefaultCost,
	}
}

// Register creates a new agent account.
func (s *AgentService) Register(ctx context.Context, name, email, password string) (*domain.Agent, error) {
	ctx, span := otel.Tracer("services/AgentService").Start(ctx, "Register")
	defer span.End()

	name = cleanLine(name)
	email = normalizeEmail(email)
	if name == "" || tooLong(name, 200) || !validEmail(email) {
		return nil, ErrInvalidAgent
	}
	// bcrypt rejects inputs longer than 72 bytes.
	if len(password) < s.MinPasswordLen || len(password) > 72 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a, err := s.Repo.CreateAgent(ctx, s.DB, name, email, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, storageErr(err)
	}
	return a, nil
}

// Login verifies credentials and issues a signed token.
func (s *AgentService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	ctx, span := otel.Tracer("services/AgentService").Start(ctx, "Login")
	defer span.End()

	a, err := s.Repo.GetAgentByEmail(ctx, s.DB, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, storageErr(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, exp, err := s.issue(a)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: exp, Agent: a}, nil
}

// Authenticate verifies a bearer token and returns the identity it carries.
// Any parse, signature or expiry failure yields ErrUnauthenticated.
func (s *AgentService) Authenticate(_ context.Context, token string) (domain.AgentIdentity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.AgentIdentity{}, ErrUnauthenticated
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.AgentIdentity{}, ErrUnauthenticated
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return domain.AgentIdentity{}, ErrUnauthenticated
	}
	email, _ := claims["email"].(string)

	return domain.AgentIdentity{ID: uint(id), Email: email}, nil
}

// Exists reports whether an agent with id is registered.
func (s *AgentService) Exists(ctx context.Context, id uint) (bool, error) {
	ok, err := s.Repo.AgentExists(ctx, s.DB, id)
	if err != nil {
		return false, storageErr(err)
	}
	return ok, nil
}

func (s *AgentService) issue(a *domain.Agent) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.TokenTTL)
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(a.ID), 10),
		"id":    a.ID,
		"email": a.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return signed, exp, err
}

func (s *AgentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
