package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
)

const testSecret = "test-secret"

func newTestAgentService(t *testing.T) *AgentService {
	t.Helper()
	s := NewAgentService(newStoreDB(t), storeRepo{}, testSecret, time.Hour)
	s.BcryptCost = bcrypt.MinCost
	return s
}

func TestAgentService_RegisterLoginAuthenticate(t *testing.T) {
	s := newTestAgentService(t)
	ctx := context.Background()

	a, err := s.Register(ctx, " John  Doe ", " John@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", a.Name)
	assert.Equal(t, "john@example.com", a.Email)
	assert.NotEqual(t, "password123", a.PasswordHash)

	res, err := s.Login(ctx, "JOHN@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, a.ID, res.Agent.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 5*time.Second)

	id, err := s.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdentity{ID: a.ID, Email: "john@example.com"}, id)

	ok, err := s.Exists(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, a.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAgentService_Register_Validation(t *testing.T) {
	s := newTestAgentService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "A", "a@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = s.Register(ctx, "A", "a@example.com", strings.Repeat("p", 73))
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = s.Register(ctx, "   ", "a@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidAgent)

	_, err = s.Register(ctx, "A", "nope", "password123")
	assert.ErrorIs(t, err, ErrInvalidAgent)
}

func TestAgentService_Register_DuplicateEmail(t *testing.T) {
	s := newTestAgentService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Jane", "jane@example.com", "password123")
	require.NoError(t, err)

	_, err = s.Register(ctx, "Jane Again", "JANE@example.com", "password456")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAgentService_Login_InvalidCredentials(t *testing.T) {
	s := newTestAgentService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Jane", "jane@example.com", "password123")
	require.NoError(t, err)

	_, err = s.Login(ctx, "jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAgentService_Authenticate_Rejects(t *testing.T) {
	s := newTestAgentService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Jane", "jane@example.com", "password123")
	require.NoError(t, err)
	res, err := s.Login(ctx, "jane@example.com", "password123")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Authenticate(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAgentService(nil, storeRepo{}, "other-secret", time.Hour)
		_, err := other.Authenticate(ctx, res.Token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		later := *s
		later.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Authenticate(ctx, res.Token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("other algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
			"sub": "1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := tok.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Authenticate(ctx, signed)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("missing expiry", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
		signed, err := tok.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Authenticate(ctx, signed)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "abc",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := tok.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = s.Authenticate(ctx, signed)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

type failingAgentRepo struct{ err error }

func (r failingAgentRepo) CreateAgent(context.Context, *gorm.DB, string, string, string) (*domain.Agent, error) {
	return nil, r.err
}
func (r failingAgentRepo) GetAgentByEmail(context.Context, *gorm.DB, string) (*domain.Agent, error) {
	return nil, r.err
}
func (r failingAgentRepo) AgentExists(context.Context, *gorm.DB, uint) (bool, error) {
	return false, r.err
}

func TestAgentService_StorageErrors(t *testing.T) {
	s := NewAgentService(nil, failingAgentRepo{err: errors.New("connection refused")}, testSecret, 0)
	s.BcryptCost = bcrypt.MinCost
	ctx := context.Background()

	assert.Equal(t, 24*time.Hour, s.TokenTTL, "zero ttl falls back to 24h")

	_, err := s.Register(ctx, "A", "a@example.com", "password123")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = s.Login(ctx, "a@example.com", "password123")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = s.Exists(ctx, 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
