package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/events"
	"github.com/tbourn/go-lead-intake/internal/http/middleware"
	"github.com/tbourn/go-lead-intake/internal/repo"
	"github.com/tbourn/go-lead-intake/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing the service repo contracts (like router.go).
type testRepo struct{}

func (testRepo) InsertLead(ctx context.Context, db *gorm.DB, p domain.LeadPayload) (*domain.Lead, error) {
	return repo.InsertLead(ctx, db, p)
}
func (testRepo) CountUnclaimed(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUnclaimed(ctx, db)
}
func (testRepo) ListUnclaimedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Lead, error) {
	return repo.ListUnclaimedPage(ctx, db, offset, limit)
}
func (testRepo) ListClaimedBy(ctx context.Context, db *gorm.DB, agentID uint) ([]domain.Lead, error) {
	return repo.ListClaimedBy(ctx, db, agentID)
}
func (testRepo) PoolStats(ctx context.Context, db *gorm.DB) (int64, uint, error) {
	return repo.PoolStats(ctx, db)
}
func (testRepo) ClaimedStats(ctx context.Context, db *gorm.DB, agentID uint) (int64, *time.Time, error) {
	return repo.ClaimedStats(ctx, db, agentID)
}
func (testRepo) ClaimLead(ctx context.Context, db *gorm.DB, id, agentID uint, now time.Time) (*domain.Lead, error) {
	return repo.ClaimLead(ctx, db, id, agentID, now)
}
func (testRepo) CreateAgent(ctx context.Context, db *gorm.DB, name, email, hash string) (*domain.Agent, error) {
	return repo.CreateAgent(ctx, db, name, email, hash)
}
func (testRepo) GetAgentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Agent, error) {
	return repo.GetAgentByEmail(ctx, db, email)
}
func (testRepo) AgentExists(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.AgentExists(ctx, db, id)
}

type testIdem struct{ db *gorm.DB }

func (s testIdem) Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, scope, key, now)
}

func (s testIdem) Remember(ctx context.Context, scope, key string, leadID uint, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, leadID, status, time.Hour)
	return err
}

// ---------- full stack ----------

type testStack struct {
	r      *gin.Engine
	db     *gorm.DB
	h      *Handlers
	agents *services.AgentService
}

// newTestStack wires real services over a temp store, with the same route
// shapes the router uses (minus rate limiting).
func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	pub := events.NopPublisher{}
	agents := services.NewAgentService(db, testRepo{}, "handler-test-secret", time.Hour)
	agents.BcryptCost = bcrypt.MinCost
	leads := services.NewLeadService(db, testRepo{}, pub)
	claims := services.NewClaimService(db, testRepo{}, agents, pub)
	idem := testIdem{db: db}

	h := New(leads, claims, agents, idem)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	r.POST("/leads/public", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.Lookup), h.SubmitLead)

	authed := r.Group("/leads", middleware.RequireAgent(agents))
	authed.GET("/public", h.ListUnclaimed)
	authed.GET("/mine", h.ListMine)
	authed.POST("/:id/claim", h.ClaimLead)

	return &testStack{r: r, db: db, h: h, agents: agents}
}

func doJSON(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

// registerAndLogin creates an agent through the API and returns its token and id.
func (s *testStack) registerAndLogin(t *testing.T, name, email string) (string, uint) {
	t.Helper()
	w := doJSON(s.r, http.MethodPost, "/auth/register", RegisterRequest{Name: name, Email: email, Password: "password123"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, w.Code, w.Body.String())
	}
	w = doJSON(s.r, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: "password123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	lr := decode[LoginResponse](t, w)
	return lr.Token, lr.User.ID
}

// seedLead inserts a lead directly with a deterministic created_at.
func (s *testStack) seedLead(t *testing.T, name string, at time.Time) *domain.Lead {
	t.Helper()
	l := &domain.Lead{Name: name, Email: "lead@example.com", CreatedAt: at, UpdatedAt: at}
	if err := s.db.Create(l).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return l
}

// ---------- stubs for error mapping ----------

var errBoom = fmt.Errorf("%w: disk I/O error", services.ErrStorageUnavailable)

type stubLeads struct {
	submitErr error
	listErr   error
	verErr    error
}

func (s stubLeads) Submit(context.Context, domain.LeadPayload) (*domain.Lead, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &domain.Lead{ID: 1}, nil
}
func (s stubLeads) ListUnclaimed(context.Context, int, int) ([]domain.Lead, int64, error) {
	return nil, 0, s.listErr
}
func (s stubLeads) ListClaimedBy(context.Context, uint) ([]domain.Lead, error) {
	return nil, s.listErr
}
func (s stubLeads) PoolVersion(context.Context) (int64, uint, error) {
	return 0, 0, s.verErr
}
func (s stubLeads) ClaimsVersion(context.Context, uint) (int64, *time.Time, error) {
	return 0, nil, s.verErr
}

type stubClaims struct {
	res services.ClaimResult
	err error
}

func (s stubClaims) TryClaim(context.Context, uint, uint) (services.ClaimResult, error) {
	return s.res, s.err
}

type stubAgents struct{ err error }

func (s stubAgents) Register(context.Context, string, string, string) (*domain.Agent, error) {
	return nil, s.err
}
func (s stubAgents) Login(context.Context, string, string) (services.LoginResult, error) {
	return services.LoginResult{}, s.err
}

// asAgent marks every request as authenticated by agent id 7.
type asAgent struct{}

func (asAgent) Authenticate(context.Context, string) (domain.AgentIdentity, error) {
	return domain.AgentIdentity{ID: 7, Email: "agent@example.com"}, nil
}
