package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-reservation/internal/handler"
	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
	"github.com/iliyamo/trip-reservation/internal/utils"
)

const testSecret = "handler-test-secret"

// mockIdentity is a test double for handler.Identity.
type mockIdentity struct {
	login  func(ctx context.Context, in service.LoginInput) (*service.Session, error)
	logout func(ctx context.Context, userID uint64, raw string) error
	me     func(ctx context.Context, userID uint64) (*model.User, error)
}

func (m *mockIdentity) Register(_ context.Context, in service.RegisterInput) (*model.User, error) {
	return &model.User{ID: 1, Name: in.Name, Email: in.Email, Role: model.RoleOperator}, nil
}
func (m *mockIdentity) Activate(_ context.Context, code string) (*model.User, error) {
	if code != "good" {
		return nil, fmt.Errorf("activation code: %w", model.ErrNotFound)
	}
	return &model.User{ID: 1, IsActive: true}, nil
}
func (m *mockIdentity) Login(ctx context.Context, in service.LoginInput) (*service.Session, error) {
	return m.login(ctx, in)
}
func (m *mockIdentity) Refresh(context.Context, string) (*service.Session, error) {
	return nil, fmt.Errorf("%w: refresh token", model.ErrUnauthorized)
}
func (m *mockIdentity) Logout(ctx context.Context, userID uint64, raw string) error {
	return m.logout(ctx, userID, raw)
}
func (m *mockIdentity) Me(ctx context.Context, userID uint64) (*model.User, error) {
	return m.me(ctx, userID)
}
func (m *mockIdentity) Users(context.Context) ([]model.User, error) { return nil, nil }

var _ handler.Identity = (*mockIdentity)(nil)

func newAuthServer(id handler.Identity) *echo.Echo {
	e := echo.New()
	h := handler.NewAuthHandler(id, testSecret)
	e.POST("/v1/auth/register", h.Register)
	e.GET("/v1/auth/activate/:code", h.Activate)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout)
	e.GET("/v1/me", h.Me)
	e.GET("/v1/me/as", h.Me, as(model.RoleAdmin))
	return e
}

func TestLogin_ReturnsTokenPair(t *testing.T) {
	exp := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	id := &mockIdentity{login: func(_ context.Context, in service.LoginInput) (*service.Session, error) {
		assert.Equal(t, "ana@example.com", in.Email)
		return &service.Session{
			User:    model.User{ID: 3, Email: in.Email, Role: model.RoleOperator},
			Access:  utils.AccessToken{Token: "acc", Exp: exp},
			Refresh: utils.RefreshToken{Raw: "ref", Exp: exp.Add(time.Hour)},
			Message: "first access",
		}, nil
	}}

	rec := do(t, newAuthServer(id), http.MethodPost, "/v1/auth/login", `{"email":"ana@example.com","password":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "acc", body["access"].(map[string]any)["token"])
	assert.Equal(t, "ref", body["refresh"].(map[string]any)["token"])
	assert.Equal(t, "first access", body["info"])
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: invalid credentials", model.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("%w: account is blocked", model.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: email", model.ErrValidation), http.StatusBadRequest},
	}
	for _, tc := range tests {
		id := &mockIdentity{login: func(context.Context, service.LoginInput) (*service.Session, error) { return nil, tc.err }}
		rec := do(t, newAuthServer(id), http.MethodPost, "/v1/auth/login", `{"email":"a@b.co","password":"x"}`)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestRegisterAndActivate(t *testing.T) {
	e := newAuthServer(&mockIdentity{})

	rec := do(t, e, http.MethodPost, "/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"Tr1p-Planner!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ana@example.com", decode(t, rec)["user"].(map[string]any)["email"])

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/v1/auth/activate/good", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/v1/auth/activate/bad", "").Code)
}

func TestRefresh_Rejected(t *testing.T) {
	rec := do(t, newAuthServer(&mockIdentity{}), http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_UsesBearerWhenValid(t *testing.T) {
	var gotUser uint64
	var gotRaw string
	id := &mockIdentity{logout: func(_ context.Context, uid uint64, raw string) error {
		gotUser, gotRaw = uid, raw
		return nil
	}}
	tok, err := utils.NewAccessToken(testSecret, 9, model.RoleOperator, 5)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	newAuthServer(id).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint64(9), gotUser)
	assert.Empty(t, gotRaw)
}

func TestLogout_IgnoresBadBearer(t *testing.T) {
	var gotUser uint64 = 99
	id := &mockIdentity{logout: func(_ context.Context, uid uint64, raw string) error {
		gotUser = uid
		assert.Equal(t, "r1", raw)
		return nil
	}}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", strings.NewReader(`{"refresh_token":"r1"}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	newAuthServer(id).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, gotUser)
}

func TestMe(t *testing.T) {
	id := &mockIdentity{me: func(_ context.Context, uid uint64) (*model.User, error) {
		return &model.User{ID: uid, Name: "Ana"}, nil
	}}
	e := newAuthServer(id)

	assert.Equal(t, http.StatusUnauthorized, do(t, e, http.MethodGet, "/v1/me", "").Code)

	rec := do(t, e, http.MethodGet, "/v1/me/as", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, decode(t, rec)["id"])
}

// ---- audit log -------------------------------------------------------------

type auditFunc func(ctx context.Context, limit int) ([]model.AuditEntry, error)

func (f auditFunc) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return f(ctx, limit)
}

func TestAuditLogList(t *testing.T) {
	var gotLimit int
	h := handler.NewAuditLogHandler(auditFunc(func(_ context.Context, limit int) ([]model.AuditEntry, error) {
		gotLimit = limit
		return []model.AuditEntry{{ID: 1, Action: "reservation 1 created"}}, nil
	}))
	e := echo.New()
	e.GET("/v1/logs", h.List)

	rec := do(t, e, http.MethodGet, "/v1/logs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodGet, "/v1/logs?limit=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodGet, "/v1/logs?limit=many", "").Code)
}

// ---- backup ----------------------------------------------------------------

type mockBackups struct {
	restored *model.Snapshot
	err      error
}

func (m *mockBackups) Export(context.Context) (*model.Snapshot, error) {
	return &model.Snapshot{GeneratedAt: time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC)}, nil
}
func (m *mockBackups) Restore(_ context.Context, _ uint64, snap *model.Snapshot) error {
	m.restored = snap
	return m.err
}

var _ handler.Backups = (*mockBackups)(nil)

func newBackupServer(b handler.Backups) *echo.Echo {
	e := echo.New()
	h := handler.NewBackupHandler(b)
	g := e.Group("/v1/system", as(model.RoleAdmin))
	g.GET("/backup", h.Backup)
	g.POST("/restore", h.Restore)
	return e
}

func TestBackup_Attachment(t *testing.T) {
	rec := do(t, newBackupServer(&mockBackups{}), http.MethodGet, "/v1/system/backup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="backup-20261016T083000Z.json"`, rec.Header().Get(echo.HeaderContentDisposition))
}

func TestRestore(t *testing.T) {
	b := &mockBackups{}
	rec := do(t, newBackupServer(b), http.MethodPost, "/v1/system/restore",
		`{"users":[],"clients":[{"id":1,"name":"Ana","email":"ana@example.com"}],"trips":[],"reservations":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, b.restored)
	assert.Len(t, b.restored.Clients, 1)
	assert.EqualValues(t, 1, decode(t, rec)["clients"])

	b.err = fmt.Errorf("%w: reservation 4 references unknown trip 2", model.ErrValidation)
	rec = do(t, newBackupServer(b), http.MethodPost, "/v1/system/restore", `{"users":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- health ----------------------------------------------------------------

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/ok", handler.Health(pingFunc(func(context.Context) error { return nil })))
	e.GET("/down", handler.Health(pingFunc(func(context.Context) error { return errors.New("refused") })))

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/ok", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, e, http.MethodGet, "/down", "").Code)
}
