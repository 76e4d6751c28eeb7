package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio-portal/internal/shared/model"
	sqlitedriver "portfolio-portal/internal/shared/storage/driver/sqlite"
	"portfolio-portal/internal/shared/storage/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv 基于 SQLite 内存数据库的认证接口测试环境
type testEnv struct {
	srv   *httptest.Server
	store *repository.Store
	cfg   Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)

	cfg := Config{
		JWTSecret:        "test-secret",
		TokenTTL:         time.Hour,
		ResetTokenTTL:    time.Hour,
		ExposeResetToken: true,
	}

	mux := http.NewServeMux()
	NewHandler(store, cfg).RegisterRoutes(mux)
	srv := httptest.NewServer(Middleware(cfg, store)(mux))

	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return &testEnv{srv: srv, store: store, cfg: cfg}
}

// postJSON 发送 JSON POST 请求，token 为空时不带认证头
func (e *testEnv) postJSON(t *testing.T, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", e.srv.URL+path, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (e *testEnv) get(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest("GET", e.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

// seedAssessor 直接在存储层种入已批准的审核员，返回其令牌
func (e *testEnv) seedAssessor(t *testing.T) (*model.User, string) {
	t.Helper()
	now := time.Now()
	hash, err := HashPassword("assessor-pass")
	require.NoError(t, err)
	self := "system"
	u := &model.User{
		ID: model.NewID("usr"), Name: "Sam Assessor", Email: fmt.Sprintf("%s@example.org", model.NewID("a")),
		PasswordHash: hash, Role: model.RoleAssessor,
		Approved: true, ApprovedBy: &self, ApprovedAt: &now,
		Active: true, CreatedAt: now,
	}
	require.NoError(t, e.store.CreateUser(t.Context(), u))
	token, err := GenerateToken(e.cfg, u.ID, u.Role)
	require.NoError(t, err)
	return u, token
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"name":          "Jo Learner",
		"email":         email,
		"password":      "learner-pass",
		"awarding_body": "NCFE",
		"level":         3,
	}
}

// ============================================================================
// 注册 / 登录
// ============================================================================

func TestRegisterAndApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	_, assessorToken := env.seedAssessor(t)

	// 注册成功，等待批准
	resp, body := env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// 批准前登录被拒
	resp, body = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account not approved", body["error"])

	// 出现在待审核列表
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)
	require.NotNil(t, learner)
	assert.Equal(t, model.RoleLearner, learner.Role)
	assert.True(t, learner.Active)
	require.NotNil(t, learner.ExpiresAt)

	resp, raw := env.get(t, "/users/pending", assessorToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var pending []map[string]any
	require.NoError(t, json.Unmarshal(raw, &pending))
	require.Len(t, pending, 1)
	// 凭据字段不外泄
	assert.NotContains(t, pending[0], "password_hash")
	assert.NotContains(t, pending[0], "reset_token")

	// 批准
	resp, _ = env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 批准后可登录，响应含令牌和账户摘要
	resp, body = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "jo@example.org", user["email"])
	assert.Equal(t, "learner", user["role"])
	assert.Equal(t, "NCFE", user["awarding_body"])
	assert.NotContains(t, user, "password_hash")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.postJSON(t, "/auth/register", "", registerBody("dup@example.org"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.postJSON(t, "/auth/register", "", registerBody("dup@example.org"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already exists", body["error"])

	// 不产生新行
	users, err := env.store.ListUsers(t.Context())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.postJSON(t, "/auth/register", "", map[string]any{"email": "jo@example.org"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email and password required", body["error"])

	resp, _ = env.postJSON(t, "/auth/register", "", map[string]any{"email": "bad", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	assessor, _ := env.seedAssessor(t)

	// 不存在的账户和错误密码返回同一错误
	resp, body := env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "nobody@example.org", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["error"])

	resp, body = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": assessor.Email, "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["error"])
}

// ============================================================================
// Decline / Reactivate
// ============================================================================

func TestDeclineThenReactivate(t *testing.T) {
	env := newTestEnv(t)
	_, assessorToken := env.seedAssessor(t)

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)

	// 先批准再拒绝：拒绝撤销批准并锁定
	env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)
	resp, _ := env.postJSON(t, "/users/"+learner.ID+"/decline", assessorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account inactive", body["error"])

	// Reactivate 只解锁，批准需要重新走 Approve
	resp, _ = env.postJSON(t, "/users/"+learner.ID+"/reactivate", assessorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account not approved", body["error"])

	// 再次批准后恢复登录
	env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)
	resp, _ = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLearnerCannotManageUsers(t *testing.T) {
	env := newTestEnv(t)
	_, assessorToken := env.seedAssessor(t)

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)
	env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)

	learnerToken, err := GenerateToken(env.cfg, learner.ID, model.RoleLearner)
	require.NoError(t, err)

	resp, raw := env.get(t, "/users/pending", learnerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "forbidden")

	resp, _ = env.get(t, "/users", learnerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// ============================================================================
// 中间件集成
// ============================================================================

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.get(t, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(raw), "missing token")

	resp, raw = env.get(t, "/users", "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(raw), "invalid token")
}

func TestMiddlewareRecheckAccountState(t *testing.T) {
	env := newTestEnv(t)
	_, assessorToken := env.seedAssessor(t)

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)
	env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)

	// 登录拿到有效令牌
	resp, body := env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	learnerToken := body["token"].(string)

	// 令牌有效期内账户被拒绝，下一次请求立即失效
	require.NoError(t, env.store.DeclineUser(t.Context(), learner.ID))
	resp, raw := env.get(t, "/assignments/my", learnerToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(raw), "account inactive")
}

// ============================================================================
// 密码重置
// ============================================================================

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	_, assessorToken := env.seedAssessor(t)

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)
	env.postJSON(t, "/users/"+learner.ID+"/approve", assessorToken, nil)

	// 申请重置：开发模式下令牌随响应返回
	resp, body := env.postJSON(t, "/auth/request-reset", "", map[string]any{"email": "jo@example.org"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	token, ok := body["resetToken"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	// 重置密码
	resp, body = env.postJSON(t, "/auth/reset-password", "", map[string]any{
		"token": token, "newPassword": "new-pass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// 新密码可登录，旧密码失效
	resp, _ = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "new-pass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.postJSON(t, "/auth/login", "", map[string]any{
		"email": "jo@example.org", "password": "learner-pass",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 令牌一次性有效
	resp, body = env.postJSON(t, "/auth/reset-password", "", map[string]any{
		"token": token, "newPassword": "another-pass",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid or expired token", body["error"])
}

func TestRequestResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	// 未知邮箱返回与已知邮箱相同的成功形状，不泄露账户是否存在
	resp, body := env.postJSON(t, "/auth/request-reset", "", map[string]any{"email": "nobody@example.org"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "resetToken")
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))
	learner, err := env.store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)

	// 直接种入已过期的令牌
	require.NoError(t, env.store.SetResetToken(t.Context(), learner.ID, "tok-expired", time.Now().Add(-time.Minute)))

	resp, body := env.postJSON(t, "/auth/reset-password", "", map[string]any{
		"token": "tok-expired", "newPassword": "new-pass",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid or expired token", body["error"])
}

func TestResetTokenHiddenInProduction(t *testing.T) {
	// ExposeResetToken=false 时响应不携带令牌
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	cfg := Config{JWTSecret: "test-secret", TokenTTL: time.Hour, ResetTokenTTL: time.Hour, ExposeResetToken: false}

	mux := http.NewServeMux()
	NewHandler(store, cfg).RegisterRoutes(mux)
	srv := httptest.NewServer(Middleware(cfg, store)(mux))
	t.Cleanup(func() { srv.Close(); store.Close() })
	env := &testEnv{srv: srv, store: store, cfg: cfg}

	env.postJSON(t, "/auth/register", "", registerBody("jo@example.org"))

	resp, body := env.postJSON(t, "/auth/request-reset", "", map[string]any{"email": "jo@example.org"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "resetToken")

	// 令牌仍然写入了存储，可走邮件通道投递
	learner, err := store.GetUserByEmail(t.Context(), "jo@example.org")
	require.NoError(t, err)
	require.NotNil(t, learner.ResetToken)
}
