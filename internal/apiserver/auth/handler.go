package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"portfolio-portal/internal/shared/model"
	"portfolio-portal/internal/shared/storage/repository"
)

// accountExpiry 新注册学员账户的试用有效期
const accountExpiry = 30 * 24 * time.Hour

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListPendingUsers(ctx context.Context) ([]*model.User, error)
	ApproveUser(ctx context.Context, id, approvedBy string, at time.Time) error
	DeclineUser(ctx context.Context, id string) error
	ReactivateUser(ctx context.Context, id string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store UserStore
	cfg   Config
}

// NewHandler 创建认证处理器
func NewHandler(store UserStore, cfg Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// RegisterRoutes 注册认证与账户管理路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/request-reset", h.RequestReset)
	mux.HandleFunc("POST /auth/reset-password", h.ResetPassword)

	mux.HandleFunc("POST /users/{id}/approve", RequireRole(model.RoleAssessor, h.Approve))
	mux.HandleFunc("POST /users/{id}/decline", RequireRole(model.RoleAssessor, h.Decline))
	mux.HandleFunc("POST /users/{id}/reactivate", RequireRole(model.RoleAssessor, h.Reactivate))
	mux.HandleFunc("GET /users/pending", RequireRole(model.RoleAssessor, h.ListPending))
	mux.HandleFunc("GET /users", RequireRole(model.RoleAssessor, h.ListAll))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	AwardingBody string `json:"awarding_body"`
	Level        int    `json:"level"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  model.Summary `json:"user"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ============================================================================
// 注册 / 登录
// ============================================================================

// Register 学员注册
//
// 新账户统一为 learner 角色，approved=false：必须经审核员批准后才能登录。
// expires_at 设为注册时间 + 30 天，过期后由管理员手动处理。
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	if !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	now := time.Now()
	expires := now.Add(accountExpiry)
	user := &model.User{
		ID:           model.NewID("usr"),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleLearner,
		AwardingBody: req.AwardingBody,
		Level:        req.Level,
		Approved:     false,
		Active:       true,
		CreatedAt:    now,
		ExpiresAt:    &expires,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if repository.IsUniqueViolation(err) {
			writeError(w, http.StatusBadRequest, "email already exists")
			return
		}
		log.Printf("[auth.register] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] User registered, awaiting approval: %s (%s)", user.Email, user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "registered, awaiting approval",
	})
}

// Login 登录
//
// 凭据错误统一返回 400 invalid credentials（不区分账户不存在和密码错误）。
// 凭据正确后按固定顺序做账户状态检查，全部 403。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.login] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	switch CheckAccountState(user, time.Now()) {
	case nil:
	case ErrAccountInactive:
		writeError(w, http.StatusForbidden, "account inactive")
		return
	case ErrAccountNotApproved:
		writeError(w, http.StatusForbidden, "account not approved")
		return
	case ErrAccountExpired:
		writeError(w, http.StatusForbidden, "account expired")
		return
	}

	token, err := GenerateToken(h.cfg, user.ID, user.Role)
	if err != nil {
		log.Printf("[auth.login] GenerateToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] User logged in: %s", user.Email)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user.Summary()})
}

// ============================================================================
// 密码重置
// ============================================================================

// RequestReset 申请密码重置
//
// 无论邮箱是否存在都返回相同的成功形状，避免账户枚举。
// 开发/测试环境下令牌直接随响应返回（ExposeResetToken），生产环境走邮件投递。
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "If that email exists you will receive instructions",
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.reset] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	token, err := NewResetToken()
	if err != nil {
		log.Printf("[auth.reset] NewResetToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	expires := time.Now().Add(h.cfg.ResetTokenTTL)
	if err := h.store.SetResetToken(r.Context(), user.ID, token, expires); err != nil {
		log.Printf("[auth.reset] SetResetToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] Reset token issued for %s", user.Email)
	if h.cfg.ExposeResetToken {
		resp["resetToken"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetPassword 用重置令牌设置新密码
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "token and newPassword required")
		return
	}

	user, err := h.store.GetUserByResetToken(r.Context(), req.Token)
	if err != nil {
		log.Printf("[auth.reset] GetUserByResetToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// 过期判断在 Go 侧做，不依赖各数据库的时间比较语义
	if user == nil || user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("[auth.reset] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// UpdateUserPassword 同时清空重置令牌，令牌一次性有效
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		log.Printf("[auth.reset] UpdateUserPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] Password reset for %s", user.Email)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Password updated"})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员账户存在（启动时调用）
// 管理员账户不参与审批流程：创建即 approved+active，且永不过期。
func EnsureAdminUser(store UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		log.Printf("[auth] Admin user already exists: %s (%s)", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	self := "system"
	user := &model.User{
		ID:           model.NewID("usr"),
		Name:         "Admin",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Approved:     true,
		ApprovedBy:   &self,
		ApprovedAt:   &now,
		Active:       true,
		CreatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%s)", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
