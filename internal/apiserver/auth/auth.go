// Package auth 账户生命周期与访问控制：JWT 令牌、密码哈希、账户状态机、HTTP 中间件
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"portfolio-portal/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// Config 认证配置
type Config struct {
	JWTSecret        string
	TokenTTL         time.Duration // 会话令牌有效期
	ResetTokenTTL    time.Duration // 密码重置令牌有效期
	ExposeResetToken bool          // 重置令牌是否随响应返回（开发模式）
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		TokenTTL:      7 * 24 * time.Hour,
		ResetTokenTTL: time.Hour,
	}
}

// 账户状态错误（固定检查顺序：inactive → not approved → expired）
var (
	ErrAccountInactive    = errors.New("account inactive")
	ErrAccountNotApproved = errors.New("account not approved")
	ErrAccountExpired     = errors.New("account expired")
)

// CheckAccountState 账户状态检查
//
// 顺序固定：先 active，再 approved，最后 expires_at。
// 登录和令牌验证共用同一检查，签发后状态变化在下一次请求即生效。
func CheckAccountState(u *model.User, now time.Time) error {
	if !u.Active {
		return ErrAccountInactive
	}
	if !u.Approved {
		return ErrAccountNotApproved
	}
	if u.Expired(now) {
		return ErrAccountExpired
	}
	return nil
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明：账户 ID 在 Subject，角色单独成声明
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// GenerateToken 签发会话令牌
func GenerateToken(cfg Config, userID string, role model.UserRole) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.TokenTTL)),
		},
		Role: string(role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证 JWT（签名 + 过期）
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// NewResetToken 生成密码重置令牌（20 字节随机数的十六进制表示）
func NewResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithUser 将已验证的账户注入 context
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetUser 从 context 获取已验证的账户
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyAuthUser).(*model.User)
	return user
}
