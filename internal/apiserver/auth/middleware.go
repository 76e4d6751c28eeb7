package auth

import (
	"log"
	"net/http"
	"strings"
	"time"

	"portfolio-portal/internal/shared/model"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/auth/register",
	"/auth/login",
	"/auth/request-reset",
	"/auth/reset-password",
	"/health",
	"/metrics",
}

func isPublicRoute(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware 创建 Bearer 令牌认证中间件
//
// 每个非公开请求都要：解析令牌 → 重新加载账户 →
// 重跑与登录一致的状态检查（签发后账户可能被拒绝/过期）。
func Middleware(cfg Config, store UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 提取 Bearer Token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(cfg, parts[1])
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			// 重新加载账户：令牌无服务端状态，账户状态以数据库为准
			user, err := store.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				log.Printf("[auth] load user %s: %v", claims.Subject, err)
				http.Error(w, `{"error":"server error"}`, http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, `{"error":"invalid user"}`, http.StatusUnauthorized)
				return
			}

			if err := CheckAccountState(user, time.Now()); err != nil {
				writeStateError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole 角色门禁：要求 required 角色，admin 放行一切
func RequireRole(required model.UserRole, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}
		if !user.Role.Can(required) {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// writeStateError 账户状态错误映射为 403 响应
func writeStateError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	switch err {
	case ErrAccountInactive:
		w.Write([]byte(`{"error":"account inactive"}`))
	case ErrAccountNotApproved:
		w.Write([]byte(`{"error":"account not approved"}`))
	case ErrAccountExpired:
		w.Write([]byte(`{"error":"account expired, contact admin"}`))
	default:
		w.Write([]byte(`{"error":"forbidden"}`))
	}
}
