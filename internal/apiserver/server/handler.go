package server

import (
	"net/http"
	"time"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/apiserver/resource"
	"portfolio-portal/internal/apiserver/submission"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 认证 (Auth):
//   - POST /auth/register       - 学员注册（等待批准）
//   - POST /auth/login          - 登录，返回令牌和账户摘要
//   - POST /auth/request-reset  - 申请密码重置
//   - POST /auth/reset-password - 用重置令牌设置新密码
//
// 账户管理 (User，审核员/管理员):
//   - POST /users/{id}/approve    - 批准账户
//   - POST /users/{id}/decline    - 拒绝并锁定账户
//   - POST /users/{id}/reactivate - 解锁账户
//   - GET  /users/pending         - 待审核账户列表
//   - GET  /users                 - 全部账户列表
//
// 作业 (Submission):
//   - POST   /assignments/upload         - 上传作业
//   - GET    /assignments/my             - 我的作业（附反馈）
//   - GET    /assignments                - 全部作业（审核员）
//   - GET    /assignments/{id}/download  - 下载作业文件
//   - POST   /assignments/{id}/feedback  - 添加反馈（审核员）
//   - DELETE /assignments/{id}           - 删除作业（拥有者/管理员）
//   - GET    /feedback/{id}/download     - 下载反馈附件
//   - GET    /users/{id}/assignments     - 某学员的作业（审核员）
//
// 资料 (Resource):
//   - POST /resources/upload         - 上传资料（审核员）
//   - GET  /resources                - 资料列表（学员侧硬过滤）
//   - GET  /resources/{id}/download  - 下载资料
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", h.metrics.Handler())

	// Auth 与账户管理路由
	authHandler := auth.NewHandler(h.store, h.authCfg)
	authHandler.RegisterRoutes(mux)

	// 作业路由
	subHandler := submission.NewHandler(h.store, h.blobs)
	subHandler.RegisterRoutes(mux)

	// 资料路由
	resHandler := resource.NewHandler(h.store, h.blobs)
	resHandler.RegisterRoutes(mux)

	// 应用指标中间件
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authCfg, h.store)(apiHandler)

	// 应用访问日志中间件
	loggedHandler := h.accessLogMiddleware(authedHandler)

	// 应用 CORS 中间件
	return corsMiddleware(loggedHandler)
}

// accessLogMiddleware 结构化访问日志
func (h *Handler) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), r.RemoteAddr)
	})
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
