// Package server 路由配置与核心基础设施
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由装配与中间件链
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"net/http"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/shared/blobstore"
	"portfolio-portal/internal/shared/storage/repository"
	"portfolio-portal/pkg/logging"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 将路由分发到各领域包（auth / submission / resource）
//   - 管理存储层与 blob 存储连接
//   - 挂载中间件链（CORS → 访问日志 → 认证 → 指标）
type Handler struct {
	store   *repository.Store // 业务数据存储层
	blobs   blobstore.Store   // 文件字节存储
	authCfg auth.Config       // 认证配置
	metrics *Metrics          // Prometheus 指标
	logger  *logging.Logger   // 结构化访问日志
}

// NewHandler 创建 Handler 实例
func NewHandler(store *repository.Store, blobs blobstore.Store, authCfg auth.Config) *Handler {
	return &Handler{
		store:   store,
		blobs:   blobs,
		authCfg: authCfg,
		metrics: NewMetrics("portal"),
		logger:  logging.Default("api-server"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
