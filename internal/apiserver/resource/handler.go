// Package resource 参考资料库 HTTP 处理器
//
// 资料按认证机构 + 级别分组。学员侧是硬过滤：列表和下载都以
// 本人账户上的 awarding_body/level 为准，请求参数不可覆盖。
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/shared/blobstore"
	"portfolio-portal/internal/shared/model"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Store 资料存储接口
type Store interface {
	CreateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResourcesForCohort(ctx context.Context, awardingBody string, level int) ([]*model.Resource, error)
	ListResources(ctx context.Context, awardingBody string, level *int) ([]*model.Resource, error)
}

// Handler 资料 HTTP 处理器
type Handler struct {
	store Store
	blobs blobstore.Store
}

// NewHandler 创建资料处理器
func NewHandler(store Store, blobs blobstore.Store) *Handler {
	return &Handler{store: store, blobs: blobs}
}

// RegisterRoutes 注册资料相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /resources/upload", auth.RequireRole(model.RoleAssessor, h.Upload))
	mux.HandleFunc("GET /resources", h.List)
	mux.HandleFunc("GET /resources/{id}/download", h.Download)
}

// Upload 审核员上传资料（multipart：file 必填；title 缺省取文件名）
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	level := 0
	if v := r.FormValue("level"); v != "" {
		level, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ref, err := h.blobs.Put(r.Context(), blobstore.CategoryResources, header.Filename, file, header.Size, contentType)
	if err != nil {
		log.Printf("[resource.upload] store file error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	res := &model.Resource{
		ID:           model.NewID("res"),
		Title:        title,
		Type:         r.FormValue("type"),
		AwardingBody: r.FormValue("awarding_body"),
		Level:        level,
		FileName:     header.Filename,
		FileRef:      ref,
		UploadedAt:   time.Now(),
	}
	if err := h.store.CreateResource(r.Context(), res); err != nil {
		log.Printf("[resource.upload] CreateResource error: %v", err)
		if derr := h.blobs.Delete(r.Context(), ref); derr != nil {
			log.Printf("[resource.upload] cleanup blob %s: %v", ref, derr)
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[resource] %s uploaded %q for %s level %d", user.Email, res.Title, res.AwardingBody, res.Level)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": res.ID})
}

// List 列出资料
//
// 学员：固定过滤到本人 awarding_body + level。
// 审核员/管理员：可用 awarding_body、level 查询参数筛选，缺省为全部。
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var (
		resources []*model.Resource
		err       error
	)
	if user.Role == model.RoleLearner {
		resources, err = h.store.ListResourcesForCohort(r.Context(), user.AwardingBody, user.Level)
	} else {
		var level *int
		if v := r.URL.Query().Get("level"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid level")
				return
			}
			level = &n
		}
		resources, err = h.store.ListResources(r.Context(), r.URL.Query().Get("awarding_body"), level)
	}
	if err != nil {
		log.Printf("[resource.list] query error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if resources == nil {
		resources = []*model.Resource{}
	}
	writeJSON(w, http.StatusOK, resources)
}

// Download 下载资料（学员侧在下载时再次校验分组匹配）
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id := r.PathValue("id")

	res, err := h.store.GetResource(r.Context(), id)
	if err != nil {
		log.Printf("[resource.download] GetResource error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if user.Role == model.RoleLearner && !res.MatchesCohort(user.AwardingBody, user.Level) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if blobstore.IsURL(res.FileRef) {
		http.Redirect(w, r, res.FileRef, http.StatusFound)
		return
	}

	rc, err := h.blobs.Open(r.Context(), res.FileRef)
	if err != nil {
		log.Printf("[resource.download] open blob %s: %v", res.FileRef, err)
		writeError(w, http.StatusNotFound, "file missing")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[resource.download] stream blob %s: %v", res.FileRef, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
