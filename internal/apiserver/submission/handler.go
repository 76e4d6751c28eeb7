// Package submission 作业提交与反馈 HTTP 处理器
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/shared/blobstore"
	"portfolio-portal/internal/shared/model"
)

// maxUploadBytes 单次上传大小上限
const maxUploadBytes = 50 << 20 // 50 MB

// Store 作业存储接口
type Store interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissionsByOwner(ctx context.Context, userID string) ([]*model.Submission, error)
	ListSubmissions(ctx context.Context, learnerID string) ([]*model.Submission, error)
	CreateFeedback(ctx context.Context, fb *model.Feedback) error
	GetFeedback(ctx context.Context, id string) (*model.Feedback, error)
	ListFeedbackBySubmission(ctx context.Context, submissionID string) ([]*model.Feedback, error)
	DeleteFeedbackBySubmission(ctx context.Context, submissionID string) error
	DeleteSubmission(ctx context.Context, id string) error
}

// Handler 作业 HTTP 处理器
type Handler struct {
	store Store
	blobs blobstore.Store
}

// NewHandler 创建作业处理器
func NewHandler(store Store, blobs blobstore.Store) *Handler {
	return &Handler{store: store, blobs: blobs}
}

// RegisterRoutes 注册作业相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /assignments/upload", h.Upload)
	mux.HandleFunc("GET /assignments/my", h.ListMine)
	mux.HandleFunc("GET /assignments", auth.RequireRole(model.RoleAssessor, h.ListAll))
	mux.HandleFunc("GET /assignments/{id}/download", h.Download)
	mux.HandleFunc("POST /assignments/{id}/feedback", auth.RequireRole(model.RoleAssessor, h.AddFeedback))
	mux.HandleFunc("DELETE /assignments/{id}", h.Delete)
	mux.HandleFunc("GET /feedback/{id}/download", h.DownloadFeedback)
	mux.HandleFunc("GET /users/{id}/assignments", auth.RequireRole(model.RoleAssessor, h.ListForLearner))
}

// ============================================================================
// 上传 / 列表
// ============================================================================

// Upload 学员上传作业（multipart：file 必填，title/description 可选）
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

	ref, err := h.storeFile(r.Context(), blobstore.CategoryAssignments, file, header)
	if err != nil {
		log.Printf("[submission.upload] store file error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	sub := &model.Submission{
		ID:          model.NewID("sub"),
		UserID:      user.ID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		FileRef:     ref,
		UploadedAt:  time.Now(),
	}
	if err := h.store.CreateSubmission(r.Context(), sub); err != nil {
		log.Printf("[submission.upload] CreateSubmission error: %v", err)
		// 入库失败时回收已写入的文件
		if derr := h.blobs.Delete(r.Context(), ref); derr != nil {
			log.Printf("[submission.upload] cleanup blob %s: %v", ref, derr)
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[submission] %s uploaded %q (%s)", user.Email, sub.Title, sub.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": sub.ID})
}

// ListMine 学员查看自己的作业（附反馈）
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	subs, err := h.store.ListSubmissionsByOwner(r.Context(), user.ID)
	if err != nil {
		log.Printf("[submission.my] ListSubmissionsByOwner error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.attachFeedback(r.Context(), subs); err != nil {
		log.Printf("[submission.my] attach feedback error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if subs == nil {
		subs = []*model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListAll 审核员查看全部作业（附学员信息和反馈）
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubmissions(r.Context(), "")
	if err != nil {
		log.Printf("[submission.list] ListSubmissions error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.attachFeedback(r.Context(), subs); err != nil {
		log.Printf("[submission.list] attach feedback error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if subs == nil {
		subs = []*model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListForLearner 审核员查看某个学员的作业
func (h *Handler) ListForLearner(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")

	subs, err := h.store.ListSubmissions(r.Context(), learnerID)
	if err != nil {
		log.Printf("[submission.byuser] ListSubmissions error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := h.attachFeedback(r.Context(), subs); err != nil {
		log.Printf("[submission.byuser] attach feedback error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if subs == nil {
		subs = []*model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ============================================================================
// 下载
// ============================================================================

// Download 下载作业文件（拥有者、审核员或管理员）
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id := r.PathValue("id")

	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		log.Printf("[submission.download] GetSubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if user.ID != sub.UserID && !user.Role.Can(model.RoleAssessor) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	h.serveBlob(w, r, sub.FileRef, sub.FileName)
}

// DownloadFeedback 下载反馈附件（反馈作者、作业拥有者或管理员）
func (h *Handler) DownloadFeedback(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id := r.PathValue("id")

	fb, err := h.store.GetFeedback(r.Context(), id)
	if err != nil {
		log.Printf("[feedback.download] GetFeedback error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if fb == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !fb.HasFile() {
		writeError(w, http.StatusNotFound, "no file attached")
		return
	}
	if user.Role != model.RoleAdmin && user.ID != fb.AssessorID && user.ID != fb.OwnerID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	name := ""
	if fb.FileName != nil {
		name = *fb.FileName
	}
	h.serveBlob(w, r, *fb.FileRef, name)
}

// ============================================================================
// 反馈
// ============================================================================

// AddFeedback 审核员添加反馈（multipart：comment 可选，file 可选）
func (h *Handler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	submissionID := r.PathValue("id")

	sub, err := h.store.GetSubmission(r.Context(), submissionID)
	if err != nil {
		log.Printf("[feedback.add] GetSubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	fb := &model.Feedback{
		ID:           model.NewID("fbk"),
		SubmissionID: submissionID,
		AssessorID:   user.ID,
		Comment:      r.FormValue("comment"),
		CreatedAt:    time.Now(),
	}

	// 附件可选，没有文件时只落评语
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		ref, err := h.storeFile(r.Context(), blobstore.CategoryFeedback, file, header)
		if err != nil {
			log.Printf("[feedback.add] store file error: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		fb.FileName = &header.Filename
		fb.FileRef = &ref
	}

	if err := h.store.CreateFeedback(r.Context(), fb); err != nil {
		log.Printf("[feedback.add] CreateFeedback error: %v", err)
		if fb.FileRef != nil {
			if derr := h.blobs.Delete(r.Context(), *fb.FileRef); derr != nil {
				log.Printf("[feedback.add] cleanup blob %s: %v", *fb.FileRef, derr)
			}
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[submission] Feedback %s added to %s by %s", fb.ID, submissionID, user.Email)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": fb.ID})
}

// ============================================================================
// 删除
// ============================================================================

// Delete 删除作业（仅拥有者或管理员，审核员不可代删）
//
// 级联顺序固定：反馈附件 → 反馈行 → 作业文件 → 作业行。
// blob 删除尽力而为，失败只记录日志，不中断删除流程。
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id := r.PathValue("id")

	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		log.Printf("[submission.delete] GetSubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if user.Role != model.RoleAdmin && user.ID != sub.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	fbs, err := h.store.ListFeedbackBySubmission(r.Context(), id)
	if err != nil {
		log.Printf("[submission.delete] ListFeedbackBySubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	for _, fb := range fbs {
		if fb.HasFile() {
			if err := h.blobs.Delete(r.Context(), *fb.FileRef); err != nil {
				log.Printf("[submission.delete] delete feedback blob %s: %v", *fb.FileRef, err)
			}
		}
	}
	if err := h.store.DeleteFeedbackBySubmission(r.Context(), id); err != nil {
		log.Printf("[submission.delete] DeleteFeedbackBySubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	if sub.FileRef != "" {
		if err := h.blobs.Delete(r.Context(), sub.FileRef); err != nil {
			log.Printf("[submission.delete] delete blob %s: %v", sub.FileRef, err)
		}
	}
	if err := h.store.DeleteSubmission(r.Context(), id); err != nil {
		log.Printf("[submission.delete] DeleteSubmission error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[submission] %s deleted by %s", id, user.Email)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ============================================================================
// 工具函数
// ============================================================================

// storeFile 将 multipart 文件写入 blob 存储
func (h *Handler) storeFile(ctx context.Context, category string, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.blobs.Put(ctx, category, header.Filename, file, header.Size, contentType)
}

// serveBlob 按引用返回文件：URL 引用走重定向，其余流式下载
func (h *Handler) serveBlob(w http.ResponseWriter, r *http.Request, ref, filename string) {
	if blobstore.IsURL(ref) {
		http.Redirect(w, r, ref, http.StatusFound)
		return
	}

	rc, err := h.blobs.Open(r.Context(), ref)
	if err != nil {
		log.Printf("[submission] open blob %s: %v", ref, err)
		writeError(w, http.StatusNotFound, "file missing")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[submission] stream blob %s: %v", ref, err)
	}
}

// attachFeedback 为每份作业加载反馈列表
func (h *Handler) attachFeedback(ctx context.Context, subs []*model.Submission) error {
	for _, sub := range subs {
		fbs, err := h.store.ListFeedbackBySubmission(ctx, sub.ID)
		if err != nil {
			return err
		}
		if fbs == nil {
			fbs = []*model.Feedback{}
		}
		sub.Feedback = fbs
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
