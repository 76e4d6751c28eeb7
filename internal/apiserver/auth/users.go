package auth

import (
	"log"
	"net/http"
	"time"

	"portfolio-portal/internal/shared/model"
)

// 账户管理接口：审核员（及管理员）可用

// Approve 批准待审核账户
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reviewer := GetUser(r.Context())

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		log.Printf("[auth.approve] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := h.store.ApproveUser(r.Context(), id, reviewer.ID, time.Now()); err != nil {
		log.Printf("[auth.approve] ApproveUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] User %s approved by %s", id, reviewer.Email)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Decline 拒绝账户：撤销批准并锁定
//
// Decline 同时置 approved=false 和 active=false。后续 Reactivate 只解锁
// active，批准需要再次走 Approve，两步都完成学员才能重新登录。
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		log.Printf("[auth.decline] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := h.store.DeclineUser(r.Context(), id); err != nil {
		log.Printf("[auth.decline] DeclineUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] User %s declined", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Reactivate 解锁账户（仅恢复 active，不恢复 approved）
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		log.Printf("[auth.reactivate] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := h.store.ReactivateUser(r.Context(), id); err != nil {
		log.Printf("[auth.reactivate] ReactivateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	log.Printf("[auth] User %s reactivated", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListPending 列出待审核账户
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListPendingUsers(r.Context())
	if err != nil {
		log.Printf("[auth.pending] ListPendingUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ListAll 列出全部账户
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("[auth.users] ListUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
