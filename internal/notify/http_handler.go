package notify

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
)

// Handler 通知读取面 + 管理端审计查询。
type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/notifications", h.handleList)
	mux.HandleFunc("/api/notifications/", h.handleMarkRead)
	mux.HandleFunc("/api/admin/audit-logs", h.handleListAuditLogs)
}

// GET /api/notifications
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ai, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}

	offset, limit := pageParams(r)
	items, total, err := h.repo.ListForUser(r.Context(), ai.UserID, ai.Role, ai.IsAdmin(), offset, limit)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
	})
}

// POST /api/notifications/{id}/read
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ai, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	id, action, found := strings.Cut(rest, "/")
	if !found || action != "read" || id == "" {
		server.WriteErrorStatus(w, http.StatusNotFound, "not found")
		return
	}

	applied, err := h.repo.MarkRead(r.Context(), id, ai.UserID, ai.Role, ai.IsAdmin())
	if err != nil {
		server.WriteError(w, err)
		return
	}
	if !applied {
		// 不区分“不存在”和“不是你的”，一律 not found
		server.WriteErrorStatus(w, http.StatusNotFound, "notification not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"read": true})
}

// GET /api/admin/audit-logs
func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := server.RequireAdmin(w, r); !ok {
		return
	}

	offset, limit := pageParams(r)
	items, total, err := h.repo.ListAuditLogs(
		r.Context(),
		strings.TrimSpace(r.URL.Query().Get("action")),
		strings.TrimSpace(r.URL.Query().Get("entity_type")),
		offset, limit,
	)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"audit_logs": items,
		"total":      total,
	})
}

func pageParams(r *http.Request) (offset, limit int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return (page - 1) * size, size
}
