package request

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
)

// Handler 购车请求 HTTP 入口。
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/requests", h.handleCollection)
	mux.HandleFunc("/api/requests/", h.handleItem)
	mux.HandleFunc("/api/admin/requests", h.adminList)
	mux.HandleFunc("/api/admin/requests/", h.adminItem)
}

type createRequestRequest struct {
	VehicleID string `json:"vehicle_id"`
	Notes     string `json:"notes"`
}

type cancelRequestRequest struct {
	Reason string `json:"reason"`
}

type requestView struct {
	ID            string     `json:"id"`
	BuyerID       string     `json:"buyer_id"`
	VehicleID     string     `json:"vehicle_id"`
	Status        Status     `json:"status"`
	DepositAmount int64      `json:"deposit_amount"`
	FinalAmount   int64      `json:"final_amount"`
	Notes         string     `json:"notes,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty"`
}

// /api/requests
func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listMine(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/requests/{id}[/cancel]
func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		server.WriteErrorStatus(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		h.cancel(w, r, id)
	default:
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/admin/requests/{id}/{action}
func (h *Handler) adminItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAdmin(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || r.Method != http.MethodPost {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		req *VehicleRequest
		err error
	)
	switch action {
	case "begin-verification":
		req, err = h.svc.BeginVerification(r.Context(), actor, id)
	case "mark-verified":
		req, err = h.svc.MarkVerified(r.Context(), actor, id)
	case "request-final-payment":
		req, err = h.svc.RequestFinalPayment(r.Context(), actor, id)
	case "mark-final-paid":
		req, err = h.svc.MarkFinalPaid(r.Context(), actor, id)
	default:
		server.WriteErrorStatus(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"request": toRequestView(req)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	var in createRequestRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	req, err := h.svc.Create(r.Context(), actor, in.VehicleID, in.Notes)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, map[string]any{"request": toRequestView(req)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	req, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"request": toRequestView(req)})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	f := filterFromQuery(r)
	reqs, total, err := h.svc.ListMine(r.Context(), actor, f)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestViews(reqs),
		"total":    total,
	})
}

func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAdmin(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	f := filterFromQuery(r)
	f.BuyerID = strings.TrimSpace(r.URL.Query().Get("buyer_id"))
	f.VehicleID = strings.TrimSpace(r.URL.Query().Get("vehicle_id"))
	reqs, total, err := h.svc.AdminList(r.Context(), actor, f)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestViews(reqs),
		"total":    total,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	var in cancelRequestRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	req, err := h.svc.Cancel(r.Context(), actor, id, in.Reason)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"request": toRequestView(req)})
}

func filterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return ListFilter{
		Status: Status(strings.TrimSpace(q.Get("status"))),
		Offset: (page - 1) * size,
		Limit:  size,
	}
}

func toRequestView(req *VehicleRequest) requestView {
	if req == nil {
		return requestView{}
	}
	return requestView{
		ID:            req.ID,
		BuyerID:       req.BuyerID,
		VehicleID:     req.VehicleID,
		Status:        req.Status,
		DepositAmount: req.DepositAmount,
		FinalAmount:   req.FinalAmount,
		Notes:         req.Notes,
		CancelReason:  req.CancelReason,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
		CompletedAt:   req.CompletedAt,
		CanceledAt:    req.CanceledAt,
	}
}

func toRequestViews(reqs []VehicleRequest) []requestView {
	views := make([]requestView, 0, len(reqs))
	for i := range reqs {
		views = append(views, toRequestView(&reqs[i]))
	}
	return views
}
