package listing

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
)

// Handler 车源 HTTP 入口。
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/vehicles", h.handleCollection)
	mux.HandleFunc("/api/vehicles/", h.handleItem)
}

type createVehicleRequest struct {
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	PriceUSD     int64    `json:"price_usd"`
	Mileage      int      `json:"mileage"`
	Transmission string   `json:"transmission"`
	FuelType     string   `json:"fuel_type"`
	Color        string   `json:"color"`
	Description  string   `json:"description"`
	ImageURLs    []string `json:"image_urls"`
}

type updateVehicleRequest struct {
	Make         *string   `json:"make"`
	Model        *string   `json:"model"`
	Year         *int      `json:"year"`
	PriceUSD     *int64    `json:"price_usd"`
	Mileage      *int      `json:"mileage"`
	Transmission *string   `json:"transmission"`
	FuelType     *string   `json:"fuel_type"`
	Color        *string   `json:"color"`
	Description  *string   `json:"description"`
	ImageURLs    *[]string `json:"image_urls"`
}

type rejectVehicleRequest struct {
	Reason string `json:"reason"`
}

type imageView struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type vehicleView struct {
	ID              string      `json:"id"`
	SellerID        string      `json:"seller_id,omitempty"` // 仅所有者 / 管理员可见
	Status          Status      `json:"status"`
	Make            string      `json:"make"`
	Model           string      `json:"model"`
	Year            int         `json:"year"`
	PriceUSD        int64       `json:"price_usd"`
	Mileage         int         `json:"mileage"`
	Transmission    string      `json:"transmission,omitempty"`
	FuelType        string      `json:"fuel_type,omitempty"`
	Color           string      `json:"color,omitempty"`
	Description     string      `json:"description,omitempty"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
	Images          []imageView `json:"images"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// /api/vehicles
func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/vehicles/{id}[/action]
func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		server.WriteErrorStatus(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case action == "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.update(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case action == "submit" && r.Method == http.MethodPost:
		h.submit(w, r, id)
	case action == "approve" && r.Method == http.MethodPost:
		h.approve(w, r, id)
	case action == "reject" && r.Method == http.MethodPost:
		h.reject(w, r, id)
	case action == "archive" && r.Method == http.MethodPost:
		h.archive(w, r, id)
	default:
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	f := ListFilter{
		Status: Status(strings.TrimSpace(q.Get("status"))),
		Make:   strings.TrimSpace(q.Get("make")),
		Offset: (page - 1) * size,
		Limit:  size,
	}
	mine := q.Get("mine") == "true"

	vehicles, total, err := h.svc.List(r.Context(), actor, f, mine)
	if err != nil {
		server.WriteError(w, err)
		return
	}

	views := make([]vehicleView, 0, len(vehicles))
	for i := range vehicles {
		v := vehicles[i]
		views = append(views, toVehicleView(&v, CanRevealSeller(actor, &v)))
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"vehicles": views,
		"total":    total,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	var in createVehicleRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	v, err := h.svc.Create(r.Context(), actor, CreateVehicleInput{
		Make:         in.Make,
		Model:        in.Model,
		Year:         in.Year,
		PriceUSD:     in.PriceUSD,
		Mileage:      in.Mileage,
		Transmission: in.Transmission,
		FuelType:     in.FuelType,
		Color:        in.Color,
		Description:  in.Description,
		ImageURLs:    in.ImageURLs,
	})
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, map[string]any{"vehicle": toVehicleView(v, true)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := auth.FromContext(r.Context())
	v, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, CanRevealSeller(actor, v))})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	var in updateVehicleRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	v, err := h.svc.Update(r.Context(), actor, id, UpdateVehicleInput{
		Make:         in.Make,
		Model:        in.Model,
		Year:         in.Year,
		PriceUSD:     in.PriceUSD,
		Mileage:      in.Mileage,
		Transmission: in.Transmission,
		FuelType:     in.FuelType,
		Color:        in.Color,
		Description:  in.Description,
		ImageURLs:    in.ImageURLs,
	})
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, true)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	v, err := h.svc.SubmitForReview(r.Context(), actor, id)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, true)})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAdmin(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Approve(r.Context(), actor, id)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, true)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAdmin(w, r)
	if !ok {
		return
	}
	var in rejectVehicleRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	v, err := h.svc.Reject(r.Context(), actor, id, in.Reason)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, true)})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Archive(r.Context(), actor, id)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"vehicle": toVehicleView(v, true)})
}

func toVehicleView(v *Vehicle, revealSeller bool) vehicleView {
	if v == nil {
		return vehicleView{}
	}
	imgs := make([]imageView, 0, len(v.Images))
	for _, im := range v.Images {
		imgs = append(imgs, imageView{URL: im.URL, Position: im.Position})
	}
	out := vehicleView{
		ID:              v.ID,
		Status:          v.Status,
		Make:            v.Make,
		Model:           v.Model,
		Year:            v.Year,
		PriceUSD:        v.PriceUSD,
		Mileage:         v.Mileage,
		Transmission:    v.Transmission,
		FuelType:        v.FuelType,
		Color:           v.Color,
		Description:     v.Description,
		RejectionReason: v.RejectionReason,
		Images:          imgs,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
	if revealSeller {
		out.SellerID = v.SellerID
	}
	return out
}
