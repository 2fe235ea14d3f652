package payment

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/logger"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/middleware"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
)

const signatureHeader = "X-Webhook-Signature"

// Handler 支付 HTTP 入口：买家发起支付 + 服务商 webhook 回调。
// webhook 是未认证的公开端点，除全局限流外单独再加一层滑动窗口限流。
type Handler struct {
	svc            *Service
	webhookSecret  string
	webhookLimiter middleware.RateLimiter
	log            logger.Logger
}

func NewHandler(svc *Service, webhookSecret string, log logger.Logger) *Handler {
	return &Handler{
		svc:            svc,
		webhookSecret:  webhookSecret,
		webhookLimiter: middleware.NewSlidingWindow(time.Minute, 600),
		log:            log,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/payments", h.handlePayments)
	mux.HandleFunc("/api/payments/webhook", h.handleWebhook)
}

type initiatePaymentRequest struct {
	RequestID string `json:"request_id"`
}

type paymentView struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	Kind          Kind      `json:"kind"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        Status    `json:"status"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// /api/payments
func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.initiate(w, r)
	case http.MethodGet:
		h.listForRequest(w, r)
	default:
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	var in initiatePaymentRequest
	if err := server.DecodeJSON(r, &in); err != nil {
		server.WriteError(w, err)
		return
	}
	res, err := h.svc.Initiate(r.Context(), actor, in.RequestID)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, map[string]any{
		"payment": toPaymentView(res.Payment),
		"pay_url": res.PayURL,
	})
}

func (h *Handler) listForRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.RequireAuth(w, r)
	if !ok {
		return
	}
	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))
	if requestID == "" {
		server.WriteErrorStatus(w, http.StatusBadRequest, "request_id required")
		return
	}
	payments, err := h.svc.ListForRequest(r.Context(), actor, requestID)
	if err != nil {
		server.WriteError(w, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"payments": views})
}

// /api/payments/webhook 服务商回调。
// 先验签再读任何业务状态；验签失败一律 400，不泄露失败原因细节。
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.WriteErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.webhookLimiter != nil && !h.webhookLimiter.Allow(r.Context()) {
		server.WriteErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		server.WriteErrorStatus(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := VerifySignature(h.webhookSecret, r.Header.Get(signatureHeader), body, time.Now()); err != nil {
		h.log.Warnf("webhook signature rejected: %v", err)
		server.WriteErrorStatus(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		server.WriteErrorStatus(w, http.StatusBadRequest, "malformed event")
		return
	}

	if err := h.svc.HandleEvent(r.Context(), evt); err != nil {
		// 存储故障：回 5xx 让服务商按退避重试
		h.log.Errorf("webhook event %s failed: %v", evt.ID, err)
		server.WriteErrorStatus(w, http.StatusInternalServerError, "internal error")
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
}

func toPaymentView(p *Payment) paymentView {
	if p == nil {
		return paymentView{}
	}
	return paymentView{
		ID:            p.ID,
		RequestID:     p.RequestID,
		Kind:          p.Kind,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
