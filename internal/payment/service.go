package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/logger"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/listing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/request"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// paymentStore 支付记录持久化面（*Repo 实现）。
type paymentStore interface {
	Create(ctx context.Context, p *Payment) error
	FindByIntentRef(ctx context.Context, intentRef string) (*Payment, error)
	MarkSucceeded(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	ListByRequest(ctx context.Context, requestID string) ([]Payment, error)
}

// requestStore 购车请求侧的窄接口（request.Repo 实现）。
type requestStore interface {
	GetByID(ctx context.Context, id string) (*request.VehicleRequest, error)
	Transition(ctx context.Context, id string, from []request.Status, to request.Status, fields map[string]any) (bool, error)
}

// vehicleStore 车源侧的窄接口（listing.Repo 实现）。
type vehicleStore interface {
	GetByID(ctx context.Context, id string) (*listing.Vehicle, error)
	Transition(ctx context.Context, id string, from []listing.Status, to listing.Status, fields map[string]any) (bool, error)
}

// sideEffects 通知出口（*notify.Dispatcher 实现）。
type sideEffects interface {
	Notify(ctx context.Context, to notify.Recipient, title, message, severity, link string)
}

// Service 支付意图创建 + webhook 对账。
// 购车请求状态只在这里被支付事件推进，且全部走条件更新保证幂等。
type Service struct {
	payments paymentStore
	requests requestStore
	vehicles vehicleStore
	provider Provider
	effect   sideEffects
	log      logger.Logger
	currency string
}

func NewService(repo *Repo, requests *request.Repo, vehicles *listing.Repo, provider Provider, dispatcher *notify.Dispatcher, log logger.Logger, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		payments: repo,
		requests: requests,
		vehicles: vehicles,
		provider: provider,
		effect:   dispatcher,
		log:      log,
		currency: currency,
	}
}

func newServiceWith(p paymentStore, r requestStore, v vehicleStore, pr Provider, e sideEffects, log logger.Logger) *Service {
	return &Service{payments: p, requests: r, vehicles: v, provider: pr, effect: e, log: log, currency: "USD"}
}

// InitiateResult 发起支付的返回：本地支付记录 + 收银台地址。
type InitiateResult struct {
	Payment *Payment
	PayURL  string
}

// Initiate 买家为自己的请求发起一笔支付。
// 该付什么由请求当前状态决定：deposit_pending 付定金，
// verified_available / final_payment_pending 付尾款。
func (s *Service) Initiate(ctx context.Context, actor auth.AuthInfo, requestID string) (*InitiateResult, error) {
	if s == nil || s.payments == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, errs.Invalid("request_id required")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("request not found")
	}
	if err != nil {
		return nil, err
	}
	if req.BuyerID != actor.UserID {
		return nil, errs.Forbidden("not your request")
	}

	var (
		kind   Kind
		amount int64
	)
	switch req.Status {
	case request.StatusDepositPending:
		kind, amount = KindDeposit, req.DepositAmount
	case request.StatusVerifiedAvailable, request.StatusFinalPaymentPending:
		kind, amount = KindFinal, req.FinalAmount
	default:
		return nil, errs.Invalid("no payment due for the current request status")
	}
	if amount <= 0 {
		return nil, errs.Invalid("no balance due")
	}

	id := uuid.NewString()
	intent, err := s.provider.CreatePaymentIntent(ctx, CreateIntentInput{
		Amount:    amount,
		Currency:  s.currency,
		Reference: id,
		Metadata: map[string]string{
			"request_id": req.ID,
			"kind":       string(kind),
		},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, "payment provider unavailable", err)
	}

	p := &Payment{
		ID:        id,
		RequestID: req.ID,
		BuyerID:   req.BuyerID,
		Kind:      kind,
		Amount:    amount,
		Currency:  s.currency,
		IntentRef: intent.Ref,
		Status:    StatusProcessing,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return &InitiateResult{Payment: p, PayURL: intent.PayURL}, nil
}

// ListForRequest 某请求下的支付记录：买家本人或管理员可见。
func (s *Service) ListForRequest(ctx context.Context, actor auth.AuthInfo, requestID string) ([]Payment, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("request not found")
	}
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && req.BuyerID != actor.UserID {
		return nil, errs.Forbidden("not your request")
	}
	return s.payments.ListByRequest(ctx, requestID)
}
