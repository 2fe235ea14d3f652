package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/listing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 审计动作名。
const (
	ActionBeginVerification   = "BEGIN_VERIFICATION"
	ActionMarkVerified        = "MARK_VERIFIED"
	ActionRequestFinalPayment = "REQUEST_FINAL_PAYMENT"
	ActionMarkFinalPaid       = "MARK_FINAL_PAID"
	ActionCancelRequest       = "CANCEL_REQUEST"
)

// store Service 依赖的持久化面（*Repo 实现）。
type store interface {
	Create(ctx context.Context, req *VehicleRequest) error
	GetByID(ctx context.Context, id string) (*VehicleRequest, error)
	FindActive(ctx context.Context, buyerID, vehicleID string) (*VehicleRequest, error)
	Transition(ctx context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error)
	List(ctx context.Context, f ListFilter) ([]VehicleRequest, int64, error)
}

// vehicleCatalog 车源查询面（listing.Repo 实现）。
type vehicleCatalog interface {
	GetByID(ctx context.Context, id string) (*listing.Vehicle, error)
}

// sideEffects 通知 / 审计出口（*notify.Dispatcher 实现）。
type sideEffects interface {
	Notify(ctx context.Context, to notify.Recipient, title, message, severity, link string)
	Audit(ctx context.Context, adminID, action, entityType, entityID string, detail map[string]any)
}

// Service 封装购车请求领域的核心用例。
// 请求只会被支付对账协议或管理员推进；买家侧入口只有创建、查询和取消。
type Service struct {
	store          store
	vehicles       vehicleCatalog
	effect         sideEffects
	defaultDeposit int64
}

func NewService(repo *Repo, vehicles *listing.Repo, dispatcher *notify.Dispatcher, defaultDeposit int64) *Service {
	return &Service{store: repo, vehicles: vehicles, effect: dispatcher, defaultDeposit: defaultDeposit}
}

func newServiceWith(s store, v vehicleCatalog, e sideEffects, defaultDeposit int64) *Service {
	return &Service{store: s, vehicles: v, effect: e, defaultDeposit: defaultDeposit}
}

// Create 买家对一辆 approved 车源发起购车请求。
// 金额在此刻按车价冻结：定金 = min(默认定金, 车价)，尾款 = 车价 - 定金。
func (s *Service) Create(ctx context.Context, actor auth.AuthInfo, vehicleID, notes string) (*VehicleRequest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, errs.Unauthenticated("authentication required")
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, errs.Invalid("vehicle_id required")
	}

	v, err := s.vehicles.GetByID(ctx, vehicleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, err
	}
	if v.Status != listing.StatusApproved {
		// 未上架车源对买家按不存在处理
		return nil, errs.NotFound("vehicle not found")
	}
	if v.PriceUSD <= 0 {
		return nil, errs.Invalid("vehicle has no price")
	}

	// 快速路径检查；真正的防线是 (buyer, vehicle, active) 唯一索引
	if _, err := s.store.FindActive(ctx, actor.UserID, vehicleID); err == nil {
		return nil, errs.Invalid("you already have an active request for this vehicle")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	deposit := s.defaultDeposit
	if deposit <= 0 {
		deposit = 500
	}
	if deposit > v.PriceUSD {
		deposit = v.PriceUSD
	}

	key := activeKeyValue
	req := &VehicleRequest{
		ID:            uuid.NewString(),
		BuyerID:       actor.UserID,
		VehicleID:     vehicleID,
		Status:        StatusDepositPending,
		DepositAmount: deposit,
		FinalAmount:   v.PriceUSD - deposit,
		Notes:         strings.TrimSpace(notes),
		ActiveKey:     &key,
	}
	if err := s.store.Create(ctx, req); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Invalid("you already have an active request for this vehicle")
		}
		return nil, err
	}

	s.effect.Notify(ctx, notify.User(actor.UserID),
		"购车请求已创建", fmt.Sprintf("请支付定金 $%d 以锁定 %s %s", deposit, v.Make, v.Model),
		notify.SeverityInfo, "/requests/"+req.ID)
	return req, nil
}

// Get 请求详情：仅买家本人或管理员可见，其余一律 403。
func (s *Service) Get(ctx context.Context, actor auth.AuthInfo, id string) (*VehicleRequest, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && req.BuyerID != actor.UserID {
		return nil, errs.Forbidden("not your request")
	}
	return req, nil
}

// ListMine 买家自己的请求列表。
func (s *Service) ListMine(ctx context.Context, actor auth.AuthInfo, f ListFilter) ([]VehicleRequest, int64, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, 0, errs.Unauthenticated("authentication required")
	}
	f.BuyerID = actor.UserID
	return s.store.List(ctx, f)
}

// AdminList 管理端列表，支持按状态过滤。
func (s *Service) AdminList(ctx context.Context, actor auth.AuthInfo, f ListFilter) ([]VehicleRequest, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, errs.Forbidden("admin role required")
	}
	return s.store.List(ctx, f)
}

// Cancel 取消请求：买家本人或管理员；任意非终态可达。
func (s *Service) Cancel(ctx context.Context, actor auth.AuthInfo, id, reason string) (*VehicleRequest, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && req.BuyerID != actor.UserID {
		return nil, errs.Forbidden("not your request")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.Invalid("cancel reason is required")
	}

	now := time.Now()
	applied, err := s.store.Transition(ctx, req.ID, ActiveStatuses(), StatusCanceled, map[string]any{
		"cancel_reason": reason,
		"canceled_at":   &now,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Invalid("request is already completed or canceled")
	}
	req.Status = StatusCanceled
	req.CancelReason = &reason
	req.CanceledAt = &now

	if actor.IsAdmin() {
		s.effect.Audit(ctx, actor.UserID, ActionCancelRequest, "request", req.ID, map[string]any{
			"reason": reason, "buyer_id": req.BuyerID,
		})
		s.effect.Notify(ctx, notify.User(req.BuyerID),
			"购车请求已取消", fmt.Sprintf("您的请求被管理员取消：%s", reason),
			notify.SeverityWarning, "/requests/"+req.ID)
	}
	return req, nil
}

// BeginVerification 管理员开始核验：deposit_paid → admin_verifying。
func (s *Service) BeginVerification(ctx context.Context, actor auth.AuthInfo, id string) (*VehicleRequest, error) {
	return s.adminTransition(ctx, actor, id,
		[]Status{StatusDepositPaid}, StatusAdminVerifying,
		ActionBeginVerification, "", "")
}

// MarkVerified 管理员核验通过：deposit_paid / admin_verifying → verified_available。
// deposit_paid 直达是为了允许跳过显式的“核验中”子状态。
func (s *Service) MarkVerified(ctx context.Context, actor auth.AuthInfo, id string) (*VehicleRequest, error) {
	return s.adminTransition(ctx, actor, id,
		[]Status{StatusDepositPaid, StatusAdminVerifying}, StatusVerifiedAvailable,
		ActionMarkVerified,
		"车源核验通过", "车辆已确认可交付，请等待尾款支付通知")
}

// RequestFinalPayment 管理员通知买家支付尾款：verified_available → final_payment_pending。
func (s *Service) RequestFinalPayment(ctx context.Context, actor auth.AuthInfo, id string) (*VehicleRequest, error) {
	req, err := s.adminTransition(ctx, actor, id,
		[]Status{StatusVerifiedAvailable}, StatusFinalPaymentPending,
		ActionRequestFinalPayment, "", "")
	if err != nil {
		return nil, err
	}
	s.effect.Notify(ctx, notify.User(req.BuyerID),
		"请支付尾款", fmt.Sprintf("请支付尾款 $%d 完成购车", req.FinalAmount),
		notify.SeverityInfo, "/requests/"+req.ID)
	return req, nil
}

// MarkFinalPaid 管理员人工对账路径：final_payment_pending → final_paid。
// webhook 正常驱动时用不到；线下转账等场景由管理员手工确认。
func (s *Service) MarkFinalPaid(ctx context.Context, actor auth.AuthInfo, id string) (*VehicleRequest, error) {
	return s.adminTransition(ctx, actor, id,
		[]Status{StatusFinalPaymentPending}, StatusFinalPaid,
		ActionMarkFinalPaid, "", "")
}

func (s *Service) adminTransition(ctx context.Context, actor auth.AuthInfo, id string, from []Status, to Status, action, notifyTitle, notifyMsg string) (*VehicleRequest, error) {
	if !actor.IsAdmin() {
		return nil, errs.Forbidden("admin role required")
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	applied, err := s.store.Transition(ctx, req.ID, from, to, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Newf(errs.KindInvalid, "request cannot move to %s from its current status", to)
	}
	req.Status = to

	s.effect.Audit(ctx, actor.UserID, action, "request", req.ID, map[string]any{
		"buyer_id": req.BuyerID, "vehicle_id": req.VehicleID,
	})
	if notifyTitle != "" {
		s.effect.Notify(ctx, notify.User(req.BuyerID), notifyTitle, notifyMsg,
			notify.SeverityInfo, "/requests/"+req.ID)
	}
	return req, nil
}

func (s *Service) get(ctx context.Context, id string) (*VehicleRequest, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.Invalid("id required")
	}
	req, err := s.store.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("request not found")
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}
