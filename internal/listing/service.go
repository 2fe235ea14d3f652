package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 审计动作名。
const (
	ActionApproveVehicle = "APPROVE_VEHICLE"
	ActionRejectVehicle  = "REJECT_VEHICLE"
	ActionDeleteVehicle  = "DELETE_VEHICLE"
)

// store Service 依赖的持久化面（*Repo 实现）。
type store interface {
	Create(ctx context.Context, v *Vehicle) error
	GetByID(ctx context.Context, id string) (*Vehicle, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any, images *[]VehicleImage) error
	Transition(ctx context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error)
	Delete(ctx context.Context, id string, statuses []Status) (bool, error)
	List(ctx context.Context, f ListFilter) ([]Vehicle, int64, error)
}

// sideEffects 通知 / 审计出口（*notify.Dispatcher 实现）。
type sideEffects interface {
	Notify(ctx context.Context, to notify.Recipient, title, message, severity, link string)
	Audit(ctx context.Context, adminID, action, entityType, entityID string, detail map[string]any)
}

// Service 封装车源领域的核心用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	store  store
	effect sideEffects
}

func NewService(repo *Repo, dispatcher *notify.Dispatcher) *Service {
	return &Service{store: repo, effect: dispatcher}
}

func newServiceWith(s store, e sideEffects) *Service {
	return &Service{store: s, effect: e}
}

// CreateVehicleInput 创建车源的入参。
type CreateVehicleInput struct {
	Make         string
	Model        string
	Year         int
	PriceUSD     int64
	Mileage      int
	Transmission string
	FuelType     string
	Color        string
	Description  string
	ImageURLs    []string
}

// UpdateVehicleInput 部分更新；nil 字段表示不修改。
// ImageURLs 非 nil 时整组替换图片。
type UpdateVehicleInput struct {
	Make         *string
	Model        *string
	Year         *int
	PriceUSD     *int64
	Mileage      *int
	Transmission *string
	FuelType     *string
	Color        *string
	Description  *string
	ImageURLs    *[]string
}

func (s *Service) Create(ctx context.Context, actor auth.AuthInfo, in CreateVehicleInput) (*Vehicle, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if !actor.HasRole(auth.RoleSeller) && !actor.IsAdmin() {
		return nil, errs.Forbidden("seller role required")
	}

	mk := strings.TrimSpace(in.Make)
	md := strings.TrimSpace(in.Model)
	if mk == "" || md == "" || in.Year == 0 {
		return nil, errs.Invalid("make, model and year are required")
	}
	if in.Year < 1900 || in.Year > time.Now().Year()+1 {
		return nil, errs.Invalid("year is out of range")
	}
	if in.PriceUSD < 0 {
		return nil, errs.Invalid("price_usd must not be negative")
	}

	v := &Vehicle{
		ID:           uuid.NewString(),
		SellerID:     actor.UserID,
		Status:       StatusDraft,
		Make:         mk,
		Model:        md,
		Year:         in.Year,
		PriceUSD:     in.PriceUSD,
		Mileage:      in.Mileage,
		Transmission: strings.TrimSpace(in.Transmission),
		FuelType:     strings.TrimSpace(in.FuelType),
		Color:        strings.TrimSpace(in.Color),
		Description:  in.Description,
		Images:       buildImages("", in.ImageURLs),
	}
	for i := range v.Images {
		v.Images[i].VehicleID = v.ID
	}

	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Update(ctx context.Context, actor auth.AuthInfo, id string, in UpdateVehicleInput) (*Vehicle, error) {
	v, err := s.getVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() {
		if v.SellerID != actor.UserID {
			return nil, errs.Forbidden("not the owner of this listing")
		}
		if v.Status != StatusDraft && v.Status != StatusRejected {
			return nil, errs.Invalid("listing can only be edited while draft or rejected")
		}
	}

	fields := map[string]any{}
	setStr := func(col string, p *string) {
		if p != nil {
			fields[col] = strings.TrimSpace(*p)
		}
	}
	setStr("make", in.Make)
	setStr("model", in.Model)
	setStr("transmission", in.Transmission)
	setStr("fuel_type", in.FuelType)
	setStr("color", in.Color)
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Year != nil {
		if *in.Year < 1900 || *in.Year > time.Now().Year()+1 {
			return nil, errs.Invalid("year is out of range")
		}
		fields["year"] = *in.Year
	}
	if in.PriceUSD != nil {
		if *in.PriceUSD < 0 {
			return nil, errs.Invalid("price_usd must not be negative")
		}
		fields["price_usd"] = *in.PriceUSD
	}

	var images *[]VehicleImage
	if in.ImageURLs != nil {
		imgs := buildImages(v.ID, *in.ImageURLs)
		images = &imgs
	}

	if len(fields) == 0 && images == nil {
		return v, nil
	}
	if err := s.store.UpdateFields(ctx, v.ID, fields, images); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, v.ID)
}

// SubmitForReview 卖家提交审核：draft / rejected → pending_review。
// 提交即清掉历史驳回原因；通知卖家和管理员组。
func (s *Service) SubmitForReview(ctx context.Context, actor auth.AuthInfo, id string) (*Vehicle, error) {
	v, err := s.getVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if v.SellerID != actor.UserID {
		return nil, errs.Forbidden("only the owning seller can submit a listing")
	}
	if strings.TrimSpace(v.Make) == "" || strings.TrimSpace(v.Model) == "" || v.Year == 0 || v.PriceUSD <= 0 {
		return nil, errs.Invalid("make, model, year and price are required before submitting")
	}

	applied, err := s.store.Transition(ctx, v.ID,
		[]Status{StatusDraft, StatusRejected}, StatusPendingReview,
		map[string]any{"rejection_reason": nil})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Invalid("only draft or rejected listings can be submitted")
	}
	v.Status = StatusPendingReview
	v.RejectionReason = nil

	s.effect.Notify(ctx, notify.User(v.SellerID),
		"车源已提交审核", fmt.Sprintf("%s %s 已提交，等待管理员审核", v.Make, v.Model),
		notify.SeverityInfo, "/vehicles/"+v.ID)
	s.effect.Notify(ctx, notify.RoleGroup(auth.RoleAdmin),
		"新车源待审核", fmt.Sprintf("%s %s (%d) 等待审核", v.Make, v.Model, v.Year),
		notify.SeverityInfo, "/admin/vehicles/"+v.ID)
	return v, nil
}

// Approve 管理员审核通过：pending_review → approved。
func (s *Service) Approve(ctx context.Context, actor auth.AuthInfo, id string) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, errs.Forbidden("admin role required")
	}
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	applied, err := s.store.Transition(ctx, v.ID,
		[]Status{StatusPendingReview}, StatusApproved, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Invalid("only pending_review listings can be approved")
	}
	v.Status = StatusApproved

	s.effect.Audit(ctx, actor.UserID, ActionApproveVehicle, "vehicle", v.ID, map[string]any{
		"make": v.Make, "model": v.Model, "seller_id": v.SellerID,
	})
	s.effect.Notify(ctx, notify.User(v.SellerID),
		"车源审核通过", fmt.Sprintf("%s %s 已上架", v.Make, v.Model),
		notify.SeveritySuccess, "/vehicles/"+v.ID)
	return v, nil
}

// Reject 管理员驳回：pending_review → rejected，必须给出非空原因。
func (s *Service) Reject(ctx context.Context, actor auth.AuthInfo, id, reason string) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, errs.Forbidden("admin role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errs.Invalid("rejection reason is required")
	}
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	applied, err := s.store.Transition(ctx, v.ID,
		[]Status{StatusPendingReview}, StatusRejected,
		map[string]any{"rejection_reason": reason})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Invalid("only pending_review listings can be rejected")
	}
	v.Status = StatusRejected
	v.RejectionReason = &reason

	s.effect.Audit(ctx, actor.UserID, ActionRejectVehicle, "vehicle", v.ID, map[string]any{
		"reason": reason, "seller_id": v.SellerID,
	})
	s.effect.Notify(ctx, notify.User(v.SellerID),
		"车源审核未通过", fmt.Sprintf("%s %s 被驳回：%s", v.Make, v.Model, reason),
		notify.SeverityWarning, "/vehicles/"+v.ID)
	return v, nil
}

// Archive 下架：draft / rejected → archived。卖家只能归档自己的。
func (s *Service) Archive(ctx context.Context, actor auth.AuthInfo, id string) (*Vehicle, error) {
	v, err := s.getVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && v.SellerID != actor.UserID {
		return nil, errs.Forbidden("not the owner of this listing")
	}

	applied, err := s.store.Transition(ctx, v.ID,
		[]Status{StatusDraft, StatusRejected}, StatusArchived,
		map[string]any{"rejection_reason": nil})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errs.Invalid("only draft or rejected listings can be archived")
	}
	v.Status = StatusArchived
	v.RejectionReason = nil
	return v, nil
}

// Delete 硬删除：卖家仅限 draft；管理员无限制。
func (s *Service) Delete(ctx context.Context, actor auth.AuthInfo, id string) error {
	v, err := s.getVisible(ctx, actor, id)
	if err != nil {
		return err
	}

	var statuses []Status
	if !actor.IsAdmin() {
		if v.SellerID != actor.UserID {
			return errs.Forbidden("not the owner of this listing")
		}
		statuses = []Status{StatusDraft}
	}

	deleted, err := s.store.Delete(ctx, v.ID, statuses)
	if err != nil {
		return err
	}
	if !deleted {
		return errs.Invalid("only draft listings can be deleted")
	}
	if actor.IsAdmin() {
		s.effect.Audit(ctx, actor.UserID, ActionDeleteVehicle, "vehicle", v.ID, map[string]any{
			"make": v.Make, "model": v.Model, "seller_id": v.SellerID, "status": string(v.Status),
		})
	}
	return nil
}

// Get 读取单个车源。未上架车源对非所有者 / 非管理员一律按不存在处理，
// 避免泄露存在性。
func (s *Service) Get(ctx context.Context, actor auth.AuthInfo, id string) (*Vehicle, error) {
	return s.getVisible(ctx, actor, id)
}

// List 列表：匿名与普通买家只能看 approved；mine=true 时卖家看自己全部状态；
// 管理员可任意过滤。
func (s *Service) List(ctx context.Context, actor auth.AuthInfo, f ListFilter, mine bool) ([]Vehicle, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	switch {
	case mine:
		if actor.UserID == "" {
			return nil, 0, errs.Unauthenticated("authentication required")
		}
		f.SellerID = actor.UserID
	case actor.IsAdmin():
		// 管理员按传入过滤条件查
	default:
		f.Status = StatusApproved
		f.SellerID = ""
	}
	return s.store.List(ctx, f)
}

// CanRevealSeller seller_id 只对所有者和管理员展示。
func CanRevealSeller(actor auth.AuthInfo, v *Vehicle) bool {
	if v == nil {
		return false
	}
	return actor.IsAdmin() || (actor.UserID != "" && actor.UserID == v.SellerID)
}

func (s *Service) get(ctx context.Context, id string) (*Vehicle, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errs.Invalid("id required")
	}
	v, err := s.store.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("vehicle not found")
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) getVisible(ctx context.Context, actor auth.AuthInfo, id string) (*Vehicle, error) {
	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != StatusApproved && !CanRevealSeller(actor, v) {
		// 对外等同不存在
		return nil, errs.NotFound("vehicle not found")
	}
	return v, nil
}

func buildImages(vehicleID string, urls []string) []VehicleImage {
	out := make([]VehicleImage, 0, len(urls))
	pos := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, VehicleImage{
			ID:        uuid.NewString(),
			VehicleID: vehicleID,
			URL:       u,
			Position:  pos,
		})
		pos++
	}
	return out
}
