package listing

import (
	"context"
	"testing"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"gorm.io/gorm"
)

// fakeVehicleStore 内存实现，模拟条件更新（WHERE status IN ...）的语义。
type fakeVehicleStore struct {
	vehicles map[string]*Vehicle
}

func newFakeVehicleStore() *fakeVehicleStore {
	return &fakeVehicleStore{vehicles: map[string]*Vehicle{}}
}

func (f *fakeVehicleStore) Create(_ context.Context, v *Vehicle) error {
	cp := *v
	f.vehicles[v.ID] = &cp
	return nil
}

func (f *fakeVehicleStore) GetByID(_ context.Context, id string) (*Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVehicleStore) UpdateFields(_ context.Context, id string, fields map[string]any, images *[]VehicleImage) error {
	v, ok := f.vehicles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyVehicleFields(v, fields)
	if images != nil {
		v.Images = *images
	}
	return nil
}

func (f *fakeVehicleStore) Transition(_ context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return false, nil
	}
	match := false
	for _, s := range from {
		if v.Status == s {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	v.Status = to
	applyVehicleFields(v, fields)
	return true, nil
}

func (f *fakeVehicleStore) Delete(_ context.Context, id string, statuses []Status) (bool, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return false, nil
	}
	if len(statuses) > 0 {
		match := false
		for _, s := range statuses {
			if v.Status == s {
				match = true
				break
			}
		}
		if !match {
			return false, nil
		}
	}
	delete(f.vehicles, id)
	return true, nil
}

func (f *fakeVehicleStore) List(_ context.Context, filter ListFilter) ([]Vehicle, int64, error) {
	var out []Vehicle
	for _, v := range f.vehicles {
		if filter.SellerID != "" && v.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, *v)
	}
	return out, int64(len(out)), nil
}

func applyVehicleFields(v *Vehicle, fields map[string]any) {
	for k, val := range fields {
		switch k {
		case "rejection_reason":
			if val == nil {
				v.RejectionReason = nil
			} else if s, ok := val.(string); ok {
				v.RejectionReason = &s
			}
		case "price_usd":
			if p, ok := val.(int64); ok {
				v.PriceUSD = p
			}
		case "make":
			if s, ok := val.(string); ok {
				v.Make = s
			}
		case "model":
			if s, ok := val.(string); ok {
				v.Model = s
			}
		case "year":
			if y, ok := val.(int); ok {
				v.Year = y
			}
		case "description":
			if s, ok := val.(string); ok {
				v.Description = s
			}
		}
	}
}

// fakeEffects 记录通知与审计，断言副作用。
type fakeEffects struct {
	notifications []notify.Recipient
	titles        []string
	audits        []string
}

func (f *fakeEffects) Notify(_ context.Context, to notify.Recipient, title, _, _, _ string) {
	f.notifications = append(f.notifications, to)
	f.titles = append(f.titles, title)
}

func (f *fakeEffects) Audit(_ context.Context, _, action, _, _ string, _ map[string]any) {
	f.audits = append(f.audits, action)
}

var (
	seller = auth.AuthInfo{UserID: "s-1", Role: auth.RoleSeller}
	buyer  = auth.AuthInfo{UserID: "b-1", Role: auth.RoleBuyer}
	admin  = auth.AuthInfo{UserID: "a-1", Role: auth.RoleAdmin}
)

func newTestService() (*Service, *fakeVehicleStore, *fakeEffects) {
	fs := newFakeVehicleStore()
	fe := &fakeEffects{}
	return newServiceWith(fs, fe), fs, fe
}

func createCamry(t *testing.T, svc *Service, price int64) *Vehicle {
	t.Helper()
	v, err := svc.Create(context.Background(), seller, CreateVehicleInput{
		Make: "Toyota", Model: "Camry", Year: 2020, PriceUSD: price,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func TestCreateRequiresSellerRole(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), buyer, CreateVehicleInput{
		Make: "Toyota", Model: "Camry", Year: 2020,
	}); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("expected forbidden for buyer, got %v", err)
	}

	v := createCamry(t, svc, 15000)
	if v.Status != StatusDraft {
		t.Fatalf("expected draft, got %s", v.Status)
	}
}

func TestSubmitRequiresPrice(t *testing.T) {
	svc, _, fe := newTestService()
	v := createCamry(t, svc, 0)

	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("expected invalid without price, got %v", err)
	}

	if _, err := svc.Update(context.Background(), seller, v.ID, UpdateVehicleInput{PriceUSD: i64(15000)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := svc.SubmitForReview(context.Background(), seller, v.ID)
	if err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if got.Status != StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", got.Status)
	}

	// 卖家 + 管理员组各一条通知
	if len(fe.notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(fe.notifications))
	}
	if fe.notifications[0].Kind != "user" || fe.notifications[0].ID != "s-1" {
		t.Fatalf("seller notification mismatch: %+v", fe.notifications[0])
	}
	if fe.notifications[1].Kind != "role" || fe.notifications[1].ID != auth.RoleAdmin {
		t.Fatalf("admin group notification mismatch: %+v", fe.notifications[1])
	}
}

func TestSubmitOnlyByOwner(t *testing.T) {
	svc, _, _ := newTestService()
	v := createCamry(t, svc, 15000)

	other := auth.AuthInfo{UserID: "s-2", Role: auth.RoleSeller}
	// 非所有者连存在性都不暴露
	if _, err := svc.SubmitForReview(context.Background(), other, v.ID); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}
	// 管理员能看到但不能替卖家提交
	if _, err := svc.SubmitForReview(context.Background(), admin, v.ID); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("expected forbidden for admin submit, got %v", err)
	}
}

func TestApproveFlow(t *testing.T) {
	svc, _, fe := newTestService()
	v := createCamry(t, svc, 15000)

	// 未提交不能审批
	if _, err := svc.Approve(context.Background(), admin, v.ID); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("expected invalid approving draft, got %v", err)
	}
	if _, err := svc.Approve(context.Background(), seller, v.ID); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("expected forbidden for seller approve, got %v", err)
	}

	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	got, err := svc.Approve(context.Background(), admin, v.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}
	if len(fe.audits) != 1 || fe.audits[0] != ActionApproveVehicle {
		t.Fatalf("expected APPROVE_VEHICLE audit, got %v", fe.audits)
	}
}

func TestRejectKeepsReasonInvariant(t *testing.T) {
	svc, fs, fe := newTestService()
	v := createCamry(t, svc, 15000)
	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	// 空原因不行
	if _, err := svc.Reject(context.Background(), admin, v.ID, "   "); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("expected invalid for blank reason, got %v", err)
	}

	got, err := svc.Reject(context.Background(), admin, v.ID, "Photos unclear")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != StatusRejected || got.RejectionReason == nil || *got.RejectionReason != "Photos unclear" {
		t.Fatalf("rejection state mismatch: %+v", got)
	}
	if fe.audits[len(fe.audits)-1] != ActionRejectVehicle {
		t.Fatalf("expected REJECT_VEHICLE audit")
	}

	// 重新提交必须清掉原因（rejection_reason 仅在 rejected 下非空）
	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	stored := fs.vehicles[v.ID]
	if stored.Status != StatusPendingReview || stored.RejectionReason != nil {
		t.Fatalf("expected reason cleared on resubmit: %+v", stored)
	}
}

func TestVisibilityHiddenAsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	v := createCamry(t, svc, 15000)

	// 草稿对买家按不存在处理，而不是 403
	if _, err := svc.Get(context.Background(), buyer, v.ID); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected not found for buyer, got %v", err)
	}
	if _, err := svc.Get(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("owner should see own draft: %v", err)
	}
	if _, err := svc.Get(context.Background(), admin, v.ID); err != nil {
		t.Fatalf("admin should see draft: %v", err)
	}
}

func TestUpdateGuards(t *testing.T) {
	svc, _, _ := newTestService()
	v := createCamry(t, svc, 15000)

	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if _, err := svc.Approve(context.Background(), admin, v.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// 上架后卖家不能再编辑
	if _, err := svc.Update(context.Background(), seller, v.ID, UpdateVehicleInput{PriceUSD: i64(14000)}); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("expected invalid editing approved listing, got %v", err)
	}
	// 管理员可以
	if _, err := svc.Update(context.Background(), admin, v.ID, UpdateVehicleInput{PriceUSD: i64(14000)}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	svc, _, _ := newTestService()
	v := createCamry(t, svc, 15000)
	if _, err := svc.SubmitForReview(context.Background(), seller, v.ID); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	// 已提交的车源卖家删不掉
	if err := svc.Delete(context.Background(), seller, v.ID); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("expected invalid deleting pending listing, got %v", err)
	}
	// 管理员可以
	if err := svc.Delete(context.Background(), admin, v.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func i64(v int64) *int64 { return &v }
