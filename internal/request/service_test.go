package request

import (
	"context"
	"testing"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/errs"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/listing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"gorm.io/gorm"
)

var (
	buyer      = auth.AuthInfo{UserID: "b-1", Role: auth.RoleBuyer}
	otherBuyer = auth.AuthInfo{UserID: "b-2", Role: auth.RoleBuyer}
	admin      = auth.AuthInfo{UserID: "a-1", Role: auth.RoleAdmin}
)

type fakeRequestStore struct {
	rows map[string]*VehicleRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{rows: map[string]*VehicleRequest{}}
}

func (f *fakeRequestStore) Create(_ context.Context, req *VehicleRequest) error {
	for _, r := range f.rows {
		if r.BuyerID == req.BuyerID && r.VehicleID == req.VehicleID && r.ActiveKey != nil {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *req
	f.rows[req.ID] = &cp
	return nil
}

func (f *fakeRequestStore) GetByID(_ context.Context, id string) (*VehicleRequest, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestStore) FindActive(_ context.Context, buyerID, vehicleID string) (*VehicleRequest, error) {
	for _, r := range f.rows {
		if r.BuyerID == buyerID && r.VehicleID == vehicleID && r.ActiveKey != nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestStore) Transition(_ context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error) {
	r, ok := f.rows[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range from {
		if r.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	r.Status = to
	if IsTerminal(to) {
		r.ActiveKey = nil
	}
	for k, v := range fields {
		switch k {
		case "cancel_reason":
			reason := v.(string)
			r.CancelReason = &reason
		}
	}
	return true, nil
}

func (f *fakeRequestStore) List(_ context.Context, fl ListFilter) ([]VehicleRequest, int64, error) {
	var out []VehicleRequest
	for _, r := range f.rows {
		if fl.BuyerID != "" && r.BuyerID != fl.BuyerID {
			continue
		}
		if fl.Status != "" && r.Status != fl.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

type fakeCatalog struct {
	vehicles map[string]*listing.Vehicle
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*listing.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return v, nil
}

type fakeEffects struct {
	recipients []notify.Recipient
	titles     []string
	actions    []string
}

func (f *fakeEffects) Notify(_ context.Context, to notify.Recipient, title, _, _, _ string) {
	f.recipients = append(f.recipients, to)
	f.titles = append(f.titles, title)
}

func (f *fakeEffects) Audit(_ context.Context, _, action, _, _ string, _ map[string]any) {
	f.actions = append(f.actions, action)
}

func newTestService() (*Service, *fakeRequestStore, *fakeCatalog, *fakeEffects) {
	store := newFakeRequestStore()
	catalog := &fakeCatalog{vehicles: map[string]*listing.Vehicle{
		"v-1": {ID: "v-1", SellerID: "s-1", Status: listing.StatusApproved, Make: "Toyota", Model: "Camry", Year: 2021, PriceUSD: 15000},
		"v-2": {ID: "v-2", SellerID: "s-1", Status: listing.StatusDraft, Make: "Honda", Model: "Civic", Year: 2020, PriceUSD: 9000},
		"v-3": {ID: "v-3", SellerID: "s-1", Status: listing.StatusApproved, Make: "Kia", Model: "Rio", Year: 2018, PriceUSD: 300},
	}}
	effects := &fakeEffects{}
	return newServiceWith(store, catalog, effects, 500), store, catalog, effects
}

func TestCreateFreezesAmounts(t *testing.T) {
	svc, _, _, effects := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != StatusDepositPending {
		t.Fatalf("status = %s, want %s", req.Status, StatusDepositPending)
	}
	if req.DepositAmount != 500 || req.FinalAmount != 14500 {
		t.Fatalf("amounts = %d/%d, want 500/14500", req.DepositAmount, req.FinalAmount)
	}
	if req.ActiveKey == nil {
		t.Fatal("new request must carry the active key")
	}
	if len(effects.recipients) != 1 || effects.recipients[0] != notify.User("b-1") {
		t.Fatalf("expected one buyer notification, got %v", effects.recipients)
	}
}

func TestAmountsFrozenAgainstLaterPriceEdit(t *testing.T) {
	svc, _, catalog, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 创建后车价上调，已冻结的金额不回填
	catalog.vehicles["v-1"].PriceUSD = 20000

	got, err := svc.Get(ctx, buyer, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DepositAmount != 500 || got.FinalAmount != 14500 {
		t.Fatalf("amounts after price edit = %d/%d, want 500/14500", got.DepositAmount, got.FinalAmount)
	}
	if got.DepositAmount+got.FinalAmount != 15000 {
		t.Fatalf("deposit+final = %d, want the price captured at creation", got.DepositAmount+got.FinalAmount)
	}
}

func TestCreateDepositCappedAtPrice(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, err := svc.Create(context.Background(), buyer, "v-3", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.DepositAmount != 300 || req.FinalAmount != 0 {
		t.Fatalf("amounts = %d/%d, want 300/0", req.DepositAmount, req.FinalAmount)
	}
}

func TestCreateRejectsDuplicateActive(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, buyer, "v-1", ""); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, buyer, "v-1", "")
	if errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("duplicate active request: kind = %v, want invalid", errs.KindOf(err))
	}

	// 另一个买家不受影响
	if _, err := svc.Create(ctx, otherBuyer, "v-1", ""); err != nil {
		t.Fatalf("other buyer Create: %v", err)
	}
}

func TestCreateAfterCancelAllowed(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Cancel(ctx, buyer, req.ID, "changed my mind"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Create(ctx, buyer, "v-1", ""); err != nil {
		t.Fatalf("Create after cancel: %v", err)
	}
}

func TestCreateHidesUnlistedVehicle(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), buyer, "v-2", "")
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("draft vehicle: kind = %v, want not found", errs.KindOf(err))
	}
}

func TestGetAuthorization(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(ctx, buyer, req.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err := svc.Get(ctx, admin, req.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if _, err := svc.Get(ctx, otherBuyer, req.ID); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("stranger Get: kind = %v, want forbidden", errs.KindOf(err))
	}
}

func TestCancelGuards(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Cancel(ctx, otherBuyer, req.ID, "nope"); errs.KindOf(err) != errs.KindForbidden {
		t.Fatalf("stranger Cancel: kind = %v, want forbidden", errs.KindOf(err))
	}
	if _, err := svc.Cancel(ctx, buyer, req.ID, "  "); errs.KindOf(err) != errs.KindInvalid {
		t.Fatal("blank reason must be rejected")
	}

	got, err := svc.Cancel(ctx, buyer, req.ID, "found a better deal")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCanceled || got.CancelReason == nil || *got.CancelReason != "found a better deal" {
		t.Fatalf("canceled row = %+v", got)
	}
	if store.rows[req.ID].ActiveKey != nil {
		t.Fatal("cancel must release the active key")
	}

	// 终态不允许再取消
	if _, err := svc.Cancel(ctx, buyer, req.ID, "again"); errs.KindOf(err) != errs.KindInvalid {
		t.Fatal("cancel of a terminal request must be rejected")
	}
}

func TestAdminVerificationChain(t *testing.T) {
	svc, store, _, effects := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 定金未到账之前不能开始核验
	if _, err := svc.BeginVerification(ctx, admin, req.ID); errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("verify before deposit: kind = %v, want invalid", errs.KindOf(err))
	}
	// 非管理员无权
	if _, err := svc.BeginVerification(ctx, buyer, req.ID); errs.KindOf(err) != errs.KindForbidden {
		t.Fatal("buyer must not drive verification")
	}

	store.rows[req.ID].Status = StatusDepositPaid

	if _, err := svc.BeginVerification(ctx, admin, req.ID); err != nil {
		t.Fatalf("BeginVerification: %v", err)
	}
	if _, err := svc.MarkVerified(ctx, admin, req.ID); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	got, err := svc.RequestFinalPayment(ctx, admin, req.ID)
	if err != nil {
		t.Fatalf("RequestFinalPayment: %v", err)
	}
	if got.Status != StatusFinalPaymentPending {
		t.Fatalf("status = %s, want %s", got.Status, StatusFinalPaymentPending)
	}

	wantActions := []string{ActionBeginVerification, ActionMarkVerified, ActionRequestFinalPayment}
	if len(effects.actions) != len(wantActions) {
		t.Fatalf("audit actions = %v, want %v", effects.actions, wantActions)
	}
	for i, a := range wantActions {
		if effects.actions[i] != a {
			t.Fatalf("audit actions = %v, want %v", effects.actions, wantActions)
		}
	}
}

func TestMarkVerifiedSkipsVerifyingState(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, buyer, "v-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.rows[req.ID].Status = StatusDepositPaid

	got, err := svc.MarkVerified(ctx, admin, req.ID)
	if err != nil {
		t.Fatalf("MarkVerified from deposit_paid: %v", err)
	}
	if got.Status != StatusVerifiedAvailable {
		t.Fatalf("status = %s, want %s", got.Status, StatusVerifiedAvailable)
	}
}
