package request

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

// Create 插入新请求。(buyer_id, vehicle_id, active_key) 唯一索引
// 是“同一买家同一车辆至多一个活跃请求”的真正防线；
// 应用层的存在性检查只是快速路径。冲突时返回 gorm.ErrDuplicatedKey。
func (r *Repo) Create(ctx context.Context, req *VehicleRequest) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(req).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*VehicleRequest, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var req VehicleRequest
	if err := db.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindActive 查找某买家对某车辆的活跃请求（快速路径检查用）。
func (r *Repo) FindActive(ctx context.Context, buyerID, vehicleID string) (*VehicleRequest, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var req VehicleRequest
	err := db.Where("buyer_id = ? AND vehicle_id = ? AND active_key = ?", buyerID, vehicleID, activeKeyValue).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Transition 条件状态流转：只有当前状态在 from 集合内才会生效，
// 返回是否真的更新了行。进入终态时调用方必须把 active_key 置 NULL
// 以释放唯一索引。
func (r *Repo) Transition(ctx context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	updates := map[string]any{"status": to}
	if IsTerminal(to) {
		updates["active_key"] = nil
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := db.Model(&VehicleRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFilter 查询条件。
type ListFilter struct {
	BuyerID   string
	VehicleID string
	Status    Status
	Offset    int
	Limit     int
}

// List 支持按 buyer / vehicle / status 过滤 + 分页。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]VehicleRequest, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := db.Model(&VehicleRequest{})
	if f.BuyerID != "" {
		q = q.Where("buyer_id = ?", f.BuyerID)
	}
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []VehicleRequest
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
