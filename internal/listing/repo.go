package listing

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

func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(v).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := db.Preload("Images", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	}).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateFields 更新字段；images 非 nil 时在同一事务里整组替换图片
// （先删后插，0 号为主图）。
func (r *Repo) UpdateFields(ctx context.Context, id string, fields map[string]any, images *[]VehicleImage) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(&Vehicle{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}
		if images != nil {
			if err := tx.Where("vehicle_id = ?", id).Delete(&VehicleImage{}).Error; err != nil {
				return err
			}
			if len(*images) > 0 {
				if err := tx.Create(images).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Transition 条件状态流转：只有当前状态在 from 集合内才会生效，
// 返回是否真的更新了行。所有状态变更都必须走这里，不做读改写。
func (r *Repo) Transition(ctx context.Context, id string, from []Status, to Status, fields map[string]any) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := db.Model(&Vehicle{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete 硬删除；statuses 非空时仅在当前状态命中集合才删除（卖家路径），
// 空集合表示无条件删除（管理员路径）。
func (r *Repo) Delete(ctx context.Context, id string, statuses []Status) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var deleted bool
	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if len(statuses) > 0 {
			q = q.Where("status IN ?", statuses)
		}
		res := q.Delete(&Vehicle{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("vehicle_id = ?", id).Delete(&VehicleImage{}).Error
	})
	return deleted, err
}

// ListFilter 查询条件。
type ListFilter struct {
	SellerID string
	Status   Status
	Make     string
	Offset   int
	Limit    int
}

// List 支持按 seller / status / make 过滤 + 分页。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Vehicle, int64, error) {
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

	q := db.Model(&Vehicle{})
	if f.SellerID != "" {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Make != "" {
		q = q.Where("make = ?", f.Make)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var vehicles []Vehicle
	if err := q.Preload("Images", func(pq *gorm.DB) *gorm.DB {
		return pq.Order("position ASC")
	}).Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}
