package payment

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

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(p).Error
}

func (r *Repo) FindByIntentRef(ctx context.Context, intentRef string) (*Payment, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var p Payment
	if err := db.Where("intent_ref = ?", intentRef).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkSucceeded 条件置为 succeeded，返回是否真的更新了行。
// 已经是 succeeded 的行不会再次命中，webhook 重放据此去重。
func (r *Repo) MarkSucceeded(ctx context.Context, id string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	res := db.Model(&Payment{}).
		Where("id = ? AND status <> ?", id, StatusSucceeded).
		Updates(map[string]any{"status": StatusSucceeded, "failure_reason": nil})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed 只允许从 pending / processing 置为 failed，
// 乱序到达的 failed 事件不能回退已成功的支付。
func (r *Repo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	updates := map[string]any{"status": StatusFailed}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	res := db.Model(&Payment{}).
		Where("id = ? AND status IN ?", id, []Status{StatusPending, StatusProcessing}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByRequest 某个购车请求下的支付记录（详情页展示用）。
func (r *Repo) ListByRequest(ctx context.Context, requestID string) ([]Payment, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var out []Payment
	if err := db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
