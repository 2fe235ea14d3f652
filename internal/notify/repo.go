package notify

import (
	"context"
	"fmt"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
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

func (r *Repo) CreateNotification(ctx context.Context, n *Notification) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(n).Error
}

func (r *Repo) CreateAuditLog(ctx context.Context, a *AuditLog) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(a).Error
}

// roleGroups 某角色可见的角色组集合。super_admin 是 admin 的超集，
// 发给 admin 组的通知对 super_admin 同样可见。
func roleGroups(role string, isAdmin bool) []string {
	if isAdmin && role != auth.RoleAdmin {
		return []string{role, auth.RoleAdmin}
	}
	return []string{role}
}

// ListForUser 列出某用户可见的通知：本人的行；管理员调用时额外包含
// 其角色组的行（读取时展开，不在写入时按人扇出）。
func (r *Repo) ListForUser(ctx context.Context, userID, role string, isAdmin bool, offset, limit int) ([]Notification, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&Notification{})
	if isAdmin {
		q = q.Where(
			"(recipient_kind = ? AND recipient_id = ?) OR (recipient_kind = ? AND recipient_id IN ?)",
			recipientKindUser, userID, recipientKindRole, roleGroups(role, isAdmin),
		)
	} else {
		q = q.Where("recipient_kind = ? AND recipient_id = ?", recipientKindUser, userID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Notification
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// MarkRead 标记已读。只有接收方本人（或角色组行：持有该角色的用户，
// super_admin 对 admin 组同样有效）能改；
// 条件体现在 WHERE 里，命中 0 行即无权或不存在。
func (r *Repo) MarkRead(ctx context.Context, id, userID, role string, isAdmin bool) (bool, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	res := db.Model(&Notification{}).
		Where(
			"id = ? AND ((recipient_kind = ? AND recipient_id = ?) OR (recipient_kind = ? AND recipient_id IN ?))",
			id, recipientKindUser, userID, recipientKindRole, roleGroups(role, isAdmin),
		).
		Update("read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAuditLogs 管理端审计日志查询，支持按 action / entity 过滤。
func (r *Repo) ListAuditLogs(ctx context.Context, action, entityType string, offset, limit int) ([]AuditLog, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&AuditLog{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []AuditLog
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
