package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/logger"
	"github.com/google/uuid"
)

// store Dispatcher 的写入面（*Repo 实现）。
type store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	CreateAuditLog(ctx context.Context, a *AuditLog) error
}

// Dispatcher 通知 / 审计的副作用出口。
// 写入失败只记日志，永远不反过来让触发它的状态流转失败。
type Dispatcher struct {
	store store
	log   logger.Logger
}

func NewDispatcher(repo *Repo, log logger.Logger) *Dispatcher {
	return &Dispatcher{store: repo, log: log}
}

func newDispatcherWithStore(s store, log logger.Logger) *Dispatcher {
	return &Dispatcher{store: s, log: log}
}

// Notify 给用户或角色组发一条站内通知（best-effort）。
func (d *Dispatcher) Notify(ctx context.Context, to Recipient, title, message, severity, link string) {
	if d == nil || d.store == nil {
		return
	}
	if strings.TrimSpace(to.ID) == "" || strings.TrimSpace(title) == "" {
		return
	}
	if severity == "" {
		severity = SeverityInfo
	}

	n := &Notification{
		ID:            uuid.NewString(),
		RecipientKind: to.Kind,
		RecipientID:   to.ID,
		Title:         title,
		Message:       message,
		Severity:      severity,
		Link:          link,
		CreatedAt:     time.Now(),
	}
	if err := d.store.CreateNotification(ctx, n); err != nil && d.log != nil {
		d.log.WithFields(map[string]interface{}{
			"recipient_kind": to.Kind,
			"recipient_id":   to.ID,
			"title":          title,
		}).Warnf("failed to write notification: %v", err)
	}
}

// Audit 记一条管理员操作审计（best-effort，append-only）。
func (d *Dispatcher) Audit(ctx context.Context, adminID, action, entityType, entityID string, detail map[string]any) {
	if d == nil || d.store == nil {
		return
	}
	if strings.TrimSpace(adminID) == "" || strings.TrimSpace(action) == "" {
		return
	}

	detailJSON := ""
	if len(detail) > 0 {
		if b, err := json.Marshal(detail); err == nil {
			detailJSON = string(b)
		}
	}

	a := &AuditLog{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detailJSON,
		CreatedAt:  time.Now(),
	}
	if err := d.store.CreateAuditLog(ctx, a); err != nil && d.log != nil {
		d.log.WithFields(map[string]interface{}{
			"admin_id": adminID,
			"action":   action,
		}).Warnf("failed to write audit log: %v", err)
	}
}
