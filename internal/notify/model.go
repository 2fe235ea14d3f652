package notify

import "time"

// 通知级别。
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Recipient 通知接收方：具体用户，或某个角色组。
// 两种形态显式打标签存储，不把角色名混进用户 ID 列。
type Recipient struct {
	Kind string // user / role
	ID   string // 用户 ID 或角色名
}

const (
	recipientKindUser = "user"
	recipientKindRole = "role"
)

// User 指定某个用户为接收方。
func User(userID string) Recipient {
	return Recipient{Kind: recipientKindUser, ID: userID}
}

// RoleGroup 指定某个角色组为接收方（读取时按角色展开，不落多行）。
func RoleGroup(role string) Recipient {
	return Recipient{Kind: recipientKindRole, ID: role}
}

// Notification 是 notifications 表的 GORM 模型。
type Notification struct {
	ID            string    `gorm:"primaryKey;size:36"`
	RecipientKind string    `gorm:"size:8;not null;index:idx_notifications_recipient,priority:1"`
	RecipientID   string    `gorm:"size:36;not null;index:idx_notifications_recipient,priority:2"`
	Title         string    `gorm:"size:128;not null"`
	Message       string    `gorm:"size:1024"`
	Severity      string    `gorm:"size:16;not null;default:'info'"`
	Link          string    `gorm:"size:255"` // 可选：跳转链接
	Read          bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Notification) TableName() string { return "notifications" }

// AuditLog 是 audit_logs 表的 GORM 模型（append-only，不更新不删除）。
type AuditLog struct {
	ID         string    `gorm:"primaryKey;size:36"`
	AdminID    string    `gorm:"size:36;not null;index"`
	Action     string    `gorm:"size:64;not null;index"`
	EntityType string    `gorm:"size:32;not null"`
	EntityID   string    `gorm:"size:36;not null;index"`
	Detail     string    `gorm:"type:text"` // JSON 序列化的明细
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
