package payment

import "time"

// Kind 支付类型：定金或尾款。
type Kind string

const (
	KindDeposit Kind = "deposit"
	KindFinal   Kind = "final"
)

// Status 支付记录状态。succeeded / failed 由 webhook 对账驱动，
// succeeded 之后不允许被 failed 事件回退。
type Status string

const (
	StatusPending    Status = "pending"    // 服务商尚未受理（对账失败流转也接受此态）
	StatusProcessing Status = "processing" // 发起支付即进入此状态，等待回调
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded" // 退款（人工流程落库）
)

// Payment 是 marketplace_payments 表的 GORM 模型。
// IntentRef 是服务商侧支付意图 ID，唯一索引保证同一意图只落一行，
// webhook 重放靠它 + 条件更新做到幂等。
type Payment struct {
	ID        string `gorm:"primaryKey;size:36"`
	RequestID string `gorm:"size:36;not null;index"`
	BuyerID   string `gorm:"size:36;not null;index"`
	Kind      Kind   `gorm:"type:varchar(16);not null"`
	Amount    int64  `gorm:"not null"`
	Currency  string `gorm:"size:8;not null;default:'USD'"`
	IntentRef string `gorm:"size:64;not null;uniqueIndex"`
	Status    Status `gorm:"type:varchar(16);not null;index"`

	FailureReason *string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Payment) TableName() string { return "marketplace_payments" }
