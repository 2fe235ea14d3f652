package request

import "time"

// Status 购车请求状态枚举（持久化为字符串）。
type Status string

const (
	StatusDepositPending      Status = "deposit_pending"       // 已创建，等待买家付定金
	StatusDepositPaid         Status = "deposit_paid"          // 定金到账，等待管理员核验车源
	StatusAdminVerifying      Status = "admin_verifying"       // 管理员核验中（人工动作进入）
	StatusVerifiedAvailable   Status = "verified_available"    // 核验通过，车源可交付
	StatusFinalPaymentPending Status = "final_payment_pending" // 已通知买家付尾款
	StatusFinalPaid           Status = "final_paid"            // 尾款到账（人工对账路径）
	StatusCompleted           Status = "completed"             // 交易完成（终态）
	StatusCanceled            Status = "canceled"              // 已取消（终态）
)

// activeKeyValue 活跃请求的占位值。终态时置 NULL，
// 配合 (buyer_id, vehicle_id, active_key) 唯一索引保证
// 同一买家对同一车辆至多一个活跃请求（数据库层兜底）。
const activeKeyValue = "active"

// VehicleRequest 是 vehicle_requests 表的 GORM 模型。
// 金额在创建时按车价冻结，之后车价变动不回填。
type VehicleRequest struct {
	ID        string `gorm:"primaryKey;size:36"`
	BuyerID   string `gorm:"size:36;not null;index;uniqueIndex:ux_requests_buyer_vehicle_active,priority:1"`
	VehicleID string `gorm:"size:36;not null;index;uniqueIndex:ux_requests_buyer_vehicle_active,priority:2"`
	Status    Status `gorm:"type:varchar(24);index;not null"`

	// 金额信息（美元，创建时冻结）
	DepositAmount int64 `gorm:"not null;default:0"` // 定金
	FinalAmount   int64 `gorm:"not null;default:0"` // 尾款

	CancelReason *string `gorm:"size:512"`
	Notes        string  `gorm:"type:text"`

	ActiveKey *string `gorm:"size:8;uniqueIndex:ux_requests_buyer_vehicle_active,priority:3"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	CompletedAt *time.Time
	CanceledAt  *time.Time
}

func (VehicleRequest) TableName() string { return "vehicle_requests" }

// IsActive 非终态即活跃。
func (r *VehicleRequest) IsActive() bool {
	if r == nil {
		return false
	}
	return !IsTerminal(r.Status)
}
