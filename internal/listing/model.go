package listing

import "time"

// Status 车源状态枚举（持久化为字符串）。
type Status string

const (
	StatusDraft         Status = "draft"          // 草稿，卖家可编辑
	StatusPendingReview Status = "pending_review" // 已提交，等待管理员审核
	StatusApproved      Status = "approved"       // 审核通过，对外可见、可下单
	StatusRejected      Status = "rejected"       // 审核驳回（带原因），可修改后重新提交
	StatusSold          Status = "sold"           // 已售出（终态）
	StatusArchived      Status = "archived"       // 已归档（下架路径，终态）
)

// Vehicle 是 marketplace_vehicles 表的 GORM 模型。
// RejectionReason 仅在 rejected 状态下非空；离开 rejected 时必须清掉。
type Vehicle struct {
	ID       string `gorm:"primaryKey;size:36"`
	SellerID string `gorm:"index;size:36;not null"` // 归属卖家
	Status   Status `gorm:"type:varchar(16);index;not null"`

	Make     string `gorm:"size:64;not null"`
	Model    string `gorm:"size:64;not null"`
	Year     int    `gorm:"not null"`
	PriceUSD int64  `gorm:"not null;default:0"` // 标价（美元）

	// 结构化参数
	Mileage      int    `gorm:"not null;default:0"` // 里程（公里）
	Transmission string `gorm:"size:32"`
	FuelType     string `gorm:"size:32"`
	Color        string `gorm:"size:32"`

	Description     string  `gorm:"type:text"`
	RejectionReason *string `gorm:"size:512"`

	Images []VehicleImage `gorm:"foreignKey:VehicleID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Vehicle) TableName() string { return "marketplace_vehicles" }

// VehicleImage 车源图片，按 Position 排序，0 号为主图。
// 更新时整组替换（不做合并）。
type VehicleImage struct {
	ID        string    `gorm:"primaryKey;size:36"`
	VehicleID string    `gorm:"index;size:36;not null"`
	URL       string    `gorm:"size:512;not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VehicleImage) TableName() string { return "marketplace_vehicle_images" }
