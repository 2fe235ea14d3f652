package identity

import (
	"time"
)

// User 是 users 表的 GORM 模型。
// Role 单值存储（buyer / seller / admin / super_admin）；
// 管理员角色只能由运维直接写库或既有管理员提升，注册接口不接受。
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	PasswordSalt string    `gorm:"size:64;not null"`
	Name         string    `gorm:"size:64"`
	Phone        string    `gorm:"size:32"`
	Role         string    `gorm:"size:16;not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }
