package model

import "time"

// Stock 单个 SKU 的权威库存行。
// Version 是乐观并发计数器：每次扣减 +1，CAS 失败说明有并发写入。
type Stock struct {
	SKU       string    `gorm:"primarykey;size:64" json:"sku"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// AvailableQty 任何时刻 >= 0，由 CAS 更新语句保证，不允许出现瞬时负数。
	AvailableQty int64 `gorm:"not null;default:0" json:"available_qty"`
	Version      int64 `gorm:"not null;default:0" json:"version"`
}

func (Stock) TableName() string { return "stock" }
