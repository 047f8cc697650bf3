package model

import (
	"encoding/json"
	"time"
)

// 预占结果枚举。
const (
	ReservationOutcomeReserved = "reserved"
	ReservationOutcomeRejected = "rejected"
)

// ReservationRecord 预占台账：每个 order_id 只写一次，之后只读。
// 重放同一 order_id 直接返回存档结果，不再触碰库存。
type ReservationRecord struct {
	OrderID   string    `gorm:"primarykey;size:64" json:"order_id"`
	CreatedAt time.Time `json:"created_at"`

	// Items 以 JSON 文本存档提交时的条目（已排序合并），保证重放可见原始请求。
	Items   string `gorm:"type:text;not null" json:"items"`
	Outcome string `gorm:"size:16;not null" json:"outcome"`
	Reason  string `gorm:"size:128" json:"reason"`
}

func (ReservationRecord) TableName() string { return "reservation_ledger" }

// EncodeItems 序列化条目列表，写台账前调用。
func EncodeItems(items []ReserveItem) (string, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeItems 反序列化台账里的条目列表。
func (r ReservationRecord) DecodeItems() ([]ReserveItem, error) {
	var items []ReserveItem
	if err := json.Unmarshal([]byte(r.Items), &items); err != nil {
		return nil, err
	}
	return items, nil
}
