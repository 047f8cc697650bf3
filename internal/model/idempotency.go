package model

import "time"

// IdempotencyRecord 幂等存根：与它守护的 Order 在同一事务里创建。
// ResponseSnapshot 在 saga 收敛后回填，之后到期前只读。
type IdempotencyRecord struct {
	Key       string    `gorm:"primarykey;size:64" json:"key"`
	CreatedAt time.Time `json:"created_at"`

	OrderID          string    `gorm:"size:64;not null;index" json:"order_id"`
	ResponseSnapshot string    `gorm:"type:text" json:"response_snapshot"`
	ExpiresAt        time.Time `gorm:"not null;index" json:"expires_at"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_store" }

// Expired 报告存根在 now 时刻是否已过期（过期视作未命中）。
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
