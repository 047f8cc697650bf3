package model

import "time"

// OrderEvent 订单终态事件的审计存档，由 Kafka 消费者写入。
// EventID 唯一，重复消费靠 UNIQUE 冲突自然去重。
type OrderEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID string `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	OrderID string `gorm:"size:64;not null;index" json:"order_id"`
	Status  string `gorm:"size:32;not null" json:"status"`
	Reason  string `gorm:"size:128" json:"reason"`
}

func (OrderEvent) TableName() string { return "order_events" }
