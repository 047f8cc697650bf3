package model

import "time"

// OrderStatus 描述订单状态机，只允许单向流转。
type OrderStatus string

const (
	OrderStatusNew           OrderStatus = "NEW"            // 已落库、预占结果未知
	OrderStatusStockReserved OrderStatus = "STOCK_RESERVED" // 库存预占成功（终态）
	OrderStatusStockRejected OrderStatus = "STOCK_REJECTED" // 库存预占被拒（终态）
	OrderStatusFailed        OrderStatus = "FAILED"         // 重试耗尽，远端结果未知（终态）
)

// CanTransition 校验 from -> to 是否合法：只有 NEW 可以外流，终态不再变化。
func CanTransition(from, to OrderStatus) bool {
	if from != OrderStatusNew {
		return false
	}
	switch to {
	case OrderStatusStockReserved, OrderStatusStockRejected, OrderStatusFailed:
		return true
	}
	return false
}

// Terminal 报告状态是否为终态。
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusStockReserved, OrderStatusStockRejected, OrderStatusFailed:
		return true
	}
	return false
}

// Order 订单记录。终态订单保留不删，供审计与幂等回放。
type Order struct {
	ID        string      `gorm:"primarykey;size:64" json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Status    OrderStatus `gorm:"size:32;not null;index" json:"status"`

	// IdempotencyKey 客户端幂等键，可空；非空时唯一。
	IdempotencyKey *string `gorm:"size:64;uniqueIndex" json:"idempotency_key,omitempty"`
}

func (Order) TableName() string { return "orders" }
