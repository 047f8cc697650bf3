package queue

import "fmt"

// OrderEventMessage 是写入 Kafka 的订单终态事件。
type OrderEventMessage struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m OrderEventMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	switch m.Status {
	case "STOCK_RESERVED", "STOCK_REJECTED", "FAILED":
	default:
		return fmt.Errorf("unexpected status %q", m.Status)
	}
	return nil
}
