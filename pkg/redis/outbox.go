package redis

import (
	"context"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// Outbox 把订单终态事件写入 Redis Stream，由 Relay 异步转发 Kafka。
// 入流失败由调用方记日志放过，不阻塞下单主链路。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// PublishOrderEvent 追加一条终态事件。event_id 是下游去重的幂等主键。
func (o *Outbox) PublishOrderEvent(ctx context.Context, orderID, status, reason string) error {
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id": uuid.New().String(),
			"order_id": orderID,
			"status":   status,
			"reason":   reason,
		},
	}).Err()
}
