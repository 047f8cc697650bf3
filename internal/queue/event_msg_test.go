package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEventMessageValidate(t *testing.T) {
	valid := OrderEventMessage{
		EventID: "e1",
		OrderID: "o1",
		Status:  "STOCK_RESERVED",
		Reason:  "OK",
	}
	assert.NoError(t, valid.Validate())

	for _, status := range []string{"STOCK_REJECTED", "FAILED"} {
		m := valid
		m.Status = status
		assert.NoError(t, m.Validate())
	}

	noEvent := valid
	noEvent.EventID = ""
	assert.Error(t, noEvent.Validate())

	noOrder := valid
	noOrder.OrderID = ""
	assert.Error(t, noOrder.Validate())

	// NEW 不是终态，不应出现在事件流里
	badStatus := valid
	badStatus.Status = "NEW"
	assert.Error(t, badStatus.Validate())
}

func TestParseOrderEvent(t *testing.T) {
	msg, err := ParseOrderEvent(map[string]interface{}{
		"event_id": "e1",
		"order_id": "o1",
		"status":   "STOCK_REJECTED",
		"reason":   "insufficient stock",
	})
	require.NoError(t, err)
	assert.Equal(t, OrderEventMessage{
		EventID: "e1",
		OrderID: "o1",
		Status:  "STOCK_REJECTED",
		Reason:  "insufficient stock",
	}, msg)

	// reason 可缺省
	msg, err = ParseOrderEvent(map[string]interface{}{
		"event_id": "e2",
		"order_id": "o2",
		"status":   "FAILED",
	})
	require.NoError(t, err)
	assert.Empty(t, msg.Reason)

	_, err = ParseOrderEvent(map[string]interface{}{
		"order_id": "o3",
		"status":   "FAILED",
	})
	assert.Error(t, err)

	_, err = ParseOrderEvent(map[string]interface{}{
		"event_id": "e4",
		"order_id": "o4",
		"status":   "NEW",
	})
	assert.Error(t, err)

	// 字段类型不对也算脏消息
	_, err = ParseOrderEvent(map[string]interface{}{
		"event_id": 7,
		"order_id": "o5",
		"status":   "FAILED",
	})
	assert.Error(t, err)
}
