package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusNew, OrderStatusStockReserved, true},
		{OrderStatusNew, OrderStatusStockRejected, true},
		{OrderStatusNew, OrderStatusFailed, true},
		{OrderStatusNew, OrderStatusNew, false},
		{OrderStatusStockReserved, OrderStatusStockRejected, false},
		{OrderStatusStockRejected, OrderStatusNew, false},
		{OrderStatusFailed, OrderStatusStockReserved, false},
		{OrderStatusFailed, OrderStatusFailed, false},
		{OrderStatus("bogus"), OrderStatusFailed, false},
		{OrderStatusNew, OrderStatus("bogus"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, OrderStatusNew.Terminal())
	assert.True(t, OrderStatusStockReserved.Terminal())
	assert.True(t, OrderStatusStockRejected.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.False(t, OrderStatus("bogus").Terminal())
}
