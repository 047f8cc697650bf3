package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock_reserve/internal/inventory"
	"stock_reserve/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReserveClientOK(t *testing.T) {
	var gotPath string
	var gotReq reserveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(inventory.Result{Reserved: true, Reason: inventory.ReasonOK})
	}))
	defer srv.Close()

	c := NewHTTPReserveClient(srv.URL, time.Second)
	res, err := c.Reserve(context.Background(), "order1", []model.ReserveItem{{SKU: "A", Qty: 2}})
	require.NoError(t, err)
	assert.True(t, res.Reserved)
	assert.Equal(t, inventory.ReasonOK, res.Reason)
	assert.Equal(t, "/api/inventory/reservations", gotPath)
	assert.Equal(t, "order1", gotReq.OrderID)
	assert.Equal(t, []model.ReserveItem{{SKU: "A", Qty: 2}}, gotReq.Items)
}

func TestHTTPReserveClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPReserveClient(srv.URL, time.Second)
	_, err := c.Reserve(context.Background(), "order1", []model.ReserveItem{{SKU: "A", Qty: 1}})
	assert.True(t, errors.Is(err, ErrReservationUnavailable))
}

func TestHTTPReserveClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立刻关掉，留下一个必然拒绝连接的地址

	c := NewHTTPReserveClient(srv.URL, 200*time.Millisecond)
	_, err := c.Reserve(context.Background(), "order1", []model.ReserveItem{{SKU: "A", Qty: 1}})
	assert.True(t, errors.Is(err, ErrReservationUnavailable))
}
