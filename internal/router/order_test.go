package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock_reserve/internal/inventory"
	"stock_reserve/internal/model"
	"stock_reserve/internal/order"
	"stock_reserve/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startInventory 起一个真实的库存服务进程内实例，返回其地址。
func startInventory(t *testing.T, seed map[string]int64) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, &model.Stock{}, &model.ReservationRecord{})
	for sku, qty := range seed {
		require.NoError(t, db.Create(&model.Stock{SKU: sku, AvailableQty: qty}).Error)
	}
	r := gin.New()
	SetupInventory(r, inventory.NewCoordinator(db, inventory.NewLedger(db)), nil, testAdminToken, time.Minute)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newOrderRouter(t *testing.T, invURL string, opts ...order.SagaOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t, &model.Order{}, &model.IdempotencyRecord{})
	client := order.NewHTTPReserveClient(invURL, time.Second)
	saga := order.NewSaga(db, client, opts...)
	r := gin.New()
	SetupOrder(r, saga, nil, 0, 0)
	return r
}

func orderBody(sku string, qty int64) gin.H {
	return gin.H{"items": []gin.H{{"sku": sku, "qty": qty}}}
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) order.OrderView {
	t.Helper()
	var view order.OrderView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func TestCreateOrderEndToEnd(t *testing.T) {
	invURL := startInventory(t, map[string]int64{"A": 5})
	r := newOrderRouter(t, invURL)

	w := doJSON(t, r, http.MethodPost, "/api/orders", orderBody("A", 3),
		map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, model.OrderStatusStockReserved, view.Status)

	// 同键重放：同一响应快照
	w = doJSON(t, r, http.MethodPost, "/api/orders", orderBody("A", 3),
		map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view, decodeView(t, w))

	// 库存不够：订单落 STOCK_REJECTED，仍是 200
	w = doJSON(t, r, http.MethodPost, "/api/orders", orderBody("A", 99),
		map[string]string{"Idempotency-Key": "k2"})
	require.Equal(t, http.StatusOK, w.Code)
	rejected := decodeView(t, w)
	assert.Equal(t, model.OrderStatusStockRejected, rejected.Status)

	// 两个订单都能按 ID 查到
	w = doJSON(t, r, http.MethodGet, "/api/orders/"+view.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view, decodeView(t, w))

	w = doJSON(t, r, http.MethodGet, "/api/orders/"+rejected.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rejected, decodeView(t, w))
}

func TestCreateOrderBadRequest(t *testing.T) {
	invURL := startInventory(t, map[string]int64{"A": 5})
	r := newOrderRouter(t, invURL)

	w := doJSON(t, r, http.MethodPost, "/api/orders", gin.H{"items": []gin.H{}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/orders", orderBody("A", 0), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderInventoryDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 留一个必然连不上的地址
	r := newOrderRouter(t, srv.URL, order.WithReserveRetry(2, time.Millisecond))

	w := doJSON(t, r, http.MethodPost, "/api/orders", orderBody("A", 1),
		map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// 503 带着 FAILED 订单视图，调用方可以继续查询
	var body struct {
		Data order.OrderView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.OrderStatusFailed, body.Data.Status)
	assert.NotEmpty(t, body.Data.ID)

	w = doJSON(t, r, http.MethodGet, "/api/orders/"+body.Data.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.OrderStatusFailed, decodeView(t, w).Status)
}

func TestGetOrderMissing(t *testing.T) {
	invURL := startInventory(t, map[string]int64{"A": 1})
	r := newOrderRouter(t, invURL)

	w := doJSON(t, r, http.MethodGet, "/api/orders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
