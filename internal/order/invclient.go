package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stock_reserve/internal/inventory"
	"stock_reserve/internal/model"
)

// ErrReservationUnavailable 远端预占服务不可达或超时，属于可重试的瞬时故障。
var ErrReservationUnavailable = errors.New("reservation service unavailable")

// ReserveClient 远端预占调用的最小接口，测试里用函数适配器替换。
type ReserveClient interface {
	Reserve(ctx context.Context, orderID string, items []model.ReserveItem) (inventory.Result, error)
}

// ReserveClientFunc 函数适配器。
type ReserveClientFunc func(ctx context.Context, orderID string, items []model.ReserveItem) (inventory.Result, error)

func (f ReserveClientFunc) Reserve(ctx context.Context, orderID string, items []model.ReserveItem) (inventory.Result, error) {
	return f(ctx, orderID, items)
}

// HTTPReserveClient 通过 HTTP 调库存服务的预占端点。
// 单次调用带超时；重试策略由 saga 掌握，这里只负责一次尝试并分类错误。
type HTTPReserveClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPReserveClient(baseURL string, timeout time.Duration) *HTTPReserveClient {
	return &HTTPReserveClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type reserveRequest struct {
	OrderID string              `json:"order_id"`
	Items   []model.ReserveItem `json:"items"`
}

// Reserve 发起一次预占调用。orderID 同时是远端的幂等主键，
// 超时后的自动重试只会命中远端台账回放，不会二次扣减。
func (c *HTTPReserveClient) Reserve(ctx context.Context, orderID string, items []model.ReserveItem) (inventory.Result, error) {
	body, err := json.Marshal(reserveRequest{OrderID: orderID, Items: items})
	if err != nil {
		return inventory.Result{}, err
	}

	url := c.baseURL + "/api/inventory/reservations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return inventory.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return inventory.Result{}, fmt.Errorf("%w: %v", ErrReservationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return inventory.Result{}, fmt.Errorf("%w: status=%d", ErrReservationUnavailable, resp.StatusCode)
	}

	var out inventory.Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return inventory.Result{}, fmt.Errorf("%w: decode: %v", ErrReservationUnavailable, err)
	}
	return out, nil
}
