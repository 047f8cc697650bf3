package model

// ReserveItem 是预占请求里的单个条目，订单服务与库存服务共用同一结构。
type ReserveItem struct {
	SKU string `json:"sku"`
	Qty int64  `json:"qty"`
}
