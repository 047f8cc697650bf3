package redis

import "fmt"

// StockCacheKey 统一约定 SKU 库存缓存键名。
func StockCacheKey(sku string) string {
	return fmt.Sprintf("inventory:stock:%s", sku)
}

// RateLimitKey 下单接口限流键：优先按幂等键，退化按来源 IP。
func RateLimitKey(kind, id string) string {
	return fmt.Sprintf("rate_limit:orders:%s:%s", kind, id)
}
