package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// GetCachedStock 查询 SKU 的缓存库存。found=false 表示缓存未命中。
// 缓存只服务读接口，预占扣减永远走数据库账本。
func GetCachedStock(ctx context.Context, rdb *rd.Client, sku string) (int64, bool, error) {
	val, err := rdb.Get(ctx, StockCacheKey(sku)).Int64()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return val, true, nil
}

// PutCachedStock 回填库存缓存并设置 TTL。
func PutCachedStock(ctx context.Context, rdb *rd.Client, sku string, qty int64, ttl time.Duration) error {
	return rdb.Set(ctx, StockCacheKey(sku), qty, ttl).Err()
}

// DropCachedStock 扣减后失效缓存，下次读自然回源。
func DropCachedStock(ctx context.Context, rdb *rd.Client, sku string) error {
	return rdb.Del(ctx, StockCacheKey(sku)).Err()
}
