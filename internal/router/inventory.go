package router

import (
	"errors"
	"log"
	"net/http"
	"time"

	"stock_reserve/internal/inventory"
	"stock_reserve/internal/model"
	rediskey "stock_reserve/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupInventory 注册库存服务的全部 HTTP 路由。rdb 为 nil 时不启用读缓存。
func SetupInventory(r *gin.Engine, coord *inventory.Coordinator, rdb *rd.Client, adminToken string, cacheTTL time.Duration) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.POST("/api/inventory/reservations", reserveStock(coord))
	r.GET("/api/inventory/stock/:sku", getStock(coord, rdb, cacheTTL))
	r.POST("/api/inventory/stock", seedStock(coord, rdb, adminToken))
}

// reserveStock 预占端点。响应是跨服务契约：平铺的 {reserved, reason}。
// 拒绝也是 200——它是业务结果，不是故障；只有基础设施问题才给 5xx。
func reserveStock(coord *inventory.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID string `json:"order_id" binding:"required"`
			Items   []struct {
				SKU string `json:"sku" binding:"required"`
				Qty int64  `json:"qty"`
			} `json:"items"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		items := make([]model.ReserveItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, model.ReserveItem{SKU: it.SKU, Qty: it.Qty})
		}

		res, err := coord.Reserve(c.Request.Context(), req.OrderID, items)
		if err != nil {
			if errors.Is(err, inventory.ErrTooMuchContention) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"code": 503, "msg": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// getStock 查询单个 SKU 的可用量，带 Redis 读缓存回源。
func getStock(coord *inventory.Coordinator, rdb *rd.Client, cacheTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := c.Param("sku")

		if rdb != nil {
			qty, hit, err := rediskey.GetCachedStock(c.Request.Context(), rdb, sku)
			if err == nil && hit {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"sku": sku, "available_qty": qty}})
				return
			}
		}

		st, err := coord.GetStock(c.Request.Context(), sku)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "unknown sku"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		if rdb != nil {
			if err := rediskey.PutCachedStock(c.Request.Context(), rdb, sku, st.AvailableQty, cacheTTL); err != nil {
				log.Printf("stock cache put sku=%s: %v", sku, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"sku": sku, "available_qty": st.AvailableQty}})
	}
}

// seedStock 新建/重置 SKU 可用量的管理接口，同时刷新缓存。
func seedStock(coord *inventory.Coordinator, rdb *rd.Client, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid admin token"})
			return
		}

		var req struct {
			SKU string `json:"sku" binding:"required"`
			Qty int64  `json:"qty" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		st, err := coord.SeedStock(c.Request.Context(), req.SKU, req.Qty)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		if rdb != nil {
			if err := rediskey.DropCachedStock(c.Request.Context(), rdb, req.SKU); err != nil {
				log.Printf("stock cache drop sku=%s: %v", req.SKU, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}
