package router

import (
	"errors"
	"net/http"
	"time"

	"stock_reserve/internal/middleware"
	"stock_reserve/internal/model"
	"stock_reserve/internal/order"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

const idempotencyHeader = "Idempotency-Key"

// SetupOrder 注册订单服务的全部 HTTP 路由。rdb 为 nil 时不启用限流。
func SetupOrder(r *gin.Engine, saga *order.Saga, rdb *rd.Client, rateLimit int, rateWindow time.Duration) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	create := []gin.HandlerFunc{createOrder(saga)}
	if rdb != nil {
		create = append([]gin.HandlerFunc{middleware.RedisRateLimit(rdb, rateLimit, rateWindow)}, create...)
	}
	r.POST("/api/orders", create...)
	r.GET("/api/orders/:id", getOrder(saga))
}

// createOrder 下单入口。幂等键从请求头取，重复提交返回首次的响应快照。
// saga 重试耗尽时订单已标记 FAILED，给 503 并附带订单视图让调用方可查。
func createOrder(saga *order.Saga) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Items []struct {
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

		idemKey := c.GetHeader(idempotencyHeader)
		view, err := saga.CreateOrder(c.Request.Context(), idemKey, items)
		if err != nil {
			switch {
			case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrInvalidQuantity):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			case errors.Is(err, order.ErrReservationUnavailable):
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"code": 503,
					"msg":  "reservation service unavailable",
					"data": view,
				})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// getOrder 按订单 ID 查询状态。
func getOrder(saga *order.Saga) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		view, err := saga.GetOrder(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, order.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
