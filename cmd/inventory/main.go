package main

import (
	"context"
	"log"
	"time"

	"stock_reserve/internal/config"
	"stock_reserve/internal/inventory"
	"stock_reserve/internal/model"
	"stock_reserve/internal/router"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadInventory()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Stock{}, &model.ReservationRecord{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis 只做读缓存，连不上就降级为纯 DB 读
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARN: redis unavailable, stock cache disabled: %v", err)
		rdb = nil
	}
	cancel()

	ledger := inventory.NewLedger(db, inventory.WithRetry(cfg.CASMaxAttempts, cfg.CASBackoff))
	coord := inventory.NewCoordinator(db, ledger)

	r := gin.Default()
	router.SetupInventory(r, coord, rdb, cfg.AdminToken, cfg.StockCacheTTL)

	log.Printf("inventory service listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
