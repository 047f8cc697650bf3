package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"stock_reserve/internal/config"
	"stock_reserve/internal/model"
	"stock_reserve/internal/order"
	"stock_reserve/internal/queue"
	"stock_reserve/internal/router"
	rediskey "stock_reserve/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadOrder()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Order{}, &model.IdempotencyRecord{}, &model.OrderEvent{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis 承担限流与事件 outbox，连不上就降级：不限流、不发事件
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARN: redis unavailable, rate limit and event outbox disabled: %v", err)
		rdb = nil
	}
	cancel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 事件链路：saga -> Redis Stream -> Relay -> Kafka -> 审计消费者 -> order_events
	sagaOpts := []order.SagaOption{
		order.WithReserveRetry(cfg.ReserveMaxAttempts, cfg.ReserveBackoff),
		order.WithIdempotencyTTL(cfg.IdempotencyTTL),
	}
	if rdb != nil {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()

		relay := queue.NewRelay(rdb, producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
		go relay.Run(ctx)

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
		defer consumer.Close()
		go consumer.Run(ctx)

		sagaOpts = append(sagaOpts, order.WithEventSink(rediskey.NewOutbox(rdb, cfg.OrderEventStream)))
	}

	inv := order.NewHTTPReserveClient(cfg.InventoryBaseURL, cfg.ReserveTimeout)
	saga := order.NewSaga(db, inv, sagaOpts...)

	r := gin.Default()
	router.SetupOrder(r, saga, rdb, cfg.CreateRateLimit, cfg.CreateRateWindow)

	log.Printf("order service listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
