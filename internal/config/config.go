package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// InventoryConfig 库存服务的运行时配置，全部走环境变量注入。
type InventoryConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// CAS 冲突重试边界与库存读缓存策略
	CASMaxAttempts int
	CASBackoff     time.Duration
	StockCacheTTL  time.Duration

	// 库存管理接口的简单管理员令牌（demo 级别保护）
	AdminToken string
}

// OrderConfig 订单服务的运行时配置。
type OrderConfig struct {
	HTTPAddr string
	DBPath   string

	// 库存服务地址与远端预占调用的重试边界
	InventoryBaseURL   string
	ReserveTimeout     time.Duration
	ReserveMaxAttempts int
	ReserveBackoff     time.Duration

	IdempotencyTTL time.Duration

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（saga 尽力入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 下单接口限流
	CreateRateLimit  int
	CreateRateWindow time.Duration
}

// LoadInventory 读取并校验库存服务配置，缺失时使用默认值。
func LoadInventory() (InventoryConfig, error) {
	cfg := InventoryConfig{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8081"),
		DBPath:         getEnv("DB_PATH", "inventory.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        0,
		CASMaxAttempts: 5,
		CASBackoff:     5 * time.Millisecond,
		StockCacheTTL:  time.Hour,
		AdminToken:     getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return InventoryConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	attempts, err := getEnvInt("CAS_MAX_ATTEMPTS", cfg.CASMaxAttempts)
	if err != nil {
		return InventoryConfig{}, fmt.Errorf("invalid CAS_MAX_ATTEMPTS: %w", err)
	}
	if attempts <= 0 {
		return InventoryConfig{}, fmt.Errorf("CAS_MAX_ATTEMPTS must be > 0")
	}
	cfg.CASMaxAttempts = attempts

	backoffMs, err := getEnvInt("CAS_BACKOFF_MS", int(cfg.CASBackoff.Milliseconds()))
	if err != nil {
		return InventoryConfig{}, fmt.Errorf("invalid CAS_BACKOFF_MS: %w", err)
	}
	if backoffMs <= 0 {
		return InventoryConfig{}, fmt.Errorf("CAS_BACKOFF_MS must be > 0")
	}
	cfg.CASBackoff = time.Duration(backoffMs) * time.Millisecond

	cacheTTLSec, err := getEnvInt("STOCK_CACHE_TTL_SEC", int(cfg.StockCacheTTL.Seconds()))
	if err != nil {
		return InventoryConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_SEC: %w", err)
	}
	if cacheTTLSec <= 0 {
		return InventoryConfig{}, fmt.Errorf("STOCK_CACHE_TTL_SEC must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(cacheTTLSec) * time.Second

	return cfg, nil
}

// LoadOrder 读取并校验订单服务配置，缺失时使用默认值。
func LoadOrder() (OrderConfig, error) {
	cfg := OrderConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "orders.db"),
		InventoryBaseURL:   getEnv("INVENTORY_BASE_URL", "http://localhost:8081"),
		ReserveTimeout:     2 * time.Second,
		ReserveMaxAttempts: 3,
		ReserveBackoff:     100 * time.Millisecond,
		IdempotencyTTL:     24 * time.Hour,
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-status-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "order-event-audit"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "orders:status_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "order-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "order-relay-1"),
		CreateRateLimit:    1000,
		CreateRateWindow:   time.Second,
	}

	timeoutMs, err := getEnvInt("RESERVE_TIMEOUT_MS", int(cfg.ReserveTimeout.Milliseconds()))
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid RESERVE_TIMEOUT_MS: %w", err)
	}
	if timeoutMs <= 0 {
		return OrderConfig{}, fmt.Errorf("RESERVE_TIMEOUT_MS must be > 0")
	}
	cfg.ReserveTimeout = time.Duration(timeoutMs) * time.Millisecond

	attempts, err := getEnvInt("RESERVE_MAX_ATTEMPTS", cfg.ReserveMaxAttempts)
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid RESERVE_MAX_ATTEMPTS: %w", err)
	}
	if attempts <= 0 {
		return OrderConfig{}, fmt.Errorf("RESERVE_MAX_ATTEMPTS must be > 0")
	}
	cfg.ReserveMaxAttempts = attempts

	backoffMs, err := getEnvInt("RESERVE_BACKOFF_MS", int(cfg.ReserveBackoff.Milliseconds()))
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid RESERVE_BACKOFF_MS: %w", err)
	}
	if backoffMs <= 0 {
		return OrderConfig{}, fmt.Errorf("RESERVE_BACKOFF_MS must be > 0")
	}
	cfg.ReserveBackoff = time.Duration(backoffMs) * time.Millisecond

	idemTTLHour, err := getEnvInt("IDEMPOTENCY_TTL_HOUR", int(cfg.IdempotencyTTL.Hours()))
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid IDEMPOTENCY_TTL_HOUR: %w", err)
	}
	if idemTTLHour <= 0 {
		return OrderConfig{}, fmt.Errorf("IDEMPOTENCY_TTL_HOUR must be > 0")
	}
	cfg.IdempotencyTTL = time.Duration(idemTTLHour) * time.Hour

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("CREATE_RATE_LIMIT", cfg.CreateRateLimit)
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid CREATE_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return OrderConfig{}, fmt.Errorf("CREATE_RATE_LIMIT must be > 0")
	}
	cfg.CreateRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CREATE_RATE_WINDOW_SEC", int(cfg.CreateRateWindow.Seconds()))
	if err != nil {
		return OrderConfig{}, fmt.Errorf("invalid CREATE_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return OrderConfig{}, fmt.Errorf("CREATE_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CreateRateWindow = time.Duration(rateWindowSec) * time.Second

	if cfg.InventoryBaseURL == "" {
		return OrderConfig{}, fmt.Errorf("INVENTORY_BASE_URL must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return OrderConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return OrderConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return OrderConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return OrderConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return OrderConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return OrderConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
