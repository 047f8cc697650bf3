package order

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strings"
	"time"

	"stock_reserve/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEmptyItems      = errors.New("items must not be empty")
	ErrInvalidQuantity = errors.New("qty must be > 0")
	ErrOrderNotFound   = errors.New("order not found")
)

// OrderView 对外返回的订单视图，也是幂等快照的序列化形态。
type OrderView struct {
	ID     string            `json:"id"`
	Status model.OrderStatus `json:"status"`
}

// EventSink 接收订单终态事件，实现方自己保证投递语义；nil 表示不发事件。
type EventSink interface {
	PublishOrderEvent(ctx context.Context, orderID, status, reason string) error
}

// Saga 编排下单流程：查重 → 原子落 Order(NEW)+幂等存根 → 远端预占 → 回写状态。
// 远端调用不在任何开启的事务内：NEW 订单先提交，中途崩溃留下可恢复的 NEW，
// 而不是悬挂的数据库事务。
type Saga struct {
	db     *gorm.DB
	inv    ReserveClient
	events EventSink

	maxAttempts int
	baseBackoff time.Duration
	idemTTL     time.Duration

	// 并发重复提交时输家等待赢家收敛的轮询参数。
	convergePoll time.Duration
	convergeMax  time.Duration
}

const (
	defaultReserveAttempts = 3
	defaultReserveBackoff  = 100 * time.Millisecond
	defaultIdemTTL         = 24 * time.Hour
	defaultConvergePoll    = 25 * time.Millisecond
	defaultConvergeMax     = 3 * time.Second
	finalizeTimeout        = 5 * time.Second
)

type SagaOption func(*Saga)

// WithReserveRetry 覆盖远端调用的重试次数与退避基数。
func WithReserveRetry(attempts int, base time.Duration) SagaOption {
	return func(s *Saga) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if base > 0 {
			s.baseBackoff = base
		}
	}
}

// WithIdempotencyTTL 覆盖幂等存根的有效期。
func WithIdempotencyTTL(ttl time.Duration) SagaOption {
	return func(s *Saga) {
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// WithEventSink 注入订单终态事件出口。
func WithEventSink(sink EventSink) SagaOption {
	return func(s *Saga) { s.events = sink }
}

// WithConvergeWait 覆盖重复提交收敛等待参数，测试用。
func WithConvergeWait(poll, max time.Duration) SagaOption {
	return func(s *Saga) {
		if poll > 0 {
			s.convergePoll = poll
		}
		if max > 0 {
			s.convergeMax = max
		}
	}
}

func NewSaga(db *gorm.DB, inv ReserveClient, opts ...SagaOption) *Saga {
	s := &Saga{
		db:           db,
		inv:          inv,
		maxAttempts:  defaultReserveAttempts,
		baseBackoff:  defaultReserveBackoff,
		idemTTL:      defaultIdemTTL,
		convergePoll: defaultConvergePoll,
		convergeMax:  defaultConvergeMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder 幂等地创建订单并预占库存。
// idemKey 为空时不做去重；非空时同 key 的重复请求返回首次存档的响应快照。
// FAILED 视图不论来自首次提交、并发收敛还是快照重放，一律伴随
// ErrReservationUnavailable，同一笔的重复提交拿到完全一致的响应。
func (s *Saga) CreateOrder(ctx context.Context, idemKey string, items []model.ReserveItem) (OrderView, error) {
	view, err := s.createOrder(ctx, idemKey, items)
	if err != nil {
		return view, err
	}
	if view.Status == model.OrderStatusFailed {
		return view, ErrReservationUnavailable
	}
	return view, nil
}

func (s *Saga) createOrder(ctx context.Context, idemKey string, items []model.ReserveItem) (OrderView, error) {
	if len(items) == 0 {
		return OrderView{}, ErrEmptyItems
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return OrderView{}, ErrInvalidQuantity
		}
	}

	if idemKey != "" {
		if view, hit, err := s.replay(ctx, idemKey); err != nil {
			return OrderView{}, err
		} else if hit {
			return view, nil
		}
	}

	orderID := uuid.New().String()
	created, err := s.createNewOrder(ctx, orderID, idemKey)
	if err != nil {
		return OrderView{}, err
	}
	if !created {
		// 唯一键冲突：并发同 key 请求输了插入竞赛，收敛到赢家的结果。
		return s.converge(ctx, idemKey)
	}

	res, err := s.reserveWithRetry(ctx, orderID, items)
	if err != nil {
		return s.finalize(ctx, orderID, idemKey, model.OrderStatusFailed, "reservation unavailable"), nil
	}

	status := model.OrderStatusStockRejected
	if res.Reserved {
		status = model.OrderStatusStockReserved
	}
	return s.finalize(ctx, orderID, idemKey, status, res.Reason), nil
}

// GetOrder 查询订单视图。
func (s *Saga) GetOrder(ctx context.Context, id string) (OrderView, error) {
	var o model.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OrderView{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{ID: o.ID, Status: o.Status}, nil
}

// replay 查幂等存根。命中且有快照直接返回快照；
// 命中但快照未回填说明赢家还在途，等它收敛；过期当未命中。
func (s *Saga) replay(ctx context.Context, idemKey string) (OrderView, bool, error) {
	var rec model.IdempotencyRecord
	err := s.db.WithContext(ctx).Where("key = ?", idemKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OrderView{}, false, nil
	}
	if err != nil {
		return OrderView{}, false, err
	}
	if rec.Expired(time.Now()) {
		return OrderView{}, false, nil
	}
	if rec.ResponseSnapshot != "" {
		var view OrderView
		if err := json.Unmarshal([]byte(rec.ResponseSnapshot), &view); err != nil {
			return OrderView{}, false, err
		}
		return view, true, nil
	}
	view, err := s.converge(ctx, idemKey)
	if err != nil {
		return OrderView{}, false, err
	}
	return view, true, nil
}

// createNewOrder 在一个事务里原子创建 Order(NEW) 和幂等存根。
// 返回 false 表示幂等键被并发请求抢先占用。
func (s *Saga) createNewOrder(ctx context.Context, orderID, idemKey string) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o := model.Order{ID: orderID, Status: model.OrderStatusNew}
		if idemKey != "" {
			// 过期存根让位：删掉旧存根并摘掉旧订单上的键（订单本身保留审计）。
			var old model.IdempotencyRecord
			err := tx.Where("key = ?", idemKey).First(&old).Error
			if err == nil {
				if !old.Expired(time.Now()) {
					return errDuplicateKey
				}
				if err := tx.Delete(&model.IdempotencyRecord{}, "key = ?", idemKey).Error; err != nil {
					return err
				}
				if err := tx.Model(&model.Order{}).Where("id = ?", old.OrderID).
					Update("idempotency_key", nil).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			o.IdempotencyKey = &idemKey
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
			return tx.Create(&model.IdempotencyRecord{
				Key:       idemKey,
				OrderID:   orderID,
				ExpiresAt: time.Now().Add(s.idemTTL),
			}).Error
		}
		return tx.Create(&o).Error
	})
	if err != nil {
		if errors.Is(err, errDuplicateKey) || errorsLikeUnique(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var errDuplicateKey = errors.New("idempotency key taken")

// converge 并发重复提交的输家路径：有限时间内轮询赢家的存根与订单，
// 拿到终态（或超时拿到当前态）后返回同一份视图。
func (s *Saga) converge(ctx context.Context, idemKey string) (OrderView, error) {
	deadline := time.Now().Add(s.convergeMax)
	for {
		var rec model.IdempotencyRecord
		err := s.db.WithContext(ctx).Where("key = ?", idemKey).First(&rec).Error
		if err != nil {
			return OrderView{}, err
		}
		if rec.ResponseSnapshot != "" {
			var view OrderView
			if err := json.Unmarshal([]byte(rec.ResponseSnapshot), &view); err != nil {
				return OrderView{}, err
			}
			return view, nil
		}
		view, err := s.GetOrder(ctx, rec.OrderID)
		if err != nil {
			return OrderView{}, err
		}
		if view.Status.Terminal() || time.Now().After(deadline) {
			return view, nil
		}
		select {
		case <-time.After(s.convergePoll):
		case <-ctx.Done():
			return OrderView{}, ctx.Err()
		}
	}
}

// reserveWithRetry 有界重试的远端预占调用，指数退避加抖动。
func (s *Saga) reserveWithRetry(ctx context.Context, orderID string, items []model.ReserveItem) (res Result, err error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			d := s.baseBackoff << uint(attempt-1)
			d += time.Duration(rand.Int63n(int64(s.baseBackoff)))
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}
		r, callErr := s.inv.Reserve(ctx, orderID, items)
		if callErr == nil {
			return Result{Reserved: r.Reserved, Reason: r.Reason}, nil
		}
		err = callErr
		log.Printf("saga reserve order=%s attempt=%d: %v", orderID, attempt+1, callErr)
	}
	return res, err
}

// Result 是远端预占的归一化结果。
type Result struct {
	Reserved bool
	Reason   string
}

// finalize 把预占结果落回订单：状态机守护的条件更新 + 回填幂等快照，
// 最后尽力发一条终态事件（失败只记日志，不影响下单结果）。
func (s *Saga) finalize(ctx context.Context, orderID, idemKey string, status model.OrderStatus, reason string) OrderView {
	// 收尾不随调用方取消：远端一旦给出定论（或重试已耗尽），终态和快照必须落库，
	// 否则调用方断开会让订单永远停在 NEW，同 key 重试也看不到结果。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	view := OrderView{ID: orderID, Status: status}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 只允许 NEW -> 终态；RowsAffected == 0 说明别处已收敛，保留现状。
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", orderID, model.OrderStatusNew).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var o model.Order
			if err := tx.Where("id = ?", orderID).First(&o).Error; err != nil {
				return err
			}
			view.Status = o.Status
		}

		if idemKey != "" {
			snapshot, err := json.Marshal(view)
			if err != nil {
				return err
			}
			if err := tx.Model(&model.IdempotencyRecord{}).
				Where("key = ? AND order_id = ?", idemKey, orderID).
				Update("response_snapshot", string(snapshot)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("saga finalize order=%s: %v", orderID, err)
	}

	if s.events != nil {
		if err := s.events.PublishOrderEvent(ctx, view.ID, string(view.Status), reason); err != nil {
			log.Printf("saga publish event order=%s: %v", view.ID, err)
		}
	}
	return view
}

// errorsLikeUnique 识别 sqlite 的唯一约束冲突。
func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
