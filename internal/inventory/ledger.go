package inventory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"stock_reserve/internal/model"

	"gorm.io/gorm"
)

// Result 是一次预占的业务结果。拒绝不是错误，错误只表示基础设施故障。
type Result struct {
	Reserved bool   `json:"reserved"`
	Reason   string `json:"reason"`
}

// 对外可见的拒绝原因，跨服务契约的一部分，不要改字面量。
const (
	ReasonOK                = "OK"
	ReasonUnknownSKU        = "unknown sku"
	ReasonInsufficientStock = "insufficient stock"
	ReasonEmptyRequest      = "empty request"
	ReasonInvalidQuantity   = "invalid quantity"
)

// ErrTooMuchContention 版本冲突重试耗尽，调用方当作瞬时故障处理。
var ErrTooMuchContention = errors.New("stock ledger: too much contention")

// errVersionConflict 单次尝试内的 CAS 失败，触发整个事务回滚重试。
var errVersionConflict = errors.New("stock ledger: version conflict")

// Ledger 权威库存账本。
// 并发策略：每个 SKU 一行带版本号，扣减走「版本匹配 + 余量充足」的条件 UPDATE；
// 整笔请求的「全部校验 → 全部扣减 → 写台账」在一个事务内完成，
// 任一 SKU 版本冲突就回滚整笔并退避重试，不存在部分扣减的中间态。
type Ledger struct {
	db          *gorm.DB
	maxAttempts int
	baseBackoff time.Duration
}

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 5 * time.Millisecond
)

type LedgerOption func(*Ledger)

// WithRetry 覆盖冲突重试次数与退避基数。
func WithRetry(attempts int, base time.Duration) LedgerOption {
	return func(l *Ledger) {
		if attempts > 0 {
			l.maxAttempts = attempts
		}
		if base > 0 {
			l.baseBackoff = base
		}
	}
}

func NewLedger(db *gorm.DB, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		db:          db,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve 以 reservationID 为幂等主键预占一组条目。
// 同一 reservationID 重复调用返回首次存档的结果，不会重复扣减。
func (l *Ledger) Reserve(ctx context.Context, reservationID string, items []model.ReserveItem) (Result, error) {
	norm := NormalizeItems(items)

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		res, err := l.tryReserve(ctx, reservationID, norm)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, errVersionConflict) {
			return Result{}, err
		}
		if err := sleepBackoff(ctx, l.baseBackoff, attempt); err != nil {
			return Result{}, err
		}
	}
	return Result{}, ErrTooMuchContention
}

// tryReserve 单次事务尝试。回放、校验、扣减、写台账全部在同一事务内。
func (l *Ledger) tryReserve(ctx context.Context, reservationID string, items []model.ReserveItem) (Result, error) {
	var out Result
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 回放：台账已有同 ID 记录，直接返回存档结果。
		var rec model.ReservationRecord
		err := tx.Where("order_id = ?", reservationID).First(&rec).Error
		if err == nil {
			out = resultFromRecord(rec)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 先全量校验，任一条目不过就整体拒绝，库存一行不改。
		versions := make(map[string]int64, len(items))
		for _, it := range items {
			var st model.Stock
			err := tx.Where("sku = ?", it.SKU).First(&st).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				out = Result{Reserved: false, Reason: ReasonUnknownSKU}
				return writeRecord(tx, reservationID, items, out)
			}
			if err != nil {
				return err
			}
			if st.AvailableQty < it.Qty {
				out = Result{Reserved: false, Reason: ReasonInsufficientStock}
				return writeRecord(tx, reservationID, items, out)
			}
			versions[it.SKU] = st.Version
		}

		// 全部通过后按排序好的 SKU 顺序逐行 CAS 扣减。
		// RowsAffected == 0 说明版本被并发推进（或余量已不足），回滚整笔重试。
		for _, it := range items {
			res := tx.Model(&model.Stock{}).
				Where("sku = ? AND version = ? AND available_qty >= ?", it.SKU, versions[it.SKU], it.Qty).
				Updates(map[string]any{
					"available_qty": gorm.Expr("available_qty - ?", it.Qty),
					"version":       gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}
		}

		out = Result{Reserved: true, Reason: ReasonOK}
		return writeRecord(tx, reservationID, items, out)
	})
	if err != nil {
		return Result{}, err
	}
	return out, nil
}

// writeRecord 在扣减同一事务内写入台账。
// 并发同 ID 的另一笔先提交会触发 UNIQUE 冲突，转成冲突错误让本笔回滚重试，
// 重试时走回放分支拿到对方存档的结果。
func writeRecord(tx *gorm.DB, reservationID string, items []model.ReserveItem, res Result) error {
	encoded, err := model.EncodeItems(items)
	if err != nil {
		return err
	}
	rec := model.ReservationRecord{
		OrderID: reservationID,
		Items:   encoded,
		Outcome: model.ReservationOutcomeRejected,
		Reason:  res.Reason,
	}
	if res.Reserved {
		rec.Outcome = model.ReservationOutcomeReserved
	}
	if err := tx.Create(&rec).Error; err != nil {
		if errorsLikeUnique(err) {
			return errVersionConflict
		}
		return err
	}
	return nil
}

func resultFromRecord(rec model.ReservationRecord) Result {
	return Result{
		Reserved: rec.Outcome == model.ReservationOutcomeReserved,
		Reason:   rec.Reason,
	}
}

// NormalizeItems 按 SKU 升序排序并合并重复 SKU 的数量。
// 固定顺序保证多 SKU 请求的行锁获取顺序一致，避免交叉死锁。
func NormalizeItems(items []model.ReserveItem) []model.ReserveItem {
	merged := make(map[string]int64, len(items))
	for _, it := range items {
		merged[it.SKU] += it.Qty
	}
	out := make([]model.ReserveItem, 0, len(merged))
	for sku, qty := range merged {
		out = append(out, model.ReserveItem{SKU: sku, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// sleepBackoff 指数退避加随机抖动，attempt 从 0 开始。
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	d := base << uint(attempt)
	d += time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
