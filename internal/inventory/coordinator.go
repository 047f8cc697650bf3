package inventory

import (
	"context"
	"errors"
	"strings"

	"stock_reserve/internal/model"

	"gorm.io/gorm"
)

// Coordinator 校验预占请求并驱动账本。
// 请求形状错误（空单、非正数量）直接拒绝且不写台账：结果是确定性的，
// 重放会算出同样的拒绝，台账只留给真正看过库存的结果。
type Coordinator struct {
	db     *gorm.DB
	ledger *Ledger
}

func NewCoordinator(db *gorm.DB, ledger *Ledger) *Coordinator {
	return &Coordinator{db: db, ledger: ledger}
}

// Reserve 处理一笔以 orderID 为幂等主键的预占。
// 每个 orderID 至多产生一条台账记录、至多扣减一次库存。
func (c *Coordinator) Reserve(ctx context.Context, orderID string, items []model.ReserveItem) (Result, error) {
	if len(items) == 0 {
		return Result{Reserved: false, Reason: ReasonEmptyRequest}, nil
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return Result{Reserved: false, Reason: ReasonInvalidQuantity}, nil
		}
	}

	// 回放优先：已有台账直接返回存档结果，不再触碰库存。
	var rec model.ReservationRecord
	err := c.db.WithContext(ctx).Where("order_id = ?", orderID).First(&rec).Error
	if err == nil {
		return resultFromRecord(rec), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, err
	}

	return c.ledger.Reserve(ctx, orderID, items)
}

// GetStock 查询单个 SKU 的账本行，未知 SKU 返回 gorm.ErrRecordNotFound。
func (c *Coordinator) GetStock(ctx context.Context, sku string) (model.Stock, error) {
	var st model.Stock
	if err := c.db.WithContext(ctx).Where("sku = ?", sku).First(&st).Error; err != nil {
		return model.Stock{}, err
	}
	return st, nil
}

// SeedStock 新建或重置一个 SKU 的可用量，管理接口使用。
// 重置会推进版本号，让在途 CAS 自然失败重试。
func (c *Coordinator) SeedStock(ctx context.Context, sku string, qty int64) (model.Stock, error) {
	var st model.Stock
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Stock{}).
			Where("sku = ?", sku).
			Updates(map[string]any{
				"available_qty": qty,
				"version":       gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			st = model.Stock{SKU: sku, AvailableQty: qty}
			return tx.Create(&st).Error
		}
		return tx.Where("sku = ?", sku).First(&st).Error
	})
	if err != nil {
		return model.Stock{}, err
	}
	return st, nil
}

// errorsLikeUnique 识别 sqlite 的唯一约束冲突。
func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
