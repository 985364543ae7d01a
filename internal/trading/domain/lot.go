// Package domain 模拟交易会话的领域模型。
// 包含批次持仓账本、费用模型、订单准入与结算状态机。
package domain

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// LotSize 最小交易单位（一手 = 100 股）
const LotSize int64 = 100

// Lot 一笔买入成交形成的持仓批次，FIFO 成本核算单元。
// UnitCost 含入场费用，创建后不再变化；部分消耗只减少 Remaining。
type Lot struct {
	Symbol    string
	BuyDate   string // YYYY-MM-DD
	BuyPrice  decimal.Decimal
	UnitCost  decimal.Decimal
	Quantity  int64
	Remaining int64
}

// LotTake FIFO 消耗结果：批次及本次占用数量
type LotTake struct {
	Lot   *Lot
	Taken int64
}

// PositionLedger 按标的维护持仓批次的库存账本
type PositionLedger struct {
	lots map[string][]*Lot
}

// NewPositionLedger 创建空账本
func NewPositionLedger() *PositionLedger {
	return &PositionLedger{lots: make(map[string][]*Lot)}
}

// AddLot 记录一笔买入批次。totalCost 为成交金额加入场费用，
// 单位成本 = totalCost / quantity，在创建时固定。
func (l *PositionLedger) AddLot(symbol, date string, price decimal.Decimal, quantity int64, totalCost decimal.Decimal) *Lot {
	lot := &Lot{
		Symbol:    symbol,
		BuyDate:   date,
		BuyPrice:  price,
		UnitCost:  totalCost.Div(decimal.NewFromInt(quantity)),
		Quantity:  quantity,
		Remaining: quantity,
	}
	l.lots[symbol] = append(l.lots[symbol], lot)
	// 保持买入日期升序，FIFO 消耗依赖该顺序
	sort.SliceStable(l.lots[symbol], func(i, j int) bool {
		return l.lots[symbol][i].BuyDate < l.lots[symbol][j].BuyDate
	})
	return lot
}

// OpenQuantity 某标的当前未平仓数量
func (l *PositionLedger) OpenQuantity(symbol string) int64 {
	var total int64
	for _, lot := range l.lots[symbol] {
		total += lot.Remaining
	}
	return total
}

// Consume 按买入日期升序（FIFO）消耗持仓，逐批取 min(remaining, 还需数量)。
// 调用方必须先用 OpenQuantity 校验持仓充足，不足时返回错误且不做任何消耗。
func (l *PositionLedger) Consume(symbol string, quantity int64) ([]LotTake, error) {
	if quantity <= 0 {
		return nil, errors.New("consume quantity must be positive")
	}
	if l.OpenQuantity(symbol) < quantity {
		return nil, errors.New("insufficient open quantity")
	}

	var takes []LotTake
	remaining := quantity
	for _, lot := range l.lots[symbol] {
		if remaining == 0 {
			break
		}
		if lot.Remaining == 0 {
			continue
		}
		taken := lot.Remaining
		if taken > remaining {
			taken = remaining
		}
		lot.Remaining -= taken
		remaining -= taken
		takes = append(takes, LotTake{Lot: lot, Taken: taken})
	}

	// 清理已耗尽批次
	kept := l.lots[symbol][:0]
	for _, lot := range l.lots[symbol] {
		if lot.Remaining > 0 {
			kept = append(kept, lot)
		}
	}
	if len(kept) == 0 {
		delete(l.lots, symbol)
	} else {
		l.lots[symbol] = kept
	}
	return takes, nil
}

// OpenLots 所有仍有剩余数量的批次，按标的、买入日期排序
func (l *PositionLedger) OpenLots() []*Lot {
	symbols := make([]string, 0, len(l.lots))
	for symbol := range l.lots {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var open []*Lot
	for _, symbol := range symbols {
		for _, lot := range l.lots[symbol] {
			if lot.Remaining > 0 {
				open = append(open, lot)
			}
		}
	}
	return open
}

// Clear 清空账本
func (l *PositionLedger) Clear() {
	l.lots = make(map[string][]*Lot)
}
