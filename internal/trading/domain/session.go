package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceFunc 结算/估值时的最新参考价查询，第二个返回值表示价格是否可得
type PriceFunc func(symbol string) (decimal.Decimal, bool)

// OrderRequest 订单提交请求
type OrderRequest struct {
	OrderID    string // 为空时由会话自动编号
	Symbol     string
	Side       OrderSide
	Quantity   int64
	RefPrice   decimal.Decimal
	SignalDate string
	SubmitDate string
}

// SettleReport 一次结算的处理统计
type SettleReport struct {
	Settled          int // 本次进入终态的订单数
	Filled           int
	PendingRemaining int
	FilledOrders     []string
	RejectedOrders   []string
}

// PositionView 持仓快照中的单个批次视图
type PositionView struct {
	Symbol      string
	BuyDate     string
	Quantity    int64
	UnitCost    decimal.Decimal
	MarketValue decimal.Decimal
}

// PortfolioSnapshot 账户组合快照
type PortfolioSnapshot struct {
	Cash              decimal.Decimal
	PositionValue     decimal.Decimal
	Positions         []PositionView
	PendingOrderCount int
}

// Session 单账户模拟交易会话。
// 持有现金、账本、订单、成交与平仓记录，生命周期由调用方拥有；
// 内部没有锁，并发访问必须由调用方串行化。
type Session struct {
	fees     FeeSchedule
	cash     decimal.Decimal
	ledger   *PositionLedger
	orders   []*Order
	byID     map[string]*Order
	fills    []*Fill
	closed   []*ClosedTrade
	orderSeq int64
}

// NewSession 按费用参数创建会话，现金初始化为 InitialCapital
func NewSession(fees FeeSchedule) *Session {
	s := &Session{fees: fees}
	s.Reset()
	return s
}

// Fees 会话费用参数
func (s *Session) Fees() FeeSchedule { return s.fees }

// Cash 当前现金
func (s *Session) Cash() decimal.Decimal { return s.cash }

// Orders 全部订单（含被拒与已取消）
func (s *Session) Orders() []*Order { return s.orders }

// Fills 全部成交记录
func (s *Session) Fills() []*Fill { return s.fills }

// ClosedTrades 全部平仓记录
func (s *Session) ClosedTrades() []*ClosedTrade { return s.closed }

// Ledger 持仓账本
func (s *Session) Ledger() *PositionLedger { return s.ledger }

// SubmitOrder 订单准入。校验顺序：手数 → 持仓（卖出）→ 资金（买入），
// 首个失败规则决定拒绝原因；通过后生成 PENDING 订单并预计算执行价与现金影响。
// 被拒订单同样入册，返回的订单记录永远可查。
func (s *Session) SubmitOrder(req OrderRequest) *Order {
	order := &Order{
		OrderID:          req.OrderID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Quantity:         req.Quantity,
		SignalDate:       req.SignalDate,
		SubmitDate:       req.SubmitDate,
		ExpectedFillDate: NextDay(req.SubmitDate),
		Status:           OrderStatusPending,
	}
	if order.OrderID == "" {
		s.orderSeq++
		order.OrderID = fmt.Sprintf("SIM%06d", s.orderSeq)
	}
	s.orders = append(s.orders, order)
	s.byID[order.OrderID] = order

	if req.Quantity <= 0 || req.Quantity%LotSize != 0 {
		order.reject(RejectInvalidLotSize)
		return order
	}

	if req.Side == OrderSideSell {
		if s.ledger.OpenQuantity(req.Symbol) < req.Quantity {
			order.reject(RejectInsufficientPosition)
			return order
		}
	}

	estimate := s.fees.EstimateFill(req.Side, req.RefPrice, req.Quantity)
	if req.Side == OrderSideBuy {
		required := estimate.Gross.Add(estimate.TotalFee)
		if s.cash.LessThan(required) {
			order.reject(RejectInsufficientCash)
			return order
		}
	}

	order.EstimatedPrice = estimate.Price
	order.CashImpact = estimate.Net
	return order
}

// SettleAll 推进全部 PENDING 订单：按实际成交价重算费用并在成交时点
// 重新校验资金/持仓。成功则记录成交、更新账本与现金；失败置为 REJECTED，
// 资金与账本不动。已终态订单直接跳过，重复调用幂等。
// priceFn 为 nil 或查不到价格时，以准入时的预估执行价作为成交价；
// priceFn 显式返回不可得的订单保持 PENDING。
func (s *Session) SettleAll(priceFn PriceFunc) SettleReport {
	report := SettleReport{}
	for _, order := range s.orders {
		if order.IsTerminal() {
			continue
		}

		fillPrice := order.EstimatedPrice
		if priceFn != nil {
			ref, ok := priceFn(order.Symbol)
			if !ok {
				report.PendingRemaining++
				continue
			}
			fillPrice = s.fees.ExecutionPrice(order.Side, ref)
		}

		fill := s.fees.FillAt(order.Side, fillPrice, order.Quantity)
		switch order.Side {
		case OrderSideBuy:
			required := fill.Gross.Add(fill.TotalFee)
			if s.cash.LessThan(required) {
				order.reject(RejectInsufficientCash)
				report.Settled++
				report.RejectedOrders = append(report.RejectedOrders, order.OrderID)
				continue
			}
			s.ledger.AddLot(order.Symbol, order.ExpectedFillDate, fillPrice, order.Quantity, required)
			s.cash = s.cash.Sub(required)
		case OrderSideSell:
			if s.ledger.OpenQuantity(order.Symbol) < order.Quantity {
				order.reject(RejectInsufficientPosition)
				report.Settled++
				report.RejectedOrders = append(report.RejectedOrders, order.OrderID)
				continue
			}
			takes, err := s.ledger.Consume(order.Symbol, order.Quantity)
			if err != nil {
				order.reject(RejectInsufficientPosition)
				report.Settled++
				report.RejectedOrders = append(report.RejectedOrders, order.OrderID)
				continue
			}
			netPerShare := fill.Net.Div(decimal.NewFromInt(order.Quantity))
			for _, take := range takes {
				taken := decimal.NewFromInt(take.Taken)
				cost := take.Lot.UnitCost.Mul(taken)
				pnl := netPerShare.Mul(taken).Sub(cost)
				ratio := decimal.Zero
				if cost.IsPositive() {
					ratio = pnl.Div(cost)
				}
				s.closed = append(s.closed, &ClosedTrade{
					Symbol:      order.Symbol,
					BuyDate:     take.Lot.BuyDate,
					BuyPrice:    take.Lot.BuyPrice,
					SellDate:    order.ExpectedFillDate,
					SellPrice:   fillPrice,
					Quantity:    take.Taken,
					HoldingDays: DaysBetween(take.Lot.BuyDate, order.ExpectedFillDate),
					PnlAmount:   pnl,
					PnlRatio:    ratio,
				})
			}
			s.cash = s.cash.Add(fill.Net)
		}

		order.Status = OrderStatusFilled
		order.FilledDate = order.ExpectedFillDate
		order.CashImpact = fill.Net
		s.fills = append(s.fills, &Fill{
			OrderID:       order.OrderID,
			Symbol:        order.Symbol,
			Side:          order.Side,
			Quantity:      order.Quantity,
			FillDate:      order.FilledDate,
			FillPrice:     fillPrice,
			GrossAmount:   fill.Gross,
			NetAmount:     fill.Net,
			FeeCommission: fill.Commission,
			FeeStampTax:   fill.StampTax,
			FeeTransfer:   fill.TransferFee,
		})
		report.Settled++
		report.Filled++
		report.FilledOrders = append(report.FilledOrders, order.OrderID)
	}
	return report
}

// Cancel 取消订单。仅 PENDING 订单转为 CANCELLED，终态订单原样返回。
func (s *Session) Cancel(orderID string) (*Order, error) {
	order, ok := s.byID[orderID]
	if !ok {
		return nil, errors.New("order not found: " + orderID)
	}
	if !order.CanBeCancelled() {
		return order, nil
	}
	order.Status = OrderStatusCancelled
	order.StatusReason = string(ReasonUserCancelled)
	order.CashImpact = decimal.Zero
	return order, nil
}

// Reset 整体清空：账本、订单、成交、平仓记录，现金恢复为初始资金
func (s *Session) Reset() {
	s.cash = s.fees.InitialCapital
	s.ledger = NewPositionLedger()
	s.orders = nil
	s.byID = make(map[string]*Order)
	s.fills = nil
	s.closed = nil
}

// Snapshot 组合快照。priceFn 查不到价格的批次按单位成本估值。
func (s *Session) Snapshot(priceFn PriceFunc) PortfolioSnapshot {
	snapshot := PortfolioSnapshot{Cash: s.cash, PositionValue: decimal.Zero}
	for _, lot := range s.ledger.OpenLots() {
		price := lot.UnitCost
		if priceFn != nil {
			if p, ok := priceFn(lot.Symbol); ok {
				price = p
			}
		}
		value := price.Mul(decimal.NewFromInt(lot.Remaining))
		snapshot.PositionValue = snapshot.PositionValue.Add(value)
		snapshot.Positions = append(snapshot.Positions, PositionView{
			Symbol:      lot.Symbol,
			BuyDate:     lot.BuyDate,
			Quantity:    lot.Remaining,
			UnitCost:    lot.UnitCost,
			MarketValue: value,
		})
	}
	for _, order := range s.orders {
		if order.Status == OrderStatusPending {
			snapshot.PendingOrderCount++
		}
	}
	return snapshot
}
