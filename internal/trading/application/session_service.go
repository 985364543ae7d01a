// Package application 模拟交易应用层
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	"github.com/wyfcoding/stocksim/internal/trading/domain"
)

const (
	topicOrderSubmitted = "trading.order_submitted"
	topicOrderFilled    = "trading.order_filled"
	topicOrderRejected  = "trading.order_rejected"
)

// SubmitOrderCommand 订单提交命令
type SubmitOrderCommand struct {
	Symbol     string
	Side       string
	Quantity   int64
	RefPrice   float64
	SignalDate string
	SubmitDate string
}

// SessionService 模拟交易会话应用服务。
// 会话本身不加锁，服务用互斥量把所有命令与查询串行化。
type SessionService struct {
	mu             sync.Mutex
	session        *domain.Session
	eventPublisher messagequeue.EventPublisher
	logger         *slog.Logger
}

// NewSessionService 创建会话服务
func NewSessionService(fees domain.FeeSchedule, eventPublisher messagequeue.EventPublisher, logger *slog.Logger) *SessionService {
	return &SessionService{
		session:        domain.NewSession(fees),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// SubmitOrder 提交订单。准入失败的订单以 REJECTED 状态返回而非错误。
func (s *SessionService) SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (*OrderDTO, error) {
	side := domain.OrderSide(cmd.Side)
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, fmt.Errorf("invalid order side: %s", cmd.Side)
	}
	if cmd.RefPrice <= 0 {
		return nil, fmt.Errorf("invalid reference price: %v", cmd.RefPrice)
	}
	if cmd.SubmitDate == "" {
		return nil, fmt.Errorf("submit date is required")
	}
	signalDate := cmd.SignalDate
	if signalDate == "" {
		signalDate = cmd.SubmitDate
	}

	s.mu.Lock()
	order := s.session.SubmitOrder(domain.OrderRequest{
		OrderID:    fmt.Sprintf("ORD-%d", idgen.GenID()),
		Symbol:     cmd.Symbol,
		Side:       side,
		Quantity:   cmd.Quantity,
		RefPrice:   decimal.NewFromFloat(cmd.RefPrice),
		SignalDate: signalDate,
		SubmitDate: cmd.SubmitDate,
	})
	dto := toOrderDTO(order)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "order submitted",
		"order_id", dto.OrderID, "symbol", dto.Symbol, "side", dto.Side, "status", dto.Status)
	s.publish(ctx, topicOrderSubmitted, dto.OrderID, dto)
	if dto.Status == string(domain.OrderStatusRejected) {
		s.publish(ctx, topicOrderRejected, dto.OrderID, dto)
	}
	return dto, nil
}

// Settle 推进全部待成交订单。prices 为空时按准入时的预估执行价成交，
// 给出价格表时查不到价格的订单保持 PENDING。
func (s *SessionService) Settle(ctx context.Context, prices map[string]float64) *SettleResultDTO {
	s.mu.Lock()
	report := s.session.SettleAll(priceFuncFrom(prices))
	filled := make([]*OrderDTO, 0, len(report.FilledOrders))
	rejected := make([]*OrderDTO, 0, len(report.RejectedOrders))
	for _, order := range s.session.Orders() {
		switch {
		case contains(report.FilledOrders, order.OrderID):
			filled = append(filled, toOrderDTO(order))
		case contains(report.RejectedOrders, order.OrderID):
			rejected = append(rejected, toOrderDTO(order))
		}
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "settlement finished",
		"settled", report.Settled, "filled", report.Filled, "pending", report.PendingRemaining)
	for _, dto := range filled {
		s.publish(ctx, topicOrderFilled, dto.OrderID, dto)
	}
	for _, dto := range rejected {
		s.publish(ctx, topicOrderRejected, dto.OrderID, dto)
	}
	return &SettleResultDTO{
		Settled:          report.Settled,
		Filled:           report.Filled,
		PendingRemaining: report.PendingRemaining,
		FilledOrders:     report.FilledOrders,
		RejectedOrders:   report.RejectedOrders,
	}
}

// CancelOrder 取消订单，仅 PENDING 订单会转为 CANCELLED
func (s *SessionService) CancelOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	s.mu.Lock()
	order, err := s.session.Cancel(orderID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order cancel requested", "order_id", orderID, "status", order.Status)
	return toOrderDTO(order), nil
}

// ResetSession 清空会话并恢复初始资金
func (s *SessionService) ResetSession(ctx context.Context) {
	s.mu.Lock()
	s.session.Reset()
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "session reset")
}

// Portfolio 组合快照，prices 查不到的批次按单位成本估值
func (s *SessionService) Portfolio(ctx context.Context, prices map[string]float64) *PortfolioDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toPortfolioDTO(s.session.Snapshot(priceFuncFrom(prices)))
}

// ListOrders 全部订单记录，含被拒与已取消
func (s *SessionService) ListOrders(ctx context.Context) []*OrderDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.session.Orders()
	dtos := make([]*OrderDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, toOrderDTO(order))
	}
	return dtos
}

// ListFills 全部成交记录
func (s *SessionService) ListFills(ctx context.Context) []*FillDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	fills := s.session.Fills()
	dtos := make([]*FillDTO, 0, len(fills))
	for _, fill := range fills {
		dtos = append(dtos, toFillDTO(fill))
	}
	return dtos
}

// ListClosedTrades 全部平仓记录
func (s *SessionService) ListClosedTrades(ctx context.Context) []*ClosedTradeDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := s.session.ClosedTrades()
	dtos := make([]*ClosedTradeDTO, 0, len(trades))
	for _, trade := range trades {
		dtos = append(dtos, toClosedTradeDTO(trade))
	}
	return dtos
}

// Review 平仓交易复盘：统计加权益/回撤曲线与交易明细，
// axis 选择曲线的日期轴（entry_date / exit_date，默认 exit_date）。
func (s *SessionService) Review(ctx context.Context, axis string) (*ReviewDTO, error) {
	tradeAxis := btdomain.TradeAxis(axis)
	switch tradeAxis {
	case "":
		tradeAxis = btdomain.AxisExitDate
	case btdomain.AxisEntryDate, btdomain.AxisExitDate:
	default:
		return nil, fmt.Errorf("invalid trade axis: %s", axis)
	}

	s.mu.Lock()
	trades := s.session.ClosedTrades()
	initialCapital := s.session.Fees().InitialCapital.InexactFloat64()
	review := buildReview(trades, initialCapital, tradeAxis)
	s.mu.Unlock()
	return review, nil
}

func buildReview(trades []*domain.ClosedTrade, initialCapital float64, axis btdomain.TradeAxis) *ReviewDTO {
	review := &ReviewDTO{
		Axis:           string(axis),
		WinRate:        "0.000000",
		TotalPnl:       "0.0000",
		AvgPnlRatio:    "0.000000",
		ProfitFactor:   "0.0000",
		AvgHoldingDays: "0.00",
	}
	if len(trades) == 0 {
		return review
	}

	totalPnl := decimal.Zero
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	ratioSum := decimal.Zero
	holdingSum := 0
	for _, trade := range trades {
		totalPnl = totalPnl.Add(trade.PnlAmount)
		ratioSum = ratioSum.Add(trade.PnlRatio)
		holdingSum += trade.HoldingDays
		if trade.PnlAmount.IsPositive() {
			review.WinCount++
			grossProfit = grossProfit.Add(trade.PnlAmount)
		} else {
			review.LossCount++
			grossLoss = grossLoss.Add(trade.PnlAmount.Abs())
		}
	}

	count := decimal.NewFromInt(int64(len(trades)))
	review.TradeCount = len(trades)
	review.WinRate = decimal.NewFromInt(int64(review.WinCount)).Div(count).StringFixed(6)
	review.TotalPnl = totalPnl.StringFixed(4)
	review.AvgPnlRatio = ratioSum.Div(count).StringFixed(6)
	review.AvgHoldingDays = decimal.NewFromInt(int64(holdingSum)).Div(count).StringFixed(2)

	// 无亏损时盈亏比用哨兵值封顶
	profitFactor := decimal.NewFromInt(999)
	if grossLoss.IsPositive() {
		profitFactor = grossProfit.Div(grossLoss)
		if profitFactor.GreaterThan(decimal.NewFromInt(999)) {
			profitFactor = decimal.NewFromInt(999)
		}
	} else if grossProfit.IsZero() {
		profitFactor = decimal.Zero
	}
	review.ProfitFactor = profitFactor.StringFixed(4)

	// 曲线走回测侧的分析机制：平仓记录按所选日期轴回放
	replay := make([]btdomain.BacktestTrade, 0, len(trades))
	from, to := "", ""
	for _, trade := range trades {
		bt := btdomain.BacktestTrade{
			Symbol:      trade.Symbol,
			EntryDate:   trade.BuyDate,
			ExitDate:    trade.SellDate,
			Quantity:    trade.Quantity,
			HoldingDays: trade.HoldingDays,
			PnlAmount:   trade.PnlAmount.InexactFloat64(),
			PnlRatio:    trade.PnlRatio.InexactFloat64(),
		}
		replay = append(replay, bt)

		date := bt.ExitDate
		if axis == btdomain.AxisEntryDate {
			date = bt.EntryDate
		}
		if from == "" || date < from {
			from = date
		}
		if date > to {
			to = date
		}
	}
	equity := btdomain.EquityCurve(replay, axis, from, to, initialCapital)
	review.EquityCurve = toEquityCurveDTO(equity)
	review.DrawdownCurve = toDrawdownCurveDTO(btdomain.DrawdownCurve(equity))

	review.Trades = make([]*ClosedTradeDTO, 0, len(trades))
	for _, trade := range trades {
		review.Trades = append(review.Trades, toClosedTradeDTO(trade))
	}
	return review
}

func (s *SessionService) publish(ctx context.Context, topic, key string, payload any) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, topic, key, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", topic, "key", key, "error", err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
