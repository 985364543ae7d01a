package application

import (
	"math"

	"github.com/shopspring/decimal"

	btdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	"github.com/wyfcoding/stocksim/internal/trading/domain"
)

// 金额统一四位小数、比率六位小数输出，日期为 YYYY-MM-DD 字符串。

// OrderDTO 订单视图
type OrderDTO struct {
	OrderID          string `json:"order_id"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Quantity         int64  `json:"quantity"`
	SignalDate       string `json:"signal_date"`
	SubmitDate       string `json:"submit_date"`
	ExpectedFillDate string `json:"expected_fill_date"`
	FilledDate       string `json:"filled_date,omitempty"`
	EstimatedPrice   string `json:"estimated_price"`
	CashImpact       string `json:"cash_impact"`
	Status           string `json:"status"`
	RejectReason     string `json:"reject_reason,omitempty"`
}

// FillDTO 成交视图
type FillDTO struct {
	OrderID       string `json:"order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      int64  `json:"quantity"`
	FillDate      string `json:"fill_date"`
	FillPrice     string `json:"fill_price"`
	GrossAmount   string `json:"gross_amount"`
	NetAmount     string `json:"net_amount"`
	FeeCommission string `json:"fee_commission"`
	FeeStampTax   string `json:"fee_stamp_tax"`
	FeeTransfer   string `json:"fee_transfer"`
}

// ClosedTradeDTO 平仓视图
type ClosedTradeDTO struct {
	Symbol      string `json:"symbol"`
	BuyDate     string `json:"buy_date"`
	BuyPrice    string `json:"buy_price"`
	SellDate    string `json:"sell_date"`
	SellPrice   string `json:"sell_price"`
	Quantity    int64  `json:"quantity"`
	HoldingDays int    `json:"holding_days"`
	PnlAmount   string `json:"pnl_amount"`
	PnlRatio    string `json:"pnl_ratio"`
}

// PositionDTO 持仓批次视图
type PositionDTO struct {
	Symbol      string `json:"symbol"`
	BuyDate     string `json:"buy_date"`
	Quantity    int64  `json:"quantity"`
	UnitCost    string `json:"unit_cost"`
	MarketValue string `json:"market_value"`
}

// PortfolioDTO 组合快照视图
type PortfolioDTO struct {
	Cash              string        `json:"cash"`
	PositionValue     string        `json:"position_value"`
	TotalEquity       string        `json:"total_equity"`
	Positions         []PositionDTO `json:"positions"`
	PendingOrderCount int           `json:"pending_order_count"`
}

// SettleResultDTO 结算统计视图
type SettleResultDTO struct {
	Settled          int      `json:"settled"`
	Filled           int      `json:"filled"`
	PendingRemaining int      `json:"pending_remaining"`
	FilledOrders     []string `json:"filled_orders"`
	RejectedOrders   []string `json:"rejected_orders"`
}

// EquityPointDTO 复盘权益曲线点
type EquityPointDTO struct {
	Date        string  `json:"date"`
	Equity      float64 `json:"equity"`
	RealizedPnl float64 `json:"realized_pnl"`
}

// DrawdownPointDTO 复盘回撤曲线点
type DrawdownPointDTO struct {
	Date     string  `json:"date"`
	Drawdown float64 `json:"drawdown"`
}

// ReviewDTO 平仓交易复盘：统计、按所选日期轴的权益/回撤曲线与交易明细
type ReviewDTO struct {
	Axis           string             `json:"axis"`
	TradeCount     int                `json:"trade_count"`
	WinCount       int                `json:"win_count"`
	LossCount      int                `json:"loss_count"`
	WinRate        string             `json:"win_rate"`
	TotalPnl       string             `json:"total_pnl"`
	AvgPnlRatio    string             `json:"avg_pnl_ratio"`
	ProfitFactor   string             `json:"profit_factor"`
	AvgHoldingDays string             `json:"avg_holding_days"`
	EquityCurve    []EquityPointDTO   `json:"equity_curve"`
	DrawdownCurve  []DrawdownPointDTO `json:"drawdown_curve"`
	Trades         []*ClosedTradeDTO  `json:"trades"`
}

func toOrderDTO(order *domain.Order) *OrderDTO {
	return &OrderDTO{
		OrderID:          order.OrderID,
		Symbol:           order.Symbol,
		Side:             string(order.Side),
		Quantity:         order.Quantity,
		SignalDate:       order.SignalDate,
		SubmitDate:       order.SubmitDate,
		ExpectedFillDate: order.ExpectedFillDate,
		FilledDate:       order.FilledDate,
		EstimatedPrice:   order.EstimatedPrice.StringFixed(4),
		CashImpact:       order.CashImpact.StringFixed(4),
		Status:           string(order.Status),
		RejectReason:     string(order.RejectReason),
	}
}

func toFillDTO(fill *domain.Fill) *FillDTO {
	return &FillDTO{
		OrderID:       fill.OrderID,
		Symbol:        fill.Symbol,
		Side:          string(fill.Side),
		Quantity:      fill.Quantity,
		FillDate:      fill.FillDate,
		FillPrice:     fill.FillPrice.StringFixed(4),
		GrossAmount:   fill.GrossAmount.StringFixed(4),
		NetAmount:     fill.NetAmount.StringFixed(4),
		FeeCommission: fill.FeeCommission.StringFixed(4),
		FeeStampTax:   fill.FeeStampTax.StringFixed(4),
		FeeTransfer:   fill.FeeTransfer.StringFixed(4),
	}
}

func toClosedTradeDTO(trade *domain.ClosedTrade) *ClosedTradeDTO {
	return &ClosedTradeDTO{
		Symbol:      trade.Symbol,
		BuyDate:     trade.BuyDate,
		BuyPrice:    trade.BuyPrice.StringFixed(4),
		SellDate:    trade.SellDate,
		SellPrice:   trade.SellPrice.StringFixed(4),
		Quantity:    trade.Quantity,
		HoldingDays: trade.HoldingDays,
		PnlAmount:   trade.PnlAmount.StringFixed(4),
		PnlRatio:    trade.PnlRatio.StringFixed(6),
	}
}

func toPortfolioDTO(snapshot domain.PortfolioSnapshot) *PortfolioDTO {
	dto := &PortfolioDTO{
		Cash:              snapshot.Cash.StringFixed(4),
		PositionValue:     snapshot.PositionValue.StringFixed(4),
		TotalEquity:       snapshot.Cash.Add(snapshot.PositionValue).StringFixed(4),
		Positions:         make([]PositionDTO, 0, len(snapshot.Positions)),
		PendingOrderCount: snapshot.PendingOrderCount,
	}
	for _, position := range snapshot.Positions {
		dto.Positions = append(dto.Positions, PositionDTO{
			Symbol:      position.Symbol,
			BuyDate:     position.BuyDate,
			Quantity:    position.Quantity,
			UnitCost:    position.UnitCost.StringFixed(4),
			MarketValue: position.MarketValue.StringFixed(4),
		})
	}
	return dto
}

func toEquityCurveDTO(curve []btdomain.EquityPoint) []EquityPointDTO {
	dtos := make([]EquityPointDTO, 0, len(curve))
	for _, point := range curve {
		dtos = append(dtos, EquityPointDTO{
			Date:        point.Date,
			Equity:      round4(point.Equity),
			RealizedPnl: round4(point.RealizedPnl),
		})
	}
	return dtos
}

func toDrawdownCurveDTO(curve []btdomain.DrawdownPoint) []DrawdownPointDTO {
	dtos := make([]DrawdownPointDTO, 0, len(curve))
	for _, point := range curve {
		dtos = append(dtos, DrawdownPointDTO{Date: point.Date, Drawdown: round6(point.Drawdown)})
	}
	return dtos
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

func priceFuncFrom(prices map[string]float64) domain.PriceFunc {
	if len(prices) == 0 {
		return nil
	}
	return func(symbol string) (decimal.Decimal, bool) {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(price), true
	}
}
