package domain

import "github.com/shopspring/decimal"

// OrderSide 买卖方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus 订单状态，离开 PENDING 后为终态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// RejectReason 准入/结算拒绝原因码
type RejectReason string

const (
	RejectInvalidLotSize       RejectReason = "INVALID_LOT_SIZE"
	RejectInsufficientCash     RejectReason = "INSUFFICIENT_CASH"
	RejectInsufficientPosition RejectReason = "INSUFFICIENT_POSITION"
	ReasonUserCancelled        RejectReason = "USER_CANCELLED"
)

// Order 模拟订单实体。被拒订单保留为可查询记录，不会被丢弃。
type Order struct {
	OrderID          string
	Symbol           string
	Side             OrderSide
	Quantity         int64
	SignalDate       string // YYYY-MM-DD
	SubmitDate       string
	ExpectedFillDate string
	FilledDate       string
	EstimatedPrice   decimal.Decimal
	CashImpact       decimal.Decimal // 买入为负，卖出为扣费后净流入
	Status           OrderStatus
	RejectReason     RejectReason
	StatusReason     string
}

// IsTerminal 是否已进入终态
func (o *Order) IsTerminal() bool {
	return o.Status != OrderStatusPending
}

// CanBeCancelled 仅 PENDING 订单可取消
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending
}

func (o *Order) reject(reason RejectReason) {
	o.Status = OrderStatusRejected
	o.RejectReason = reason
	o.StatusReason = string(reason)
	o.CashImpact = decimal.Zero
}

// Fill 成交记录。NetAmount 买入为负、卖出为扣费后正值。
type Fill struct {
	OrderID       string
	Symbol        string
	Side          OrderSide
	Quantity      int64
	FillDate      string
	FillPrice     decimal.Decimal
	GrossAmount   decimal.Decimal
	NetAmount     decimal.Decimal
	FeeCommission decimal.Decimal
	FeeStampTax   decimal.Decimal
	FeeTransfer   decimal.Decimal
}

// ClosedTrade 卖出消耗批次产生的平仓记录，一个 (卖单 × 批次) 一条
type ClosedTrade struct {
	Symbol      string
	BuyDate     string
	BuyPrice    decimal.Decimal
	SellDate    string
	SellPrice   decimal.Decimal
	Quantity    int64
	HoldingDays int
	PnlAmount   decimal.Decimal
	PnlRatio    decimal.Decimal
}
