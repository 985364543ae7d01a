package domain

import "github.com/shopspring/decimal"

// FeeSchedule 模拟账户的资金与费用参数
type FeeSchedule struct {
	InitialCapital  decimal.Decimal // 初始资金
	CommissionRate  decimal.Decimal // 佣金费率
	MinCommission   decimal.Decimal // 最低佣金
	StampTaxRate    decimal.Decimal // 印花税率（仅卖出）
	TransferFeeRate decimal.Decimal // 过户费率
	SlippageRate    decimal.Decimal // 滑点率
}

// DefaultFeeSchedule A 股常用默认参数
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		InitialCapital:  decimal.NewFromInt(1000000),
		CommissionRate:  decimal.NewFromFloat(0.0003),
		MinCommission:   decimal.NewFromInt(5),
		StampTaxRate:    decimal.NewFromFloat(0.001),
		TransferFeeRate: decimal.NewFromFloat(0.00001),
		SlippageRate:    decimal.NewFromFloat(0.001),
	}
}

// FillEstimate 一次成交的价格、金额与费用拆分。
// Net 买入为负（含费用流出），卖出为正（扣费后流入）。
type FillEstimate struct {
	Price       decimal.Decimal
	Gross       decimal.Decimal
	Commission  decimal.Decimal
	StampTax    decimal.Decimal
	TransferFee decimal.Decimal
	TotalFee    decimal.Decimal
	Net         decimal.Decimal
}

// ExecutionPrice 参考价加滑点后的执行价：买入上浮，卖出下压
func (f FeeSchedule) ExecutionPrice(side OrderSide, refPrice decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == OrderSideBuy {
		return refPrice.Mul(one.Add(f.SlippageRate))
	}
	return refPrice.Mul(one.Sub(f.SlippageRate))
}

// EstimateFill 按参考价加滑点估算执行价并计算费用
func (f FeeSchedule) EstimateFill(side OrderSide, refPrice decimal.Decimal, quantity int64) FillEstimate {
	return f.FillAt(side, f.ExecutionPrice(side, refPrice), quantity)
}

// FillAt 按给定成交价计算金额与费用（结算时以实际成交价重算）
func (f FeeSchedule) FillAt(side OrderSide, price decimal.Decimal, quantity int64) FillEstimate {
	gross := price.Mul(decimal.NewFromInt(quantity))

	commission := gross.Mul(f.CommissionRate)
	if commission.LessThan(f.MinCommission) {
		commission = f.MinCommission
	}
	stampTax := decimal.Zero
	if side == OrderSideSell {
		stampTax = gross.Mul(f.StampTaxRate)
	}
	transferFee := gross.Mul(f.TransferFeeRate)
	totalFee := commission.Add(stampTax).Add(transferFee)

	net := gross.Sub(totalFee)
	if side == OrderSideBuy {
		net = gross.Add(totalFee).Neg()
	}

	return FillEstimate{
		Price:       price,
		Gross:       gross,
		Commission:  commission,
		StampTax:    stampTax,
		TransferFee: transferFee,
		TotalFee:    totalFee,
		Net:         net,
	}
}
