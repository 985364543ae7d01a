package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testFees() FeeSchedule {
	return FeeSchedule{
		InitialCapital:  decimal.RequireFromString("1000000"),
		CommissionRate:  decimal.RequireFromString("0.0003"),
		MinCommission:   decimal.RequireFromString("5"),
		StampTaxRate:    decimal.RequireFromString("0.001"),
		TransferFeeRate: decimal.RequireFromString("0.00001"),
		SlippageRate:    decimal.Zero,
	}
}

func TestPositionLedgerFIFO(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.AddLot("600519", "2025-01-02", decimal.RequireFromString("100"), 200, decimal.RequireFromString("20010"))
	ledger.AddLot("600519", "2025-01-06", decimal.RequireFromString("110"), 300, decimal.RequireFromString("33015"))

	if got := ledger.OpenQuantity("600519"); got != 500 {
		t.Fatalf("open quantity = %d, want 500", got)
	}

	takes, err := ledger.Consume("600519", 300)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(takes) != 2 {
		t.Fatalf("takes = %d, want 2", len(takes))
	}
	// 最早批次先被耗尽
	if takes[0].Lot.BuyDate != "2025-01-02" || takes[0].Taken != 200 {
		t.Errorf("first take = %s/%d, want 2025-01-02/200", takes[0].Lot.BuyDate, takes[0].Taken)
	}
	if takes[1].Lot.BuyDate != "2025-01-06" || takes[1].Taken != 100 {
		t.Errorf("second take = %s/%d, want 2025-01-06/100", takes[1].Lot.BuyDate, takes[1].Taken)
	}
	// 总买入 - 总卖出 = 剩余
	if got := ledger.OpenQuantity("600519"); got != 200 {
		t.Errorf("open quantity after consume = %d, want 200", got)
	}
	// 单位成本在部分消耗后不变
	if !takes[1].Lot.UnitCost.Equal(decimal.RequireFromString("110.05")) {
		t.Errorf("unit cost changed: %s", takes[1].Lot.UnitCost)
	}
}

func TestPositionLedgerConsumeInsufficient(t *testing.T) {
	ledger := NewPositionLedger()
	ledger.AddLot("600519", "2025-01-02", decimal.RequireFromString("100"), 100, decimal.RequireFromString("10005"))
	if _, err := ledger.Consume("600519", 200); err == nil {
		t.Fatal("expected error for insufficient quantity")
	}
	// 失败时不得消耗任何批次
	if got := ledger.OpenQuantity("600519"); got != 100 {
		t.Errorf("open quantity = %d, want 100", got)
	}
}

func TestFillAtWorkedExample(t *testing.T) {
	fees := testFees()

	buy := fees.FillAt(OrderSideBuy, decimal.RequireFromString("86.35"), 1000)
	if !buy.Gross.Equal(decimal.RequireFromString("86350")) {
		t.Errorf("buy gross = %s, want 86350", buy.Gross)
	}
	if !buy.Commission.Equal(decimal.RequireFromString("25.905")) {
		t.Errorf("buy commission = %s, want 25.905", buy.Commission)
	}
	if !buy.TransferFee.Equal(decimal.RequireFromString("0.8635")) {
		t.Errorf("buy transfer fee = %s, want 0.8635", buy.TransferFee)
	}
	if !buy.StampTax.IsZero() {
		t.Errorf("buy stamp tax = %s, want 0", buy.StampTax)
	}
	if !buy.Net.Equal(decimal.RequireFromString("-86376.7685")) {
		t.Errorf("buy net = %s, want -86376.7685", buy.Net)
	}

	sell := fees.FillAt(OrderSideSell, decimal.RequireFromString("90"), 1000)
	if !sell.StampTax.Equal(decimal.RequireFromString("90")) {
		t.Errorf("sell stamp tax = %s, want 90", sell.StampTax)
	}
	if !sell.Commission.Equal(decimal.RequireFromString("27")) {
		t.Errorf("sell commission = %s, want 27", sell.Commission)
	}
	if !sell.Net.Equal(decimal.RequireFromString("89882.1")) {
		t.Errorf("sell net = %s, want 89882.1", sell.Net)
	}
}

func TestFillAtMinCommission(t *testing.T) {
	fees := testFees()
	// 小额成交触发最低佣金
	fill := fees.FillAt(OrderSideBuy, decimal.RequireFromString("10"), 100)
	if !fill.Commission.Equal(decimal.RequireFromString("5")) {
		t.Errorf("commission = %s, want min commission 5", fill.Commission)
	}
}

func TestSubmitOrderValidationOrder(t *testing.T) {
	tests := []struct {
		name   string
		req    OrderRequest
		reason RejectReason
	}{
		{
			name:   "零数量",
			req:    OrderRequest{Symbol: "600519", Side: OrderSideBuy, Quantity: 0, RefPrice: decimal.RequireFromString("10")},
			reason: RejectInvalidLotSize,
		},
		{
			name:   "非整手",
			req:    OrderRequest{Symbol: "600519", Side: OrderSideBuy, Quantity: 150, RefPrice: decimal.RequireFromString("10")},
			reason: RejectInvalidLotSize,
		},
		{
			name: "非整手卖出优先报手数错误",
			req:  OrderRequest{Symbol: "600519", Side: OrderSideSell, Quantity: 150, RefPrice: decimal.RequireFromString("10")},
			// 手数校验在持仓校验之前
			reason: RejectInvalidLotSize,
		},
		{
			name:   "无持仓卖出",
			req:    OrderRequest{Symbol: "600519", Side: OrderSideSell, Quantity: 100, RefPrice: decimal.RequireFromString("10")},
			reason: RejectInsufficientPosition,
		},
		{
			name:   "资金不足买入",
			req:    OrderRequest{Symbol: "600519", Side: OrderSideBuy, Quantity: 1000000, RefPrice: decimal.RequireFromString("100")},
			reason: RejectInsufficientCash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(testFees())
			order := session.SubmitOrder(tt.req)
			if order.Status != OrderStatusRejected {
				t.Fatalf("status = %s, want REJECTED", order.Status)
			}
			if order.RejectReason != tt.reason {
				t.Errorf("reject reason = %s, want %s", order.RejectReason, tt.reason)
			}
			if order.StatusReason != string(tt.reason) {
				t.Errorf("status reason = %s, want %s", order.StatusReason, tt.reason)
			}
			if !order.CashImpact.IsZero() {
				t.Errorf("cash impact = %s, want 0", order.CashImpact)
			}
		})
	}
}

func TestSettleBuyThenSellPnl(t *testing.T) {
	session := NewSession(testFees())

	buy := session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 1000,
		RefPrice: decimal.RequireFromString("86.35"), SubmitDate: "2025-03-03",
	})
	if buy.Status != OrderStatusPending {
		t.Fatalf("buy status = %s, want PENDING", buy.Status)
	}
	report := session.SettleAll(nil)
	if report.Filled != 1 {
		t.Fatalf("filled = %d, want 1", report.Filled)
	}
	wantCash := decimal.RequireFromString("1000000").Sub(decimal.RequireFromString("86376.7685"))
	if !session.Cash().Equal(wantCash) {
		t.Errorf("cash after buy = %s, want %s", session.Cash(), wantCash)
	}

	sell := session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideSell, Quantity: 1000,
		RefPrice: decimal.RequireFromString("90"), SubmitDate: "2025-03-10",
	})
	if sell.Status != OrderStatusPending {
		t.Fatalf("sell status = %s, want PENDING", sell.Status)
	}
	session.SettleAll(nil)

	closed := session.ClosedTrades()
	if len(closed) != 1 {
		t.Fatalf("closed trades = %d, want 1", len(closed))
	}
	wantPnl := decimal.RequireFromString("89882.1").Sub(decimal.RequireFromString("86376.7685"))
	if !closed[0].PnlAmount.Equal(wantPnl) {
		t.Errorf("pnl = %s, want %s", closed[0].PnlAmount, wantPnl)
	}
	if closed[0].HoldingDays != 7 {
		t.Errorf("holding days = %d, want 7", closed[0].HoldingDays)
	}
	if got := session.Ledger().OpenQuantity("600519"); got != 0 {
		t.Errorf("open quantity = %d, want 0", got)
	}
}

func TestSettleAllIdempotent(t *testing.T) {
	session := NewSession(testFees())
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 100,
		RefPrice: decimal.RequireFromString("10"), SubmitDate: "2025-03-03",
	})

	first := session.SettleAll(nil)
	if first.Filled != 1 {
		t.Fatalf("first filled = %d, want 1", first.Filled)
	}
	second := session.SettleAll(nil)
	if second.Filled != 0 || second.Settled != 0 {
		t.Errorf("second settle = %+v, want zero activity", second)
	}
}

func TestSettleRevalidatesCash(t *testing.T) {
	fees := testFees()
	fees.InitialCapital = decimal.RequireFromString("100000")
	session := NewSession(fees)

	// 两笔买单均通过准入（准入只对当前现金做预检），
	// 结算时第二笔因现金不足被拒，现金不允许为负。
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 900,
		RefPrice: decimal.RequireFromString("100"), SubmitDate: "2025-03-03",
	})
	session.SubmitOrder(OrderRequest{
		Symbol: "000001", Side: OrderSideBuy, Quantity: 900,
		RefPrice: decimal.RequireFromString("100"), SubmitDate: "2025-03-03",
	})

	report := session.SettleAll(nil)
	if report.Filled != 1 {
		t.Fatalf("filled = %d, want 1", report.Filled)
	}
	if len(report.RejectedOrders) != 1 {
		t.Fatalf("rejected = %d, want 1", len(report.RejectedOrders))
	}
	if session.Cash().IsNegative() {
		t.Errorf("cash went negative: %s", session.Cash())
	}
	orders := session.Orders()
	if orders[1].RejectReason != RejectInsufficientCash {
		t.Errorf("second order reason = %s, want INSUFFICIENT_CASH", orders[1].RejectReason)
	}
}

func TestSettlePendingWhenPriceUnavailable(t *testing.T) {
	session := NewSession(testFees())
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 100,
		RefPrice: decimal.RequireFromString("10"), SubmitDate: "2025-03-03",
	})

	report := session.SettleAll(func(string) (decimal.Decimal, bool) {
		return decimal.Zero, false
	})
	if report.PendingRemaining != 1 || report.Filled != 0 {
		t.Errorf("report = %+v, want one pending remaining", report)
	}
}

func TestCancel(t *testing.T) {
	session := NewSession(testFees())
	order := session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 100,
		RefPrice: decimal.RequireFromString("10"), SubmitDate: "2025-03-03",
	})

	cancelled, err := session.Cancel(order.OrderID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.StatusReason != string(ReasonUserCancelled) {
		t.Errorf("status reason = %s, want USER_CANCELLED", cancelled.StatusReason)
	}

	// 终态订单取消为无操作
	again, err := session.Cancel(order.OrderID)
	if err != nil {
		t.Fatalf("cancel terminal: %v", err)
	}
	if again.Status != OrderStatusCancelled {
		t.Errorf("terminal cancel changed status to %s", again.Status)
	}

	if _, err := session.Cancel("missing"); err == nil {
		t.Error("expected error for unknown order id")
	}
}

func TestReset(t *testing.T) {
	session := NewSession(testFees())
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 100,
		RefPrice: decimal.RequireFromString("10"), SubmitDate: "2025-03-03",
	})
	session.SettleAll(nil)

	session.Reset()
	if !session.Cash().Equal(decimal.RequireFromString("1000000")) {
		t.Errorf("cash = %s, want initial capital", session.Cash())
	}
	if len(session.Orders()) != 0 || len(session.Fills()) != 0 || len(session.ClosedTrades()) != 0 {
		t.Error("reset did not clear session records")
	}
	if got := session.Ledger().OpenQuantity("600519"); got != 0 {
		t.Errorf("open quantity = %d, want 0", got)
	}
}

func TestSnapshot(t *testing.T) {
	session := NewSession(testFees())
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideBuy, Quantity: 200,
		RefPrice: decimal.RequireFromString("50"), SubmitDate: "2025-03-03",
	})
	session.SettleAll(nil)
	session.SubmitOrder(OrderRequest{
		Symbol: "600519", Side: OrderSideSell, Quantity: 100,
		RefPrice: decimal.RequireFromString("55"), SubmitDate: "2025-03-05",
	})

	snapshot := session.Snapshot(func(string) (decimal.Decimal, bool) {
		return decimal.RequireFromString("55"), true
	})
	if snapshot.PendingOrderCount != 1 {
		t.Errorf("pending orders = %d, want 1", snapshot.PendingOrderCount)
	}
	if len(snapshot.Positions) != 1 || snapshot.Positions[0].Quantity != 200 {
		t.Fatalf("positions = %+v, want one lot of 200", snapshot.Positions)
	}
	if !snapshot.PositionValue.Equal(decimal.RequireFromString("11000")) {
		t.Errorf("position value = %s, want 11000", snapshot.PositionValue)
	}
}
