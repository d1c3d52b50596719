package backtest

import "math"

// HeldPosition 由信号推出每日实际持仓
// 持仓取截至前一交易日的最后一个非零信号，首个信号出现前为 0（当日信号次日执行，避免未来函数）
func HeldPosition(signal Signal) Position {
	held := make(Position, len(signal))
	last := 0
	for t := range signal {
		held[t] = last
		if signal[t] != 0 {
			last = signal[t]
		}
	}
	return held
}

// Simulate 按信号模拟一个单位多/空/空仓的组合
// 每次持仓变化按成交名义金额收取比例手续费
func Simulate(prices *PriceSeries, signal Signal, initialCash, transactionCost float64) (*Ledger, error) {
	if prices.Len() == 0 {
		return nil, missingColumn("close", "price series is empty")
	}
	if len(signal) == 0 {
		return nil, missingColumn("signal", "signal series is empty")
	}
	if len(signal) != prices.Len() {
		return nil, missingColumn("signal", "signal and close differ in length")
	}
	if len(prices.Dates) != prices.Len() {
		return nil, missingColumn("date", "dates and closes differ in length")
	}
	if transactionCost < 0 || math.IsNaN(transactionCost) {
		return nil, invalidParam("transaction_cost", transactionCost, "must be >= 0")
	}
	if !(initialCash > 0) {
		return nil, invalidParam("initial_cash", initialCash, "must be > 0")
	}

	held := HeldPosition(signal)
	rows := make([]LedgerRow, len(held))

	// 现金 = 初始资金 - 累计成交额 - 累计手续费
	notionalSum := 0.0
	costSum := 0.0
	prev := 0
	for t, pos := range held {
		price := prices.Closes[t]
		trade := pos - prev
		cost := math.Abs(float64(trade)) * price * transactionCost

		notionalSum += float64(trade) * price
		costSum += cost
		cash := initialCash - notionalSum - costSum

		rows[t] = LedgerRow{
			Date:           prices.Dates[t],
			Close:          price,
			Position:       pos,
			Trade:          trade,
			Cost:           cost,
			Cash:           cash,
			PortfolioValue: cash + float64(pos)*price,
		}
		prev = pos
	}

	return &Ledger{Rows: rows}, nil
}
