package backtest

import (
	"errors"

	"smabacktest/indicators"
)

// ComputeSMA 计算收盘价的简单移动平均（最少一个周期）
func ComputeSMA(prices *PriceSeries, window int) (MovingAverage, error) {
	if prices.Len() == 0 {
		return nil, missingColumn("close", "price series is empty")
	}
	values, err := indicators.SMA(prices.Closes, window)
	if err != nil {
		if errors.Is(err, indicators.ErrInvalidPeriod) {
			return nil, invalidParam("window", window, "window must be between 1 and the series length")
		}
		return nil, err
	}
	return MovingAverage(values), nil
}

// GenerateSignals 由快慢均线生成交叉信号
// 只在穿越当日给出 +1/-1，其余日期为 0
func GenerateSignals(fast, slow MovingAverage) (Signal, error) {
	if len(fast) == 0 {
		return nil, missingColumn("sma_fast", "fast moving average is empty")
	}
	if len(slow) == 0 {
		return nil, missingColumn("sma_slow", "slow moving average is empty")
	}
	if len(fast) != len(slow) {
		return nil, missingColumn("sma_slow", "fast and slow moving averages differ in length")
	}

	signal := make(Signal, len(fast))
	prev := stance(fast[0], slow[0])
	for t := 1; t < len(fast); t++ {
		cur := stance(fast[t], slow[t])
		signal[t] = sign(cur - prev)
		prev = cur
	}
	return signal, nil
}

// stance 当日多空判断
func stance(fast, slow float64) int {
	switch {
	case fast > slow:
		return 1
	case fast < slow:
		return -1
	default:
		return 0
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
