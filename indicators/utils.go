// Package indicators 技术指标
package indicators

import "errors"

// ErrInvalidPeriod 周期不合法
var ErrInvalidPeriod = errors.New("indicators: period must be between 1 and the series length")

// SMA 简单移动平均（最少一个周期）
// 第 i 个值为末尾 min(i+1, period) 个数据的均值，首值等于首个数据
func SMA(values []float64, period int) ([]float64, error) {
	if period < 1 || period > len(values) {
		return nil, ErrInvalidPeriod
	}

	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		n := i + 1
		if n > period {
			n = period
		}
		out[i] = sum / float64(n)
	}
	return out, nil
}
