package backtest

import (
	"math"
	"sort"
)

// RiskMetrics 尾部风险指标（历史模拟法，单位为日收益率小数，正数表示损失）
type RiskMetrics struct {
	VaR95  float64 `json:"var_95"`  // 95% 置信度的风险价值
	VaR99  float64 `json:"var_99"`  // 99% 置信度的风险价值
	CVaR95 float64 `json:"cvar_95"` // 95% 置信度的条件风险价值
	CVaR99 float64 `json:"cvar_99"` // 99% 置信度的条件风险价值
}

// CalculateRiskMetrics 计算组合价值序列的 VaR/CVaR，不足两个点时返回零值
func CalculateRiskMetrics(values []float64) RiskMetrics {
	if len(values) < 2 {
		return RiskMetrics{}
	}

	sorted := Returns(values)
	sort.Float64s(sorted)

	return RiskMetrics{
		VaR95:  historicalVaR(sorted, 0.95),
		VaR99:  historicalVaR(sorted, 0.99),
		CVaR95: conditionalVaR(sorted, 0.95),
		CVaR99: conditionalVaR(sorted, 0.99),
	}
}

// tailIndex 分位点下标（sorted 升序）
func tailIndex(n int, confidence float64) int {
	index := int(float64(n) * (1 - confidence))
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

// historicalVaR 历史模拟法 VaR
func historicalVaR(sorted []float64, confidence float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return math.Abs(sorted[tailIndex(len(sorted), confidence)])
}

// conditionalVaR 尾部平均损失（Expected Shortfall）
func conditionalVaR(sorted []float64, confidence float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := tailIndex(len(sorted), confidence)
	sum := 0.0
	for i := 0; i <= index; i++ {
		sum += sorted[i]
	}
	return math.Abs(sum / float64(index+1))
}
