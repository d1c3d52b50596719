package backtest

import (
	"encoding/json"
	"math"
)

// JSONFloat 编码时把 NaN/Inf 写成 null 的浮点数
type JSONFloat float64

// MarshalJSON 实现 json.Marshaler
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON null 解码为 NaN
func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

func jsonFloats(values []float64) []JSONFloat {
	if values == nil {
		return nil
	}
	out := make([]JSONFloat, len(values))
	for i, v := range values {
		out[i] = JSONFloat(v)
	}
	return out
}

// MarshalJSON NaN 指标编码为 null
func (m MetricsReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CumulativeReturn JSONFloat       `json:"cumulative_return"`
		TotalReturn      JSONFloat       `json:"total_return"`
		FinalValue       JSONFloat       `json:"final_value"`
		SharpeRatio      JSONFloat       `json:"sharpe_ratio"`
		MaxDrawdown      JSONFloat       `json:"max_drawdown"`
		NumTrades        int             `json:"num_trades"`
		WinRate          JSONFloat       `json:"win_rate"`
		DataPoints       int             `json:"data_points"`
		Rolling          *RollingMetrics `json:"rolling,omitempty"`
		Risk             RiskMetrics     `json:"risk"`
	}{
		CumulativeReturn: JSONFloat(m.CumulativeReturn),
		TotalReturn:      JSONFloat(m.TotalReturn),
		FinalValue:       JSONFloat(m.FinalValue),
		SharpeRatio:      JSONFloat(m.SharpeRatio),
		MaxDrawdown:      JSONFloat(m.MaxDrawdown),
		NumTrades:        m.NumTrades,
		WinRate:          JSONFloat(m.WinRate),
		DataPoints:       m.DataPoints,
		Rolling:          m.Rolling,
		Risk:             m.Risk,
	})
}

// MarshalJSON 窗口未满的 NaN 编码为 null
func (r RollingMetrics) MarshalJSON() ([]byte, error) {
	type alias RollingMetrics
	return json.Marshal(struct {
		alias
		Sharpe     []JSONFloat `json:"rolling_sharpe"`
		Volatility []JSONFloat `json:"rolling_volatility"`
		Drawdown   []JSONFloat `json:"rolling_drawdown"`
	}{
		alias:      alias(r),
		Sharpe:     jsonFloats(r.Sharpe),
		Volatility: jsonFloats(r.Volatility),
		Drawdown:   jsonFloats(r.Drawdown),
	})
}

// MarshalJSON 无交易时胜率编码为 null
func (s TradeStats) MarshalJSON() ([]byte, error) {
	type alias TradeStats
	return json.Marshal(struct {
		alias
		WinRate JSONFloat `json:"win_rate"`
	}{
		alias:   alias(s),
		WinRate: JSONFloat(s.WinRate),
	})
}

// MarshalJSON 尾部风险指标
func (r RiskMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		VaR95  JSONFloat `json:"var_95"`
		VaR99  JSONFloat `json:"var_99"`
		CVaR95 JSONFloat `json:"cvar_95"`
		CVaR99 JSONFloat `json:"cvar_99"`
	}{JSONFloat(r.VaR95), JSONFloat(r.VaR99), JSONFloat(r.CVaR95), JSONFloat(r.CVaR99)})
}
